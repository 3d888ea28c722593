package solbc

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	solrpc "github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc/rpc"
)

func TestAnalyzeSimulationFailure(t *testing.T) {
	rpcErr := &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 2: custom program error: 0x65",
		Data: map[string]interface{}{
			"err": map[string]interface{}{"InstructionError": []interface{}{2, "Custom"}},
			"logs": []interface{}{
				"Program X invoke [1]",
				"Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported.",
			},
		},
	}
	wrapped := solrpc.Wrap(rpcErr, "http://node", "sendTransaction")

	analysis := NewErrorAnalyzer(zap.NewNop()).Analyze(wrapped)

	require.NotNil(t, analysis)
	assert.True(t, analysis.SimulationFailed)
	assert.Equal(t, -32002, analysis.Code)
	assert.Len(t, analysis.Logs, 2)
	assert.NotNil(t, analysis.InstructionError)
	require.NotNil(t, analysis.Anchor)
	assert.Equal(t, 101, analysis.Anchor.Code)
	assert.Equal(t, "InstructionFallbackNotFound", analysis.Anchor.Name)
	assert.Equal(t, "Fallback functions are not supported", analysis.Anchor.Msg)
}

func TestAnalyzePlainRPCError(t *testing.T) {
	analysis := NewErrorAnalyzer(zap.NewNop()).Analyze(&jsonrpc.RPCError{Code: -32005, Message: "Node is behind"})

	require.NotNil(t, analysis)
	assert.False(t, analysis.SimulationFailed)
	assert.Empty(t, analysis.Logs)
}

func TestAnalyzeNonRPCError(t *testing.T) {
	ea := NewErrorAnalyzer(zap.NewNop())
	assert.Nil(t, ea.Analyze(errors.New("boom")))
	assert.Nil(t, ea.Analyze(nil))
}
