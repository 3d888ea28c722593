package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// ErrorAnalysis is the structured view of an RPC error returned by a node.
type ErrorAnalysis struct {
	Code             int
	Message          string
	SimulationFailed bool
	Logs             []string
	InstructionError interface{}
	Anchor           *AnchorError
}

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// Analyze looks for a jsonrpc.RPCError anywhere in the chain of err.
// It returns nil when err carries no node-level error.
func (ea *ErrorAnalyzer) Analyze(err error) *ErrorAnalysis {
	var rpcErr *jsonrpc.RPCError
	if err == nil || !errors.As(err, &rpcErr) {
		return nil
	}

	result := &ErrorAnalysis{
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
	}

	// Preflight failures come back as "Transaction simulation failed: ..."
	if !strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		return result
	}
	result.SimulationFailed = true

	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return result
	}

	if logs, ok := dataMap["logs"].([]interface{}); ok {
		result.Logs = make([]string, 0, len(logs))
		for _, logEntry := range logs {
			logStr, ok := logEntry.(string)
			if !ok {
				continue
			}
			result.Logs = append(result.Logs, logStr)
			if result.Anchor == nil && strings.Contains(logStr, "AnchorError occurred") {
				anchorErr := ea.parseAnchorErrorLog(logStr)
				result.Anchor = &anchorErr

				ea.logger.Warn("Anchor error detected",
					zap.Int("code", anchorErr.Code),
					zap.String("name", anchorErr.Name),
					zap.String("message", anchorErr.Msg))
			}
		}
	}

	if instErr, ok := dataMap["err"]; ok && instErr != nil {
		result.InstructionError = instErr
	}

	return result
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func (ea *ErrorAnalyzer) parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if parts := strings.Split(logStr, "Error Number:"); len(parts) > 1 {
		numParts := strings.Split(parts[1], ".")
		if len(numParts) > 0 {
			fmt.Sscanf(strings.TrimSpace(numParts[0]), "%d", &result.Code)
		}
	}

	if parts := strings.Split(logStr, "Error Code:"); len(parts) > 1 {
		nameParts := strings.Split(parts[1], ".")
		if len(nameParts) > 0 {
			result.Name = strings.TrimSpace(nameParts[0])
		}
	}

	if parts := strings.Split(logStr, "Error Message:"); len(parts) > 1 {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(parts[1]), ".")
	}

	return result
}
