// internal/transaction/compute.go
package transaction

import (
	"context"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	"github.com/rovshanmuradov/solana-txprep/internal/blockchain/computebudget"
	solrpc "github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc/rpc"
)

// EstimateInput is the message both estimators compile and send to the node.
type EstimateInput struct {
	Payer         solana.PublicKey
	Instructions  []solana.Instruction
	Blockhash     solana.Hash
	AddressTables map[solana.PublicKey]solana.PublicKeySlice
}

// compile builds an unsigned transaction from the input.
func (in EstimateInput) compile() (*solana.Transaction, error) {
	opts := []solana.TransactionOption{solana.TransactionPayer(in.Payer)}
	if len(in.AddressTables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(in.AddressTables))
	}
	return solana.NewTransaction(in.Instructions, in.Blockhash, opts...)
}

// compileForNode compiles the input and fills zeroed signatures so that nodes
// accept the payload without real signers.
func (in EstimateInput) compileForNode() (*solana.Transaction, error) {
	tx, err := in.compile()
	if err != nil {
		return nil, err
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}

// ComputeEstimate is a successful compute unit estimation.
type ComputeEstimate struct {
	// Units is the limit to request: ceil(Consumed * tolerance).
	Units    uint32
	Consumed uint64
	Logs     []string
}

// ComputeEstimator learns actual consumption from a dry run.
type ComputeEstimator struct {
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

func NewComputeEstimator(logger *zap.Logger) *ComputeEstimator {
	return &ComputeEstimator{
		commitment: rpc.CommitmentProcessed,
		logger:     logger.Named("cu-estimator"),
	}
}

// Estimate simulates in.Instructions behind a maximal limit directive.
// A node-reported execution error is returned as *SimulationError and is never retried.
func (e *ComputeEstimator) Estimate(ctx context.Context, client blockchain.Client, in EstimateInput, tolerance float64) (ComputeEstimate, error) {
	in.Instructions = computebudget.Prepend(
		computebudget.LimitInstruction(computebudget.MaxComputeUnitLimit),
		in.Instructions,
	)

	tx, err := in.compileForNode()
	if err != nil {
		return ComputeEstimate{}, fmt.Errorf("failed to compile simulation message: %w", err)
	}

	result, err := client.SimulateTransaction(ctx, tx, blockchain.SimulateOptions{
		SigVerify:              false,
		ReplaceRecentBlockhash: true,
		Commitment:             e.commitment,
	})
	if err != nil {
		return ComputeEstimate{}, &TransportError{Op: "simulateTransaction", Err: err}
	}

	if result.Failed() {
		e.logger.Warn("Simulation rejected",
			zap.Any("error", result.Err),
			zap.Int("log_lines", len(result.Logs)))
		return ComputeEstimate{}, &SimulationError{Err: result.Err, Logs: result.Logs}
	}

	if result.UnitsConsumed == nil {
		return ComputeEstimate{}, &TransportError{
			Op:  "simulateTransaction",
			Err: fmt.Errorf("%w: unitsConsumed missing", solrpc.ErrInvalidResponse),
		}
	}

	consumed := *result.UnitsConsumed
	estimate := ComputeEstimate{
		Units:    applyTolerance(consumed, tolerance),
		Consumed: consumed,
		Logs:     result.Logs,
	}

	e.logger.Debug("Compute units estimated",
		zap.Uint64("consumed", consumed),
		zap.Float64("tolerance", tolerance),
		zap.Uint32("units", estimate.Units))

	return estimate, nil
}

// applyTolerance returns ceil(consumed * tolerance) bounded by the network maximum.
func applyTolerance(consumed uint64, tolerance float64) uint32 {
	units := math.Ceil(float64(consumed) * tolerance)
	switch {
	case math.IsNaN(units) || units <= 0:
		return 0
	case units >= float64(computebudget.MaxComputeUnitLimit):
		return computebudget.MaxComputeUnitLimit
	default:
		return uint32(units)
	}
}
