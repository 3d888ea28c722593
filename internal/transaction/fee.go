// internal/transaction/fee.go
package transaction

import (
	"context"
	"fmt"
	"math"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

// MinPriorityFee is the lowest price, in micro-lamports per compute unit,
// the estimator will return.
const MinPriorityFee uint64 = 10_000

// FeeEstimator asks the fee oracle for a per-unit price.
type FeeEstimator struct {
	floor  uint64
	logger *zap.Logger
}

func NewFeeEstimator(logger *zap.Logger) *FeeEstimator {
	return &FeeEstimator{
		floor:  MinPriorityFee,
		logger: logger.Named("fee-estimator"),
	}
}

// Estimate sends the compiled in.Instructions to the oracle and returns
// max(ceil(estimate), MinPriorityFee). Every failure is a *FeeEstimationError.
func (e *FeeEstimator) Estimate(ctx context.Context, client blockchain.Client, in EstimateInput, level types.PriorityLevel) (uint64, error) {
	level = level.OrDefault()
	fail := func(err error) (uint64, error) {
		return 0, &FeeEstimationError{Level: level, Err: err}
	}

	tx, err := in.compileForNode()
	if err != nil {
		return fail(fmt.Errorf("failed to compile fee message: %w", err))
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return fail(fmt.Errorf("failed to serialize fee message: %w", err))
	}

	estimate, err := client.GetPriorityFeeEstimate(ctx, base58.Encode(raw), level)
	if err != nil {
		return fail(err)
	}
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) || estimate < 0 {
		return fail(fmt.Errorf("unusable priority fee estimate: %v", estimate))
	}

	price := e.floor
	if ceiled := math.Ceil(estimate); ceiled > float64(e.floor) {
		if ceiled >= math.MaxUint64 {
			return fail(fmt.Errorf("priority fee estimate out of range: %v", estimate))
		}
		price = uint64(ceiled)
	}

	e.logger.Debug("Priority fee estimated",
		zap.String("priority_level", level.String()),
		zap.Float64("oracle_estimate", estimate),
		zap.Uint64("micro_lamports", price))

	return price, nil
}
