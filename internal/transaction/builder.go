// internal/transaction/builder.go
package transaction

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	"github.com/rovshanmuradov/solana-txprep/internal/blockchain/computebudget"
	"github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

// Builder assembles transactions, resolving compute and fee directives on demand.
type Builder struct {
	dial       blockchain.Dialer
	compute    *ComputeEstimator
	fee        *FeeEstimator
	commitment rpc.CommitmentType
	metrics    *Metrics
	logger     *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDialer replaces the solana-go client factory.
func WithDialer(dial blockchain.Dialer) BuilderOption {
	return func(b *Builder) { b.dial = dial }
}

// WithCommitment sets the commitment used when fetching the recent blockhash.
func WithCommitment(commitment rpc.CommitmentType) BuilderOption {
	return func(b *Builder) { b.commitment = commitment }
}

// WithMetrics enables prometheus collection.
func WithMetrics(m *Metrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

func NewBuilder(logger *zap.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		dial:       solbc.Dialer(logger),
		compute:    NewComputeEstimator(logger),
		fee:        NewFeeEstimator(logger),
		commitment: rpc.CommitmentFinalized,
		logger:     logger.Named("tx-builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the pipeline for one request. On error the result is nil;
// simulation logs are available through Logs(err).
func (b *Builder) Build(ctx context.Context, req TxRequest) (result *TxResult, err error) {
	defer func(start time.Time) { b.metrics.trackBuild(start, err) }(time.Now())

	if err := req.validate(); err != nil {
		b.logger.Debug("Request rejected", zap.Error(err))
		return nil, err
	}
	level, _ := types.ParsePriorityLevel(string(req.PriorityLevel))
	client := b.dial(req.Endpoint)

	blockhash, err := client.GetLatestBlockhash(ctx, b.commitment)
	if err != nil {
		return nil, &TransportError{Op: "getLatestBlockhash", Err: err}
	}

	instructions := append([]solana.Instruction(nil), req.Instructions...)
	res := &TxResult{Blockhash: blockhash}

	if req.OptimizeCompute {
		estimate, err := b.compute.Estimate(ctx, client, req.estimateInput(instructions, blockhash), req.tolerance())
		if err != nil {
			b.logger.Error("Compute estimation failed", zap.Error(err))
			return nil, err
		}
		instructions = computebudget.Prepend(computebudget.LimitInstruction(estimate.Units), instructions)
		res.ComputeUnits = estimate.Units
		b.metrics.observeComputeUnits(estimate.Units)
	}

	if req.OptimizeFee {
		price, err := b.fee.Estimate(ctx, client, req.estimateInput(instructions, blockhash), level)
		if err != nil {
			b.logger.Error("Priority fee estimation failed", zap.Error(err))
			return nil, err
		}
		instructions = computebudget.Prepend(computebudget.PriceInstruction(price), instructions)
		res.PriorityFee = price
		b.metrics.observePriorityFee(price)
	}

	tx, err := req.estimateInput(instructions, blockhash).compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile transaction: %w", err)
	}

	if req.Signer != nil {
		if err := req.Signer.SignTransaction(tx); err != nil {
			return nil, fmt.Errorf("failed to sign transaction: %w", err)
		}
		res.Signed = true
	}

	res.Instructions = instructions

	switch {
	case req.Encode:
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize transaction: %w", err)
		}
		res.Format, res.Encoded = FormatBase64, base64.StdEncoding.EncodeToString(raw)
	case req.Serialize:
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize transaction: %w", err)
		}
		res.Format, res.Raw = FormatRaw, raw
	default:
		res.Format, res.Transaction = FormatTransaction, tx
	}

	b.logger.Info("Transaction assembled",
		zap.String("payer", req.FeePayer.String()),
		zap.String("blockhash", blockhash.String()),
		zap.Int("instructions", len(instructions)),
		zap.Uint32("compute_units", res.ComputeUnits),
		zap.Uint64("priority_fee", res.PriorityFee),
		zap.String("priority_level", level.String()),
		zap.Stringer("format", res.Format),
		zap.Bool("signed", res.Signed))

	return res, nil
}
