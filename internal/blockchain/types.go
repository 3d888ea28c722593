// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// SimulateOptions controls a dry run.
type SimulateOptions struct {
	SigVerify              bool
	ReplaceRecentBlockhash bool
	Commitment             rpc.CommitmentType
}

// SimulationResult представляет результат симуляции транзакции.
// UnitsConsumed is nil when the node did not report consumption.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed *uint64
}

// Failed reports whether the node attached an execution error.
func (r *SimulationResult) Failed() bool {
	return r != nil && r.Err != nil
}

// Client определяет RPC-методы, которые использует конвейер подготовки транзакций.
type Client interface {
	// Получить последний blockhash.
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error)
	// Симулировать транзакцию.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts SimulateOptions) (*SimulationResult, error)
	// Запросить оценку priority fee у оракула (base58-сериализованная транзакция).
	GetPriorityFeeEstimate(ctx context.Context, serializedTx string, level types.PriorityLevel) (float64, error)
	// Получить статусы подписей транзакций.
	GetSignatureStatuses(ctx context.Context, searchHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	// Отправить транзакцию с опциями.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
}

// Dialer turns an endpoint into a Client.
type Dialer func(endpoint string) Client
