// internal/transaction/sender.go
package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	"github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc"
	solrpc "github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc/rpc"
)

// DefaultSendMaxElapsed bounds the total time spent retrying one submission.
const DefaultSendMaxElapsed = 30 * time.Second

var (
	ErrUnsignedTransaction = errors.New("transaction has no signatures")
	ErrMissingBlockhash    = errors.New("transaction has no recent blockhash")
)

// Sender submits signed transactions. Only transient transport errors are
// retried; critical ones (unauthorized, malformed responses) never are.
type Sender struct {
	dial       blockchain.Dialer
	analyzer   *solbc.ErrorAnalyzer
	opts       blockchain.TransactionOptions
	newBackOff func() backoff.BackOff
	maxElapsed time.Duration
	metrics    *Metrics
	logger     *zap.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

func WithSendDialer(dial blockchain.Dialer) SenderOption {
	return func(s *Sender) { s.dial = dial }
}

// WithSendBackOff replaces the exponential policy between attempts.
func WithSendBackOff(newBackOff func() backoff.BackOff) SenderOption {
	return func(s *Sender) { s.newBackOff = newBackOff }
}

func WithSendMaxElapsed(d time.Duration) SenderOption {
	return func(s *Sender) { s.maxElapsed = d }
}

func WithSendMetrics(m *Metrics) SenderOption {
	return func(s *Sender) { s.metrics = m }
}

// WithPreflight sets the preflight behaviour of the node.
func WithPreflight(skip bool, commitment rpc.CommitmentType) SenderOption {
	return func(s *Sender) {
		s.opts = blockchain.TransactionOptions{SkipPreflight: skip, PreflightCommitment: commitment}
	}
}

func NewSender(logger *zap.Logger, opts ...SenderOption) *Sender {
	s := &Sender{
		dial:     solbc.Dialer(logger),
		analyzer: solbc.NewErrorAnalyzer(logger),
		opts: blockchain.TransactionOptions{
			PreflightCommitment: rpc.CommitmentProcessed,
		},
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		maxElapsed: DefaultSendMaxElapsed,
		logger:     logger.Named("tx-sender"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send submits tx to endpoint and returns its signature. A preflight rejection
// is a *SimulationError carrying the node's logs.
func (s *Sender) Send(ctx context.Context, endpoint string, tx *solana.Transaction) (solana.Signature, error) {
	if endpoint == "" {
		return solana.Signature{}, &ValidationError{Field: "endpoint", Err: ErrMissingEndpoint}
	}
	if err := validateSigned(tx); err != nil {
		return solana.Signature{}, err
	}

	client := s.dial(endpoint)
	operation := func() (solana.Signature, error) {
		sig, err := client.SendTransactionWithOpts(ctx, tx, s.opts)
		if err == nil {
			return sig, nil
		}
		if analysis := s.analyzer.Analyze(err); analysis != nil && analysis.SimulationFailed {
			return sig, backoff.Permanent(&SimulationError{Err: analysis.InstructionError, Logs: analysis.Logs})
		}
		sendErr := &TransportError{Op: "sendTransaction", Err: err}
		// Critical errors win over retryable kinds, e.g. a 5xx gateway rejecting the API key.
		if solrpc.IsCriticalError(err) || !solrpc.IsRetryableError(err) {
			return sig, backoff.Permanent(sendErr)
		}
		return sig, sendErr
	}

	sig, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxElapsedTime(s.maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.metrics.incSendRetries()
			s.logger.Warn("Retrying transaction send",
				zap.Duration("next_attempt_in", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		s.logger.Error("Failed to send transaction", zap.Error(err))
		return solana.Signature{}, err
	}

	s.logger.Info("Transaction sent", zap.String("signature", sig.String()))
	return sig, nil
}

func validateSigned(tx *solana.Transaction) error {
	switch {
	case tx == nil || len(tx.Message.Instructions) == 0:
		return &ValidationError{Field: "instructions", Err: ErrMissingInstructions}
	case len(tx.Signatures) == 0 || tx.Signatures[0].IsZero():
		return &ValidationError{Field: "signatures", Err: ErrUnsignedTransaction}
	case tx.Message.RecentBlockhash.IsZero():
		return &ValidationError{Field: "blockhash", Err: ErrMissingBlockhash}
	}
	return nil
}
