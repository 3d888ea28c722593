// internal/transaction/monitor.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	"github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc"
)

// ConfirmationState is the position of a signature in the poll state machine.
type ConfirmationState string

const (
	StatePending       ConfirmationState = "pending"
	StateFinalized     ConfirmationState = "finalized"
	StateFailedOnChain ConfirmationState = "failed_on_chain"
	StateTimedOut      ConfirmationState = "timed_out"
	StatePollError     ConfirmationState = "poll_error"
	StateCancelled     ConfirmationState = "cancelled"
)

// Terminal reports whether polling stops in this state.
func (s ConfirmationState) Terminal() bool {
	return s != StatePending
}

const (
	DefaultPollMaxAttempts = 10
	DefaultPollInterval    = 4 * time.Second
)

// PollOptions bounds a poll loop. Zero values select the defaults.
type PollOptions struct {
	MaxAttempts int
	Interval    time.Duration
}

func (o PollOptions) withDefaults() PollOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultPollMaxAttempts
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	return o
}

// Budget is the longest a loop with these options waits.
func (o PollOptions) Budget() time.Duration {
	o = o.withDefaults()
	return time.Duration(o.MaxAttempts) * o.Interval
}

// Outcome is the terminal result of one poll loop.
type Outcome struct {
	Signature solana.Signature
	State     ConfirmationState
	// Attempts is the number of status queries issued.
	Attempts int
	Slot     uint64
	Message  string
	Err      error
}

// ticker returns a tick channel and its stop function.
type ticker func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Monitor polls signature statuses until a terminal state.
type Monitor struct {
	dial      blockchain.Dialer
	newTicker ticker
	metrics   *Metrics
	logger    *zap.Logger
}

// NewMonitor creates a Monitor. A nil dial uses the solana-go client.
func NewMonitor(logger *zap.Logger, dial blockchain.Dialer, metrics *Metrics) *Monitor {
	if dial == nil {
		dial = solbc.Dialer(logger)
	}
	return &Monitor{
		dial:      dial,
		newTicker: realTicker,
		metrics:   metrics,
		logger:    logger.Named("tx-monitor"),
	}
}

// Poll queries the status of signature once per interval. The first query
// happens one interval after the call. The loop ends on finality, on a query
// error, after MaxAttempts queries, or when ctx is done.
func (m *Monitor) Poll(ctx context.Context, endpoint string, signature solana.Signature, opts PollOptions) (out Outcome) {
	out = Outcome{Signature: signature, State: StatePending}
	defer func() {
		m.metrics.trackPoll(out)
		m.logger.Info("Poll finished",
			zap.String("signature", signature.String()),
			zap.String("state", string(out.State)),
			zap.Int("attempts", out.Attempts),
			zap.String("message", out.Message))
	}()

	switch {
	case endpoint == "":
		return pollFailed(out, &ValidationError{Field: "endpoint", Err: ErrMissingEndpoint})
	case signature.IsZero():
		return pollFailed(out, &ValidationError{Field: "signature", Err: ErrMissingSignature})
	}

	opts = opts.withDefaults()
	client := m.dial(endpoint)

	ticks, stop := m.newTicker(opts.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return cancelled(out, ctx.Err())
		case <-ticks:
		}

		out.Attempts++
		res, err := client.GetSignatureStatuses(ctx, true, signature)
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(out, ctx.Err())
			}
			return pollFailed(out, &TransportError{Op: "getSignatureStatuses", Err: err})
		}

		if status := firstStatus(res); status != nil {
			out.Slot = status.Slot
			m.logger.Debug("Signature status",
				zap.String("signature", signature.String()),
				zap.Int("attempt", out.Attempts),
				zap.String("confirmation_status", string(status.ConfirmationStatus)))

			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				if status.Err != nil {
					out.State = StateFailedOnChain
					out.Err = &OnChainError{Signature: signature, Err: status.Err}
					out.Message = out.Err.Error()
					return out
				}
				out.State = StateFinalized
				out.Message = "transaction finalized"
				return out
			}
		}

		if out.Attempts >= opts.MaxAttempts {
			out.State = StateTimedOut
			out.Message = timeoutMessage(opts)
			return out
		}
	}
}

// PollMany runs one independent Poll loop per signature, at most limit at a
// time (limit <= 0 means unbounded). Outcomes keep the order of signatures.
func (m *Monitor) PollMany(ctx context.Context, endpoint string, signatures []solana.Signature, opts PollOptions, limit int) []Outcome {
	outcomes := make([]Outcome, len(signatures))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, sig := range signatures {
		g.Go(func() error {
			outcomes[i] = m.Poll(gctx, endpoint, sig, opts)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func firstStatus(res *rpc.GetSignatureStatusesResult) *rpc.SignatureStatusesResult {
	if res == nil || len(res.Value) == 0 {
		return nil
	}
	return res.Value[0]
}

func timeoutMessage(opts PollOptions) string {
	seconds := opts.Budget().Seconds()
	return strconv.FormatFloat(seconds, 'f', -1, 64) + " seconds max wait reached"
}

func pollFailed(out Outcome, err error) Outcome {
	out.State = StatePollError
	out.Err = err
	out.Message = err.Error()
	return out
}

func cancelled(out Outcome, err error) Outcome {
	out.State = StateCancelled
	out.Err = err
	if errors.Is(err, context.DeadlineExceeded) {
		out.Message = "poll deadline exceeded"
	} else {
		out.Message = fmt.Sprintf("poll cancelled after %d attempts", out.Attempts)
	}
	return out
}
