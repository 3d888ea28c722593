// internal/runner/runner.go
package runner

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	"github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-txprep/internal/config"
	"github.com/rovshanmuradov/solana-txprep/internal/logger"
	"github.com/rovshanmuradov/solana-txprep/internal/transaction"
	"github.com/rovshanmuradov/solana-txprep/internal/wallet"
)

var reportHeader = []string{"timestamp", "signature", "state", "attempts", "slot", "message"}

// Command selects what Run does.
type Command struct {
	// Memo is the text of the memo instruction to prepare.
	Memo string
	// Send submits the prepared transaction and polls its confirmation.
	Send bool
	// Watch polls existing signatures instead of preparing a transaction.
	Watch []string
}

type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	dial     blockchain.Dialer
	pool     *solbc.Pool
	registry *prometheus.Registry
	out      io.Writer
}

type Option func(*Runner)

// WithDialer replaces the pooled solana-go clients used by every pipeline stage.
func WithDialer(dial blockchain.Dialer) Option {
	return func(r *Runner) { r.dial = dial }
}

// WithOutput redirects the printed payload and outcomes.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// NewRunner NewRunner: принимает cfg и logger
func NewRunner(cfg *config.Config, logger *zap.Logger, opts ...Option) *Runner {
	pool := solbc.NewPool(logger)
	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		dial:     pool.Dial,
		pool:     pool,
		registry: prometheus.NewRegistry(),
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd until it completes or SIGINT/SIGTERM arrives.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := transaction.NewMetrics(r.registry)
	if r.cfg.MetricsAddr != "" {
		shutdown := r.serveMetrics()
		defer shutdown()
	}

	monitor := transaction.NewMonitor(r.logger, r.dial, metrics)

	if len(cmd.Watch) > 0 {
		signatures := make([]solana.Signature, 0, len(cmd.Watch))
		for _, s := range cmd.Watch {
			sig, err := solana.SignatureFromBase58(s)
			if err != nil {
				return fmt.Errorf("invalid signature %q: %w", s, err)
			}
			signatures = append(signatures, sig)
		}
		outcomes := monitor.PollMany(ctx, r.cfg.RPCURL, signatures, r.pollOptions(), 0)
		return r.report(outcomes)
	}

	payer, err := r.loadWallet()
	if err != nil {
		return err
	}

	req := transaction.TxRequest{
		Endpoint:        r.cfg.RPCURL,
		FeePayer:        payer.PublicKey,
		Instructions:    []solana.Instruction{payer.MemoInstruction(cmd.Memo)},
		Signer:          payer,
		Tolerance:       r.cfg.Tolerance,
		PriorityLevel:   r.cfg.Priority(),
		OptimizeCompute: r.cfg.OptimizeCompute,
		OptimizeFee:     r.cfg.OptimizeFee,
		Serialize:       r.cfg.Serialize && !cmd.Send,
		Encode:          r.cfg.Encode && !cmd.Send,
	}

	builder := transaction.NewBuilder(r.logger,
		transaction.WithDialer(r.dial),
		transaction.WithCommitment(r.cfg.CommitmentType()),
		transaction.WithMetrics(metrics),
	)
	res, err := builder.Build(ctx, req)
	if err != nil {
		for _, line := range transaction.Logs(err) {
			fmt.Fprintln(r.out, line)
		}
		return fmt.Errorf("failed to prepare transaction: %w", err)
	}

	if !cmd.Send {
		return r.printPayload(res)
	}

	sender := transaction.NewSender(r.logger,
		transaction.WithSendDialer(r.dial),
		transaction.WithSendMaxElapsed(r.cfg.SendMaxElapsedTime()),
		transaction.WithSendMetrics(metrics),
	)
	sig, err := sender.Send(ctx, r.cfg.RPCURL, res.Transaction)
	if err != nil {
		for _, line := range transaction.Logs(err) {
			fmt.Fprintln(r.out, line)
		}
		return fmt.Errorf("failed to send transaction: %w", err)
	}

	outcome := monitor.Poll(ctx, r.cfg.RPCURL, sig, r.pollOptions())
	return r.report([]transaction.Outcome{outcome})
}

func (r *Runner) loadWallet() (*wallet.Wallet, error) {
	wallets, err := wallet.LoadWallets(r.cfg.WalletsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	if r.cfg.Wallet != "" {
		return wallet.Select(wallets, r.cfg.Wallet)
	}
	if len(wallets) != 1 {
		return nil, errors.New("wallet must be set when the wallets file has several entries")
	}
	for _, w := range wallets {
		return w, nil
	}
	return nil, wallet.ErrWalletNotFound
}

func (r *Runner) pollOptions() transaction.PollOptions {
	return transaction.PollOptions{
		MaxAttempts: r.cfg.PollMaxAttempts,
		Interval:    r.cfg.PollInterval(),
	}
}

func (r *Runner) printPayload(res *transaction.TxResult) error {
	var err error
	switch res.Format {
	case transaction.FormatBase64:
		_, err = fmt.Fprintln(r.out, res.Encoded)
	case transaction.FormatRaw:
		_, err = fmt.Fprintln(r.out, hex.EncodeToString(res.Raw))
	default:
		_, err = fmt.Fprintln(r.out, res.Transaction.String())
	}
	return err
}

// report prints every outcome, appends them to the CSV report if configured
// and fails unless all transactions were finalized.
func (r *Runner) report(outcomes []transaction.Outcome) error {
	var csvWriter *logger.SafeCSVWriter
	if r.cfg.ReportFile != "" {
		w, err := logger.NewSafeCSVWriter(r.cfg.ReportFile, reportHeader, time.Second, r.logger)
		if err != nil {
			return fmt.Errorf("failed to open report: %w", err)
		}
		csvWriter = w
		defer csvWriter.Close()
	}

	failed := 0
	for _, out := range outcomes {
		fmt.Fprintf(r.out, "%s %s %s\n", out.Signature, out.State, out.Message)
		if out.State != transaction.StateFinalized {
			failed++
		}
		if csvWriter == nil {
			continue
		}
		record := []string{
			time.Now().UTC().Format(time.RFC3339),
			out.Signature.String(),
			string(out.State),
			strconv.Itoa(out.Attempts),
			strconv.FormatUint(out.Slot, 10),
			out.Message,
		}
		if err := csvWriter.WriteRecord(record); err != nil {
			return err
		}
	}

	if csvWriter != nil {
		records, _ := csvWriter.GetStats()
		r.logger.Info("Report updated",
			zap.String("file", r.cfg.ReportFile),
			zap.Uint64("records", records))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d transactions not finalized", failed, len(outcomes))
	}
	return nil
}

func (r *Runner) serveMetrics() func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: r.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	r.logger.Info("Metrics server started", zap.String("addr", r.cfg.MetricsAddr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// Shutdown closes pooled RPC connections and flushes the logger.
func (r *Runner) Shutdown() {
	if err := r.pool.Close(); err != nil {
		r.logger.Warn("Failed to close RPC clients", zap.Error(err))
	}
	if err := r.logger.Sync(); err != nil {
		if !os.IsNotExist(err) &&
			err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: inappropriate ioctl for device" {
			fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
		}
	}
}
