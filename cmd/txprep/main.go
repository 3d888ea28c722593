// ====================================
// File: cmd/txprep/main.go
// ====================================
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txprep/internal/config"
	"github.com/rovshanmuradov/solana-txprep/internal/logger"
	"github.com/rovshanmuradov/solana-txprep/internal/runner"
)

func main() {
	fs := pflag.NewFlagSet("txprep", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "path to a JSON or YAML config file")
	memo := fs.String("memo", "txprep", "memo text of the prepared transaction")
	send := fs.Bool("send", false, "send the prepared transaction and wait for finalization")
	watch := fs.StringSlice("watch", nil, "poll existing signatures instead of preparing a transaction")
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.DebugLogging, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(2)
	}

	r := runner.NewRunner(cfg, log)
	defer r.Shutdown()

	if err := r.Run(context.Background(), runner.Command{Memo: *memo, Send: *send, Watch: *watch}); err != nil {
		log.Error("Run failed", zap.Error(err))
		r.Shutdown()
		os.Exit(1)
	}
}
