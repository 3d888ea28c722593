// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

const EnvPrefix = "SOLANA_TXPREP"

type Config struct {
	RPCURL          string  `mapstructure:"rpc_url"`
	WalletsFile     string  `mapstructure:"wallets_file"`
	Wallet          string  `mapstructure:"wallet"`
	Commitment      string  `mapstructure:"commitment"`
	Tolerance       float64 `mapstructure:"tolerance"`
	PriorityLevel   string  `mapstructure:"priority_level"`
	OptimizeCompute bool    `mapstructure:"optimize_compute"`
	OptimizeFee     bool    `mapstructure:"optimize_fee"`
	Serialize       bool    `mapstructure:"serialize"`
	Encode          bool    `mapstructure:"encode"`
	PollMaxAttempts int     `mapstructure:"poll_max_attempts"`
	PollIntervalMs  int     `mapstructure:"poll_interval_ms"`
	SendMaxElapsed  int     `mapstructure:"send_max_elapsed_ms"`
	DebugLogging    bool    `mapstructure:"debug_logging"`
	LogFormat       string  `mapstructure:"log_format"`
	ReportFile      string  `mapstructure:"report_file"`
	MetricsAddr     string  `mapstructure:"metrics_addr"`
}

const (
	DefaultRPCURL          = "https://api.mainnet-beta.solana.com"
	DefaultCommitment      = string(rpc.CommitmentFinalized)
	DefaultTolerance       = 1.1
	DefaultPollMaxAttempts = 10
	DefaultPollIntervalMs  = 4000
	DefaultSendMaxElapsed  = 30000
	DefaultLogFormat       = "pretty"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"rpc_url":             DefaultRPCURL,
		"wallets_file":        "wallets.csv",
		"wallet":              "",
		"commitment":          DefaultCommitment,
		"tolerance":           DefaultTolerance,
		"priority_level":      string(types.DefaultPriorityLevel),
		"optimize_compute":    true,
		"optimize_fee":        true,
		"serialize":           false,
		"encode":              false,
		"poll_max_attempts":   DefaultPollMaxAttempts,
		"poll_interval_ms":    DefaultPollIntervalMs,
		"send_max_elapsed_ms": DefaultSendMaxElapsed,
		"debug_logging":       false,
		"log_format":          DefaultLogFormat,
		"report_file":         "",
		"metrics_addr":        "",
	}
}

// LoadConfig читает конфигурацию из файла с учётом переменных окружения.
func LoadConfig(path string) (*Config, error) {
	return Load(path, nil)
}

// Load merges, lowest priority first: defaults, the config file (optional
// when path is empty), SOLANA_TXPREP_* environment, flags that were set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

// Flags регистрирует флаги CLI, имена совпадают с ключами конфигурации.
func Flags(fs *pflag.FlagSet) {
	fs.String("rpc_url", DefaultRPCURL, "RPC endpoint")
	fs.String("wallets_file", "wallets.csv", "CSV file with [name, private key] rows")
	fs.String("wallet", "", "wallet name used as fee payer")
	fs.String("commitment", DefaultCommitment, "blockhash commitment: processed, confirmed or finalized")
	fs.Float64("tolerance", DefaultTolerance, "multiplier applied to simulated compute units")
	fs.String("priority_level", string(types.DefaultPriorityLevel), "Min, Low, Medium, High, VeryHigh or UnsafeMax")
	fs.Bool("optimize_compute", true, "estimate the compute unit limit by simulation")
	fs.Bool("optimize_fee", true, "estimate the priority fee through the fee oracle")
	fs.Bool("serialize", false, "output raw transaction bytes")
	fs.Bool("encode", false, "output base64 (implies serialize)")
	fs.Int("poll_max_attempts", DefaultPollMaxAttempts, "status queries before giving up")
	fs.Int("poll_interval_ms", DefaultPollIntervalMs, "delay between status queries")
	fs.Int("send_max_elapsed_ms", DefaultSendMaxElapsed, "total retry budget for sending")
	fs.Bool("debug_logging", false, "enable debug logs")
	fs.String("log_format", DefaultLogFormat, "pretty or json")
	fs.String("report_file", "", "append poll outcomes to this CSV file")
	fs.String("metrics_addr", "", "serve prometheus metrics on this address, e.g. :9102")
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) SendMaxElapsedTime() time.Duration {
	return time.Duration(c.SendMaxElapsed) * time.Millisecond
}

func (c *Config) CommitmentType() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}

// Priority returns the parsed priority level. The config is validated on load.
func (c *Config) Priority() types.PriorityLevel {
	level, _ := types.ParsePriorityLevel(c.PriorityLevel)
	return level
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("rpc_url is empty")
	}
	if err := validateRPCURL(cfg.RPCURL); err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}
	switch rpc.CommitmentType(cfg.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	if _, err := types.ParsePriorityLevel(cfg.PriorityLevel); err != nil {
		return err
	}
	switch cfg.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("invalid log_format %q", cfg.LogFormat)
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.Tolerance <= 0 {
		return errors.New("invalid tolerance")
	}
	if cfg.PollMaxAttempts <= 0 {
		return errors.New("invalid poll_max_attempts")
	}
	if cfg.PollIntervalMs <= 0 {
		return errors.New("invalid poll_interval_ms")
	}
	if cfg.SendMaxElapsed < 0 {
		return errors.New("invalid send_max_elapsed_ms")
	}
	return nil
}

func validateRPCURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return errors.New("invalid URL protocol")
	}
	if parsed.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}
