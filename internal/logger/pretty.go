// internal/logger/pretty.go
package logger

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Colors for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

// New builds the application logger: colored one-line messages for "pretty",
// zap production JSON for "json".
func New(debug bool, format string) (*zap.Logger, error) {
	return NewWithSink(debug, format, zapcore.Lock(os.Stdout))
}

// NewWithSink is New writing to sink.
func NewWithSink(debug bool, format string, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	switch format {
	case FormatJSON:
		core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, level)
		return zap.New(core, zap.AddCaller()), nil
	case FormatPretty, "":
		core := zapcore.NewCore(PrettyEncoder(), sink, level)
		return zap.New(&PrettyCore{core: core}), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

// PrettyEncoder creates a user-friendly console encoder
func PrettyEncoder() zapcore.Encoder {
	config := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "",
		CallerKey:      "",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return zapcore.NewConsoleEncoder(config)
}

// customLevelEncoder formats log levels with colors
func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(fmt.Sprintf("%s[DEBUG]%s", ColorCyan, ColorReset))
	case zapcore.InfoLevel:
		enc.AppendString(fmt.Sprintf("%s[INFO]%s", ColorGreen, ColorReset))
	case zapcore.WarnLevel:
		enc.AppendString(fmt.Sprintf("%s[WARN]%s", ColorYellow, ColorReset))
	case zapcore.ErrorLevel:
		enc.AppendString(fmt.Sprintf("%s[ERROR]%s", ColorRed, ColorReset))
	case zapcore.FatalLevel:
		enc.AppendString(fmt.Sprintf("%s[FATAL]%s", ColorRed+ColorBold, ColorReset))
	default:
		enc.AppendString(fmt.Sprintf("[%s]", level.CapitalString()))
	}
}

// customTimeEncoder formats time in a readable way
func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}

// FormatMessage creates user-friendly log messages for pipeline events.
// Unknown messages get their error field appended, if any.
func FormatMessage(msg string, fields ...zap.Field) string {
	switch {
	case strings.Contains(msg, "Compute units estimated"):
		consumed := extractField(fields, "consumed")
		units := extractField(fields, "units")
		return fmt.Sprintf("%s🧮 Compute: %s consumed, limit %s%s", ColorBlue, consumed, units, ColorReset)

	case strings.Contains(msg, "Priority fee estimated"):
		price := extractField(fields, "micro_lamports")
		level := extractField(fields, "priority_level")
		return fmt.Sprintf("%s💲 Priority fee: %s µlamports/CU (%s)%s", ColorBlue, price, level, ColorReset)

	case strings.Contains(msg, "Simulation rejected"):
		return fmt.Sprintf("%s✗ Simulation rejected: %s%s", ColorRed, extractField(fields, "error"), ColorReset)

	case strings.Contains(msg, "Transaction assembled"):
		count := extractField(fields, "instructions")
		format := extractField(fields, "format")
		return fmt.Sprintf("%s📦 Transaction assembled: %s instructions, %s%s", ColorCyan, count, format, ColorReset)

	case strings.Contains(msg, "Retrying transaction send"):
		return fmt.Sprintf("%s↻ Retrying send in %s%s", ColorYellow, extractField(fields, "next_attempt_in"), ColorReset)

	case strings.Contains(msg, "Transaction sent"):
		sig := extractField(fields, "signature")
		return fmt.Sprintf("%s📤 Transaction sent: %s%s", ColorYellow, shortenSignature(sig), ColorReset)

	case strings.Contains(msg, "Poll finished"):
		sig := shortenSignature(extractField(fields, "signature"))
		switch state := extractField(fields, "state"); state {
		case "finalized":
			return fmt.Sprintf("%s✅ Transaction finalized: %s%s", ColorGreen, sig, ColorReset)
		case "failed_on_chain":
			return fmt.Sprintf("%s❌ Transaction failed on chain: %s%s", ColorRed, sig, ColorReset)
		default:
			return fmt.Sprintf("%s⏱ %s: %s (%s)%s", ColorPurple, sig, state, extractField(fields, "message"), ColorReset)
		}

	default:
		if errText := extractField(fields, "error"); errText != "" {
			return msg + ": " + errText
		}
		return msg
	}
}

// Helper functions
func extractField(fields []zap.Field, key string) string {
	for _, field := range fields {
		if field.Key != key {
			continue
		}
		switch field.Type {
		case zapcore.StringType:
			return field.String
		case zapcore.Int64Type, zapcore.Int32Type:
			return strconv.FormatInt(field.Integer, 10)
		case zapcore.Uint64Type, zapcore.Uint32Type:
			return strconv.FormatUint(uint64(field.Integer), 10)
		case zapcore.Float64Type:
			return strconv.FormatFloat(math.Float64frombits(uint64(field.Integer)), 'f', -1, 64)
		case zapcore.BoolType:
			return strconv.FormatBool(field.Integer == 1)
		case zapcore.DurationType:
			return time.Duration(field.Integer).String()
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok {
				return err.Error()
			}
		case zapcore.StringerType:
			if s, ok := field.Interface.(fmt.Stringer); ok {
				return s.String()
			}
		}
		if field.Interface != nil {
			return fmt.Sprintf("%v", field.Interface)
		}
		return ""
	}
	return ""
}

func shortenSignature(sig string) string {
	if len(sig) > 16 {
		return sig[:8] + "..." + sig[len(sig)-8:]
	}
	return sig
}

// PrettyCore wraps a zapcore.Core and rewrites each entry into a single
// formatted message, dropping the structured fields.
type PrettyCore struct {
	core   zapcore.Core
	fields []zapcore.Field
}

func (c *PrettyCore) Enabled(level zapcore.Level) bool {
	return c.core.Enabled(level)
}

func (c *PrettyCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &PrettyCore{core: c.core, fields: merged}
}

func (c *PrettyCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *PrettyCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field(nil), c.fields...), fields...)
	entry.Message = FormatMessage(entry.Message, all...)
	return c.core.Write(entry, nil)
}

func (c *PrettyCore) Sync() error {
	return c.core.Sync()
}
