// Package logging builds the zap logger used by the server. The level can be
// changed at runtime through the admin API, and string fields pass through
// the sanitizer so customer phones and emails never reach the output in clear.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jkindrix/bluehome/internal/sanitize"
)

// Logger wraps zap.Logger together with its adjustable level.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config holds configuration for logger initialization.
type Config struct {
	// Level is the initial log level (debug, info, warn, error).
	Level string
	// Format is json or console.
	Format string
	// Environment is development or production. Production samples repeated entries.
	Environment string
	// Output defaults to stderr.
	Output io.Writer
}

// New creates a Logger.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = &Config{Level: "info", Format: "json", Environment: "development"}
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	atomicLevel := zap.NewAtomicLevelAt(level)
	production := cfg.Environment == "production"

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if production {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var out io.Writer = os.Stderr
	if cfg.Output != nil {
		out = cfg.Output
	}

	var core zapcore.Core = &redactCore{
		Core: zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), atomicLevel),
		s:    sanitize.NewDefault(),
	}
	if production {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 10)
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", "bluehome")),
	}
	if !production {
		opts = append(opts, zap.Development())
	}

	return &Logger{Logger: zap.New(core, opts...), level: atomicLevel}, nil
}

// NewNop returns a Logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// ParseLevel parses a level string into a zapcore.Level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown level: %q", level)
	}
}

// AvailableLevels lists the levels accepted by SetLevel.
func AvailableLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}
	previous := l.level.Level()
	l.level.SetLevel(parsed)
	l.Logger.Info("log level changed",
		zap.String("new_level", parsed.String()),
		zap.String("previous_level", previous.String()),
	)
	return nil
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() string {
	return l.level.Level().String()
}

// Zap returns the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.Logger
}

// Identifier fields are generated by us and may look like phone numbers.
var unmaskedKeys = map[string]bool{
	"correlation_id": true,
	"request_id":     true,
	"audit_id":       true,
}

// redactCore masks the entry message, string fields and error fields.
type redactCore struct {
	zapcore.Core
	s *sanitize.Sanitizer
}

func (c *redactCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactCore{Core: c.Core.With(c.redact(fields)), s: c.s}
}

func (c *redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.s.String(ent.Message)
	return c.Core.Write(ent, c.redact(fields))
}

func (c *redactCore) redact(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch {
		case unmaskedKeys[f.Key]:
		case f.Type == zapcore.StringType:
			f.String = c.s.String(f.String)
		case f.Type == zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok {
				f = zap.String(f.Key, c.s.Error(err))
			}
		}
		out[i] = f
	}
	return out
}
