package logging

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config configures NewLogger. cmd/docspaced builds it from the "logging"
// section of config.Config.
type Config struct {
	Level  zapcore.Level
	Format string // json or console

	// Stdout and OTEL select outputs. OTEL needs a LoggerProvider passed to
	// NewLogger; without one it is skipped.
	Stdout bool
	OTEL   bool

	Caller    bool
	Fields    map[string]string
	Sampling  SamplingConfig
	Redaction RedactionConfig
}

// SamplingConfig keeps the first Initial entries per level and message in
// each Tick, then every Thereafter-th (none when Thereafter is 0). Warn and
// above are never sampled.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// RedactionConfig adds field keys and value patterns to the built-in
// credential rules. Nothing is masked when Enabled is false.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns the daemon's defaults: JSON on stdout at info,
// sampled, with redaction on.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Stdout: true,
		Caller: true,
		Fields: map[string]string{"service": "docspace"},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Redaction: RedactionConfig{Enabled: true},
	}
}

// ParseLevel accepts zap level names in any case; empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Validate reports every problem in c.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "json" && c.Format != "console" {
		errs = append(errs, fmt.Errorf("format must be json or console, got %q", c.Format))
	}
	if !c.Stdout && !c.OTEL {
		errs = append(errs, errors.New("at least one output must be enabled (stdout or otel)"))
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			errs = append(errs, errors.New("sampling tick must be positive"))
		}
		if c.Sampling.Initial <= 0 || c.Sampling.Thereafter < 0 {
			errs = append(errs, fmt.Errorf("sampling needs initial > 0 and thereafter >= 0, got %d/%d",
				c.Sampling.Initial, c.Sampling.Thereafter))
		}
	}
	if c.Redaction.Enabled {
		if _, err := newRedactor(c.Redaction); err != nil {
			errs = append(errs, err)
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			errs = append(errs, fmt.Errorf("constant field %q needs a key and a value", k))
		}
	}
	return errors.Join(errs...)
}
