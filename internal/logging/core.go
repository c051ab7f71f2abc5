package logging

import (
	"errors"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// instrumentationName is the OTel scope for bridged log records.
const instrumentationName = "github.com/fyrsmithlabs/docspace"

// newCore builds one core per output, each behind its own redaction layer,
// tees them and applies sampling on top.
func newCore(cfg *Config, out zapcore.WriteSyncer, provider log.LoggerProvider) (zapcore.Core, error) {
	var red *redactor
	if cfg.Redaction.Enabled {
		var err error
		if red, err = newRedactor(cfg.Redaction); err != nil {
			return nil, err
		}
	}
	wrap := func(c zapcore.Core) zapcore.Core {
		if red == nil {
			return c
		}
		return &redactCore{Core: c, r: red}
	}

	var cores []zapcore.Core
	if cfg.Stdout {
		cores = append(cores, wrap(zapcore.NewCore(newEncoder(cfg.Format), out, cfg.Level)))
	}
	if cfg.OTEL && provider != nil {
		otelCore := otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(provider))
		cores = append(cores, &minLevelCore{Core: wrap(otelCore), min: cfg.Level})
	}
	if len(cores) == 0 {
		return nil, errors.New("no log output available: enable stdout or pass an otel logger provider")
	}
	return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}
