package logging

import (
	"go.uber.org/zap/zapcore"
)

// unsampledLevel and above bypass the sampler: best-effort store failures
// are logged at Warn and must all be kept.
const unsampledLevel = zapcore.WarnLevel

func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	return &sampledCore{
		Core:    core,
		sampler: zapcore.NewSamplerWithOptions(core, cfg.Tick, cfg.Initial, cfg.Thereafter),
	}
}

// sampledCore routes entries below unsampledLevel through a zap sampler
// and everything else straight to the wrapped core.
type sampledCore struct {
	zapcore.Core
	sampler zapcore.Core
}

func (c *sampledCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level >= unsampledLevel {
		return c.Core.Check(e, ce)
	}
	return c.sampler.Check(e, ce)
}

func (c *sampledCore) With(fs []zapcore.Field) zapcore.Core {
	return &sampledCore{Core: c.Core.With(fs), sampler: c.sampler.With(fs)}
}

// minLevelCore drops entries below min. The otelzap core has no level of
// its own.
type minLevelCore struct {
	zapcore.Core
	min zapcore.Level
}

func (c *minLevelCore) Enabled(l zapcore.Level) bool {
	return l >= c.min && c.Core.Enabled(l)
}

func (c *minLevelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *minLevelCore) With(fs []zapcore.Field) zapcore.Core {
	return &minLevelCore{Core: c.Core.With(fs), min: c.min}
}
