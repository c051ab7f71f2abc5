package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redactedMask = "[REDACTED]"

// maxPatternLen bounds operator-supplied expressions.
const maxPatternLen = 256

// Keys masked whenever redaction is on. "content" is document text, which
// must never reach log storage.
var builtinRedactedKeys = []string{
	"api_key", "password", "secret", "token", "authorization",
	"access_key_id", "secret_access_key", "session_token",
	"content",
}

// Values masked wherever they appear: bearer tokens, AWS access key IDs and
// credentials embedded in NATS or Redis URLs.
var builtinRedactionPatterns = []string{
	`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`,
	`\bAKIA[0-9A-Z]{16}\b`,
	`(?i)\b(?:nats|redis|rediss)://[^\s:/@]+:[^\s/@]+@`,
}

type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	r := &redactor{keys: make(map[string]struct{})}
	for _, k := range builtinRedactedKeys {
		r.keys[k] = struct{}{}
	}
	for _, k := range cfg.Fields {
		r.keys[strings.ToLower(k)] = struct{}{}
	}

	patterns := append(append([]string(nil), builtinRedactionPatterns...), cfg.Patterns...)
	for _, p := range patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern longer than %d chars: %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// sensitive matches the key or its last dotted segment, so
// "embeddings.api_key" is caught by "api_key".
func (r *redactor) sensitive(key string) bool {
	k := strings.ToLower(key)
	if _, ok := r.keys[k]; ok {
		return true
	}
	if i := strings.LastIndexByte(k, '.'); i >= 0 {
		_, ok := r.keys[k[i+1:]]
		return ok
	}
	return false
}

func (r *redactor) scrub(s string) string {
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, redactedMask)
	}
	return s
}

func (r *redactor) field(f zapcore.Field) zapcore.Field {
	switch f.Type {
	case zapcore.NamespaceType, zapcore.SkipType:
		return f
	}
	if r.sensitive(f.Key) {
		return zap.String(f.Key, redactedMask)
	}
	switch f.Type {
	case zapcore.StringType:
		f.String = r.scrub(f.String)
	case zapcore.ByteStringType:
		if b, ok := f.Interface.([]byte); ok {
			return zap.ByteString(f.Key, []byte(r.scrub(string(b))))
		}
	case zapcore.ErrorType:
		// Upstream store errors can echo connection strings.
		if err, ok := f.Interface.(error); ok && err != nil {
			return zap.String(f.Key, r.scrub(err.Error()))
		}
	}
	return f
}

func (r *redactor) fields(fs []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fs))
	for i, f := range fs {
		out[i] = r.field(f)
	}
	return out
}

// redactCore masks fields added through With as well as per-entry fields
// and the message itself.
type redactCore struct {
	zapcore.Core
	r *redactor
}

func (c *redactCore) With(fs []zapcore.Field) zapcore.Core {
	return &redactCore{Core: c.Core.With(c.r.fields(fs)), r: c.r}
}

func (c *redactCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *redactCore) Write(e zapcore.Entry, fs []zapcore.Field) error {
	e.Message = c.r.scrub(e.Message)
	return c.Core.Write(e, c.r.fields(fs))
}
