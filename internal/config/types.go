package config

import (
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration that loads from "90s"-style strings. A bare
// integer is read as seconds, which keeps env overrides short
// (DOCSPACE_SERVER_SHUTDOWN_TIMEOUT=30).
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	parsed, err := time.ParseDuration(s)
	if err != nil {
		secs, convErr := strconv.Atoi(s)
		if convErr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		parsed = time.Duration(secs) * time.Second
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText also covers JSON, which encodes text marshalers as strings.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

const redacted = "[REDACTED]"

// Secret holds a credential such as embeddings.api_key or a Redis password.
// Every printed or marshaled form is redacted; only Value returns the raw
// string.
type Secret string

func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string   { return s.mask() }
func (s Secret) GoString() string { return "Secret(" + redacted + ")" }

// MarshalText redacts. JSON output goes through it too.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.mask()), nil }

// UnmarshalText keeps the raw value. JSON strings decode through it as well.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

func (s Secret) Value() string { return string(s) }
func (s Secret) IsSet() bool   { return s != "" }
