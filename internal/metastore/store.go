package metastore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors returned by every backend.
var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrKeyExists is returned by Create when the key is already present.
	ErrKeyExists = errors.New("key already exists")

	// ErrRevisionMismatch is returned by Update when the stored revision moved on.
	ErrRevisionMismatch = errors.New("revision mismatch")

	// ErrInvalidKey indicates a key or prefix outside the allowed alphabet.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidConfig indicates invalid backend configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Entry is a stored record.
type Entry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// Store is the metadata key-value contract.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Create writes value only if key is absent and returns the new revision.
	// Returns ErrKeyExists when the key is present.
	Create(ctx context.Context, key string, value []byte) (uint64, error)

	// Put writes value unconditionally and returns the new revision.
	Put(ctx context.Context, key string, value []byte) (uint64, error)

	// Update writes value only if the stored revision equals revision.
	// Returns ErrRevisionMismatch on conflict and ErrNotFound if the key is gone.
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)

	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error

	// List returns all entries under prefix, ordered by key.
	// prefix must be empty or end with ".".
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Close releases backend resources.
	Close() error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// ValidateKey checks that key is a non-empty sequence of dot-delimited tokens.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// ValidatePrefix checks a List prefix. The empty prefix lists everything.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	if !strings.HasSuffix(prefix, ".") {
		return fmt.Errorf("%w: prefix %q must end with '.'", ErrInvalidKey, prefix)
	}
	return ValidateKey(strings.TrimSuffix(prefix, "."))
}
