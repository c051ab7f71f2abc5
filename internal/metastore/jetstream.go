package metastore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamConfig configures the JetStream KeyValue backend.
type JetStreamConfig struct {
	// Bucket is the KeyValue bucket name. Default: "docspace".
	Bucket string

	// Replicas for clustered deployments. Default: 1.
	Replicas int

	// InMemory stores the bucket in memory instead of on disk.
	InMemory bool
}

// Validate applies defaults and checks the configuration.
func (c *JetStreamConfig) Validate() error {
	if c.Bucket == "" {
		c.Bucket = "docspace"
	}
	if c.Replicas == 0 {
		c.Replicas = 1
	}
	if c.Replicas < 0 {
		return fmt.Errorf("%w: replicas must be positive", ErrInvalidConfig)
	}
	return nil
}

// JetStreamStore implements Store on a JetStream KeyValue bucket.
//
// Revisions are the bucket's stream sequence numbers, so Update maps
// directly onto KeyValue.Update.
type JetStreamStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewJetStreamStore binds to (or creates) the configured bucket.
// The connection stays owned by the caller.
func NewJetStreamStore(ctx context.Context, nc *nats.Conn, cfg JetStreamConfig) (*JetStreamStore, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	storage := jetstream.FileStorage
	if cfg.InMemory {
		storage = jetstream.MemoryStorage
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "docspace workspace and document metadata",
		History:     1,
		Storage:     storage,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("binding key-value bucket %q: %w", cfg.Bucket, err)
	}

	return &JetStreamStore{nc: nc, kv: kv}, nil
}

func (s *JetStreamStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	e, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jetstream get %q: %w", key, err)
	}
	return &Entry{Key: e.Key(), Value: e.Value(), Revision: e.Revision()}, nil
}

func (s *JetStreamStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	rev, err := s.kv.Create(ctx, key, value)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, ErrKeyExists
		}
		return 0, fmt.Errorf("jetstream create %q: %w", key, err)
	}
	return rev, nil
}

func (s *JetStreamStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	rev, err := s.kv.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("jetstream put %q: %w", key, err)
	}
	return rev, nil
}

func (s *JetStreamStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	rev, err := s.kv.Update(ctx, key, value, revision)
	if err == nil {
		return rev, nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return 0, fmt.Errorf("jetstream update %q: %w", key, err)
	}
	// A sequence mismatch is reported the same way whether the key moved on
	// or was deleted.
	if _, getErr := s.Get(ctx, key); errors.Is(getErr, ErrNotFound) {
		return 0, ErrNotFound
	}
	return 0, ErrRevisionMismatch
}

func (s *JetStreamStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("jetstream delete %q: %w", key, err)
	}
	return nil
}

func (s *JetStreamStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	filter := prefix + ">"
	w, err := s.kv.Watch(ctx, filter, jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("jetstream watch %q: %w", filter, err)
	}
	defer func() { _ = w.Stop() }()

	entries := make([]Entry, 0)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case e, ok := <-w.Updates():
			if !ok {
				return nil, errors.New("jetstream watcher closed before initial values")
			}
			// nil marks the end of the initial snapshot.
			if e == nil {
				sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
				return entries, nil
			}
			entries = append(entries, Entry{Key: e.Key(), Value: e.Value(), Revision: e.Revision()})
		}
	}
}

// Close is a no-op; the NATS connection belongs to the caller.
func (s *JetStreamStore) Close() error {
	return nil
}

var _ Store = (*JetStreamStore)(nil)
