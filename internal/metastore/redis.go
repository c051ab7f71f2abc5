package metastore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Conditional writes run as Lua scripts so the check and the write are atomic.
// KEYS[1] is the record hash, KEYS[2] the revision sequence.
var (
	redisCreateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return -1
end
local rev = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'r', rev)
return rev
`)

	redisPutScript = redis.NewScript(`
local rev = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'r', rev)
return rev
`)

	redisUpdateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'r')
if not cur then
	return -2
end
if cur ~= ARGV[2] then
	return -1
end
local rev = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'r', rev)
return rev
`)
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every Redis key. Default: "docspace:".
	Namespace string
}

// RedisStore implements Store on Redis hashes.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: redis addr is required", ErrInvalidConfig)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(client, cfg.Namespace), nil
}

// NewRedisStoreFromClient wraps an existing client. Close closes the client.
func NewRedisStoreFromClient(client *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "docspace:"
	}
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) recordKey(key string) string {
	return s.namespace + "kv:" + key
}

func (s *RedisStore) seqKey() string {
	return s.namespace + "seq"
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.recordKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return decodeRedisRecord(key, fields)
}

func (s *RedisStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	rev, err := redisCreateScript.Run(ctx, s.client, []string{s.recordKey(key), s.seqKey()}, value).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis create %q: %w", key, err)
	}
	if rev == -1 {
		return 0, ErrKeyExists
	}
	return uint64(rev), nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	rev, err := redisPutScript.Run(ctx, s.client, []string{s.recordKey(key), s.seqKey()}, value).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis put %q: %w", key, err)
	}
	return uint64(rev), nil
}

func (s *RedisStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	rev, err := redisUpdateScript.Run(ctx, s.client,
		[]string{s.recordKey(key), s.seqKey()},
		value, strconv.FormatUint(revision, 10)).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis update %q: %w", key, err)
	}
	switch rev {
	case -2:
		return 0, ErrNotFound
	case -1:
		return 0, ErrRevisionMismatch
	}
	return uint64(rev), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.recordKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	base := s.recordKey("")
	var redisKeys []string
	iter := s.client.Scan(ctx, 0, base+prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		redisKeys = append(redisKeys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", prefix, err)
	}
	if len(redisKeys) == 0 {
		return []Entry{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(redisKeys))
	for i, k := range redisKeys {
		cmds[i] = pipe.HGetAll(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis list %q: %w", prefix, err)
	}

	entries := make([]Entry, 0, len(redisKeys))
	for i, k := range redisKeys {
		e, err := decodeRedisRecord(k[len(base):], cmds[i].Val())
		if errors.Is(err, ErrNotFound) {
			// Deleted between SCAN and HGETALL.
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRedisRecord(key string, fields map[string]string) (*Entry, error) {
	v, ok := fields["v"]
	if !ok {
		return nil, ErrNotFound
	}
	rev, err := strconv.ParseUint(fields["r"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis record %q has invalid revision: %w", key, err)
	}
	return &Entry{Key: key, Value: []byte(v), Revision: rev}, nil
}

var _ Store = (*RedisStore)(nil)
