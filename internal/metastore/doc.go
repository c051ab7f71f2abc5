// Package metastore provides the authoritative key-value record store for
// workspace and document metadata.
//
// Every backend offers the same primitives:
//
//   - Get: read one record and its revision
//   - Create: write only if the key is absent (ErrKeyExists otherwise)
//   - Put: unconditional write
//   - Update: compare-and-set on the revision returned by a previous read
//   - Delete: remove a key; deleting a missing key is not an error
//   - List: all records whose key starts with a dot-delimited prefix
//
// Keys are dot-delimited tokens made of [A-Za-z0-9_-] (for example
// "document.<workspace>.<document>"). The restriction comes from JetStream
// KeyValue subjects and is enforced for every backend so records can move
// between backends unchanged.
//
// Backends:
//
//   - MemoryStore: process-local, used by tests and single-process setups
//   - JetStreamStore: NATS JetStream KeyValue bucket (default)
//   - SQLiteStore: single-file database via the pure-Go modernc driver
//   - RedisStore: Redis hashes with Lua scripts for the conditional writes
package metastore
