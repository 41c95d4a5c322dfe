// Package maple implements an in-memory key-value database (KVDB) backing the
// key/value store of dSettings. It provides a complete implementation of the
// db.KVDB interface.
//
// Key Components:
//
//   - mapleImpl: The database structure implementing db.KVDB. It owns the
//     shards and a monotonically increasing write index. The caller supplies
//     write indices, so the database can be driven by any logical clock.
//
//   - Shard: A partition of the key space backed by an xsync.MapOf. Keys are
//     hashed with xxhash and a per-database seed; the higher bits of the hash
//     select the shard.
//
//   - Entry: key, value and the write index of the last update.
//
// Internal Mechanisms:
//
//   - Stale Write Prevention: a write is only applied if its index is greater
//     than or equal to the index stored for the key.
//
//   - Persistence Format: a compact binary format:
//     1. Magic number "MAPLEDB\x00"
//     2. Version number (currently 4)
//     3. Database seed
//     4. Number of entries
//     5. For each entry: key length, key, index, value length, value
//     Save takes a fuzzy snapshot without blocking writers. Load builds the
//     new shards before swapping them in, so a truncated snapshot leaves the
//     database unchanged.
//
//   - Metrics: GetInfo reports entry count, size and shard distribution.
package maple
