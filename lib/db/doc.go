// Package db defines the KVDB interface the key/value backends of dSettings are
// built on. A KVDB maps string keys to byte values, orders writes by a
// caller provided write index and can snapshot its state to an io.Writer.
//
// Key Components:
//
//   - KVDB Interface: Set, Delete, Get, Has and prefix listing (Keys), plus
//     Save and Load for snapshots.
//
//   - Feature Flags: implementations advertise what they support through
//     SupportsFeature, so callers can degrade gracefully.
//
//   - Database Information: DatabaseInfo reports size estimates, entry count,
//     implementation type and implementation-specific metadata.
//
// Write Index:
//   - Every write carries a write index used as a logical timestamp. Writes with
//     an index lower than the one stored for a key are stale and ignored.
//   - The global index only increases; SetWriteIdx ignores lower values.
//
// Related Packages:
//
// The engines/maple package provides a sharded in-memory implementation. The
// testing package provides RunKVDBTests, a suite every implementation runs.
package db
