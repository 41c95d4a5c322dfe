// Package store provides the key-value storage abstraction the kvstore
// backend and the RPC server of dSettings are built on. It sits on top of a
// db.KVDB and adds write index management and unified error reporting.
//
// Key Components:
//
//   - IStore Interface: Set, Delete, Get, Has, prefix listing and snapshots.
//     Applications can switch storage implementations without code changes.
//
//   - Error System: typed return codes (RetCode) with a message.
//
//   - DBFactory: creates the underlying db.KVDB, so the engine can be
//     configured independently from the store.
//
// Implementations:
//
//   - Local Store (lstore): a single-node implementation using a db.KVDB
//     directly. It manages write index progression with atomic operations.
package store
