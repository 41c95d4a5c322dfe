// Package lstore implements a local, single-node key-value store based on the
// store.IStore interface. It is a thin wrapper around any db.KVDB
// implementation with automatic write index management.
//
// Implementation Details:
//
//   - Write Index Management: an atomic counter increments with each write
//     operation, giving every write a unique, monotonically increasing index.
//     After Load the counter continues from the highest index of the snapshot.
//
//   - Feature Detection: operations the underlying database does not support
//     return a store.Error with RetCUnsupportedOperation.
//
// Example:
//
//	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
//	_ = s.Set("app.theme", []byte(`"dark"`))
//	value, ok, _ := s.Get("app.theme")
package lstore
