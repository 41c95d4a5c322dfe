// Package kvstore provides a settings backend on top of store.IStore. Values
// are stored JSON encoded under their sanitized key, optionally behind a
// prefix. With a snapshot path the backend saves and loads the whole store
// through the snapshot support of the underlying database.
package kvstore
