// Package memory provides a settings backend that keeps values in a
// concurrent in-process map. It is useful for tests, as a second opinion in
// multi-backend setups and as the storage of "memory" shards on the RPC
// server.
package memory
