// Package rpc makes settings backends available over the network. A server
// hosts one backend per shard, a client is itself a settings.IPersistor
// forwarding every call to its shard.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, value encoding and configuration
//     structures.
//
//   - transport: network communication abstractions, implemented over HTTP.
//
//   - serializer: Message serialization with multiple format options
//     (Binary, JSON, GOB).
//
//   - client: the RPC persistor used by settings instances.
//
//   - server: the RPC server and the adapter dispatching requests to the
//     backend of a shard.
package rpc
