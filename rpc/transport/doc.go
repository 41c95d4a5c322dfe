// Package transport moves serialized RPC requests between a settings client
// and server. A request is routed by its shard ID only; the payload stays
// opaque.
//
// IRPCClientTransport connects to one or more endpoints and sends requests,
// IRPCServerTransport accepts them and hands each one to the ServerHandleFunc
// registered by the RPC server. The http subpackage implements both.
package transport
