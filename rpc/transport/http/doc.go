// Package http implements the HTTP transport for the settings RPC system.
//
// The server routes POST /{shardId} requests to the registered handler and
// additionally serves the process metrics on GET /metrics and a liveness
// probe on GET /healthz. NewHandler exposes the routes for embedding them
// into another server.
//
// The client spreads requests round-robin across all configured endpoints
// and retries failed requests on the next endpoint. It is safe for
// concurrent use.
package http
