// Package server implements the RPC server of the settings service. It hosts
// one settings backend per shard and dispatches incoming requests to it.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a
//     settings.IPersistor.
//
//   - NewPersistorServerAdapter: Factory function creating the adapter that
//     translates RPC requests into persistor calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 1, Type: common.ShardTypeFile, Path: "/var/lib/dsettings/app.yaml"},
//	    {ShardID: 2, Type: common.ShardTypeStore, Path: "/var/lib/dsettings/store.snap"},
//	    {ShardID: 3, Type: common.ShardTypeMemory},
//	  },
//	  Transport:      common.TransportConfig{Endpoint: "0.0.0.0:8080", TimeoutSecond: 5},
//	  SaveOnShutdown: true,
//	  LogLevel:       "info",
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The server supports three types of shards, which can be mixed within a single server:
//
//   - ShardTypeMemory: values live in the server process only.
//
//   - ShardTypeFile: values are kept in a JSON, YAML or TOML file that is
//     written after every change.
//
//   - ShardTypeStore: values are kept in a local key-value store, optionally
//     snapshotted to Path on Save.
//
// Loadable shards are loaded during Init. With SaveOnShutdown every shard is
// saved when the server stops.
//
// Thread Safety:
//
//	The server handles concurrent requests; each request is processed
//	independently. Serve should be called only once.
package server
