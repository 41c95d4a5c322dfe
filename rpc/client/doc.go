// Package client implements the RPC client of the settings service. The
// client is a settings.IPersistor, so a settings instance can mirror its
// values into a backend hosted by a remote server.
//
// Key Components:
//
//   - NewRPCPersistor: Factory function that creates a client for one shard.
//     It forwards every persistor call to the server via the configured
//     transport and serializer. Load and Save ask the server to reload or
//     persist the shard.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	p, err := client.NewRPCPersistor(1, config, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  return err
//	}
//	defer p.Close()
//
//	s, err := settings.New("app", settings.Options{Persistors: []settings.IPersistor{p}})
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple
//	goroutines without additional synchronization.
package client
