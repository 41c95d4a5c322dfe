// Package common provides the data structures shared by the RPC client and
// server of the settings service.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to the different operation types. Includes
//     factory methods for creating the request and response messages.
//
//   - MessageType: Enumeration of all supported operations, mirroring the
//     methods of settings.IPersistor and settings.ISaveLoadable.
//
//   - Value encoding: setting values travel JSON encoded inside Message.Value,
//     batches as JSON objects and key lists as JSON arrays.
//
//   - ServerConfig: Configuration of a server node, its transport and the
//     shards it hosts.
//
//   - ClientConfig: Configuration for client components, controlling
//     endpoints, timeouts and retry behavior.
package common
