// Package server implements the RPC server for the clustered entity
// system. It provides adapters for handling RPC requests to the entity
// store and lock manager services, along with the core server
// implementation that manages shards and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for entity and lock operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Flexible shard configuration with support for local and distributed stores
//   - Per-connection session tracking: handles fetched and locks acquired
//     over a connection are released when that connection goes away
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server
//     adapters, with the Handle method that processes incoming requests
//     against a store.IStore and the Disconnect method for connection
//     cleanup.
//
//   - NewEntityStoreServerAdapter: Factory function creating the adapter
//     for entity lifecycle operations, translating RPC requests to
//     entity.IEntityStore calls and tracking open handles per connection.
//
//   - NewRWLockManagerServerAdapter: Factory function creating the adapter
//     for distributed read/write locking, tracking granted holds per
//     connection.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalEntity},
//	    {ShardID: 200, Type: common.ShardTypeLocalLock},
//	  },
//	  Endpoint: "0.0.0.0:4004",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The server supports four types of shards, which can be mixed within a
// single server: local or replicated entity stores and local or replicated
// lock managers. Replicated shards run on a Dragonboat RAFT group shared
// with the other cluster members.
package server
