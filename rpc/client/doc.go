// Package client implements RPC clients for the clustered entity system.
// It provides implementations of the entity.IEntityStore and
// rwlock.IRWLockManager interfaces that communicate with remote servers via
// RPC, so a coordinator can be assembled against a remote cluster exactly
// like against local stores.
//
// The package focuses on:
//   - Transparent RPC access to entity store and lock manager implementations
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC result codes and domain errors
//
// Key Components:
//
//   - NewRPCEntityStore: Factory function that creates a client implementing
//     the entity.IEntityStore interface. Fetched handles are held on the
//     server and addressed by a handle id; if the connection dies, the
//     server's disconnect cleanup releases them.
//
//   - NewRPCRWLockMgr: Factory function that creates a client implementing
//     the rwlock.IRWLockManager interface. Locks acquired through it are
//     also released server-side when the connection goes away.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:4004"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//
//	// Create a serializer
//	serializer := serializer.NewBinarySerializer()
//
//	// Create the remote halves
//	entities, _ := client.NewRPCEntityStore(1, config, tcp.NewTCPClientTransport(), serializer)
//	locks, _ := client.NewRPCRWLockMgr(2, config, tcp.NewTCPClientTransport(), serializer)
//
//	// Assemble a coordinator on top
//	coord := coordinator.NewCoordinator(entities, locks)
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently
//	from multiple goroutines without additional synchronization.
package client
