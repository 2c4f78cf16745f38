// Package transport defines the interfaces and abstractions for RPC
// communication in the clustered entity system. It provides a common
// contract that all transport implementations must fulfill, enabling
// protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Supporting shard-based request routing
//   - Tracking client connections so per-connection server state (open
//     handles, held locks) can be cleaned up on disconnect
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport
//     implementations that handles connection management and request
//     sending.
//
//   - IRPCServerTransport: Interface for server-side transport
//     implementations that receives requests and routes them to appropriate
//     handlers, and reports connection teardown.
//
//   - ServerHandleFunc / ConnCloseFunc: Function types for request handling
//     and disconnect callbacks.
package transport
