// Package unix implements Unix domain socket-based transport for the
// clustered entity system's RPC layer. It provides concrete implementations
// of the base package's connector interfaces for local inter-process
// communication.
//
// This package builds on the base package's transport functionality,
// inheriting its performance optimizations including connection pooling,
// buffer reuse, and request routing. See the base package documentation for
// detailed information on the underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: Unix socket implementation of base.IClientConnector.
//
//   - serverConnector: Unix socket implementation of base.IServerConnector
//     that removes a stale socket file before listening.
//
// Unix sockets avoid the TCP/IP stack entirely, making this transport the
// fastest option when client and server share a host.
package unix
