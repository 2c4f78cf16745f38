// Package tcp implements TCP socket-based transport for the clustered
// entity system's RPC layer. It provides concrete implementations of the
// base package's connector interfaces optimized for TCP connections.
//
// This package builds on the base package's transport functionality,
// inheriting its performance optimizations including connection pooling,
// buffer reuse, and request routing. See the base package documentation for
// detailed information on the underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//     that disables Nagle's algorithm for lower request latency.
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector.
//
// The default server buffer size is set to 512 KB, which provides good
// performance for typical workloads, but can be customized for specific use
// cases.
package tcp
