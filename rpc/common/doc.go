// Package common provides core data structures and utilities shared across
// the clustered entity system. It defines fundamental types, configuration
// structures, and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for inter-component communication
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat
//   - Utilities for Dragonboat (RAFT) integration
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between
//     components, with a flexible structure that adapts to different
//     operation types. Includes factory methods for creating the various
//     request and response messages.
//
//   - MessageType: Enumeration defining all supported operation types in
//     the system, categorized into entity lifecycle operations, lock
//     operations, and control messages.
//
//   - ResultCode: Outcome classification carried in responses so clients
//     can map failures back to typed errors without parsing messages.
//
//   - ServerConfig: Comprehensive configuration for server nodes, including
//     RAFT parameters, storage settings, network configuration, and shard
//     layout. Provides utilities for converting to Dragonboat-specific
//     configurations.
//
//   - ClientConfig: Configuration for client components, controlling
//     connection parameters, timeouts, and retry behavior.
package common
