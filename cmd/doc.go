// Package cmd implements the command-line interface for the dCE clustered
// entity coordinator. It provides a hierarchical command structure with
// operations for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - entity: Commands for entity lifecycle operations (create, retrieve, destroy)
//   - lease: Commands for maintenance lease operations (hold, probe)
//   - serve: Commands for starting and configuring the dCE server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dce -help for a list of all commands.
package cmd
