// Package entity defines the remote entity store contract: create, fetch
// and destroy counted entity records plus the handle interface through
// which a fetched entity is configured, validated and released.
//
// The package holds only the interface, the configuration type and the
// shared error taxonomy. Implementations live in subpackages (lentity for
// the store-backed one) and behind the RPC client.
package entity
