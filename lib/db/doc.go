// Package db defines the low-level key-value engine interface (KVDB) that the
// store layer is built on, together with the metadata types shared by all
// engine implementations.
//
// Engines are deliberately dumb: they know nothing about locks, entities or
// replication. Everything coordination-related lives in the layers above
// (lib/store, lib/rwlock, lib/entity). The only concession to coordination is
// SetTTLIfUnset, the atomic claim primitive: it either inserts a fresh entry
// or does nothing, which is all a try-lock needs.
//
// The package ships one engine:
//
//   - birch (lib/db/engines/birch): a sharded in-memory hash store with lazy
//     TTL expiry. Entries carry an absolute deadline; expired entries are
//     treated as absent on read and physically dropped when next touched.
//
// The writeIndex plumbing exists for replicated deployments: when an engine
// instance is owned by a raft state machine, the raft log index is passed
// through so snapshots can record how far the state has been applied.
package db
