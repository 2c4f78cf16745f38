// Package store provides the key-value facade that all coordination state
// (lock latches, writer marks, reader counters, entity records) is kept in.
// It abstracts over the lower-level db.KVDB engines and adds unified error
// reporting and write-index management.
//
// Two implementations ship with the repository:
//
//   - Local Store (lstore): a single-node implementation wrapping a db.KVDB
//     instance directly, maintaining the write index with an atomic counter.
//     Suitable when one coordination server is acceptable.
//
//   - Distributed Store (dstore): built on the Dragonboat RAFT consensus
//     library. Every mutation travels through the replicated log, so the
//     atomic claim primitive (SetTTLIfUnset) is linearizable across the
//     whole cluster. This is what makes the lock service in lib/rwlock a
//     genuine distributed lock.
//
// Applications pick an implementation at wiring time; everything above this
// package only ever sees IStore.
package store
