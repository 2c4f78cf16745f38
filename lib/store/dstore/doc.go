// Package dstore implements store.IStore on top of the Dragonboat RAFT
// consensus library. Mutations are serialized into Command entries and
// proposed to the shard's replicated log; lookups go through SyncRead for
// linearizable reads (StaleRead for metadata).
//
// Because every replica applies the same log in the same order, the
// SetTTLIfUnset claim primitive behaves like a cluster-wide compare-and-set,
// which is what the lock layer in lib/rwlock requires from its backing store.
package dstore
