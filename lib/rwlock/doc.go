// Package rwlock implements a distributed, named read/write lock with
// strictly non-blocking acquisition on top of a store.IStore. It is the
// access-lock half of the clustered-entity protocol: writers take the
// exclusive side for maintenance (create, destroy, leadership), readers
// take the shared side for the lifetime of a live entity handle.
//
// Acquisition never waits. A lock that is currently held in a conflicting
// mode yields (nil, nil) and the caller decides whether that is a Busy
// condition worth surfacing or something to retry later. Blocking on a
// cluster-wide lock is a deadlock factory when membership is unpredictable,
// so it simply is not offered.
//
// Implementation Approach:
//
//	All lock state lives in the backing store under three keys per lock:
//
//	- <name>/latch: a short-TTL claim serializing state transitions. It is
//	  taken with SetTTLIfUnset followed by a read-back, the same CAS pattern
//	  a plain single-mode store lock uses. Because every transition is a
//	  couple of store operations, latch contention is momentary and handled
//	  by a brief bounded spin.
//
//	- <name>/writer: the exclusive holder's owner token, present while the
//	  write side is held.
//
//	- <name>/readers: the count of shared holders, absent when zero.
//
//	TryExclusive succeeds only when neither writer nor readers exist;
//	TryShared succeeds whenever no writer exists. Release verifies the owner
//	token for exclusive holds so a stranger cannot steal a release.
//
// Holds are not TTL'd: an abandoned hold is reclaimed by whoever supervises
// the holder's connection (the RPC server releases everything a dead
// connection still held). The latch TTL only protects against a holder
// dying inside a transition.
//
// Thread safety and distribution follow from the store: with lstore this is
// a process-wide lock, with dstore it is a cluster-wide lock with
// consensus-backed claims.
package rwlock
