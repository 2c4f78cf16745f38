// Package birch provides the default in-memory KVDB engine.
//
// The keyspace is split over NumCPU shards, each guarded by its own RWMutex,
// so unrelated keys never contend. TTL handling is lazy: every entry carries
// an absolute deadline and readers treat passed deadlines as absence; the
// stale bytes are reclaimed the next time the key is claimed or deleted.
// There is no background sweeper. The coordination workload only ever has a
// handful of live keys per resource (lock latch, writer mark, reader count,
// entity record), so leftover tombstones are bounded by the working set.
//
// Deadlines are wall-clock, taken at apply time. Under a replicated store
// each replica therefore computes its own expiry for the same log entry,
// skewed by apply-time differences. The only TTL users are the transition
// latches, whose 5 second TTL is a crash-recovery bound rather than a
// correctness fence, so the skew is tolerable. If TTLs ever fence
// correctness-critical state, expiry has to move to the logical write index.
//
// Save/Load implement the snapshot half of the raft contract: a flat binary
// dump of all shards including deadlines and the current write index.
package birch
