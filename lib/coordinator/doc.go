// Package coordinator arbitrates the lifecycle of named clustered entities
// between competing clients. Every identifier is fenced by a distributed
// read/write lock (lib/rwlock): create and destroy need the exclusive side,
// retrieve takes the shared side and keeps it until the retrieved entity is
// closed, so nothing can destroy an entity out from under its users.
//
// A maintenance lease (AcquireLeadership) pins the exclusive lock across
// several operations; creates and destroys by the lease holder then run
// without re-acquiring it. Abandoning a lease that is not held is a
// programming error and panics.
package coordinator
