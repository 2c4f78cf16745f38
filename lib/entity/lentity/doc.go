// Package lentity implements the entity store on top of a key/value store
// (lib/store). Each entity is a JSON record plus a reference counter; all
// transitions run under a short-TTL CAS latch so concurrent creators,
// fetchers and destroyers on the same store (including a distributed one)
// serialize correctly.
package lentity
