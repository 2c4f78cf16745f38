// Package testing provides a reusable conformance test suite for db.KVDB
// implementations. Engine packages call RunKVDBTests from their own tests so
// every engine is held to the same contract, in particular the atomicity of
// SetTTLIfUnset that the lock layer depends on.
package testing
