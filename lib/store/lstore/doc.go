// Package lstore implements store.IStore on a single node by delegating to a
// db.KVDB engine directly. The write index is maintained with an atomic
// counter. This is the backend used by a standalone coordination server and
// by most tests.
package lstore
