package rwlock

// Mode describes how a lock is held.
type Mode uint8

const (
	// ModeShared permits any number of concurrent holders as long as no
	// exclusive holder exists.
	ModeShared Mode = iota + 1
	// ModeExclusive permits exactly one holder and excludes all shared
	// holders.
	ModeExclusive
)

func (m Mode) String() string {
	switch m {
	case ModeShared:
		return "shared"
	case ModeExclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// IHold is the ownership token returned by a successful acquisition. It is
// exclusively owned by the call site that acquired it and must be released
// exactly once.
type IHold interface {
	// Name returns the lock name this hold belongs to.
	Name() string
	// Mode returns whether the hold is shared or exclusive.
	Mode() Mode
	// Token returns the opaque owner token identifying this hold. It is
	// needed to release the hold through a different manager instance
	// (e.g. on the server side of an RPC boundary).
	Token() []byte
	// Unlock releases the hold. A second call returns an error.
	Unlock() error
}

// IRWLockManager is a distributed, named read/write lock with non-blocking
// acquisition. Both acquire methods return (nil, nil) when the lock is
// currently held in a conflicting mode anywhere in the cluster - contention
// is not an error.
type IRWLockManager interface {
	// TryExclusive attempts to acquire the write side of the named lock.
	TryExclusive(name string) (IHold, error)
	// TryShared attempts to acquire the read side of the named lock.
	TryShared(name string) (IHold, error)
	// Release releases a hold identified by mode and token. Used by callers
	// that hold a token but not the IHold that produced it; IHold.Unlock
	// is implemented in terms of this.
	Release(name string, mode Mode, token []byte) error
}
