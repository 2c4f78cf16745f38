package rwlock

import (
	"bytes"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dce-cluster/dce/lib/store"
)

const (
	// latchTTLSec bounds how long a crashed holder can wedge a lock's latch.
	latchTTLSec = 5
	// latchAttempts is how often an operation spins on a contended latch
	// before giving up. Latch sections are a handful of store operations, so
	// contention is momentary.
	latchAttempts = 50
	latchBackoff  = 2 * time.Millisecond
)

type lockMgrImpl struct {
	store store.IStore
}

// NewRWLockManager creates a read/write lock manager on the given store.
// The manager keeps no internal state; any number of managers on the same
// store cooperate correctly, including managers on different nodes when the
// store is distributed.
func NewRWLockManager(st store.IStore) IRWLockManager {
	return &lockMgrImpl{store: st}
}

// --------------------------------------------------------------------------
// Key layout
// --------------------------------------------------------------------------

func latchKey(name string) string   { return "rwlock/" + name + "/latch" }
func writerKey(name string) string  { return "rwlock/" + name + "/writer" }
func readersKey(name string) string { return "rwlock/" + name + "/readers" }

// --------------------------------------------------------------------------
// Latch
// --------------------------------------------------------------------------

// withLatch runs fn while holding the lock's transition latch. The latch is
// a CAS claim (SetTTLIfUnset + read-back) exactly like the single-mode lock
// it generalizes; the TTL reclaims the latch should a holder die inside fn.
func (lm *lockMgrImpl) withLatch(name string, fn func() error) error {
	token, err := generateToken()
	if err != nil {
		return err
	}

	key := latchKey(name)
	for i := 0; i < latchAttempts; i++ {
		if err := lm.store.SetTTLIfUnset(key, token, latchTTLSec); err != nil {
			return err
		}
		value, found, err := lm.store.Get(key)
		if err != nil {
			return err
		}
		if found && bytes.Equal(value, token) {
			// Latch is ours
			defer func() {
				if err := lm.store.Delete(key); err != nil {
					log.Errorf("failed to release latch for lock %q: %v", name, err)
				}
			}()
			return fn()
		}
		time.Sleep(latchBackoff)
	}
	return fmt.Errorf("lock %q: latch contended for too long", name)
}

// --------------------------------------------------------------------------
// State helpers (only called under the latch)
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) readerCount(name string) (uint64, error) {
	value, found, err := lm.store.Get(readersKey(name))
	if err != nil || !found {
		return 0, err
	}
	count, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("lock %q: corrupt reader count %q", name, value)
	}
	return count, nil
}

func (lm *lockMgrImpl) setReaderCount(name string, count uint64) error {
	if count == 0 {
		return lm.store.Delete(readersKey(name))
	}
	return lm.store.Set(readersKey(name), []byte(strconv.FormatUint(count, 10)))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) TryExclusive(name string) (IHold, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	acquired := false
	err = lm.withLatch(name, func() error {
		if _, found, err := lm.store.Get(writerKey(name)); err != nil || found {
			return err
		}
		count, err := lm.readerCount(name)
		if err != nil || count > 0 {
			return err
		}
		if err := lm.store.Set(writerKey(name), token); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if err != nil || !acquired {
		return nil, err
	}

	log.Debugf("lock %q acquired exclusive", name)
	return &hold{mgr: lm, name: name, mode: ModeExclusive, token: token}, nil
}

func (lm *lockMgrImpl) TryShared(name string) (IHold, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	acquired := false
	err = lm.withLatch(name, func() error {
		if _, found, err := lm.store.Get(writerKey(name)); err != nil || found {
			return err
		}
		count, err := lm.readerCount(name)
		if err != nil {
			return err
		}
		if err := lm.setReaderCount(name, count+1); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if err != nil || !acquired {
		return nil, err
	}

	log.Debugf("lock %q acquired shared", name)
	return &hold{mgr: lm, name: name, mode: ModeShared, token: token}, nil
}

func (lm *lockMgrImpl) Release(name string, mode Mode, token []byte) error {
	switch mode {
	case ModeExclusive:
		return lm.withLatch(name, func() error {
			value, found, err := lm.store.Get(writerKey(name))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("lock %q: no exclusive hold to release", name)
			}
			if !bytes.Equal(value, token) {
				return fmt.Errorf("lock %q: exclusive hold owned by someone else", name)
			}
			return lm.store.Delete(writerKey(name))
		})
	case ModeShared:
		return lm.withLatch(name, func() error {
			count, err := lm.readerCount(name)
			if err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("lock %q: no shared hold to release", name)
			}
			return lm.setReaderCount(name, count-1)
		})
	default:
		return fmt.Errorf("lock %q: unknown mode %d", name, mode)
	}
}

// --------------------------------------------------------------------------
// Hold
// --------------------------------------------------------------------------

type hold struct {
	mgr      IRWLockManager
	name     string
	mode     Mode
	token    []byte
	released atomic.Bool
}

func (h *hold) Name() string  { return h.name }
func (h *hold) Mode() Mode    { return h.mode }
func (h *hold) Token() []byte { return h.token }

func (h *hold) Unlock() error {
	if !h.released.CompareAndSwap(false, true) {
		return fmt.Errorf("lock %q: hold already released", h.name)
	}
	return h.mgr.Release(h.name, h.mode, h.token)
}
