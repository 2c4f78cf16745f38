package server

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dce-cluster/dce/lib/rwlock"
	"github.com/dce-cluster/dce/lib/store"
	"github.com/dce-cluster/dce/rpc/common"
)

// NewRWLockManagerServerAdapter creates the adapter serving read/write lock
// operations. Holds granted through a connection are tracked and released
// when the connection goes away, so a crashed client cannot leave an
// identifier locked forever.
func NewRWLockManagerServerAdapter() IRPCServerAdapter {
	return &rwLockServerAdapter{
		sessions: xsync.NewMapOf[uint64, *lockSession](),
	}
}

// heldLock records one hold granted to a connection
type heldLock struct {
	name  string
	mode  rwlock.Mode
	token []byte
}

// lockSession is the set of holds a connection currently owns
type lockSession struct {
	mu    sync.Mutex
	holds []heldLock
}

type rwLockServerAdapter struct {
	sessions *xsync.MapOf[uint64, *lockSession]
}

func (adapter *rwLockServerAdapter) Handle(connID uint64, req *common.Message, st store.IStore) *common.Message {

	// Check for nil store
	if st == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Create lock manager (stateless over the shard's store)
	locks := rwlock.NewRWLockManager(st)

	// Handle different message types
	switch req.MsgType {
	case common.MsgTLCKAcquire:
		mode := rwlock.Mode(req.Mode)
		var hold rwlock.IHold
		var err error
		switch mode {
		case rwlock.ModeExclusive:
			hold, err = locks.TryExclusive(req.Key)
		case rwlock.ModeShared:
			hold, err = locks.TryShared(req.Key)
		default:
			return common.NewErrorResponse(fmt.Sprintf("RPC RWLockAdapter - Unknown lock mode: %d", req.Mode))
		}
		if err != nil {
			return common.NewAcquireResponse(false, nil, err)
		}
		if hold == nil {
			// Contention, not an error
			return common.NewAcquireResponse(false, nil, nil)
		}
		adapter.track(connID, heldLock{name: req.Key, mode: mode, token: hold.Token()})
		return common.NewAcquireResponse(true, hold.Token(), nil)

	case common.MsgTLCKRelease:
		err := locks.Release(req.Key, rwlock.Mode(req.Mode), req.Value)
		if err == nil {
			adapter.untrack(connID, req.Value)
		}
		return common.NewResultResponse(req.MsgType, releaseCode(err), err)

	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC RWLockAdapter - Unsupported message type: %s", req.MsgType))
	}
}

func (adapter *rwLockServerAdapter) Disconnect(connID uint64, st store.IStore) {
	session, ok := adapter.sessions.LoadAndDelete(connID)
	if !ok {
		return
	}

	locks := rwlock.NewRWLockManager(st)

	session.mu.Lock()
	defer session.mu.Unlock()
	for _, held := range session.holds {
		if err := locks.Release(held.name, held.mode, held.token); err != nil {
			Logger.Errorf("failed to release %s lock %q of connection %d: %v", held.mode, held.name, connID, err)
		} else {
			Logger.Infof("released orphaned %s lock %q of connection %d", held.mode, held.name, connID)
		}
	}
	session.holds = nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (adapter *rwLockServerAdapter) track(connID uint64, held heldLock) {
	session, _ := adapter.sessions.LoadOrCompute(connID, func() *lockSession {
		return &lockSession{}
	})
	session.mu.Lock()
	defer session.mu.Unlock()
	session.holds = append(session.holds, held)
}

func (adapter *rwLockServerAdapter) untrack(connID uint64, token []byte) {
	session, ok := adapter.sessions.Load(connID)
	if !ok {
		return
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	for i, held := range session.holds {
		if string(held.token) == string(token) {
			session.holds = append(session.holds[:i], session.holds[i+1:]...)
			return
		}
	}
}

func releaseCode(err error) common.ResultCode {
	if err == nil {
		return common.RcOK
	}
	return common.RcInternal
}
