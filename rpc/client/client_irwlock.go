package client

import (
	"fmt"
	"sync/atomic"

	"github.com/dce-cluster/dce/lib/rwlock"
	"github.com/dce-cluster/dce/rpc/common"
	"github.com/dce-cluster/dce/rpc/serializer"
	"github.com/dce-cluster/dce/rpc/transport"
)

// NewRPCRWLockMgr creates a new RPC IRWLockManager
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a rwlock.IRWLockManager and an error
func NewRPCRWLockMgr(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (rwlock.IRWLockManager, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC lock manager
	l := rpcRWLockMgr{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC lock manager
	return &l, nil
}

type rpcRWLockMgr struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the rwlock package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcRWLockMgr) TryExclusive(name string) (rwlock.IHold, error) {
	return i.tryAcquire(name, rwlock.ModeExclusive)
}

func (i *rpcRWLockMgr) TryShared(name string) (rwlock.IHold, error) {
	return i.tryAcquire(name, rwlock.ModeShared)
}

func (i *rpcRWLockMgr) Release(name string, mode rwlock.Mode, token []byte) error {
	req := common.NewReleaseRequest(name, uint8(mode), token)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return err
	}
	if resp.Code != common.RcOK {
		return fmt.Errorf("release of lock %q failed: %s", name, resp.Err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (i *rpcRWLockMgr) tryAcquire(name string, mode rwlock.Mode) (rwlock.IHold, error) {
	req := common.NewAcquireRequest(name, uint8(mode))
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	if resp.Err != "" {
		return nil, fmt.Errorf("acquire of lock %q failed: %s", name, resp.Err)
	}
	if !resp.Ok {
		// Contention, not an error
		return nil, nil
	}
	return &rpcHold{mgr: i, name: name, mode: mode, token: resp.Value}, nil
}

// rpcHold is the client-side ownership token of a lock held on the server
type rpcHold struct {
	mgr      *rpcRWLockMgr
	name     string
	mode     rwlock.Mode
	token    []byte
	released atomic.Bool
}

func (h *rpcHold) Name() string      { return h.name }
func (h *rpcHold) Mode() rwlock.Mode { return h.mode }
func (h *rpcHold) Token() []byte     { return h.token }

func (h *rpcHold) Unlock() error {
	if !h.released.CompareAndSwap(false, true) {
		return fmt.Errorf("lock %q: hold already released", h.name)
	}
	return h.mgr.Release(h.name, h.mode, h.token)
}
