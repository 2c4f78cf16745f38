package server

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/lib/entity/lentity"
	"github.com/dce-cluster/dce/lib/store"
	"github.com/dce-cluster/dce/rpc/common"
)

// NewEntityStoreServerAdapter creates the adapter serving entity lifecycle
// operations. Fetched handles live on the server, addressed by a handle id;
// they are tracked per connection and closed when the connection goes away,
// so a crashed client cannot pin an entity's reference count forever.
func NewEntityStoreServerAdapter() IRPCServerAdapter {
	return &entityServerAdapter{
		sessions: xsync.NewMapOf[uint64, *xsync.MapOf[uint64, entity.IEntityHandle]](),
	}
}

type entityServerAdapter struct {
	// sessions maps connID to that connection's open handles by handle id
	sessions     *xsync.MapOf[uint64, *xsync.MapOf[uint64, entity.IEntityHandle]]
	nextHandleID uint64
}

func (adapter *entityServerAdapter) Handle(connID uint64, req *common.Message, st store.IStore) *common.Message {

	// Check for nil store
	if st == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Create entity store (stateless over the shard's store)
	entities := lentity.NewEntityStore(st)

	// Handle different message types
	switch req.MsgType {
	case common.MsgTEntCreate:
		instance, err := uuid.FromBytes(req.Value)
		if err != nil {
			return common.NewResultResponse(req.MsgType, common.RcProtocol,
				fmt.Errorf("malformed instance uuid: %v", err))
		}
		err = entities.Create(req.Key, instance)
		return common.NewResultResponse(req.MsgType, errToCode(err), err)

	case common.MsgTEntFetch:
		handle, err := entities.Fetch(req.Key)
		if err != nil {
			return common.NewFetchResponse(0, errToCode(err), err)
		}
		handleID := atomic.AddUint64(&adapter.nextHandleID, 1)
		adapter.connHandles(connID).Store(handleID, handle)
		return common.NewFetchResponse(handleID, common.RcOK, nil)

	case common.MsgTEntConfigure:
		handle, resp := adapter.lookupHandle(connID, req)
		if resp != nil {
			return resp
		}
		cfg, err := entity.DecodeConfig(req.Value)
		if err != nil {
			return common.NewResultResponse(req.MsgType, common.RcProtocol,
				fmt.Errorf("malformed configuration: %v", err))
		}
		err = handle.Configure(cfg)
		return common.NewResultResponse(req.MsgType, errToCode(err), err)

	case common.MsgTEntValidate:
		handle, resp := adapter.lookupHandle(connID, req)
		if resp != nil {
			return resp
		}
		cfg, err := entity.DecodeConfig(req.Value)
		if err != nil {
			return common.NewResultResponse(req.MsgType, common.RcProtocol,
				fmt.Errorf("malformed configuration: %v", err))
		}
		err = handle.Validate(cfg)
		return common.NewResultResponse(req.MsgType, errToCode(err), err)

	case common.MsgTEntClose:
		handles := adapter.connHandles(connID)
		handle, ok := handles.LoadAndDelete(req.Handle)
		if !ok {
			return common.NewResultResponse(req.MsgType, common.RcProtocol,
				fmt.Errorf("unknown handle %d", req.Handle))
		}
		err := handle.Close()
		return common.NewResultResponse(req.MsgType, errToCode(err), err)

	case common.MsgTEntDestroy:
		err := entities.TryDestroy(req.Key)
		return common.NewResultResponse(req.MsgType, errToCode(err), err)

	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC EntityStoreAdapter - Unsupported message type: %s", req.MsgType))
	}
}

func (adapter *entityServerAdapter) Disconnect(connID uint64, st store.IStore) {
	handles, ok := adapter.sessions.LoadAndDelete(connID)
	if !ok {
		return
	}
	handles.Range(func(handleID uint64, handle entity.IEntityHandle) bool {
		if err := handle.Close(); err != nil {
			Logger.Errorf("failed to close handle %d of connection %d: %v", handleID, connID, err)
		} else {
			Logger.Infof("closed orphaned handle %d (entity %q) of connection %d", handleID, handle.Identifier(), connID)
		}
		return true
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// connHandles returns (and lazily creates) the handle registry of a connection
func (adapter *entityServerAdapter) connHandles(connID uint64) *xsync.MapOf[uint64, entity.IEntityHandle] {
	handles, _ := adapter.sessions.LoadOrCompute(connID, func() *xsync.MapOf[uint64, entity.IEntityHandle] {
		return xsync.NewMapOf[uint64, entity.IEntityHandle]()
	})
	return handles
}

// lookupHandle resolves the handle a request addresses, or returns the
// protocol error response to send instead
func (adapter *entityServerAdapter) lookupHandle(connID uint64, req *common.Message) (entity.IEntityHandle, *common.Message) {
	handle, ok := adapter.connHandles(connID).Load(req.Handle)
	if !ok {
		return nil, common.NewResultResponse(req.MsgType, common.RcProtocol,
			fmt.Errorf("unknown handle %d", req.Handle))
	}
	return handle, nil
}

// errToCode maps entity errors onto wire result codes
func errToCode(err error) common.ResultCode {
	switch {
	case err == nil:
		return common.RcOK
	case errors.Is(err, entity.ErrNotFound):
		return common.RcNotFound
	case errors.Is(err, entity.ErrAlreadyExists):
		return common.RcAlreadyExists
	case errors.Is(err, entity.ErrBusy):
		return common.RcBusy
	case errors.Is(err, entity.ErrConfigMismatch):
		return common.RcConfigMismatch
	default:
		return common.RcInternal
	}
}
