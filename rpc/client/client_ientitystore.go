package client

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/rpc/common"
	"github.com/dce-cluster/dce/rpc/serializer"
	"github.com/dce-cluster/dce/rpc/transport"
)

// NewRPCEntityStore creates a new RPC IEntityStore
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns an entity.IEntityStore and an error
func NewRPCEntityStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (entity.IEntityStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC entity store
	s := rpcEntityStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC entity store
	return &s, nil
}

type rpcEntityStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the entity package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcEntityStore) Create(id string, instance uuid.UUID) error {
	req := common.NewCreateRequest(id, instance[:])
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return err
	}
	return codeToError("create", resp)
}

func (i *rpcEntityStore) Fetch(id string) (entity.IEntityHandle, error) {
	req := common.NewFetchRequest(id)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	if err := codeToError("fetch", resp); err != nil {
		return nil, err
	}
	return &rpcHandle{store: i, id: id, handle: resp.Handle}, nil
}

func (i *rpcEntityStore) TryDestroy(id string) error {
	req := common.NewDestroyRequest(id)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return err
	}
	return codeToError("destroy", resp)
}

// --------------------------------------------------------------------------
// Handle
// --------------------------------------------------------------------------

// rpcHandle is the client-side view of a server-held entity handle. The
// server keeps the reference; if the connection dies, the server's
// disconnect cleanup closes it.
type rpcHandle struct {
	store  *rpcEntityStore
	id     string
	handle uint64
	closed atomic.Bool
}

func (h *rpcHandle) Identifier() string { return h.id }

func (h *rpcHandle) Configure(cfg entity.ServerSideConfiguration) error {
	if h.closed.Load() {
		return fmt.Errorf("entity %q: handle is closed", h.id)
	}
	cfgBytes, err := cfg.Encode()
	if err != nil {
		return err
	}
	req := common.NewConfigureRequest(h.handle, cfgBytes)
	resp, err := invokeRPCRequest(h.store.shardId, req, h.store.transport, h.store.serializer)
	if err != nil {
		return err
	}
	return codeToError("configure", resp)
}

func (h *rpcHandle) Validate(cfg entity.ServerSideConfiguration) error {
	if h.closed.Load() {
		return fmt.Errorf("entity %q: handle is closed", h.id)
	}
	cfgBytes, err := cfg.Encode()
	if err != nil {
		return err
	}
	req := common.NewValidateRequest(h.handle, cfgBytes)
	resp, err := invokeRPCRequest(h.store.shardId, req, h.store.transport, h.store.serializer)
	if err != nil {
		return err
	}
	return codeToError("validate", resp)
}

func (h *rpcHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("entity %q: handle already closed", h.id)
	}
	req := common.NewCloseRequest(h.handle)
	resp, err := invokeRPCRequest(h.store.shardId, req, h.store.transport, h.store.serializer)
	if err != nil {
		return err
	}
	return codeToError("close", resp)
}
