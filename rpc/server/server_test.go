package server

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dce-cluster/dce/lib/coordinator"
	"github.com/dce-cluster/dce/lib/db"
	"github.com/dce-cluster/dce/lib/db/engines/birch"
	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/lib/rwlock"
	"github.com/dce-cluster/dce/lib/store"
	"github.com/dce-cluster/dce/lib/store/lstore"
	"github.com/dce-cluster/dce/rpc/client"
	"github.com/dce-cluster/dce/rpc/common"
	"github.com/dce-cluster/dce/rpc/serializer"
	"github.com/dce-cluster/dce/rpc/transport/unix"
)

func newTestShard() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return birch.NewBirchDB(nil) })
}

// --------------------------------------------------------------------------
// Adapter tests (no network)
// --------------------------------------------------------------------------

func TestEntityAdapterLifecycle(t *testing.T) {
	adapter := NewEntityStoreServerAdapter()
	st := newTestShard()
	connID := uint64(1)

	instance := uuid.New()

	// Create
	resp := adapter.Handle(connID, common.NewCreateRequest("mgr", instance[:]), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Create failed: %s %s", resp.Code, resp.Err)
	}

	// Duplicate create
	resp = adapter.Handle(connID, common.NewCreateRequest("mgr", instance[:]), st)
	if resp.Code != common.RcAlreadyExists {
		t.Fatalf("expected RcAlreadyExists, got %s", resp.Code)
	}

	// Fetch
	resp = adapter.Handle(connID, common.NewFetchRequest("mgr"), st)
	if resp.Code != common.RcOK || resp.Handle == 0 {
		t.Fatalf("Fetch failed: %+v", resp)
	}
	handleID := resp.Handle

	// Configure
	cfg := entity.ServerSideConfiguration{DefaultResource: "primary"}
	cfgBytes, _ := cfg.Encode()
	resp = adapter.Handle(connID, common.NewConfigureRequest(handleID, cfgBytes), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Configure failed: %s %s", resp.Code, resp.Err)
	}

	// Validate matching
	resp = adapter.Handle(connID, common.NewValidateRequest(handleID, cfgBytes), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Validate failed: %s %s", resp.Code, resp.Err)
	}

	// Validate mismatching
	wrong, _ := entity.ServerSideConfiguration{DefaultResource: "other"}.Encode()
	resp = adapter.Handle(connID, common.NewValidateRequest(handleID, wrong), st)
	if resp.Code != common.RcConfigMismatch {
		t.Fatalf("expected RcConfigMismatch, got %s", resp.Code)
	}

	// Destroy blocked while the handle is open
	resp = adapter.Handle(connID, common.NewDestroyRequest("mgr"), st)
	if resp.Code != common.RcBusy {
		t.Fatalf("expected RcBusy, got %s", resp.Code)
	}

	// Close and destroy
	resp = adapter.Handle(connID, common.NewCloseRequest(handleID), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Close failed: %s %s", resp.Code, resp.Err)
	}
	resp = adapter.Handle(connID, common.NewDestroyRequest("mgr"), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Destroy failed: %s %s", resp.Code, resp.Err)
	}
}

func TestEntityAdapterUnknownHandle(t *testing.T) {
	adapter := NewEntityStoreServerAdapter()
	st := newTestShard()

	resp := adapter.Handle(1, common.NewCloseRequest(99), st)
	if resp.Code != common.RcProtocol {
		t.Fatalf("expected RcProtocol for unknown handle, got %s", resp.Code)
	}

	// A handle fetched on one connection is not addressable from another
	instance := uuid.New()
	adapter.Handle(1, common.NewCreateRequest("mgr", instance[:]), st)
	resp = adapter.Handle(1, common.NewFetchRequest("mgr"), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Fetch failed: %+v", resp)
	}
	resp = adapter.Handle(2, common.NewCloseRequest(resp.Handle), st)
	if resp.Code != common.RcProtocol {
		t.Fatalf("expected RcProtocol for foreign handle, got %s", resp.Code)
	}
}

func TestEntityAdapterDisconnectClosesHandles(t *testing.T) {
	adapter := NewEntityStoreServerAdapter()
	st := newTestShard()

	instance := uuid.New()
	adapter.Handle(1, common.NewCreateRequest("mgr", instance[:]), st)
	resp := adapter.Handle(1, common.NewFetchRequest("mgr"), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Fetch failed: %+v", resp)
	}

	// The open handle blocks destroy
	resp = adapter.Handle(2, common.NewDestroyRequest("mgr"), st)
	if resp.Code != common.RcBusy {
		t.Fatalf("expected RcBusy, got %s", resp.Code)
	}

	// Disconnecting connection 1 releases its reference
	adapter.Disconnect(1, st)
	resp = adapter.Handle(2, common.NewDestroyRequest("mgr"), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Destroy after disconnect failed: %s %s", resp.Code, resp.Err)
	}
}

func TestRWLockAdapterDisconnectReleasesHolds(t *testing.T) {
	adapter := NewRWLockManagerServerAdapter()
	st := newTestShard()
	locks := rwlock.NewRWLockManager(st)

	// Connection 1 acquires an exclusive lock
	resp := adapter.Handle(1, common.NewAcquireRequest("entity-access/mgr", uint8(rwlock.ModeExclusive)), st)
	if !resp.Ok || resp.Err != "" {
		t.Fatalf("Acquire failed: %+v", resp)
	}

	// The identifier is locked
	if hold, err := locks.TryExclusive("entity-access/mgr"); err != nil || hold != nil {
		t.Fatalf("lock should be held: hold=%v err=%v", hold, err)
	}

	// Disconnect releases it
	adapter.Disconnect(1, st)
	hold, err := locks.TryExclusive("entity-access/mgr")
	if err != nil || hold == nil {
		t.Fatalf("lock should be free after disconnect: hold=%v err=%v", hold, err)
	}
	hold.Unlock()
}

func TestRWLockAdapterExplicitRelease(t *testing.T) {
	adapter := NewRWLockManagerServerAdapter()
	st := newTestShard()

	resp := adapter.Handle(1, common.NewAcquireRequest("l1", uint8(rwlock.ModeShared)), st)
	if !resp.Ok {
		t.Fatalf("Acquire failed: %+v", resp)
	}
	token := resp.Value

	resp = adapter.Handle(1, common.NewReleaseRequest("l1", uint8(rwlock.ModeShared), token), st)
	if resp.Code != common.RcOK {
		t.Fatalf("Release failed: %s %s", resp.Code, resp.Err)
	}

	// Released holds are no longer tracked, disconnect must not error
	adapter.Disconnect(1, st)
}

// --------------------------------------------------------------------------
// End-to-end over a Unix socket
// --------------------------------------------------------------------------

func startTestServer(t *testing.T) (string, common.ClientConfig) {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "dce-test.sock")
	config := common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeLocalEntity},
			{ShardID: 2, Type: common.ShardTypeLocalLock},
		},
		Endpoint:      socketPath,
		TimeoutSecond: 5,
		LogLevel:      "error",
	}

	s := NewRPCServer(config, unix.NewUnixDefaultServerTransport(), serializer.NewBinarySerializer())
	go func() {
		if err := s.Serve(); err != nil {
			t.Errorf("server error: %v", err)
		}
	}()

	// Wait for the socket to come up
	time.Sleep(200 * time.Millisecond)

	return socketPath, common.ClientConfig{
		Endpoints:     []string{socketPath},
		TimeoutSecond: 5,
		RetryCount:    3,
	}
}

func TestServerEndToEnd(t *testing.T) {
	_, clientConfig := startTestServer(t)

	newCoordinator := func() (coordinator.ICoordinator, func()) {
		entTransport := unix.NewUnixClientTransport()
		lockTransport := unix.NewUnixClientTransport()

		entities, err := client.NewRPCEntityStore(1, clientConfig, entTransport, serializer.NewBinarySerializer())
		if err != nil {
			t.Fatalf("failed to create entity store client: %v", err)
		}
		locks, err := client.NewRPCRWLockMgr(2, clientConfig, lockTransport, serializer.NewBinarySerializer())
		if err != nil {
			t.Fatalf("failed to create lock manager client: %v", err)
		}
		closeFn := func() {
			entTransport.Close()
			lockTransport.Close()
		}
		return coordinator.NewCoordinator(entities, locks), closeFn
	}

	first, closeFirst := newCoordinator()
	defer closeFirst()
	second, closeSecond := newCoordinator()
	defer closeSecond()

	cfg := entity.ServerSideConfiguration{
		DefaultResource: "primary",
		Pools:           map[string]entity.Pool{"shared": {SizeBytes: 8 << 20}},
	}

	// Full lifecycle through the wire
	if err := first.Create("remote-mgr", cfg); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := second.Create("remote-mgr", cfg); !errors.Is(err, coordinator.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	ent, err := second.Retrieve("remote-mgr", cfg)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// The retrieved entity's shared lock blocks the other client's destroy
	if err := first.Destroy("remote-mgr"); !errors.Is(err, coordinator.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if err := ent.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := first.Destroy("remote-mgr"); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := first.Retrieve("remote-mgr", cfg); !errors.Is(err, coordinator.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServerDisconnectReleasesState(t *testing.T) {
	_, clientConfig := startTestServer(t)

	// First client retrieves an entity and then drops its connections
	entTransport := unix.NewUnixClientTransport()
	lockTransport := unix.NewUnixClientTransport()
	entities, err := client.NewRPCEntityStore(1, clientConfig, entTransport, serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("failed to create entity store client: %v", err)
	}
	locks, err := client.NewRPCRWLockMgr(2, clientConfig, lockTransport, serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("failed to create lock manager client: %v", err)
	}
	first := coordinator.NewCoordinator(entities, locks)

	cfg := entity.ServerSideConfiguration{}
	if err := first.Create("abandoned", cfg); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := first.Retrieve("abandoned", cfg); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// Drop the connections without closing the entity
	entTransport.Close()
	lockTransport.Close()

	// Give the server time to notice the disconnect
	time.Sleep(300 * time.Millisecond)

	// A second client can now destroy: the server released the abandoned
	// handle and the abandoned shared lock
	second, closeSecond := func() (coordinator.ICoordinator, func()) {
		et := unix.NewUnixClientTransport()
		lt := unix.NewUnixClientTransport()
		es, err := client.NewRPCEntityStore(1, clientConfig, et, serializer.NewBinarySerializer())
		if err != nil {
			t.Fatalf("failed to create entity store client: %v", err)
		}
		lm, err := client.NewRPCRWLockMgr(2, clientConfig, lt, serializer.NewBinarySerializer())
		if err != nil {
			t.Fatalf("failed to create lock manager client: %v", err)
		}
		return coordinator.NewCoordinator(es, lm), func() { et.Close(); lt.Close() }
	}()
	defer closeSecond()

	if err := second.Destroy("abandoned"); err != nil {
		t.Fatalf("Destroy after disconnect failed: %v", err)
	}
}
