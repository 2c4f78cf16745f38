package transport

import (
	"github.com/dce-cluster/dce/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// This function is called by a server transport layer when a request is
// received. connID identifies the client connection the request arrived on;
// it is stable for the lifetime of that connection. The transport layer is
// responsible for routing the request to the appropriate shard via shardId.
type ServerHandleFunc func(connID uint64, shardId uint64, req []byte) (resp []byte)

// ConnCloseFunc is called by the server transport when a client connection
// goes away, after all in-flight requests of that connection have finished.
// Adapters use it to clean up per-connection state (open handles, held
// locks).
type ConnCloseFunc func(connID uint64)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// RegisterCloseHandler registers a handler invoked when a client
	// connection is closed (by the client or due to an error)
	RegisterCloseHandler(handler ConnCloseFunc)
	// Listen starts the transport layer and listens for incoming requests
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
