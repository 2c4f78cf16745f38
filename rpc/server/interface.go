package server

import (
	"github.com/dce-cluster/dce/lib/store"
	"github.com/dce-cluster/dce/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes the connection ID the request arrived on, a Message and a
	// store as parameters. It returns a Message as a response.
	// If an error occurs, it should be set in the response
	Handle(connID uint64, req *common.Message, store store.IStore) (resp *common.Message)

	// Disconnect is called when a client connection goes away. The adapter
	// releases all state the connection still holds (open handles, held
	// locks) against the given store.
	Disconnect(connID uint64, store store.IStore)
}
