package client

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/rpc/common"
	"github.com/dce-cluster/dce/rpc/serializer"
	"github.com/dce-cluster/dce/rpc/transport"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCEntityStore and RPCRWLockMgr with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("RPC client - Error: %s", err)
	}

	// Check if the response is a transport-level error response. Domain
	// outcomes (not found, busy, ...) travel as result codes and are mapped
	// by the caller.
	if resp.MsgType == common.MsgTError {
		return nil, fmt.Errorf("RPC client - Error: %s", resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC client - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}

// codeToError maps a response's result code back to the entity error
// taxonomy. Returns nil for RcOK.
func codeToError(op string, resp *common.Message) error {
	switch resp.Code {
	case common.RcOK:
		return nil
	case common.RcNotFound:
		return entity.ErrNotFound
	case common.RcAlreadyExists:
		return entity.ErrAlreadyExists
	case common.RcBusy:
		if resp.Err != "" {
			return fmt.Errorf("%w: %s", entity.ErrBusy, resp.Err)
		}
		return entity.ErrBusy
	case common.RcConfigMismatch:
		if resp.Err != "" {
			return fmt.Errorf("%w: %s", entity.ErrConfigMismatch, resp.Err)
		}
		return entity.ErrConfigMismatch
	case common.RcProtocol:
		return &entity.ProtocolError{Op: op, Detail: resp.Err}
	default:
		return fmt.Errorf("%s failed: %s", op, resp.Err)
	}
}
