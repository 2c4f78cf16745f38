package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key    string `json:"key,omitempty"`    // Entity identifier or lock name
	Value  []byte `json:"value,omitempty"`  // Config JSON, instance UUID or lock token
	Handle uint64 `json:"handle,omitempty"` // Server-assigned entity handle id
	Mode   uint8  `json:"mode,omitempty"`   // Lock mode for Acquire/Release

	// Response only fields
	Ok   bool       `json:"ok,omitempty"`   // Used for: Acquire responses
	Code ResultCode `json:"code,omitempty"` // Outcome classification of the operation
	Err  string     `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// --------------------------------------------------------------------------
// Result Codes
// --------------------------------------------------------------------------

// ResultCode classifies the outcome of an operation so clients can map
// responses back to the error taxonomy without parsing error strings.
type ResultCode uint8

const (
	RcOK ResultCode = iota
	RcNotFound
	RcAlreadyExists
	RcBusy
	RcConfigMismatch
	RcInternal
	RcProtocol
)

// String returns the string representation of a ResultCode.
func (c ResultCode) String() string {
	switch c {
	case RcOK:
		return "ok"
	case RcNotFound:
		return "not found"
	case RcAlreadyExists:
		return "already exists"
	case RcBusy:
		return "busy"
	case RcConfigMismatch:
		return "config mismatch"
	case RcInternal:
		return "internal error"
	case RcProtocol:
		return "protocol violation"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewCreateRequest creates a new entity Create request. instance is the
// creation attempt's UUID in binary form, cfg the encoded configuration.
func NewCreateRequest(id string, instance []byte) *Message {
	return &Message{
		MsgType: MsgTEntCreate,
		Key:     id,
		Value:   instance,
	}
}

// NewFetchRequest creates a new entity Fetch request
func NewFetchRequest(id string) *Message {
	return &Message{
		MsgType: MsgTEntFetch,
		Key:     id,
	}
}

// NewFetchResponse creates a new Fetch response carrying the server-side
// handle id
func NewFetchResponse(handle uint64, code ResultCode, err error) *Message {
	msg := &Message{
		MsgType: MsgTEntFetch,
		Handle:  handle,
		Code:    code,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewConfigureRequest creates a new Configure request for a fetched handle
func NewConfigureRequest(handle uint64, cfg []byte) *Message {
	return &Message{
		MsgType: MsgTEntConfigure,
		Handle:  handle,
		Value:   cfg,
	}
}

// NewValidateRequest creates a new Validate request for a fetched handle
func NewValidateRequest(handle uint64, cfg []byte) *Message {
	return &Message{
		MsgType: MsgTEntValidate,
		Handle:  handle,
		Value:   cfg,
	}
}

// NewCloseRequest creates a new handle Close request
func NewCloseRequest(handle uint64) *Message {
	return &Message{
		MsgType: MsgTEntClose,
		Handle:  handle,
	}
}

// NewDestroyRequest creates a new entity TryDestroy request
func NewDestroyRequest(id string) *Message {
	return &Message{
		MsgType: MsgTEntDestroy,
		Key:     id,
	}
}

// NewAcquireRequest creates a new lock Acquire request for the given mode
func NewAcquireRequest(name string, mode uint8) *Message {
	return &Message{
		MsgType: MsgTLCKAcquire,
		Key:     name,
		Mode:    mode,
	}
}

// NewAcquireResponse creates a new Acquire response. ok reports whether the
// lock was granted; token identifies the hold for later release.
func NewAcquireResponse(ok bool, token []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKAcquire,
		Ok:      ok,
		Value:   token,
	}
	if err != nil {
		msg.Err = err.Error()
		msg.Code = RcInternal
	}
	return msg
}

// NewReleaseRequest creates a new lock Release request
func NewReleaseRequest(name string, mode uint8, token []byte) *Message {
	return &Message{
		MsgType: MsgTLCKRelease,
		Key:     name,
		Mode:    mode,
		Value:   token,
	}
}

// NewResultResponse creates a response for operations whose result is fully
// described by a result code (Create, Configure, Validate, Close, Destroy,
// Release).
func NewResultResponse(msgType MessageType, code ResultCode, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Code:    code,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    RcInternal,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTEntCreate:
		return "create"
	case MsgTEntFetch:
		return "fetch"
	case MsgTEntConfigure:
		return "configure"
	case MsgTEntValidate:
		return "validate"
	case MsgTEntClose:
		return "close"
	case MsgTEntDestroy:
		return "destroy"
	case MsgTLCKAcquire:
		return "acquire"
	case MsgTLCKRelease:
		return "release"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "create":
		*t = MsgTEntCreate
	case "fetch":
		*t = MsgTEntFetch
	case "configure":
		*t = MsgTEntConfigure
	case "validate":
		*t = MsgTEntValidate
	case "close":
		*t = MsgTEntClose
	case "destroy":
		*t = MsgTEntDestroy
	case "acquire":
		*t = MsgTLCKAcquire
	case "release":
		*t = MsgTLCKRelease
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IEntityStore operations

	MsgTEntCreate    // Create an entity
	MsgTEntFetch     // Fetch a handle to an entity
	MsgTEntConfigure // Configure a fetched entity
	MsgTEntValidate  // Validate a fetched entity's configuration
	MsgTEntClose     // Close a fetched handle
	MsgTEntDestroy   // Destroy an entity if unreferenced

	// IRWLockManager operations

	MsgTLCKAcquire // Acquire a read/write lock
	MsgTLCKRelease // Release a read/write lock

	// Custom operations

	MsgTCustom // Custom operation type
)
