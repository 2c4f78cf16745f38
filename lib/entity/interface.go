package entity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IEntityStore is the lifecycle interface of the remote entity service. It
// is keyed by the caller-supplied entity identifier; versioning and
// placement are the implementation's business.
type IEntityStore interface {
	// Create registers a new entity under id. The instance UUID is a
	// single-use disambiguator for this particular creation attempt; racing
	// creators each present their own. Returns ErrAlreadyExists when a live
	// entity for id exists.
	Create(id string, instance uuid.UUID) error

	// Fetch returns a live handle to the entity. Every fetched handle is
	// counted as a reference until closed. Returns ErrNotFound when no
	// entity exists for id.
	Fetch(id string) (IEntityHandle, error)

	// TryDestroy removes the entity if nothing references it. Returns
	// ErrNotFound when no entity exists and ErrBusy while handles are
	// outstanding anywhere in the cluster.
	TryDestroy(id string) error
}

// IEntityHandle is a live, counted reference to an entity.
type IEntityHandle interface {
	// Identifier returns the entity identifier the handle points at.
	Identifier() string
	// Configure applies the server-side configuration to a freshly created
	// entity.
	Configure(cfg ServerSideConfiguration) error
	// Validate checks the entity's configuration against the caller's
	// expectation. Returns ErrConfigMismatch when they are incompatible.
	Validate(cfg ServerSideConfiguration) error
	// Close releases the reference. A second call returns an error.
	Close() error
}

// --------------------------------------------------------------------------
// Error taxonomy
// --------------------------------------------------------------------------

var (
	// ErrNotFound: the operation targets an entity that does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrAlreadyExists: creation was requested for an identifier that
	// already has a live entity.
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrBusy: the entity is still referenced by live handles.
	ErrBusy = errors.New("entity in use")
	// ErrConfigMismatch: an existing entity's configuration does not match
	// the caller's expectation.
	ErrConfigMismatch = errors.New("entity configuration mismatch")
)

// ProtocolError marks a response the entity service is not expected to
// produce for the call shape: a contract violation, not an operational
// condition. Callers must treat it as unrecoverable rather than retry.
type ProtocolError struct {
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("entity protocol violation in %s: %s", e.Op, e.Detail)
}
