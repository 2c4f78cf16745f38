package coordinator

import (
	"errors"

	"github.com/dce-cluster/dce/lib/entity"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ICoordinator arbitrates the lifecycle of named clustered entities between
// competing clients. Exclusive operations (create, destroy) and shared use
// (retrieve) are fenced through a distributed read/write lock per
// identifier; a maintenance lease pins the exclusive side across several
// operations.
type ICoordinator interface {
	// AcquireLeadership takes (or confirms) the maintenance lease for id.
	// Returns true when this coordinator holds the lease afterwards, false
	// when another client holds the identifier. Acquiring a lease this
	// coordinator already holds is a no-op returning true.
	AcquireLeadership(id string) (bool, error)

	// AbandonLeadership gives the maintenance lease for id back. Calling it
	// without holding the lease is a programming error and panics.
	AbandonLeadership(id string)

	// Create creates and configures the entity id. It needs exclusive
	// standing: a held maintenance lease counts, otherwise the exclusive
	// lock is taken for the duration of the call. Returns ErrBusy when the
	// identifier is locked elsewhere and ErrAlreadyExists when a live
	// entity already exists.
	Create(id string, cfg entity.ServerSideConfiguration) error

	// Retrieve fetches and validates the entity id for shared use. Returns
	// ErrBusy while the identifier is locked exclusively, ErrNotFound when
	// no entity exists and ErrValidationFailed when the entity's
	// configuration does not match cfg. On success the shared lock stays
	// held until the returned entity is closed.
	Retrieve(id string, cfg entity.ServerSideConfiguration) (IClusteredEntity, error)

	// Destroy removes the entity id. Needs exclusive standing like Create.
	// Returns ErrBusy when the identifier is locked elsewhere or the
	// entity is in use, and ErrNotFound when no entity exists.
	Destroy(id string) error
}

// IClusteredEntity is a retrieved entity together with the shared lock
// protecting it from concurrent destruction. It is exclusively owned by
// the caller of Retrieve.
type IClusteredEntity interface {
	// Identifier returns the entity identifier.
	Identifier() string
	// Handle returns the underlying entity handle.
	Handle() entity.IEntityHandle
	// Close releases the handle and the shared lock. A second call returns
	// an error.
	Close() error
}

// --------------------------------------------------------------------------
// Error taxonomy
// --------------------------------------------------------------------------

var (
	// ErrBusy: the identifier is locked by another client, or the entity
	// is in use and cannot be destroyed.
	ErrBusy = errors.New("entity busy")
	// ErrAlreadyExists: Create targeted an identifier with a live entity.
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrNotFound: Retrieve or Destroy targeted a nonexistent entity.
	ErrNotFound = errors.New("entity not found")
	// ErrValidationFailed: the retrieved entity's configuration does not
	// match the caller's expectation.
	ErrValidationFailed = errors.New("entity validation failed")
)
