package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/lib/rwlock"
)

// DefaultCreateAttempts bounds how often Create retries when a freshly
// created entity vanishes before it could be fetched (a concurrent destroy
// won the race). Each attempt presents a fresh instance UUID.
const DefaultCreateAttempts = 5

type coordinatorImpl struct {
	entities entity.IEntityStore
	locks    rwlock.IRWLockManager

	// leases holds the maintenance lease (an exclusive lock hold) per
	// identifier this coordinator currently leads.
	leases *xsync.MapOf[string, rwlock.IHold]
	// idMu serializes lease transitions per identifier, so concurrent
	// acquire/abandon/create calls on the same id cannot interleave their
	// lease checks.
	idMu *xsync.MapOf[string, *sync.Mutex]

	createAttempts int
}

// NewCoordinator creates a coordinator on the given entity store and lock
// manager with the default create retry bound.
func NewCoordinator(entities entity.IEntityStore, locks rwlock.IRWLockManager) ICoordinator {
	return NewCoordinatorWithAttempts(entities, locks, DefaultCreateAttempts)
}

// NewCoordinatorWithAttempts is NewCoordinator with an explicit bound on
// create retries.
func NewCoordinatorWithAttempts(entities entity.IEntityStore, locks rwlock.IRWLockManager, createAttempts int) ICoordinator {
	if createAttempts < 1 {
		createAttempts = 1
	}
	return &coordinatorImpl{
		entities:       entities,
		locks:          locks,
		leases:         xsync.NewMapOf[string, rwlock.IHold](),
		idMu:           xsync.NewMapOf[string, *sync.Mutex](),
		createAttempts: createAttempts,
	}
}

// lockName maps an entity identifier to its access lock.
func lockName(id string) string { return "entity-access/" + id }

func (c *coordinatorImpl) identifierMutex(id string) *sync.Mutex {
	mu, _ := c.idMu.LoadOrCompute(id, func() *sync.Mutex { return &sync.Mutex{} })
	return mu
}

// --------------------------------------------------------------------------
// Leadership
// --------------------------------------------------------------------------

func (c *coordinatorImpl) AcquireLeadership(id string) (bool, error) {
	mu := c.identifierMutex(id)
	mu.Lock()
	defer mu.Unlock()

	if _, held := c.leases.Load(id); held {
		return true, nil
	}

	hold, err := c.locks.TryExclusive(lockName(id))
	if err != nil {
		return false, err
	}
	if hold == nil {
		return false, nil
	}
	c.leases.Store(id, hold)
	log.Infof("acquired maintenance lease for %q", id)
	return true, nil
}

func (c *coordinatorImpl) AbandonLeadership(id string) {
	mu := c.identifierMutex(id)
	mu.Lock()
	defer mu.Unlock()

	hold, held := c.leases.LoadAndDelete(id)
	if !held {
		log.Panicf("abandoning maintenance lease for %q without holding it", id)
	}
	if err := hold.Unlock(); err != nil {
		log.Errorf("failed to release maintenance lease for %q: %v", id, err)
	}
	log.Infof("abandoned maintenance lease for %q", id)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (c *coordinatorImpl) Create(id string, cfg entity.ServerSideConfiguration) error {
	mu := c.identifierMutex(id)
	mu.Lock()
	defer mu.Unlock()

	// A held maintenance lease already gives exclusive standing; otherwise
	// the exclusive lock is taken just for this call.
	if _, leased := c.leases.Load(id); !leased {
		hold, err := c.locks.TryExclusive(lockName(id))
		if err != nil {
			return err
		}
		if hold == nil {
			return fmt.Errorf("%w: identifier %q locked by another client", ErrBusy, id)
		}
		defer func() {
			if err := hold.Unlock(); err != nil {
				log.Errorf("failed to release access lock for %q: %v", id, err)
			}
		}()
	}

	for attempt := 1; attempt <= c.createAttempts; attempt++ {
		instance := uuid.New()
		if err := c.entities.Create(id, instance); err != nil {
			if errors.Is(err, entity.ErrAlreadyExists) {
				return fmt.Errorf("%w: %q", ErrAlreadyExists, id)
			}
			return err
		}

		handle, err := c.entities.Fetch(id)
		if err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				// The entity vanished between create and fetch. Retry with
				// a fresh instance UUID.
				log.Warningf("entity %q disappeared after creation (attempt %d/%d), retrying",
					id, attempt, c.createAttempts)
				continue
			}
			c.cleanupOrphan(id)
			return err
		}

		if err := handle.Configure(cfg); err != nil {
			if closeErr := handle.Close(); closeErr != nil {
				log.Errorf("failed to close handle for %q: %v", id, closeErr)
			}
			c.cleanupOrphan(id)
			return fmt.Errorf("configuring entity %q: %w", id, err)
		}
		if err := handle.Close(); err != nil {
			log.Errorf("failed to close handle for %q: %v", id, err)
		}
		log.Infof("created entity %q", id)
		return nil
	}
	// The last create was acknowledged but never became visible; try not to
	// leave that orphan behind.
	c.cleanupOrphan(id)
	return fmt.Errorf("entity %q: creation did not settle after %d attempts", id, c.createAttempts)
}

// cleanupOrphan destroys a half-created entity on a best-effort basis so a
// later create attempt does not trip over it.
func (c *coordinatorImpl) cleanupOrphan(id string) {
	if err := c.entities.TryDestroy(id); err != nil &&
		!errors.Is(err, entity.ErrNotFound) && !errors.Is(err, entity.ErrBusy) {
		log.Errorf("failed to clean up half-created entity %q: %v", id, err)
	}
}

func (c *coordinatorImpl) Retrieve(id string, cfg entity.ServerSideConfiguration) (IClusteredEntity, error) {
	hold, err := c.locks.TryShared(lockName(id))
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, fmt.Errorf("%w: identifier %q locked for maintenance", ErrBusy, id)
	}

	release := func() {
		if err := hold.Unlock(); err != nil {
			log.Errorf("failed to release access lock for %q: %v", id, err)
		}
	}

	handle, err := c.entities.Fetch(id)
	if err != nil {
		release()
		if errors.Is(err, entity.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, err
	}

	if err := handle.Validate(cfg); err != nil {
		if closeErr := handle.Close(); closeErr != nil {
			log.Errorf("failed to close handle for %q: %v", id, closeErr)
		}
		release()
		if errors.Is(err, entity.ErrConfigMismatch) {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, err
	}

	// The shared lock stays held with the returned entity: it keeps the
	// identifier destroy-proof until the entity is closed.
	log.Debugf("retrieved entity %q", id)
	return &clusteredEntity{handle: handle, hold: hold}, nil
}

func (c *coordinatorImpl) Destroy(id string) error {
	mu := c.identifierMutex(id)
	mu.Lock()
	defer mu.Unlock()

	if _, leased := c.leases.Load(id); !leased {
		hold, err := c.locks.TryExclusive(lockName(id))
		if err != nil {
			return err
		}
		if hold == nil {
			return fmt.Errorf("%w: identifier %q locked by another client", ErrBusy, id)
		}
		defer func() {
			if err := hold.Unlock(); err != nil {
				log.Errorf("failed to release access lock for %q: %v", id, err)
			}
		}()
	}

	if err := c.entities.TryDestroy(id); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		if errors.Is(err, entity.ErrBusy) {
			return fmt.Errorf("%w: entity %q in use by other clients", ErrBusy, id)
		}
		return err
	}
	log.Infof("destroyed entity %q", id)
	return nil
}
