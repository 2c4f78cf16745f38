package lentity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/lib/store"
)

const (
	// latchTTLSec bounds how long a crashed caller can wedge an entity's
	// transition latch.
	latchTTLSec   = 5
	latchAttempts = 50
	latchBackoff  = 2 * time.Millisecond
)

type entityStoreImpl struct {
	store store.IStore
}

// NewEntityStore creates an entity store on the given key/value store. The
// store keeps no internal state beyond what the key/value store holds, so
// any number of instances on the same store (local or distributed) see the
// same entities and share reference counts.
func NewEntityStore(st store.IStore) entity.IEntityStore {
	return &entityStoreImpl{store: st}
}

// --------------------------------------------------------------------------
// Key layout
// --------------------------------------------------------------------------

func recordKey(id string) string { return "entity/" + id + "/record" }
func refsKey(id string) string   { return "entity/" + id + "/refs" }
func latchKey(id string) string  { return "entity/" + id + "/latch" }

// record is the persisted shape of an entity.
type record struct {
	// Instance disambiguates the creation attempt that won the identifier.
	Instance uuid.UUID `json:"instance"`
	// Config is the entity's configuration once Configure has run.
	Config entity.ServerSideConfiguration `json:"config"`
	// Configured flips when Configure completes. A record that is never
	// configured still validates (the config is the zero value, which an
	// empty expectation matches).
	Configured bool `json:"configured"`
}

// --------------------------------------------------------------------------
// Latch
// --------------------------------------------------------------------------

// withLatch runs fn while holding the entity's transition latch, a CAS
// claim (SetTTLIfUnset + read-back) with a TTL that reclaims the latch
// should a holder die inside fn.
func (es *entityStoreImpl) withLatch(id string, fn func() error) error {
	token := []byte(uuid.NewString())

	key := latchKey(id)
	for i := 0; i < latchAttempts; i++ {
		if err := es.store.SetTTLIfUnset(key, token, latchTTLSec); err != nil {
			return err
		}
		value, found, err := es.store.Get(key)
		if err != nil {
			return err
		}
		if found && bytes.Equal(value, token) {
			// Latch is ours
			defer func() {
				if err := es.store.Delete(key); err != nil {
					log.Errorf("failed to release latch for entity %q: %v", id, err)
				}
			}()
			return fn()
		}
		time.Sleep(latchBackoff)
	}
	return fmt.Errorf("entity %q: latch contended for too long", id)
}

// --------------------------------------------------------------------------
// State helpers (only called under the latch)
// --------------------------------------------------------------------------

func (es *entityStoreImpl) loadRecord(id string) (record, bool, error) {
	var rec record
	value, found, err := es.store.Get(recordKey(id))
	if err != nil || !found {
		return rec, false, err
	}
	if err := json.Unmarshal(value, &rec); err != nil {
		return rec, false, fmt.Errorf("entity %q: corrupt record: %w", id, err)
	}
	return rec, true, nil
}

func (es *entityStoreImpl) saveRecord(id string, rec record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return es.store.Set(recordKey(id), value)
}

func (es *entityStoreImpl) refCount(id string) (uint64, error) {
	value, found, err := es.store.Get(refsKey(id))
	if err != nil || !found {
		return 0, err
	}
	count, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("entity %q: corrupt reference count %q", id, value)
	}
	return count, nil
}

func (es *entityStoreImpl) setRefCount(id string, count uint64) error {
	if count == 0 {
		return es.store.Delete(refsKey(id))
	}
	return es.store.Set(refsKey(id), []byte(strconv.FormatUint(count, 10)))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lib/entity/interface.go)
// --------------------------------------------------------------------------

func (es *entityStoreImpl) Create(id string, instance uuid.UUID) error {
	err := es.withLatch(id, func() error {
		if _, found, err := es.loadRecord(id); err != nil {
			return err
		} else if found {
			return entity.ErrAlreadyExists
		}
		return es.saveRecord(id, record{Instance: instance})
	})
	if err == nil {
		log.Infof("entity %q created (instance %s)", id, instance)
	}
	return err
}

func (es *entityStoreImpl) Fetch(id string) (entity.IEntityHandle, error) {
	err := es.withLatch(id, func() error {
		if _, found, err := es.loadRecord(id); err != nil {
			return err
		} else if !found {
			return entity.ErrNotFound
		}
		count, err := es.refCount(id)
		if err != nil {
			return err
		}
		return es.setRefCount(id, count+1)
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("entity %q fetched", id)
	return &handle{store: es, id: id}, nil
}

func (es *entityStoreImpl) TryDestroy(id string) error {
	err := es.withLatch(id, func() error {
		if _, found, err := es.loadRecord(id); err != nil {
			return err
		} else if !found {
			return entity.ErrNotFound
		}
		count, err := es.refCount(id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %d live references", entity.ErrBusy, count)
		}
		return es.store.Delete(recordKey(id))
	})
	if err == nil {
		log.Infof("entity %q destroyed", id)
	}
	return err
}

// --------------------------------------------------------------------------
// Handle
// --------------------------------------------------------------------------

type handle struct {
	store  *entityStoreImpl
	id     string
	closed atomic.Bool
}

func (h *handle) Identifier() string { return h.id }

func (h *handle) Configure(cfg entity.ServerSideConfiguration) error {
	if h.closed.Load() {
		return fmt.Errorf("entity %q: handle is closed", h.id)
	}
	return h.store.withLatch(h.id, func() error {
		rec, found, err := h.store.loadRecord(h.id)
		if err != nil {
			return err
		}
		if !found {
			return entity.ErrNotFound
		}
		rec.Config = cfg
		rec.Configured = true
		return h.store.saveRecord(h.id, rec)
	})
}

func (h *handle) Validate(cfg entity.ServerSideConfiguration) error {
	if h.closed.Load() {
		return fmt.Errorf("entity %q: handle is closed", h.id)
	}
	return h.store.withLatch(h.id, func() error {
		rec, found, err := h.store.loadRecord(h.id)
		if err != nil {
			return err
		}
		if !found {
			return entity.ErrNotFound
		}
		if err := cfg.CompatibleWith(rec.Config); err != nil {
			return fmt.Errorf("%w: %v", entity.ErrConfigMismatch, err)
		}
		return nil
	})
}

func (h *handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("entity %q: handle already closed", h.id)
	}
	return h.store.withLatch(h.id, func() error {
		count, err := h.store.refCount(h.id)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("entity %q: no reference to release", h.id)
		}
		return h.store.setRefCount(h.id, count-1)
	})
}
