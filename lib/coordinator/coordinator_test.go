package coordinator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/dce-cluster/dce/lib/db"
	"github.com/dce-cluster/dce/lib/db/engines/birch"
	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/lib/entity/lentity"
	"github.com/dce-cluster/dce/lib/rwlock"
	"github.com/dce-cluster/dce/lib/store/lstore"
)

// newTestCluster returns two coordinators backed by the same store, i.e.
// two clients of the same cluster, plus the shared entity store.
func newTestCluster() (ICoordinator, ICoordinator, entity.IEntityStore) {
	st := lstore.NewLocalStore(func() db.KVDB { return birch.NewBirchDB(nil) })
	es := lentity.NewEntityStore(st)
	first := NewCoordinator(es, rwlock.NewRWLockManager(st))
	second := NewCoordinator(es, rwlock.NewRWLockManager(st))
	return first, second, es
}

func testConfig() entity.ServerSideConfiguration {
	return entity.ServerSideConfiguration{
		DefaultResource: "primary",
		Pools: map[string]entity.Pool{
			"shared": {SizeBytes: 32 << 20},
		},
	}
}

func TestCreateAndRetrieve(t *testing.T) {
	c, _, _ := newTestCluster()
	cfg := testConfig()

	if err := c.Create("mgr", cfg); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ent, err := c.Retrieve("mgr", cfg)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if ent.Identifier() != "mgr" {
		t.Fatalf("wrong identifier: %q", ent.Identifier())
	}
	if err := ent.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := ent.Close(); err == nil {
		t.Fatal("second Close should fail")
	}

	// Closing released the shared lock; retrieving again works.
	ent, err = c.Retrieve("mgr", cfg)
	if err != nil {
		t.Fatalf("second Retrieve failed: %v", err)
	}
	ent.Close()
}

func TestCreateAlreadyExists(t *testing.T) {
	c, other, _ := newTestCluster()

	if err := c.Create("dup", testConfig()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := other.Create("dup", testConfig())
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRetrieveMissing(t *testing.T) {
	c, _, _ := newTestCluster()

	_, err := c.Retrieve("ghost", entity.ServerSideConfiguration{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// The shared lock must not leak on the miss.
	acquired, err := c.AcquireLeadership("ghost")
	if err != nil || !acquired {
		t.Fatalf("lock leaked after failed Retrieve: acquired=%v err=%v", acquired, err)
	}
}

func TestRetrieveValidationMismatch(t *testing.T) {
	c, other, _ := newTestCluster()

	if err := c.Create("strict", testConfig()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	wrong := entity.ServerSideConfiguration{DefaultResource: "other"}
	_, err := c.Retrieve("strict", wrong)
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}

	// Handle and lock were released: another client can take the
	// exclusive side.
	acquired, err := other.AcquireLeadership("strict")
	if err != nil || !acquired {
		t.Fatalf("lock leaked after failed validation: acquired=%v err=%v", acquired, err)
	}
}

func TestLeadership(t *testing.T) {
	c, other, _ := newTestCluster()

	acquired, err := c.AcquireLeadership("led")
	if err != nil || !acquired {
		t.Fatalf("AcquireLeadership failed: acquired=%v err=%v", acquired, err)
	}

	t.Run("re-acquiring a held lease is a no-op", func(t *testing.T) {
		acquired, err := c.AcquireLeadership("led")
		if err != nil || !acquired {
			t.Fatalf("second AcquireLeadership: acquired=%v err=%v", acquired, err)
		}
	})

	t.Run("other clients are refused", func(t *testing.T) {
		acquired, err := other.AcquireLeadership("led")
		if err != nil {
			t.Fatalf("AcquireLeadership errored: %v", err)
		}
		if acquired {
			t.Fatal("second client should not win a held lease")
		}
	})

	t.Run("lease blocks other clients' lifecycle ops", func(t *testing.T) {
		if err := other.Create("led", testConfig()); !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy from Create, got %v", err)
		}
		if _, err := other.Retrieve("led", testConfig()); !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy from Retrieve, got %v", err)
		}
		if err := other.Destroy("led"); !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy from Destroy, got %v", err)
		}
	})

	t.Run("lease holder creates without re-locking", func(t *testing.T) {
		if err := c.Create("led", testConfig()); err != nil {
			t.Fatalf("Create under lease failed: %v", err)
		}
	})

	c.AbandonLeadership("led")

	t.Run("abandon hands the identifier over", func(t *testing.T) {
		ent, err := other.Retrieve("led", testConfig())
		if err != nil {
			t.Fatalf("Retrieve after abandon failed: %v", err)
		}
		ent.Close()

		acquired, err := other.AcquireLeadership("led")
		if err != nil || !acquired {
			t.Fatalf("AcquireLeadership after abandon: acquired=%v err=%v", acquired, err)
		}
	})
}

func TestAbandonWithoutLeasePanics(t *testing.T) {
	c, _, _ := newTestCluster()

	defer func() {
		if recover() == nil {
			t.Fatal("AbandonLeadership without a lease should panic")
		}
	}()
	c.AbandonLeadership("never-held")
}

func TestDestroy(t *testing.T) {
	c, other, es := newTestCluster()
	cfg := testConfig()

	t.Run("missing entity", func(t *testing.T) {
		if err := c.Destroy("ghost"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	if err := c.Create("doomed", cfg); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("blocked while retrieved", func(t *testing.T) {
		ent, err := other.Retrieve("doomed", cfg)
		if err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
		if err := c.Destroy("doomed"); !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy while retrieved, got %v", err)
		}
		if err := ent.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	})

	t.Run("blocked by references under lease", func(t *testing.T) {
		// A raw handle keeps a reference without a shared lock, so the
		// lease holder reaches the entity store and is refused there.
		h, err := es.Fetch("doomed")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if acquired, err := c.AcquireLeadership("doomed"); err != nil || !acquired {
			t.Fatalf("AcquireLeadership: acquired=%v err=%v", acquired, err)
		}
		if err := c.Destroy("doomed"); !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy from referenced entity, got %v", err)
		}
		if err := h.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		c.AbandonLeadership("doomed")
	})

	t.Run("succeeds once idle", func(t *testing.T) {
		if err := c.Destroy("doomed"); err != nil {
			t.Fatalf("Destroy failed: %v", err)
		}
		if err := c.Destroy("doomed"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after destroy, got %v", err)
		}
	})
}

func TestRetrieveBlocksLeadership(t *testing.T) {
	c, other, _ := newTestCluster()
	cfg := testConfig()

	if err := c.Create("pinned", cfg); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ent, err := c.Retrieve("pinned", cfg)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	acquired, err := other.AcquireLeadership("pinned")
	if err != nil {
		t.Fatalf("AcquireLeadership errored: %v", err)
	}
	if acquired {
		t.Fatal("lease must not be grantable while the entity is retrieved")
	}

	if err := ent.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	acquired, err = other.AcquireLeadership("pinned")
	if err != nil || !acquired {
		t.Fatalf("AcquireLeadership after close: acquired=%v err=%v", acquired, err)
	}
}

// --------------------------------------------------------------------------
// Create retry behavior (fake entity store)
// --------------------------------------------------------------------------

// vanishingStore simulates entities that get destroyed between creation and
// fetch. Fetch fails until succeedAfter creations have happened.
type vanishingStore struct {
	instances    []uuid.UUID
	succeedAfter int
	destroys     int
}

func (s *vanishingStore) Create(id string, instance uuid.UUID) error {
	s.instances = append(s.instances, instance)
	return nil
}

func (s *vanishingStore) Fetch(id string) (entity.IEntityHandle, error) {
	if len(s.instances) < s.succeedAfter {
		return nil, entity.ErrNotFound
	}
	return &nopHandle{id: id}, nil
}

func (s *vanishingStore) TryDestroy(id string) error {
	s.destroys++
	return entity.ErrNotFound
}

type nopHandle struct{ id string }

func (h *nopHandle) Identifier() string                                 { return h.id }
func (h *nopHandle) Configure(cfg entity.ServerSideConfiguration) error { return nil }
func (h *nopHandle) Validate(cfg entity.ServerSideConfiguration) error  { return nil }
func (h *nopHandle) Close() error                                       { return nil }

func TestCreateRetryBound(t *testing.T) {
	st := lstore.NewLocalStore(func() db.KVDB { return birch.NewBirchDB(nil) })
	locks := rwlock.NewRWLockManager(st)

	t.Run("gives up after the bound", func(t *testing.T) {
		es := &vanishingStore{succeedAfter: 100}
		c := NewCoordinator(es, locks)

		err := c.Create("flaky", entity.ServerSideConfiguration{})
		if err == nil {
			t.Fatal("Create should fail when the entity keeps vanishing")
		}
		if len(es.instances) != DefaultCreateAttempts {
			t.Fatalf("expected %d attempts, got %d", DefaultCreateAttempts, len(es.instances))
		}
		if es.destroys == 0 {
			t.Fatal("giving up must attempt to destroy the invisible entity")
		}

		// Every attempt must present a fresh instance UUID.
		seen := make(map[uuid.UUID]bool)
		for _, instance := range es.instances {
			if seen[instance] {
				t.Fatalf("instance %s reused across attempts", instance)
			}
			seen[instance] = true
		}
	})

	t.Run("settles within the bound", func(t *testing.T) {
		es := &vanishingStore{succeedAfter: 3}
		c := NewCoordinator(es, locks)

		if err := c.Create("flaky2", entity.ServerSideConfiguration{}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if len(es.instances) != 3 {
			t.Fatalf("expected 3 attempts, got %d", len(es.instances))
		}
	})

	t.Run("attempt bound is configurable", func(t *testing.T) {
		es := &vanishingStore{succeedAfter: 100}
		c := NewCoordinatorWithAttempts(es, locks, 2)

		err := c.Create("flaky3", entity.ServerSideConfiguration{})
		if err == nil {
			t.Fatal("Create should fail")
		}
		if len(es.instances) != 2 {
			t.Fatalf("expected 2 attempts, got %d", len(es.instances))
		}
	})
}

func TestManyIdentifiersIndependent(t *testing.T) {
	c, other, _ := newTestCluster()

	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("mgr-%d", i)
		if acquired, err := c.AcquireLeadership(id); err != nil || !acquired {
			t.Fatalf("AcquireLeadership(%q): acquired=%v err=%v", id, acquired, err)
		}
	}

	// Leases on other identifiers do not affect this one.
	if err := other.Create("independent", testConfig()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
}
