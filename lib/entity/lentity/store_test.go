package lentity

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dce-cluster/dce/lib/db"
	"github.com/dce-cluster/dce/lib/db/engines/birch"
	"github.com/dce-cluster/dce/lib/entity"
	"github.com/dce-cluster/dce/lib/store"
	"github.com/dce-cluster/dce/lib/store/lstore"
)

func newTestStore() (entity.IEntityStore, store.IStore) {
	st := lstore.NewLocalStore(func() db.KVDB { return birch.NewBirchDB(nil) })
	return NewEntityStore(st), st
}

func TestCreateFetchClose(t *testing.T) {
	es, _ := newTestStore()

	if err := es.Create("cache-mgr", uuid.New()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	h, err := es.Fetch("cache-mgr")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if h.Identifier() != "cache-mgr" {
		t.Fatalf("wrong identifier: %q", h.Identifier())
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	es, _ := newTestStore()

	if err := es.Create("dup", uuid.New()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := es.Create("dup", uuid.New())
	if !errors.Is(err, entity.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestFetchMissing(t *testing.T) {
	es, _ := newTestStore()

	_, err := es.Fetch("ghost")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfigureAndValidate(t *testing.T) {
	es, _ := newTestStore()

	if err := es.Create("configured", uuid.New()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	h, err := es.Fetch("configured")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer h.Close()

	cfg := entity.ServerSideConfiguration{
		DefaultResource: "primary",
		Pools: map[string]entity.Pool{
			"shared": {SizeBytes: 64 << 20},
			"pinned": {SizeBytes: 16 << 20, Resource: "fast"},
		},
	}
	if err := h.Configure(cfg); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	t.Run("matching config validates", func(t *testing.T) {
		if err := h.Validate(cfg); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
	})

	t.Run("empty expectation matches anything", func(t *testing.T) {
		if err := h.Validate(entity.ServerSideConfiguration{}); err != nil {
			t.Fatalf("Validate of empty expectation failed: %v", err)
		}
	})

	t.Run("mismatching config is rejected", func(t *testing.T) {
		other := entity.ServerSideConfiguration{
			DefaultResource: "primary",
			Pools: map[string]entity.Pool{
				"shared": {SizeBytes: 128 << 20},
				"pinned": {SizeBytes: 16 << 20, Resource: "fast"},
			},
		}
		err := h.Validate(other)
		if !errors.Is(err, entity.ErrConfigMismatch) {
			t.Fatalf("expected ErrConfigMismatch, got %v", err)
		}
	})

	t.Run("missing pool is rejected", func(t *testing.T) {
		other := entity.ServerSideConfiguration{
			DefaultResource: "primary",
			Pools: map[string]entity.Pool{
				"shared": {SizeBytes: 64 << 20},
				"other":  {SizeBytes: 16 << 20, Resource: "fast"},
			},
		}
		err := h.Validate(other)
		if !errors.Is(err, entity.ErrConfigMismatch) {
			t.Fatalf("expected ErrConfigMismatch, got %v", err)
		}
	})
}

func TestValidateUnconfigured(t *testing.T) {
	es, _ := newTestStore()

	if err := es.Create("fresh", uuid.New()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	h, err := es.Fetch("fresh")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer h.Close()

	// An unconfigured entity holds the zero config, which only the empty
	// expectation matches.
	if err := h.Validate(entity.ServerSideConfiguration{}); err != nil {
		t.Fatalf("empty expectation should match unconfigured entity: %v", err)
	}
	err = h.Validate(entity.ServerSideConfiguration{DefaultResource: "primary"})
	if !errors.Is(err, entity.ErrConfigMismatch) {
		t.Fatalf("expected ErrConfigMismatch, got %v", err)
	}
}

func TestDestroy(t *testing.T) {
	es, _ := newTestStore()

	t.Run("missing entity", func(t *testing.T) {
		err := es.TryDestroy("ghost")
		if !errors.Is(err, entity.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("busy while referenced", func(t *testing.T) {
		if err := es.Create("busy", uuid.New()); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		h, err := es.Fetch("busy")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}

		err = es.TryDestroy("busy")
		if !errors.Is(err, entity.ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}

		if err := h.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := es.TryDestroy("busy"); err != nil {
			t.Fatalf("TryDestroy after Close failed: %v", err)
		}
		if _, err := es.Fetch("busy"); !errors.Is(err, entity.ErrNotFound) {
			t.Fatalf("destroyed entity still fetchable: %v", err)
		}
	})
}

func TestRecreateAfterDestroy(t *testing.T) {
	es, _ := newTestStore()

	if err := es.Create("phoenix", uuid.New()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := es.TryDestroy("phoenix"); err != nil {
		t.Fatalf("TryDestroy failed: %v", err)
	}
	if err := es.Create("phoenix", uuid.New()); err != nil {
		t.Fatalf("re-Create failed: %v", err)
	}
}

func TestDoubleClose(t *testing.T) {
	es, _ := newTestStore()

	if err := es.Create("once", uuid.New()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	h, err := es.Fetch("once")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.Close(); err == nil {
		t.Fatal("second Close should fail")
	}
	if err := h.Validate(entity.ServerSideConfiguration{}); err == nil {
		t.Fatal("Validate on closed handle should fail")
	}
}

func TestReferencesSharedAcrossInstances(t *testing.T) {
	first, st := newTestStore()
	second := NewEntityStore(st)

	if err := first.Create("shared-refs", uuid.New()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	h, err := first.Fetch("shared-refs")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// A second store instance on the same backing store sees the reference.
	err = second.TryDestroy("shared-refs")
	if !errors.Is(err, entity.ErrBusy) {
		t.Fatalf("expected ErrBusy through second instance, got %v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := second.TryDestroy("shared-refs"); err != nil {
		t.Fatalf("TryDestroy through second instance failed: %v", err)
	}
}
