package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dce-cluster/dce/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs the conformance test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("SetTTLIfUnset", func(t *testing.T) {
			testSetTTLIfUnset(t, factory())
		})

		t.Run("TTLExpiry", func(t *testing.T) {
			testTTLExpiry(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("WriteIndex", func(t *testing.T) {
			testWriteIndex(t, factory())
		})

		t.Run("ConcurrentClaims", func(t *testing.T) {
			testConcurrentClaims(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// requireFeature skips the test if the database does not support the feature
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	key := "test-key"
	value1 := []byte("test-value1")
	value2 := []byte("test-value2")

	if _, ok := database.Get(key); ok {
		t.Error("Get on empty database should not find anything")
	}

	database.Set(key, value1, 1)
	got, ok := database.Get(key)
	if !ok {
		t.Fatal("Get should find the key after Set")
	}
	if !bytes.Equal(got, value1) {
		t.Errorf("Get returned %q, want %q", got, value1)
	}

	// Overwrite
	database.Set(key, value2, 2)
	got, _ = database.Get(key)
	if !bytes.Equal(got, value2) {
		t.Errorf("Get after overwrite returned %q, want %q", got, value2)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureGet)

	database.Set("k", []byte("v"), 1)
	database.Delete("k", 2)

	if _, ok := database.Get("k"); ok {
		t.Error("Get should not find a deleted key")
	}

	// Deleting a missing key must not blow up
	database.Delete("missing", 3)
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas)

	if database.Has("k") {
		t.Error("Has should be false for an unknown key")
	}
	database.Set("k", []byte("v"), 1)
	if !database.Has("k") {
		t.Error("Has should be true after Set")
	}
}

func testSetTTLIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetTTLIfUnset|db.FeatureGet)

	first := []byte("first")
	second := []byte("second")

	database.SetTTLIfUnset("claim", first, 1, 0)
	database.SetTTLIfUnset("claim", second, 2, 0)

	got, ok := database.Get("claim")
	if !ok {
		t.Fatal("claimed key should exist")
	}
	if !bytes.Equal(got, first) {
		t.Errorf("second claim must not overwrite the first: got %q", got)
	}
}

func testTTLExpiry(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetTTLIfUnset|db.FeatureGet)

	database.SetTTLIfUnset("short", []byte("v"), 1, 1)
	if _, ok := database.Get("short"); !ok {
		t.Fatal("key should be visible before its TTL passes")
	}

	time.Sleep(1100 * time.Millisecond)

	if _, ok := database.Get("short"); ok {
		t.Error("key should be gone after its TTL passed")
	}

	// The slot must be claimable again
	database.SetTTLIfUnset("short", []byte("v2"), 2, 0)
	got, ok := database.Get("short")
	if !ok || !bytes.Equal(got, []byte("v2")) {
		t.Error("expired slot should be claimable by a new owner")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	source := factory()
	defer source.Close()

	requireFeature(t, source, db.FeatureSave|db.FeatureLoad)

	for i := 0; i < 100; i++ {
		source.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)), uint64(i+1))
	}

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := factory()
	defer restored.Close()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		want := []byte(fmt.Sprintf("value-%d", i))
		got, ok := restored.Get(fmt.Sprintf("key-%d", i))
		if !ok || !bytes.Equal(got, want) {
			t.Fatalf("restored key-%d = %q (found=%t), want %q", i, got, ok, want)
		}
	}

	if restored.WriteIdx() != source.WriteIdx() {
		t.Errorf("restored write index %d, want %d", restored.WriteIdx(), source.WriteIdx())
	}
}

func testWriteIndex(t *testing.T, database db.KVDB) {
	defer database.Close()

	database.SetWriteIdx(10)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("WriteIdx() = %d, want 10", idx)
	}

	// Lower values are ignored
	database.SetWriteIdx(5)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("WriteIdx() after lower SetWriteIdx = %d, want 10", idx)
	}
}

func testConcurrentClaims(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetTTLIfUnset|db.FeatureGet)

	const goroutines = 32

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			database.SetTTLIfUnset("contested", []byte(fmt.Sprintf("owner-%d", n)), uint64(n+1), 0)
		}(i)
	}
	wg.Wait()

	winner, ok := database.Get("contested")
	if !ok {
		t.Fatal("someone must have won the claim")
	}

	// The winner's value must be stable afterwards
	database.SetTTLIfUnset("contested", []byte("latecomer"), 100, 0)
	got, _ := database.Get("contested")
	if !bytes.Equal(got, winner) {
		t.Errorf("claim winner changed from %q to %q", winner, got)
	}
}
