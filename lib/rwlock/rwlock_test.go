package rwlock

import (
	"sync"
	"testing"

	"github.com/dce-cluster/dce/lib/db"
	"github.com/dce-cluster/dce/lib/db/engines/birch"
	"github.com/dce-cluster/dce/lib/store"
	"github.com/dce-cluster/dce/lib/store/lstore"
)

func newTestManager() (IRWLockManager, store.IStore) {
	st := lstore.NewLocalStore(func() db.KVDB { return birch.NewBirchDB(nil) })
	return NewRWLockManager(st), st
}

func TestExclusiveExcludesExclusive(t *testing.T) {
	lm, _ := newTestManager()

	first, err := lm.TryExclusive("c1")
	if err != nil {
		t.Fatalf("TryExclusive failed: %v", err)
	}
	if first == nil {
		t.Fatal("first TryExclusive should succeed")
	}

	second, err := lm.TryExclusive("c1")
	if err != nil {
		t.Fatalf("second TryExclusive errored: %v", err)
	}
	if second != nil {
		t.Fatal("second TryExclusive should be refused while the lock is held")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	third, err := lm.TryExclusive("c1")
	if err != nil || third == nil {
		t.Fatalf("TryExclusive after release should succeed, got hold=%v err=%v", third, err)
	}
}

func TestExclusiveExcludesShared(t *testing.T) {
	lm, _ := newTestManager()

	writer, _ := lm.TryExclusive("c1")
	if writer == nil {
		t.Fatal("TryExclusive should succeed")
	}

	reader, err := lm.TryShared("c1")
	if err != nil {
		t.Fatalf("TryShared errored: %v", err)
	}
	if reader != nil {
		t.Fatal("TryShared should be refused while a writer holds the lock")
	}
}

func TestSharedExcludesExclusiveOnly(t *testing.T) {
	lm, _ := newTestManager()

	r1, _ := lm.TryShared("c1")
	r2, _ := lm.TryShared("c1")
	if r1 == nil || r2 == nil {
		t.Fatal("multiple shared holds should coexist")
	}

	writer, err := lm.TryExclusive("c1")
	if err != nil {
		t.Fatalf("TryExclusive errored: %v", err)
	}
	if writer != nil {
		t.Fatal("TryExclusive should be refused while readers exist")
	}

	// Writer becomes possible only after every reader is gone
	if err := r1.Unlock(); err != nil {
		t.Fatal(err)
	}
	if writer, _ := lm.TryExclusive("c1"); writer != nil {
		t.Fatal("TryExclusive should still be refused with one reader left")
	}
	if err := r2.Unlock(); err != nil {
		t.Fatal(err)
	}
	writer, err = lm.TryExclusive("c1")
	if err != nil || writer == nil {
		t.Fatalf("TryExclusive after all readers released should succeed, got hold=%v err=%v", writer, err)
	}
}

func TestLocksAreIndependentPerName(t *testing.T) {
	lm, _ := newTestManager()

	w1, _ := lm.TryExclusive("c1")
	w2, _ := lm.TryExclusive("c2")
	if w1 == nil || w2 == nil {
		t.Fatal("locks with different names must not interfere")
	}
}

func TestDoubleUnlock(t *testing.T) {
	lm, _ := newTestManager()

	h, _ := lm.TryExclusive("c1")
	if h == nil {
		t.Fatal("TryExclusive should succeed")
	}
	if err := h.Unlock(); err != nil {
		t.Fatalf("first Unlock failed: %v", err)
	}
	if err := h.Unlock(); err == nil {
		t.Error("second Unlock must fail")
	}
}

func TestReleaseByToken(t *testing.T) {
	lm, _ := newTestManager()

	h, _ := lm.TryShared("c1")
	if h == nil {
		t.Fatal("TryShared should succeed")
	}

	// A second manager on the same store can release the hold via its token,
	// which is what the RPC server does on connection teardown.
	if err := lm.Release(h.Name(), h.Mode(), h.Token()); err != nil {
		t.Fatalf("Release by token failed: %v", err)
	}

	writer, err := lm.TryExclusive("c1")
	if err != nil || writer == nil {
		t.Fatalf("lock should be free after token release, got hold=%v err=%v", writer, err)
	}
}

func TestReleaseExclusiveWrongToken(t *testing.T) {
	lm, _ := newTestManager()

	h, _ := lm.TryExclusive("c1")
	if h == nil {
		t.Fatal("TryExclusive should succeed")
	}

	if err := lm.Release("c1", ModeExclusive, []byte("imposter")); err == nil {
		t.Error("release with a foreign token must fail")
	}

	// The genuine hold is untouched
	if err := h.Unlock(); err != nil {
		t.Errorf("genuine Unlock failed after imposter attempt: %v", err)
	}
}

func TestConcurrentExclusiveSingleWinner(t *testing.T) {
	lm, _ := newTestManager()

	const goroutines = 16

	var mu sync.Mutex
	var winners []IHold
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := lm.TryExclusive("contested")
			if err != nil {
				t.Errorf("TryExclusive errored: %v", err)
				return
			}
			if h != nil {
				mu.Lock()
				winners = append(winners, h)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("exactly one goroutine should win the lock, got %d", len(winners))
	}
}

func TestReaderCountSurvivesManagerInstances(t *testing.T) {
	lm1, st := newTestManager()
	lm2 := NewRWLockManager(st)

	r1, _ := lm1.TryShared("c1")
	r2, _ := lm2.TryShared("c1")
	if r1 == nil || r2 == nil {
		t.Fatal("both managers should acquire shared holds")
	}

	if w, _ := lm1.TryExclusive("c1"); w != nil {
		t.Fatal("writer should see readers from both manager instances")
	}
}
