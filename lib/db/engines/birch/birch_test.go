package birch

import (
	"testing"

	"github.com/dce-cluster/dce/lib/db"
	dbtesting "github.com/dce-cluster/dce/lib/db/testing"
)

func TestBirchConformance(t *testing.T) {
	dbtesting.RunKVDBTests(t, "birch", func() db.KVDB {
		return NewBirchDB(nil)
	})
}

func TestBirchSingleShard(t *testing.T) {
	dbtesting.RunKVDBTests(t, "birch-1shard", func() db.KVDB {
		return NewBirchDB(&DBOptions{NumShards: 1})
	})
}

func TestBirchInfo(t *testing.T) {
	database := NewBirchDB(nil)
	defer database.Close()

	database.Set("a", []byte("1234"), 1)
	database.Set("b", []byte("5678"), 2)

	info := database.GetInfo()
	if info.DbType != db.ImplBirch {
		t.Errorf("DbType = %q, want %q", info.DbType, db.ImplBirch)
	}
	if info.Entries != 2 {
		t.Errorf("Entries = %d, want 2", info.Entries)
	}
	if info.SizeBytes != len("a")+len("b")+8 {
		t.Errorf("SizeBytes = %d, want %d", info.SizeBytes, len("a")+len("b")+8)
	}
}
