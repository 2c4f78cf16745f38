package birch

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dce-cluster/dce/lib/db"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum     = "BIRCHDB\x00" // File format identifier
	birchVersion = 1             // Snapshot format version
)

// supportedFeatures is the full feature set of this engine
const supportedFeatures = db.FeatureSet |
	db.FeatureSetTTLIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureSave |
	db.FeatureLoad

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// entry is a single stored value. deadline is the absolute expiry time in
// unix nanoseconds, 0 for entries without TTL.
type entry struct {
	value    []byte
	deadline int64
}

// shard holds a slice of the keyspace behind its own lock
type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

// birchImpl implements db.KVDB with sharded in-memory maps and lazy TTL expiry
type birchImpl struct {
	shards    []*shard
	seed      maphash.Seed
	currIndex atomic.Uint64
	sizeBytes atomic.Int64
}

// DBOptions configures the engine during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = one per CPU)
}

// NewBirchDB creates a new birch engine instance. Options are optional.
//
// Thread-safety: the returned engine is safe for concurrent use; this
// constructor itself is not and should only be called during initialization.
func NewBirchDB(opts *DBOptions) db.KVDB {
	numShards := runtime.NumCPU()
	if opts != nil && opts.NumShards > 0 {
		numShards = opts.NumShards
	}

	shards := make([]*shard, numShards)
	for i := range shards {
		shards[i] = &shard{items: make(map[string]entry)}
	}

	return &birchImpl{
		shards: shards,
		seed:   maphash.MakeSeed(),
	}
}

// shardFor maps a key to its shard
func (b *birchImpl) shardFor(key string) *shard {
	return b.shards[maphash.String(b.seed, key)%uint64(len(b.shards))]
}

// expired reports whether an entry's deadline has passed
func expired(e entry, now int64) bool {
	return e.deadline != 0 && e.deadline <= now
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (b *birchImpl) Set(key string, value []byte, writeIndex uint64) {
	b.SetWriteIdx(writeIndex)
	s := b.shardFor(key)

	s.mu.Lock()
	if old, ok := s.items[key]; ok {
		b.sizeBytes.Add(-int64(len(old.value)))
	} else {
		b.sizeBytes.Add(int64(len(key)))
	}
	s.items[key] = entry{value: value}
	b.sizeBytes.Add(int64(len(value)))
	s.mu.Unlock()
}

func (b *birchImpl) SetTTLIfUnset(key string, value []byte, writeIndex uint64, ttlSec uint64) {
	b.SetWriteIdx(writeIndex)
	s := b.shardFor(key)
	now := time.Now().UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items[key]; ok {
		if !expired(old, now) {
			// Existing live entry wins, the claim fails silently
			return
		}
		// Expired leftover, drop and reclaim below
		delete(s.items, key)
		b.sizeBytes.Add(-int64(len(key) + len(old.value)))
	}

	var deadline int64
	if ttlSec > 0 {
		deadline = now + int64(ttlSec)*int64(time.Second)
	}
	s.items[key] = entry{value: value, deadline: deadline}
	b.sizeBytes.Add(int64(len(key) + len(value)))
}

func (b *birchImpl) Delete(key string, writeIndex uint64) {
	b.SetWriteIdx(writeIndex)
	s := b.shardFor(key)

	s.mu.Lock()
	if old, ok := s.items[key]; ok {
		delete(s.items, key)
		b.sizeBytes.Add(-int64(len(key) + len(old.value)))
	}
	s.mu.Unlock()
}

func (b *birchImpl) Get(key string) ([]byte, bool) {
	s := b.shardFor(key)
	now := time.Now().UnixNano()

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok || expired(e, now) {
		return nil, false
	}
	return e.value, true
}

func (b *birchImpl) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// --------------------------------------------------------------------------
// Persistence (used for raft snapshots)
// --------------------------------------------------------------------------

// Save writes a snapshot with the format:
// magic, version (1 byte), writeIndex (8 bytes), entry count (8 bytes),
// then per entry: keyLen (4), key, valueLen (4), value, deadline (8).
func (b *birchImpl) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := bw.WriteByte(birchVersion); err != nil {
		return err
	}

	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], b.currIndex.Load())
	if _, err := bw.Write(scratch[:]); err != nil {
		return err
	}

	// Count first so the reader knows when to stop. A fuzzy count is fine,
	// the snapshot is taken from a quiesced state machine.
	var count uint64
	for _, s := range b.shards {
		s.mu.RLock()
		count += uint64(len(s.items))
		s.mu.RUnlock()
	}
	binary.BigEndian.PutUint64(scratch[:], count)
	if _, err := bw.Write(scratch[:]); err != nil {
		return err
	}

	for _, s := range b.shards {
		s.mu.RLock()
		for key, e := range s.items {
			if err := writeEntry(bw, key, e); err != nil {
				s.mu.RUnlock()
				return err
			}
		}
		s.mu.RUnlock()
	}

	return bw.Flush()
}

func writeEntry(bw *bufio.Writer, key string, e entry) error {
	var scratch [8]byte

	binary.BigEndian.PutUint32(scratch[:4], uint32(len(key)))
	if _, err := bw.Write(scratch[:4]); err != nil {
		return err
	}
	if _, err := bw.WriteString(key); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(scratch[:4], uint32(len(e.value)))
	if _, err := bw.Write(scratch[:4]); err != nil {
		return err
	}
	if _, err := bw.Write(e.value); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(scratch[:], uint64(e.deadline))
	_, err := bw.Write(scratch[:])
	return err
}

// Load restores engine state from a snapshot written by Save.
func (b *birchImpl) Load(r io.Reader) error {
	br := bufio.NewReader(r)

	magic := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if string(magic) != magicNum {
		return fmt.Errorf("not a birch snapshot")
	}
	version, err := br.ReadByte()
	if err != nil {
		return err
	}
	if version != birchVersion {
		return fmt.Errorf("unsupported birch snapshot version %d", version)
	}

	var scratch [8]byte
	if _, err := io.ReadFull(br, scratch[:]); err != nil {
		return err
	}
	b.SetWriteIdx(binary.BigEndian.Uint64(scratch[:]))

	if _, err := io.ReadFull(br, scratch[:]); err != nil {
		return err
	}
	count := binary.BigEndian.Uint64(scratch[:])

	for i := uint64(0); i < count; i++ {
		key, e, err := readEntry(br)
		if err != nil {
			return fmt.Errorf("corrupt birch snapshot entry %d: %w", i, err)
		}
		s := b.shardFor(key)
		s.mu.Lock()
		s.items[key] = e
		s.mu.Unlock()
		b.sizeBytes.Add(int64(len(key) + len(e.value)))
	}

	return nil
}

func readEntry(br *bufio.Reader) (string, entry, error) {
	var scratch [8]byte

	if _, err := io.ReadFull(br, scratch[:4]); err != nil {
		return "", entry{}, err
	}
	key := make([]byte, binary.BigEndian.Uint32(scratch[:4]))
	if _, err := io.ReadFull(br, key); err != nil {
		return "", entry{}, err
	}

	if _, err := io.ReadFull(br, scratch[:4]); err != nil {
		return "", entry{}, err
	}
	value := make([]byte, binary.BigEndian.Uint32(scratch[:4]))
	if _, err := io.ReadFull(br, value); err != nil {
		return "", entry{}, err
	}

	if _, err := io.ReadFull(br, scratch[:]); err != nil {
		return "", entry{}, err
	}
	deadline := int64(binary.BigEndian.Uint64(scratch[:]))

	return string(key), entry{value: value, deadline: deadline}, nil
}

// --------------------------------------------------------------------------
// Metadata and lifecycle
// --------------------------------------------------------------------------

func (b *birchImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (b *birchImpl) GetInfo() db.DatabaseInfo {
	entries := 0
	for _, s := range b.shards {
		s.mu.RLock()
		entries += len(s.items)
		s.mu.RUnlock()
	}

	features := []db.Feature{
		db.FeatureSet, db.FeatureSetTTLIfUnset, db.FeatureGet,
		db.FeatureDelete, db.FeatureHas, db.FeatureSave, db.FeatureLoad,
	}

	return db.DatabaseInfo{
		SizeBytes:         int(b.sizeBytes.Load()),
		Entries:           entries,
		DbType:            db.ImplBirch,
		SupportedFeatures: features,
	}
}

func (b *birchImpl) SetWriteIdx(index uint64) {
	for {
		curr := b.currIndex.Load()
		if index <= curr {
			return
		}
		if b.currIndex.CompareAndSwap(curr, index) {
			return
		}
	}
}

func (b *birchImpl) WriteIdx() uint64 {
	return b.currIndex.Load()
}

func (b *birchImpl) Close() error {
	for _, s := range b.shards {
		s.mu.Lock()
		s.items = make(map[string]entry)
		s.mu.Unlock()
	}
	b.sizeBytes.Store(0)
	return nil
}
