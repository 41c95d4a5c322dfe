package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dSettings/lib/db"
	"github.com/ValentinKolb/dSettings/lib/db/engines/maple/internal"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Database version
	maxKeyLen    = 1 << 16       // Upper bound for keys read from snapshots
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory database with sharded data
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Current logical timestamp

	loadMu sync.RWMutex // Load swaps the shards, everything else reads them
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = number of CPUs)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      internal.GenerateSeed(),
		shards:    newShards(opts.NumShards),
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shardFor returns the shard holding key. Callers hold loadMu.
func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return internal.GetShard(internal.HashKey(key, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key, value, and writeIndex.
// Stale writes (lower index than the stored entry) are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIndex uint64) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	maple.SetWriteIdx(writeIndex)

	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && old.Index > writeIndex {
			return old, false
		}
		return internal.Entry{Key: key, Value: valueCopy, Index: writeIndex}, false
	})
}

// Delete removes an entry with the specified key. This change is immediate.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIndex uint64) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	maple.SetWriteIdx(writeIndex)

	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return old, true // set delete to true because else the value will be created
		}
		return old, old.Index <= writeIndex
	})
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	e, ok := maple.shardFor(key).Data.Load(key)
	if !ok {
		return nil, false
	}
	data := make([]byte, len(e.Value))
	copy(data, e.Value)
	return data, true
}

// Has checks if a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	_, ok := maple.shardFor(key).Data.Load(key)
	return ok
}

// Keys returns every key starting with prefix, sorted.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// Keys written during the call may or may not be included.
func (maple *mapleImpl) Keys(prefix string) []string {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	var keys []string
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, _ internal.Entry) bool {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return true
		})
	}
	sort.Strings(keys)
	return keys
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer
// Concurrent reading and writing is allowed during Save operation
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. It takes snapshots of the data without blocking modifications.
func (maple *mapleImpl) Save(w io.Writer) error {
	maple.loadMu.RLock()
	var entries []internal.Entry
	for _, shard := range maple.shards {
		shard.Data.Range(func(_ string, entry internal.Entry) bool {
			entries = append(entries, entry)
			return true
		})
	}
	seed := maple.seed
	maple.loadMu.RUnlock()

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 64*1024)

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, seed); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		// Write key
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(e.Key); err != nil {
			return err
		}

		// Write index
		if err := binary.Write(bw, binary.LittleEndian, e.Index); err != nil {
			return err
		}

		// Write value
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(e.Value); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader, replacing all entries.
//
// Thread-safety: Load blocks all other operations while it runs.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var seed uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// Build new shards first, so a broken snapshot leaves the database untouched
	shards := newShards(maple.numShards)
	var maxIndex uint64
	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		if keyLen > maxKeyLen {
			return fmt.Errorf("invalid key length %d in entry %d", keyLen, i)
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var index uint64
		if err := binary.Read(br, binary.LittleEndian, &index); err != nil {
			return err
		}
		maxIndex = max(maxIndex, index)

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		k := string(key)
		internal.GetShard(internal.HashKey(k, seed), shards).Data.Store(k, internal.Entry{Key: k, Value: value, Index: index})
	}

	maple.loadMu.Lock()
	maple.shards = shards
	maple.seed = seed
	maple.currIndex.Store(0)
	maple.loadMu.Unlock()

	// Update current index to the highest seen during load
	maple.SetWriteIdx(maxIndex)
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// shardStats summarizes the entry distribution over the shards
type shardStats struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	MinMaxRatio float64 `json:"min_max_ratio"`
}

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	entries := 0
	sizeBytes := 0
	stats := shardStats{Min: math.MaxFloat64}
	for _, shard := range maple.shards {
		n := shard.Data.Size()
		entries += n
		stats.Min = min(stats.Min, float64(n))
		stats.Max = max(stats.Max, float64(n))
		shard.Data.Range(func(key string, e internal.Entry) bool {
			sizeBytes += len(key) + len(e.Value) + 8
			return true
		})
	}
	stats.Mean = float64(entries) / float64(len(maple.shards))
	stats.MinMaxRatio = 1
	if stats.Max > 0 {
		stats.MinMaxRatio = stats.Min / stats.Max
	}

	meta := &struct {
		CurrentWriteIndex uint64     `json:"current_write_index"`
		ShardCount        int        `json:"shard_count"`
		ShardDistribution shardStats `json:"shard_distribution"`
	}{
		CurrentWriteIndex: maple.currIndex.Load(),
		ShardCount:        len(maple.shards),
		ShardDistribution: stats,
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		Entries:   entries,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
			db.FeatureScan, db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureScan |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close drops all entries
func (maple *mapleImpl) Close() error {
	maple.loadMu.Lock()
	defer maple.loadMu.Unlock()
	maple.shards = newShards(maple.numShards)
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
