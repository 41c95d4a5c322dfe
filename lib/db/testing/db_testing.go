package testing

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/ValentinKolb/dSettings/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs the conformance suite for a KVDB implementation.
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

		t.Run("StaleWrites", func(t *testing.T) {
			testStaleWrites(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadInvalid", func(t *testing.T) {
			testLoadInvalid(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentUsage", func(t *testing.T) {
			testConcurrentUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
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

	testKey := "app.theme"
	testValue1 := []byte(`"dark"`)
	testValue2 := []byte(`"light"`)

	database.Set(testKey, testValue1, 1)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 2)

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = database.Get("app.nonexistent")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// returned values are copies
	retrievedValue, _ := database.Get(testKey)
	retrievedValue[0] = 'X'
	result, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Modifying a returned value changed the stored value: %s", result)
	}

	if database.WriteIdx() != 2 {
		t.Errorf("Expected write index 2, got %d", database.WriteIdx())
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("net.port", []byte("8080"), 1)
	database.Delete("net.port", 2)

	if _, exists := database.Get("net.port"); exists {
		t.Errorf("Key should not exist after Delete")
	}

	// deleting a missing key is a no-op
	database.Delete("net.missing", 3)
	if _, exists := database.Get("net.missing"); exists {
		t.Errorf("Deleting a missing key must not create it")
	}

	database.Set("net.port", []byte("9090"), 4)
	if value, exists := database.Get("net.port"); !exists || string(value) != "9090" {
		t.Errorf("Expected key to be set again after Delete, got %s (exists=%v)", value, exists)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureDelete)

	if database.Has("ui.color") {
		t.Errorf("Has returned true for a key never set")
	}

	database.Set("ui.color", []byte(`"red"`), 1)
	if !database.Has("ui.color") {
		t.Errorf("Has returned false after Set")
	}

	database.Delete("ui.color", 2)
	if database.Has("ui.color") {
		t.Errorf("Has returned true after Delete")
	}
}

func testStaleWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("log.level", []byte(`"debug"`), 10)
	database.Set("log.level", []byte(`"info"`), 5)

	if value, _ := database.Get("log.level"); string(value) != `"debug"` {
		t.Errorf("Stale Set overwrote a newer value: %s", value)
	}

	database.Delete("log.level", 7)
	if !database.Has("log.level") {
		t.Errorf("Stale Delete removed a newer value")
	}

	database.SetWriteIdx(3)
	if database.WriteIdx() != 10 {
		t.Errorf("Write index must never decrease, got %d", database.WriteIdx())
	}
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureScan|db.FeatureDelete)

	for i, key := range []string{"b.two", "a.one", "b.one", "c.three"} {
		database.Set(key, []byte(fmt.Sprint(i)), uint64(i+1))
	}

	if keys := database.Keys(""); !slices.Equal(keys, []string{"a.one", "b.one", "b.two", "c.three"}) {
		t.Errorf("Unexpected keys: %v", keys)
	}
	if keys := database.Keys("b."); !slices.Equal(keys, []string{"b.one", "b.two"}) {
		t.Errorf("Unexpected keys for prefix: %v", keys)
	}

	database.Delete("b.one", 10)
	if keys := database.Keys("b."); !slices.Equal(keys, []string{"b.two"}) {
		t.Errorf("Deleted key still listed: %v", keys)
	}

	if keys := database.Keys("z."); len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	requireFeature(t, factory(), db.FeatureSave|db.FeatureLoad|db.FeatureSet|db.FeatureGet)

	database := factory()
	defer database.Close()
	database2 := factory()
	defer database2.Close()

	numEntries := 1000
	originalKeys := make([]string, numEntries)
	originalValues := make([][]byte, numEntries)

	for i := 0; i < numEntries; i++ {
		originalKeys[i] = fmt.Sprintf("cat%d.key-%d", i%7, i)
		originalValues[i] = []byte(fmt.Sprintf(`{"value":%d}`, i))
		database.Set(originalKeys[i], originalValues[i], uint64(i+1))
	}

	// stale entries in the target are replaced
	database2.Set("stale.key", []byte("x"), 1)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		actualValue, exists := database2.Get(originalKeys[i])
		if !exists {
			t.Errorf("Key %s not found after Load", originalKeys[i])
			continue
		}
		if !bytes.Equal(actualValue, originalValues[i]) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", originalKeys[i], originalValues[i], actualValue)
		}
	}

	if database2.Has("stale.key") {
		t.Errorf("Load must replace the previous content")
	}
	if database2.WriteIdx() != uint64(numEntries) {
		t.Errorf("Expected write index %d after Load, got %d", numEntries, database2.WriteIdx())
	}
	if database2.SupportsFeature(db.FeatureScan) && len(database2.Keys("cat0.")) != len(database.Keys("cat0.")) {
		t.Errorf("Key listing differs after Load")
	}
}

func testLoadInvalid(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureLoad|db.FeatureSave|db.FeatureSet|db.FeatureGet)

	database.Set("keep.me", []byte("1"), 1)

	if err := database.Load(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Errorf("Expected an error loading garbage")
	}

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-1]
	if err := database.Load(bytes.NewReader(truncated)); err == nil {
		t.Errorf("Expected an error loading a truncated snapshot")
	}

	if value, exists := database.Get("keep.me"); !exists || string(value) != "1" {
		t.Errorf("A failed Load must leave the database unchanged")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	emptyKeyValue := []byte("value for empty key")
	database.Set("", emptyKeyValue, 0)

	result, exists := database.Get("")
	if !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	database.Set("nil-value-key", nil, 0)
	result, exists = database.Get("nil-value-key")
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	unicodeKey := "ünïcödé.schlüssel"
	database.Set(unicodeKey, []byte("ok"), 0)
	if _, exists := database.Get(unicodeKey); !exists {
		t.Errorf("Unicode key not found after Set")
	}

	largeValue := make([]byte, 1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	database.Set("large-value-key", largeValue, 0)
	result, exists = database.Get("large-value-key")
	if !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (got %d bytes)", len(result))
	}
}

func testConcurrentUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	numWorkers := 8
	opsPerWorker := 1000

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("worker%d.key-%d", workerId, i%100)
				switch i % 10 {
				case 7, 8:
					database.Get(key)
				case 9:
					database.Delete(key, 0)
				default:
					database.Set(key, []byte(fmt.Sprint(i)), 0)
				}
			}
		}(w)
	}
	wg.Wait()

	// every worker wrote its own keys, the final state is deterministic
	for w := 0; w < numWorkers; w++ {
		for k := 0; k < 100; k++ {
			key := fmt.Sprintf("worker%d.key-%d", w, k)
			last := -1
			deleted := false
			for i := k; i < opsPerWorker; i += 100 {
				switch i % 10 {
				case 7, 8:
				case 9:
					deleted = true
				default:
					last, deleted = i, false
				}
			}

			value, exists := database.Get(key)
			switch {
			case deleted && exists:
				t.Errorf("Key %s should be deleted", key)
			case !deleted && last >= 0 && string(value) != fmt.Sprint(last):
				t.Errorf("Key %s: expected %d, got %s", key, last, value)
			}
		}
	}
}
