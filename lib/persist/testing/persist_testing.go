package testing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// PersistorFactory creates a fresh, empty backend for one test.
type PersistorFactory func(t *testing.T) settings.IPersistor

var instances atomic.Int64

// RunPersistorTests runs the conformance suite every settings backend has to pass.
func RunPersistorTests(t *testing.T, name string, factory PersistorFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Describe", func(t *testing.T) {
			testDescribe(t, factory(t))
		})

		t.Run("SetAndFetch", func(t *testing.T) {
			testSetAndFetch(t, factory(t))
		})

		t.Run("NilRemoves", func(t *testing.T) {
			testNilRemoves(t, factory(t))
		})

		t.Run("FetchValues", func(t *testing.T) {
			testFetchValues(t, factory(t))
		})

		t.Run("KeyWasChanged", func(t *testing.T) {
			testKeyWasChanged(t, factory(t))
		})

		t.Run("ValueWasChanged", func(t *testing.T) {
			testValueWasChanged(t, factory(t))
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory(t))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory(t))
		})

		t.Run("WithSettings", func(t *testing.T) {
			testWithSettings(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// AssertSameValue compares two setting values by content, so 3 and 3.0 (as
// decoded from JSON) are equal.
func AssertSameValue(t testing.TB, expected, actual any, msgAndArgs ...any) bool {
	t.Helper()
	if len(msgAndArgs) == 0 {
		msgAndArgs = []any{"expected %v, got %v", expected, actual}
	}
	return assert.Equal(t, settings.Digest(expected), settings.Digest(actual), msgAndArgs...)
}

func requireValue(t testing.TB, p settings.IPersistor, key string, expected any) {
	t.Helper()
	v, ok, err := p.FetchValue(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "key %s not found", key)
	AssertSameValue(t, expected, v)
}

func requireMissing(t testing.TB, p settings.IPersistor, key string) {
	t.Helper()
	_, ok, err := p.FetchValue(context.Background(), key)
	require.NoError(t, err)
	require.False(t, ok, "key %s should not exist", key)
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testDescribe(t *testing.T, p settings.IPersistor) {
	assert.NotEmpty(t, p.TypeName())
	_ = p.URL()
}

func testSetAndFetch(t *testing.T, p settings.IPersistor) {
	ctx := context.Background()

	requireMissing(t, p, "app.theme")

	require.NoError(t, p.SetValue(ctx, "app.theme", "dark"))
	require.NoError(t, p.SetValue(ctx, "app.volume", 7))
	require.NoError(t, p.SetValue(ctx, "app.enabled", true))
	require.NoError(t, p.SetValue(ctx, "app.ratio", 0.5))
	require.NoError(t, p.SetValue(ctx, "app.tags", []any{"a", "b"}))

	requireValue(t, p, "app.theme", "dark")
	requireValue(t, p, "app.volume", 7)
	requireValue(t, p, "app.enabled", true)
	requireValue(t, p, "app.ratio", 0.5)
	requireValue(t, p, "app.tags", []any{"a", "b"})

	require.NoError(t, p.SetValue(ctx, "app.theme", "light"))
	requireValue(t, p, "app.theme", "light")

	all, err := p.FetchAllKeyValues(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func testNilRemoves(t *testing.T, p settings.IPersistor) {
	ctx := context.Background()

	require.NoError(t, p.SetValues(ctx, map[string]any{"net.host": "localhost", "net.port": 80}))
	require.NoError(t, p.SetValues(ctx, map[string]any{"net.host": nil, "net.tls": false}))

	requireMissing(t, p, "net.host")
	requireValue(t, p, "net.port", 80)
	requireValue(t, p, "net.tls", false)

	require.NoError(t, p.SetValue(ctx, "net.port", nil))
	requireMissing(t, p, "net.port")
}

func testFetchValues(t *testing.T, p settings.IPersistor) {
	ctx := context.Background()

	require.NoError(t, p.SetValues(ctx, map[string]any{"a.one": 1, "a.two": 2, "b.three": 3}))

	values, err := p.FetchValues(ctx, []string{"a.one", "b.three", "c.missing"})
	require.NoError(t, err)
	require.Len(t, values, 2)
	AssertSameValue(t, 1, values["a.one"])
	AssertSameValue(t, 3, values["b.three"])
	assert.NotContains(t, values, "c.missing")

	values, err = p.FetchValues(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func testKeyWasChanged(t *testing.T, p settings.IPersistor) {
	ctx := context.Background()

	require.NoError(t, p.SetValue(ctx, "ui.theme", "dark"))

	// the stored value moves along
	require.NoError(t, p.KeyWasChanged(ctx, "ui.theme", "ui.color_theme", nil))
	requireMissing(t, p, "ui.theme")
	requireValue(t, p, "ui.color_theme", "dark")

	// an explicit value wins
	require.NoError(t, p.KeyWasChanged(ctx, "ui.color_theme", "ui.palette", "blue"))
	requireMissing(t, p, "ui.color_theme")
	requireValue(t, p, "ui.palette", "blue")

	// renaming an unknown key without a value creates nothing
	require.NoError(t, p.KeyWasChanged(ctx, "ui.unknown", "ui.other", nil))
	requireMissing(t, p, "ui.other")
}

func testValueWasChanged(t *testing.T, p settings.IPersistor) {
	ctx := context.Background()

	require.NoError(t, p.ValueWasChanged(ctx, "audio.volume", nil, 5))
	requireValue(t, p, "audio.volume", 5)

	require.NoError(t, p.ValueWasChanged(ctx, "audio.volume", 5, 6))
	requireValue(t, p, "audio.volume", 6)

	require.NoError(t, p.ValueWasChanged(ctx, "audio.volume", 6, nil))
	requireMissing(t, p, "audio.volume")
}

func testSaveLoad(t *testing.T, p settings.IPersistor) {
	sl, ok := p.(settings.ISaveLoadable)
	if !ok {
		t.Skip("backend does not save or load")
	}
	ctx := context.Background()

	values := map[string]any{"app.theme": "dark", "app.volume": 3, "app.tags": []any{"x"}}
	require.NoError(t, p.SetValues(ctx, values))

	saved, err := sl.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(values), saved)

	loaded, err := sl.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(values), loaded)

	all, err := p.FetchAllKeyValues(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(values))
	for k, v := range values {
		AssertSameValue(t, v, all[k], "key %s", k)
	}
}

func testConcurrent(t *testing.T, p settings.IPersistor) {
	ctx := context.Background()
	numWorkers := 8
	perWorker := 50

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, p.SetValue(ctx, fmt.Sprintf("worker%d.key%d", w, i), i))
			}
		}(w)
	}
	wg.Wait()

	all, err := p.FetchAllKeyValues(ctx)
	require.NoError(t, err)
	assert.Len(t, all, numWorkers*perWorker)
}

func testWithSettings(t *testing.T, p settings.IPersistor) {
	ctx := context.Background()

	s, err := settings.New(fmt.Sprintf("persist-suite-%d", instances.Add(1)), settings.Options{Persistors: []settings.IPersistor{p}})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.WaitReady(waitCtx))

	require.NoError(t, s.SetValue(ctx, "stats.launchCount", 1))
	requireValue(t, p, "stats.launch_count", 1)

	require.NoError(t, s.KeyWasChanged(ctx, "stats.launchCount", "stats.launches", nil, nil))
	requireMissing(t, p, "stats.launch_count")
	requireValue(t, p, "stats.launches", 1)

	count := settings.NewValue("stats.launches", 0)
	require.NoError(t, count.Bind(ctx, s))
	require.NoError(t, count.Set(ctx, 2))
	requireValue(t, p, "stats.launches", 2)

	v, ok, err := s.FetchValueFromPersistors(ctx, "stats.launches")
	require.NoError(t, err)
	require.True(t, ok)
	AssertSameValue(t, 2, v)
}
