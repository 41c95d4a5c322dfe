package kvstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dSettings/lib/db"
	"github.com/ValentinKolb/dSettings/lib/db/engines/maple"
	"github.com/ValentinKolb/dSettings/lib/persist/kvstore"
	persisttesting "github.com/ValentinKolb/dSettings/lib/persist/testing"
	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/ValentinKolb/dSettings/lib/store"
	"github.com/ValentinKolb/dSettings/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB {
		return maple.NewMapleDB(nil)
	})
}

// countingStore counts the deletes reaching the wrapped store.
type countingStore struct {
	store.IStore
	deletes []string
}

func (c *countingStore) Delete(key string) error {
	c.deletes = append(c.deletes, key)
	return c.IStore.Delete(key)
}

func TestStorePersistor(t *testing.T) {
	persisttesting.RunPersistorTests(t, "Plain", func(t *testing.T) settings.IPersistor {
		return kvstore.New(newStore(), nil)
	})
	persisttesting.RunPersistorTests(t, "Prefixed", func(t *testing.T) settings.IPersistor {
		return kvstore.New(newStore(), &kvstore.Options{Prefix: "app/"})
	})
	persisttesting.RunPersistorTests(t, "Snapshot", func(t *testing.T) settings.IPersistor {
		return kvstore.New(newStore(), &kvstore.Options{SnapshotPath: filepath.Join(t.TempDir(), "store.snap")})
	})
}

func TestPrefixesShareStore(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	a := kvstore.New(s, &kvstore.Options{Prefix: "a/"})
	b := kvstore.New(s, &kvstore.Options{Prefix: "b/"})

	require.NoError(t, a.SetValue(ctx, "app.theme", "dark"))
	require.NoError(t, b.SetValue(ctx, "app.theme", "light"))

	va, _, err := a.FetchValue(ctx, "app.theme")
	require.NoError(t, err)
	vb, _, err := b.FetchValue(ctx, "app.theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", va)
	assert.Equal(t, "light", vb)

	all, err := a.FetchAllKeyValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"app.theme": "dark"}, all)

	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/app.theme", "b/app.theme"}, keys)
}

func TestSnapshotSurvivesNewStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.snap")

	first := kvstore.New(newStore(), &kvstore.Options{SnapshotPath: path})
	require.NoError(t, first.SetValues(ctx, map[string]any{"net.port": 8080, "net.host": "localhost"}))
	n, err := first.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	second := kvstore.New(newStore(), &kvstore.Options{SnapshotPath: path})
	n, err = second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, ok, err := second.FetchValue(ctx, "net.port")
	require.NoError(t, err)
	require.True(t, ok)
	persisttesting.AssertSameValue(t, 8080, v)

	// writes continue after the restored write index
	require.NoError(t, second.SetValue(ctx, "net.port", 9090))
	v, _, err = second.FetchValue(ctx, "net.port")
	require.NoError(t, err)
	persisttesting.AssertSameValue(t, 9090, v)
}

func TestLoadWithoutSnapshotFile(t *testing.T) {
	p := kvstore.New(newStore(), &kvstore.Options{SnapshotPath: filepath.Join(t.TempDir(), "missing.snap")})
	n, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestURL(t *testing.T) {
	p := kvstore.New(newStore(), &kvstore.Options{Prefix: "cfg/"})
	assert.Equal(t, "kvstore://maple/cfg/", p.URL())
}

func TestDeleteOnlyExistingKeys(t *testing.T) {
	ctx := context.Background()
	s := &countingStore{IStore: newStore()}
	p := kvstore.New(s, &kvstore.Options{Prefix: "app/"})

	require.NoError(t, p.SetValue(ctx, "ui.missing", nil))
	require.NoError(t, p.SetValues(ctx, map[string]any{"ui.theme": "dark", "ui.gone": nil}))
	assert.Empty(t, s.deletes)

	require.NoError(t, p.SetValue(ctx, "ui.theme", nil))
	assert.Equal(t, []string{"app/ui.theme"}, s.deletes)

	require.NoError(t, p.SetValue(ctx, "ui.scale", 2))
	require.NoError(t, p.KeyWasChanged(ctx, "ui.scale", "ui.zoom", nil))
	require.NoError(t, p.KeyWasChanged(ctx, "ui.unknown", "ui.other", nil))
	assert.Equal(t, []string{"app/ui.theme", "app/ui.scale"}, s.deletes)

	v, ok, err := p.FetchValue(ctx, "ui.zoom")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 2, v)
	has, err := s.Has("app/ui.scale")
	require.NoError(t, err)
	assert.False(t, has)
}
