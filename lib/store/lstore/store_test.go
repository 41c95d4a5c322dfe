package lstore

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dSettings/lib/db"
	"github.com/ValentinKolb/dSettings/lib/db/engines/maple"
	"github.com/ValentinKolb/dSettings/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() store.IStore {
	return NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
}

func TestLocalStore(t *testing.T) {
	s := newStore()

	require.NoError(t, s.Set("app.theme", []byte(`"dark"`)))
	require.NoError(t, s.Set("app.lang", []byte(`"en"`)))
	require.NoError(t, s.Set("net.port", []byte(`80`)))

	value, ok, err := s.Get("app.theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"dark"`, string(value))

	keys, err := s.Keys("app.")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.lang", "app.theme"}, keys)

	require.NoError(t, s.Delete("app.lang"))
	has, err := s.Has("app.lang")
	require.NoError(t, err)
	assert.False(t, has)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, db.ImplMaple, info.DbType)
	assert.Equal(t, 2, info.Entries)
}

func TestLocalStoreSnapshot(t *testing.T) {
	src := newStore()
	require.NoError(t, src.Set("app.theme", []byte(`"dark"`)))

	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf))

	dst := newStore()
	require.NoError(t, dst.Load(&buf))
	value, ok, err := dst.Get("app.theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"dark"`, string(value))

	// writes after a load are not stale
	require.NoError(t, dst.Set("app.theme", []byte(`"light"`)))
	value, _, _ = dst.Get("app.theme")
	assert.Equal(t, `"light"`, string(value))

	err = dst.Load(bytes.NewReader([]byte("garbage")))
	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, store.RetCInternalError, serr.Code)
}
