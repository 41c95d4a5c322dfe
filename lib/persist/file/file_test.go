package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dSettings/lib/persist/file"
	persisttesting "github.com/ValentinKolb/dSettings/lib/persist/testing"
	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factory(ext string, autoSave bool) persisttesting.PersistorFactory {
	return func(t *testing.T) settings.IPersistor {
		p, err := file.New(filepath.Join(t.TempDir(), "settings"+ext), &file.Options{AutoSave: autoSave})
		require.NoError(t, err)
		return p
	}
}

func TestFilePersistor(t *testing.T) {
	persisttesting.RunPersistorTests(t, "JSON", factory(".json", false))
	persisttesting.RunPersistorTests(t, "YAML", factory(".yaml", false))
	persisttesting.RunPersistorTests(t, "TOML", factory(".toml", false))
	persisttesting.RunPersistorTests(t, "JSONAutoSave", factory(".json", true))
}

func TestNewRejectsUnknownExtension(t *testing.T) {
	_, err := file.New(filepath.Join(t.TempDir(), "settings.ini"), nil)
	assert.Error(t, err)

	_, err = file.New("", nil)
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	for path, expected := range map[string]file.Format{
		"a.json": file.FormatJSON,
		"a.YML":  file.FormatYAML,
		"a.yaml": file.FormatYAML,
		"a.toml": file.FormatTOML,
	} {
		f, err := file.FormatOf(path)
		require.NoError(t, err, path)
		assert.Equal(t, expected, f, path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	p, err := file.New(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	n, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	p, err := file.New(path, nil)
	require.NoError(t, err)
	_, err = p.Load(context.Background())
	assert.Error(t, err)
}

func TestLoadFlattensNestedTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	content := `
top = 1

[app]
theme = "dark"

[app.audio]
volume = 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := file.New(path, nil)
	require.NoError(t, err)

	n, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := p.FetchAllKeyValues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dark", all["app.theme"])
	persisttesting.AssertSameValue(t, 7, all["app.audio.volume"])
	persisttesting.AssertSameValue(t, 1, all["top"])
}

func TestLoadReplacesValues(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, file.WriteValues(path, map[string]any{"app.theme": "dark"}, 0o644))

	p, err := file.New(path, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetValue(ctx, "app.unsaved", true))

	_, err = p.Load(ctx)
	require.NoError(t, err)

	all, err := p.FetchAllKeyValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"app.theme": "dark"}, all)
}

func TestAutoSaveWritesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "settings.yml")

	p, err := file.New(path, &file.Options{AutoSave: true, Perm: 0o600})
	require.NoError(t, err)
	require.NoError(t, p.SetValue(ctx, "app.theme", "dark"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	values, err := file.ReadValues(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"app.theme": "dark"}, values)

	// no temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWithoutAutoSaveNothingIsWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	p, err := file.New(path, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetValue(context.Background(), "app.theme", "dark"))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSettingsRoundTripThroughFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, file.WriteValues(path, map[string]any{"window.width": 800}, 0o644))

	p, err := file.New(path, nil)
	require.NoError(t, err)

	s, err := settings.New("file-roundtrip-"+t.Name(), settings.Options{Persistors: []settings.IPersistor{p}})
	require.NoError(t, err)
	require.NoError(t, s.WaitReady(ctx))

	width, ok, err := settings.Get[int](ctx, s, "window.width")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 800, width)

	require.NoError(t, s.SetValue(ctx, "window.height", 600))
	_, err = s.Save(ctx)
	require.NoError(t, err)

	values, err := file.ReadValues(path)
	require.NoError(t, err)
	persisttesting.AssertSameValue(t, 800, values["window.width"])
	persisttesting.AssertSameValue(t, 600, values["window.height"])
}
