package values

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/dSettings/lib/persist/file"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the values command group with args and returns its output.
// Flags are reset first, cobra keeps their values between executions.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	ValueCommands.PersistentFlags().VisitAll(resetFlags)
	dumpCmd.Flags().VisitAll(resetFlags)

	var out bytes.Buffer
	ValueCommands.SetOut(&out)
	ValueCommands.SetErr(&out)
	ValueCommands.SetArgs(args)
	err := ValueCommands.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSetGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	out, err := execute(t, "set", "window.width", "1024", "--file", path, "--instance", "cli-set")
	require.NoError(t, err)
	assert.Contains(t, out, "set successfully (1 value(s) saved)")

	values, err := file.ReadValues(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, values["window.width"])

	out, err = execute(t, "get", "window.width", "--file", path, "--instance", "cli-get")
	require.NoError(t, err)
	assert.Equal(t, "key=window.width, found=true, value=1024\n", out)

	out, err = execute(t, "set", "window.title", "main window", "--file", path, "--instance", "cli-set-string")
	require.NoError(t, err)
	assert.Contains(t, out, "2 value(s) saved")

	out, err = execute(t, "del", "window.width", "--file", path, "--instance", "cli-del")
	require.NoError(t, err)
	assert.Contains(t, out, "delete successfully")

	out, err = execute(t, "get", "window.width", "--file", path, "--instance", "cli-get-deleted")
	require.NoError(t, err)
	assert.Equal(t, "key=window.width, found=false, value=null\n", out)

	out, err = execute(t, "get", "window.title", "--file", path, "--instance", "cli-get-string")
	require.NoError(t, err)
	assert.Equal(t, "key=window.title, found=true, value=\"main window\"\n", out)
}

func TestRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, file.WriteValues(path, map[string]any{"stats.launches": 3}, 0o644))

	_, err := execute(t, "rename", "stats.launches", "stats.launch_count", "--file", path, "--instance", "cli-rename")
	require.NoError(t, err)

	values, err := file.ReadValues(path)
	require.NoError(t, err)
	assert.NotContains(t, values, "stats.launches")
	assert.EqualValues(t, 3, values["stats.launch_count"])
}

func TestResetToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	defaultsPath := filepath.Join(dir, "defaults.yaml")
	require.NoError(t, file.WriteValues(path, map[string]any{"ui.scale": 2, "ui.theme": "dark"}, 0o644))
	require.NoError(t, os.WriteFile(defaultsPath, []byte("ui:\n  scale: 1\n"), 0o644))

	out, err := execute(t, "reset", "--file", path, "--defaults", defaultsPath, "--instance", "cli-reset")
	require.NoError(t, err)
	assert.Contains(t, out, "reset successfully")

	values, err := file.ReadValues(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, values["ui.scale"])
}

func TestFetchReconcilesBackends(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	c := filepath.Join(dir, "c.json")
	require.NoError(t, file.WriteValues(a, map[string]any{"ui.theme": "light"}, 0o644))
	require.NoError(t, file.WriteValues(b, map[string]any{"ui.theme": "dark"}, 0o644))
	require.NoError(t, file.WriteValues(c, map[string]any{"ui.theme": "dark"}, 0o644))

	out, err := execute(t, "fetch", "ui.theme", "--file", a, "--file", b, "--file", c, "--instance", "cli-fetch")
	require.NoError(t, err)
	assert.Equal(t, "key=ui.theme, found=true, value=\"dark\"\n", out)
}

func TestDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, file.WriteValues(path, map[string]any{"window.width": 800}, 0o644))

	out, err := execute(t, "dump", "--stats", "--file", path, "--instance", "cli-dump")
	require.NoError(t, err)
	assert.Contains(t, out, `settings "cli-dump"`)
	assert.Contains(t, out, "window.width")
	assert.Contains(t, out, "stats: ")

	out, err = execute(t, "dump", "--file", path, "--instance", "cli-dump-plain")
	require.NoError(t, err)
	assert.NotContains(t, out, "stats: ")
}

func TestNoBackend(t *testing.T) {
	_, err := execute(t, "get", "window.width", "--instance", "cli-none")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no backend configured"))
}

func TestParseValue(t *testing.T) {
	assert.EqualValues(t, 3, parseValue("3"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, []any{"a", "b"}, parseValue(`["a","b"]`))
	assert.Equal(t, "plain text", parseValue("plain text"))
	assert.Equal(t, "null", parseValue("null"))
}
