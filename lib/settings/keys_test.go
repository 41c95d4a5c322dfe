package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("Snake", func(t *testing.T) {
		cases := map[string]string{
			"launchCount":         "launch_count",
			"stats.launchCount":   "stats.launch_count",
			"HTTPPort":            "http_port",
			"already_snake":       "already_snake",
			"_other_.someKey":     "_other_.some_key",
			"__default__":         "__default__",
			"userProfile.avatar2": "user_profile.avatar2",
		}
		for in, want := range cases {
			assert.Equal(t, want, NormalizeWith(in, NamingSnakeCase, "."), in)
		}
	})

	t.Run("Camel", func(t *testing.T) {
		cases := map[string]string{
			"launch_count":       "launchCount",
			"stats.launch_count": "stats.launchCount",
			"alreadyCamel":       "alreadyCamel",
			"_other_.some_key":   "_other_.someKey",
			"a__b":               "aB",
		}
		for in, want := range cases {
			assert.Equal(t, want, NormalizeWith(in, NamingCamelCase, "."), in)
		}
	})

	t.Run("Unchanged", func(t *testing.T) {
		assert.Equal(t, "Some.MixedKey_x", NormalizeWith("Some.MixedKey_x", NamingUnchanged, "."))
	})

	t.Run("Idempotent", func(t *testing.T) {
		keys := []string{"launchCount", "HTTPServer.maxConns", "a_b_c", "_other_.x", "X", "ünïcödeKey"}
		for _, naming := range []NamingConvention{NamingSnakeCase, NamingCamelCase, NamingUnchanged} {
			for _, k := range keys {
				once := NormalizeWith(k, naming, ".")
				assert.Equal(t, once, NormalizeWith(once, naming, "."), "%s/%s", naming, k)
			}
		}
	})
}

func TestCategoryOf(t *testing.T) {
	cases := []struct {
		key  string
		cat  string
		isOk bool
	}{
		{"stats.launch_count", "stats", true},
		{"a.b.c", "a.b", true},
		{"single", "", false},
		{".leading", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		cat, ok := CategoryOf(c.key, ".")
		assert.Equal(t, c.isOk, ok, c.key)
		assert.Equal(t, c.cat, cat, c.key)
	}
	assert.Equal(t, "c", LeafOf("a.b.c", "."))
	assert.Equal(t, "single", LeafOf("single", "."))
}

func TestSanitize(t *testing.T) {
	t.Run("Idempotent", func(t *testing.T) {
		keys := []string{"volume", "stats.launchCount", ".x", "a.b.c", "_other_.y", "trailing."}
		for _, k := range keys {
			once, err := Sanitize(k)
			require.NoError(t, err, k)
			twice, err := Sanitize(once)
			require.NoError(t, err, k)
			assert.Equal(t, once, twice, k)

			_, ok := CategoryOf(once, ".")
			assert.True(t, ok, "sanitized key %q has no category", once)
		}
	})

	t.Run("Orphan", func(t *testing.T) {
		k, err := Sanitize("volume")
		require.NoError(t, err)
		assert.Equal(t, "_other_.volume", k)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := Sanitize("")
		assert.True(t, errors.Is(err, ErrBadInput))
	})

	t.Run("Strict", func(t *testing.T) {
		c := DefaultConfig()
		c.StrictKeys = true
		withConfig(t, c)

		_, err := Sanitize("volume")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFailedSaving))

		var serr *Error
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, "volume", serr.Key)
		assert.Contains(t, serr.Error(), `"."`)

		k, err := Sanitize("audio.volume")
		require.NoError(t, err)
		assert.Equal(t, "audio.volume", k)
	})

	t.Run("Batch", func(t *testing.T) {
		out, err := SanitizeAll(map[string]any{"a.b": 1, "c": 2})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a.b": 1, "_other_.c": 2}, out)

		_, err = SanitizeAll(map[string]any{"a.b": 1, "": 2})
		assert.True(t, errors.Is(err, ErrBadInput))
	})

	t.Run("CustomDelimiter", func(t *testing.T) {
		c := DefaultConfig()
		c.Delimiter = "/"
		c.OrphanCategory = "misc"
		withConfig(t, c)

		k, err := Sanitize("volume")
		require.NoError(t, err)
		assert.Equal(t, "misc/volume", k)

		k, err = Sanitize("audio/volume")
		require.NoError(t, err)
		assert.Equal(t, "audio/volume", k)
	})
}

func TestParseNamingConvention(t *testing.T) {
	for _, n := range []NamingConvention{NamingUnchanged, NamingCamelCase, NamingSnakeCase} {
		got, err := ParseNamingConvention(n.String())
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	_, err := ParseNamingConvention("kebab")
	assert.True(t, errors.Is(err, ErrBadInput))
}
