package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds root -> c1 -> ... with n categories and returns them.
func chain(n int) []*Category {
	cats := make([]*Category, n)
	for i := range cats {
		cats[i] = NewCategory(string(rune('a' + i)))
		if i > 0 {
			cats[i-1].AttachChild(cats[i])
		}
	}
	return cats
}

func TestCategoryNames(t *testing.T) {
	app := NewCategory("app")
	stats := NewCategory("stats")
	daily := NewCategory("daily")

	require.True(t, app.AttachChild(stats))
	require.True(t, stats.AttachChild(daily))

	assert.Equal(t, "app.stats.daily", daily.FullName())
	assert.Equal(t, 3, daily.Depth())
	assert.Equal(t, []*Category{app, stats, daily}, daily.Ancestors())
	assert.Equal(t, "app.stats.daily.count", daily.KeyFor("count"))

	t.Run("Reparent", func(t *testing.T) {
		other := NewCategory("other")
		require.True(t, other.AttachChild(stats))

		assert.Equal(t, "other.stats.daily", daily.FullName())
		assert.Empty(t, app.Children())
		assert.Equal(t, other, stats.Parent())
	})

	t.Run("Detach", func(t *testing.T) {
		stats.Detach()
		assert.Nil(t, stats.Parent())
		assert.Equal(t, "stats.daily", daily.FullName())
	})

	t.Run("NormalizedLeaf", func(t *testing.T) {
		assert.Equal(t, "user_profile", NewCategory("userProfile").LeafName())
	})
}

func TestCategoryNesting(t *testing.T) {
	maxNesting := CurrentConfig().MaxNesting

	t.Run("WithinBound", func(t *testing.T) {
		cats := chain(maxNesting)
		assert.Equal(t, maxNesting, cats[maxNesting-1].Depth())
	})

	t.Run("Overflow", func(t *testing.T) {
		cats := chain(maxNesting)
		extra := NewCategory("extra")
		assert.False(t, cats[maxNesting-1].AttachChild(extra))
		assert.Nil(t, extra.Parent())
		assert.Len(t, cats[maxNesting-1].Children(), 0)
	})

	t.Run("SubtreeOverflow", func(t *testing.T) {
		top := chain(maxNesting - 1)
		sub := chain(2)
		assert.False(t, top[len(top)-1].AttachChild(sub[0]))
	})

	t.Run("Cycle", func(t *testing.T) {
		cats := chain(3)
		assert.False(t, cats[2].AttachChild(cats[0]))
		assert.False(t, cats[0].AttachChild(cats[0]))
		assert.Equal(t, "a.b.c", cats[2].FullName())
	})
}

func TestCategoryDescendants(t *testing.T) {
	root := NewCategory("root")
	a := NewCategory("a")
	b := NewCategory("b")
	a1 := NewCategory("a1")
	require.True(t, root.AttachChild(a))
	require.True(t, root.AttachChild(b))
	require.True(t, a.AttachChild(a1))

	var visited []string
	root.Descendants(func(c *Category) {
		visited = append(visited, c.FullName())
	})
	assert.Equal(t, []string{"root", "root.a", "root.a.a1", "root.b"}, visited)
}

func TestCategorySettings(t *testing.T) {
	ctx := context.Background()

	first, err := New(uniqueName(t), Options{})
	require.NoError(t, err)
	second, err := New(uniqueName(t), Options{})
	require.NoError(t, err)

	root := NewCategory("audio")
	child := NewCategory("music")
	require.True(t, root.AttachChild(child))

	volume := NewValue("", 0)
	require.NoError(t, child.Bind(ctx, "volume", volume))
	assert.Equal(t, "audio.music.volume", volume.Key())
	assert.Nil(t, volume.Settings())

	t.Run("Cascade", func(t *testing.T) {
		require.NoError(t, first.RegisterCategory(ctx, root))
		assert.Equal(t, first, child.Settings())
		assert.Equal(t, first, volume.Settings())
		assert.Len(t, first.Observers("audio.music.volume"), 1)
	})

	t.Run("Reassign", func(t *testing.T) {
		require.NoError(t, first.SetValue(ctx, "audio.music.volume", 7))
		require.NoError(t, second.RegisterCategory(ctx, root))

		assert.Equal(t, second, child.Settings())
		assert.Equal(t, second, volume.Settings())
		assert.Empty(t, first.Observers("audio.music.volume"))
		assert.Len(t, second.Observers("audio.music.volume"), 1)
	})

	t.Run("RekeyOnReparent", func(t *testing.T) {
		require.NoError(t, second.SetValue(ctx, "audio.music.volume", 3))
		changes := len(mustChanges(t, second))

		prefs := NewCategory("prefs")
		require.NoError(t, second.RegisterCategory(ctx, prefs))
		require.True(t, prefs.AttachChild(root))

		assert.Equal(t, "prefs.audio.music.volume", volume.Key())
		assert.Len(t, second.Observers("prefs.audio.music.volume"), 1)

		v, ok, err := second.GetValue(ctx, "prefs.audio.music.volume")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 3, v)

		// rekeying happens in boot context and is not recorded
		assert.Len(t, mustChanges(t, second), changes)
	})

	t.Run("Unbind", func(t *testing.T) {
		assert.True(t, child.Unbind(volume.ID()))
		assert.Empty(t, second.Observers(volume.Key()))
		assert.False(t, child.Unbind(volume.ID()))
	})
}

func TestOrphanCategory(t *testing.T) {
	s, err := New(uniqueName(t), Options{})
	require.NoError(t, err)

	orphan := s.OrphanCategory(context.Background())
	assert.Equal(t, "_other_", orphan.FullName())
	assert.Same(t, orphan, s.OrphanCategory(context.Background()))
	assert.Equal(t, s, orphan.Settings())
}
