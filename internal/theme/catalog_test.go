package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/portfolio/models"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "classic", c.Default().ID)
	assert.Len(t, c.List(), 4)

	_, ok := c.Get("emerald")
	assert.True(t, ok)
	_, ok = c.Get("neon")
	assert.False(t, ok)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing default": "default: nope\nthemes:\n  - {id: a, scope: full, primary: '#000000', accent: '#000000', background: '#000000', text: '#000000'}\n",
		"bad color":       "default: a\nthemes:\n  - {id: a, scope: full, primary: 'red', accent: '#000000', background: '#000000', text: '#000000'}\n",
		"bad scope":       "default: a\nthemes:\n  - {id: a, scope: half, primary: '#000000', accent: '#000000', background: '#000000', text: '#000000'}\n",
		"cover default":   "default: a\nthemes:\n  - {id: a, scope: cover, primary: '#000000', accent: '#000000', background: '#000000', text: '#000000'}\n",
		"duplicate":       "default: a\nthemes:\n  - {id: a, scope: full, primary: '#000000', accent: '#000000', background: '#000000', text: '#000000'}\n  - {id: a, scope: full, primary: '#000000', accent: '#000000', background: '#000000', text: '#000000'}\n",
		"not yaml":        "themes: [",
		"font injection":  "default: a\nthemes:\n  - {id: a, scope: full, primary: '#000000', accent: '#000000', background: '#000000', text: '#000000', font: 'x; } body { display: none'}\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestThemeSelection(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	t.Run("cover uses document theme even when cover scoped", func(t *testing.T) {
		assert.Equal(t, "midnight-cover", c.ForCover("midnight-cover").ID)
	})
	t.Run("cover falls back to default", func(t *testing.T) {
		assert.Equal(t, "classic", c.ForCover("").ID)
	})
	t.Run("instance theme wins on inner pages", func(t *testing.T) {
		assert.Equal(t, "sand", c.ForPage("emerald", "sand").ID)
	})
	t.Run("cover scoped document theme does not style inner pages", func(t *testing.T) {
		assert.Equal(t, "classic", c.ForPage("midnight-cover", "").ID)
	})
	t.Run("cover scoped instance theme falls back to document theme", func(t *testing.T) {
		got := c.ForPage("emerald", "midnight-cover")
		assert.Equal(t, "emerald", got.ID)
		assert.Equal(t, models.ThemeScopeFull, got.Scope)
	})
}
