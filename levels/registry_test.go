package levels

import (
	"io/fs"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRegistry = `
levels:
  - name: forest
    segments: [forest_ground, forest_props]
    active_index: 0
    script: scripts/forest.tengo
  - name: summit
    segments: [summit_ground]
    active_index: -1
`

func TestParseRegistry(t *testing.T) {
	r, err := ParseRegistry([]byte(validRegistry))
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"forest", "summit"}, r.Names())

	def, ok := r.Lookup("forest")
	require.True(t, ok)
	assert.Equal(t, []string{"forest_ground", "forest_props"}, def.Segments)
	assert.Equal(t, 0, def.ActiveIndex)
	assert.Equal(t, "scripts/forest.tengo", def.Script)

	def, ok = r.Lookup("summit")
	require.True(t, ok)
	assert.Equal(t, -1, def.ActiveIndex)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
}

func TestParseRegistryRejectsBadContent(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"not_yaml", `{{{{`},
		{"empty_name", "levels:\n  - name: \"\"\n    segments: [a]\n"},
		{"duplicate_name", "levels:\n  - name: a\n    segments: [s1]\n  - name: a\n    segments: [s2]\n"},
		{"no_segments", "levels:\n  - name: a\n    segments: []\n"},
		{"empty_segment", "levels:\n  - name: a\n    segments: [\"\"]\n"},
		{"duplicate_segment", "levels:\n  - name: a\n    segments: [s1, s1]\n"},
		{"active_index_too_high", "levels:\n  - name: a\n    segments: [s1]\n    active_index: 1\n"},
		{"active_index_too_low", "levels:\n  - name: a\n    segments: [s1]\n    active_index: -2\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tc.yaml))
			require.Error(t, err)
		})
	}
}

func TestRegistryFind(t *testing.T) {
	r, err := ParseRegistry([]byte(validRegistry))
	require.NoError(t, err)

	def, ok := r.Find(func(d Def) bool { return d.ActiveIndex == -1 })
	require.True(t, ok)
	assert.Equal(t, "summit", def.Name)

	_, ok = r.Find(func(d Def) bool { return len(d.Segments) > 5 })
	assert.False(t, ok)
}

func TestEmbeddedContentLoads(t *testing.T) {
	r, err := LoadRegistry(Content(), RegistryPath)
	require.NoError(t, err)
	require.NotZero(t, r.Len())

	// every embedded level's segments and script must exist on the FS
	for _, name := range r.Names() {
		def, ok := r.Lookup(name)
		require.True(t, ok)
		for _, seg := range def.Segments {
			_, err := fs.Stat(Content(), path.Join("segments", seg+".yaml"))
			assert.NoError(t, err, "level %s segment %s", name, seg)
		}
		if def.Script != "" {
			_, err := fs.Stat(Content(), def.Script)
			assert.NoError(t, err, "level %s script", name)
		}
	}
}
