package segment

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec([]byte(groundSegment))
	require.NoError(t, err)
	assert.Equal(t, "s1", spec.Name)
	require.Len(t, spec.Entities, 1)
	assert.Equal(t, "platform", spec.Entities[0].Prefab)
	require.Len(t, spec.Lights, 1)
	assert.Equal(t, 1.5, spec.Lights[0].Intensity)
}

func TestParseSpecRejectsBadContent(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"not_yaml", `{{{`},
		{"entity_without_prefab", "name: s\nentities:\n  - x: 1\n    y: 2\n"},
		{"light_without_radius", "name: s\nlights:\n  - x: 1\n    y: 2\n    intensity: 1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSpec([]byte(tc.yaml))
			require.Error(t, err)
		})
	}
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0x88, B: 0x00, A: 0xff}, ParseHexColor("#ff8800"))
	assert.Equal(t, color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}, ParseHexColor("#000000"))

	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	assert.Equal(t, white, ParseHexColor(""))
	assert.Equal(t, white, ParseHexColor("ff8800"))
	assert.Equal(t, white, ParseHexColor("#zzzzzz"))
}
