package segment

import (
	"fmt"
	"image/color"

	"gopkg.in/yaml.v3"
)

// Spec is one authored segment content file: the entities and static
// lights the segment contributes to the working set.
type Spec struct {
	Name     string       `yaml:"name"`
	Entities []EntitySpec `yaml:"entities"`
	Lights   []LightSpec  `yaml:"lights,omitempty"`
}

type EntitySpec struct {
	Prefab string  `yaml:"prefab"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	// ID dedupes persistent entities across reloads: a persistent entity
	// whose ID already exists in the working set is not spawned again.
	ID string `yaml:"id,omitempty"`
	// Persistent overrides the prefab's persistent flag when set.
	Persistent *bool `yaml:"persistent,omitempty"`
}

type LightSpec struct {
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Radius    float64 `yaml:"radius"`
	Intensity float64 `yaml:"intensity"`
	Color     string  `yaml:"color"`
}

// ParseSpec unmarshals and validates a segment spec.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("segment: unmarshal spec: %w", err)
	}
	for i, ent := range spec.Entities {
		if ent.Prefab == "" {
			return nil, fmt.Errorf("segment: spec %q: entity %d has no prefab", spec.Name, i)
		}
	}
	for i, l := range spec.Lights {
		if l.Radius <= 0 {
			return nil, fmt.Errorf("segment: spec %q: light %d has non-positive radius", spec.Name, i)
		}
	}
	return &spec, nil
}

// ParseHexColor parses "#rrggbb". It returns opaque white if the parse
// fails so content typos stay visible instead of invisible.
func ParseHexColor(s string) color.NRGBA {
	c := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	if len(s) == 7 && s[0] == '#' {
		var r, g, b uint32
		if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b); err == nil {
			c.R = uint8(r)
			c.G = uint8(g)
			c.B = uint8(b)
		}
	}
	return c
}
