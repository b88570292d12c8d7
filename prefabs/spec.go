package prefabs

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec describes one spawnable entity type. Segment content references
// prefabs by name; the loader resolves them at parse time so a bad prefab
// fails the segment load instead of panicking mid-apply.
type Spec struct {
	Name   string     `yaml:"name"`
	Sprite SpriteSpec `yaml:"sprite"`
	// Body, when present, registers a static collision box for the entity.
	Body *BodySpec `yaml:"body,omitempty"`
	// Persistent entities are re-homed into the orchestrator's permanent
	// container at spawn and survive level teardown.
	Persistent bool `yaml:"persistent,omitempty"`
}

type SpriteSpec struct {
	W     float64 `yaml:"w"`
	H     float64 `yaml:"h"`
	Color string  `yaml:"color"`
	Layer int     `yaml:"layer"`
}

type BodySpec struct {
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

// LoadSpec reads and unmarshals a yaml spec file by name.
func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// Cache resolves prefab specs by type name and memoizes them. A memoized
// spec is re-read when its on-disk copy is newer than the memo, so edits
// land without a full Invalidate. Invalidate drops everything (dev hot
// reload, where scripts change too).
type Cache struct {
	mu     sync.Mutex
	byName map[string]cacheEntry
}

type cacheEntry struct {
	spec     Spec
	loadedAt time.Time
}

func NewCache() *Cache {
	return &Cache{byName: make(map[string]cacheEntry)}
}

// Resolve returns the spec for the prefab type name.
func (c *Cache) Resolve(name string) (Spec, error) {
	if name == "" {
		return Spec{}, fmt.Errorf("prefabs: resolve: empty prefab name")
	}
	c.mu.Lock()
	if e, ok := c.byName[name]; ok {
		c.mu.Unlock()
		if mt, onDisk := ModTime(name + ".yaml"); !onDisk || !mt.After(e.loadedAt) {
			return e.spec, nil
		}
	} else {
		c.mu.Unlock()
	}

	spec, err := LoadSpec[Spec](name + ".yaml")
	if err != nil {
		return Spec{}, err
	}
	if spec.Name == "" {
		spec.Name = name
	}

	c.mu.Lock()
	c.byName[name] = cacheEntry{spec: spec, loadedAt: time.Now()}
	c.mu.Unlock()
	return spec, nil
}

// Invalidate clears the memoized specs.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.byName = make(map[string]cacheEntry)
	c.mu.Unlock()
}
