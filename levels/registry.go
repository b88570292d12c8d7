package levels

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// Def is one authored level definition: a named, ordered bundle of
// resource segments. Order is load order, not significance order.
type Def struct {
	Name     string   `yaml:"name"`
	Segments []string `yaml:"segments"`
	// ActiveIndex designates which segment becomes the foreground context
	// once the level is active; -1 means none.
	ActiveIndex int `yaml:"active_index"`
	// Script optionally names a tengo script on the content FS with
	// onActivate/onDeactivate hooks.
	Script string `yaml:"script,omitempty"`
}

type registryFile struct {
	Levels []Def `yaml:"levels"`
}

// Registry is the static catalog of all known level definitions, consumed
// read-only.
type Registry struct {
	defs   []Def
	byName map[string]int
}

// LoadRegistry reads and validates a registry file from fsys.
func LoadRegistry(fsys fs.FS, path string) (*Registry, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("levels: read registry %s: %w", path, err)
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a registry from raw yaml.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("levels: unmarshal registry: %w", err)
	}
	r := &Registry{byName: make(map[string]int, len(file.Levels))}
	for _, def := range file.Levels {
		if err := r.add(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(def Def) error {
	if def.Name == "" {
		return fmt.Errorf("levels: definition with empty name")
	}
	if _, ok := r.byName[def.Name]; ok {
		return fmt.Errorf("levels: duplicate level %q", def.Name)
	}
	if len(def.Segments) == 0 {
		return fmt.Errorf("levels: level %q has no segments", def.Name)
	}
	seen := make(map[string]struct{}, len(def.Segments))
	for _, seg := range def.Segments {
		if seg == "" {
			return fmt.Errorf("levels: level %q has an empty segment name", def.Name)
		}
		if _, ok := seen[seg]; ok {
			return fmt.Errorf("levels: level %q lists segment %q twice", def.Name, seg)
		}
		seen[seg] = struct{}{}
	}
	if def.ActiveIndex < -1 || def.ActiveIndex >= len(def.Segments) {
		return fmt.Errorf("levels: level %q active_index %d out of range", def.Name, def.ActiveIndex)
	}
	r.byName[def.Name] = len(r.defs)
	r.defs = append(r.defs, def)
	return nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Def, bool) {
	if r == nil {
		return Def{}, false
	}
	i, ok := r.byName[name]
	if !ok {
		return Def{}, false
	}
	return r.defs[i], true
}

// Find returns the first definition matching pred, in authoring order.
func (r *Registry) Find(pred func(Def) bool) (Def, bool) {
	if r == nil || pred == nil {
		return Def{}, false
	}
	for _, def := range r.defs {
		if pred(def) {
			return def, true
		}
	}
	return Def{}, false
}

// Names returns every level name in authoring order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.defs))
	for i, def := range r.defs {
		out[i] = def.Name
	}
	return out
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.defs)
}
