// Command levelcheck lints authored content: the level registry, segment
// specs, prefab references, and script bindings. It exits non-zero when
// anything would fail to stream at runtime.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/milk9111/levelstream/levels"
	"github.com/milk9111/levelstream/prefabs"
	"github.com/milk9111/levelstream/segment"
)

func main() {
	contentDir := flag.String("content", "", "content directory to lint instead of the embedded content")
	flag.Parse()

	content := levels.Content()
	if *contentDir != "" {
		c, err := levels.DirContent(*contentDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "levelcheck: open content dir %s: %v\n", *contentDir, err)
			os.Exit(1)
		}
		content = c
	}

	findings := lint(content)
	for _, f := range findings {
		fmt.Fprintln(os.Stderr, "levelcheck:", f)
	}
	if len(findings) > 0 {
		fmt.Fprintf(os.Stderr, "levelcheck: %d finding(s)\n", len(findings))
		os.Exit(1)
	}
	fmt.Println("levelcheck: ok")
}

func lint(content fs.FS) []string {
	var findings []string
	report := func(format string, args ...any) {
		findings = append(findings, fmt.Sprintf(format, args...))
	}

	registry, err := levels.LoadRegistry(content, levels.RegistryPath)
	if err != nil {
		return []string{err.Error()}
	}

	cache := prefabs.NewCache()
	checkedSegments := make(map[string]bool)
	persistentIDs := make(map[string]string)

	for _, name := range registry.Names() {
		def, _ := registry.Lookup(name)

		if def.Script != "" {
			if _, err := fs.Stat(content, def.Script); err != nil {
				report("level %s: script %s: %v", name, def.Script, err)
			}
		}

		for _, seg := range def.Segments {
			if checkedSegments[seg] {
				continue
			}
			checkedSegments[seg] = true
			lintSegment(content, cache, seg, persistentIDs, report)
		}
	}

	// the well-known segments must exist even though no level lists them
	for _, seg := range []string{"bootstrap", "persistent"} {
		if !checkedSegments[seg] {
			lintSegment(content, cache, seg, persistentIDs, report)
		}
	}

	return findings
}

func lintSegment(content fs.FS, cache *prefabs.Cache, seg string, persistentIDs map[string]string, report func(string, ...any)) {
	data, err := fs.ReadFile(content, path.Join("segments", seg+".yaml"))
	if err != nil {
		report("segment %s: %v", seg, err)
		return
	}
	spec, err := segment.ParseSpec(data)
	if err != nil {
		report("segment %s: %v", seg, err)
		return
	}

	for i, ent := range spec.Entities {
		ps, err := cache.Resolve(ent.Prefab)
		if err != nil {
			report("segment %s: entity %d: %v", seg, i, err)
			continue
		}
		persistent := ps.Persistent
		if ent.Persistent != nil {
			persistent = *ent.Persistent
		}
		if persistent && ent.ID != "" {
			if other, ok := persistentIDs[ent.ID]; ok && other != seg {
				report("segment %s: persistent id %q also declared in segment %s", seg, ent.ID, other)
			}
			persistentIDs[ent.ID] = seg
		}
	}
	for i, l := range spec.Lights {
		if l.Intensity <= 0 {
			report("segment %s: light %d: intensity %v must be positive", seg, i, l.Intensity)
		}
	}
}
