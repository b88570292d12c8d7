package hooks

import (
	"fmt"
	"io/fs"
	"log"
	"strings"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// lifecycleDispatch routes a compiled level script to the right handler.
// Scripts declare onActivate and onDeactivate as top-level closures.
const lifecycleDispatch = `
if __phase == "activate" {
	onActivate(__level)
} else if __phase == "deactivate" {
	onDeactivate(__level)
}
`

// Runner executes per-level tengo lifecycle scripts. Scripts compile once
// and re-run as clones, so activations never pay the compile twice. A
// script error logs and never fails the transition that triggered it.
type Runner struct {
	content fs.FS

	mu       sync.Mutex
	bindings map[string]string
	compiled map[string]*tengo.Compiled
}

func NewRunner(content fs.FS) *Runner {
	return &Runner{
		content:  content,
		bindings: make(map[string]string),
		compiled: make(map[string]*tengo.Compiled),
	}
}

// Bind associates a level name with a script path on the content FS.
func (r *Runner) Bind(level, scriptPath string) {
	if level == "" || scriptPath == "" {
		return
	}
	r.mu.Lock()
	r.bindings[level] = scriptPath
	r.mu.Unlock()
}

// LevelActivated runs the level's onActivate hook, if bound.
func (r *Runner) LevelActivated(name string) {
	r.run(name, "activate")
}

// LevelDeactivated runs the level's onDeactivate hook, if bound.
func (r *Runner) LevelDeactivated(name string) {
	r.run(name, "deactivate")
}

func (r *Runner) run(level, phase string) {
	r.mu.Lock()
	path, ok := r.bindings[level]
	r.mu.Unlock()
	if !ok {
		return
	}

	compiled, err := r.compile(level, path)
	if err != nil {
		log.Printf("hooks: level %s: %v", level, err)
		return
	}

	c := compiled.Clone()
	if err := c.Set("__phase", phase); err != nil {
		log.Printf("hooks: level %s: set phase: %v", level, err)
		return
	}
	if err := c.Set("__level", level); err != nil {
		log.Printf("hooks: level %s: set level: %v", level, err)
		return
	}
	if err := c.Run(); err != nil {
		log.Printf("hooks: level %s: %s hook: %v", level, phase, err)
	}
}

func (r *Runner) compile(level, path string) (*tengo.Compiled, error) {
	r.mu.Lock()
	if c, ok := r.compiled[level]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	src, err := fs.ReadFile(r.content, path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}

	script := tengo.NewScript(append(src, []byte(lifecycleDispatch)...))
	script.SetImports(stdlib.GetModuleMap("fmt", "math", "text"))
	if err := script.Add("__phase", ""); err != nil {
		return nil, err
	}
	if err := script.Add("__level", ""); err != nil {
		return nil, err
	}
	if err := script.Add("log", logFunc(level)); err != nil {
		return nil, err
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile script %s: %w", path, err)
	}

	r.mu.Lock()
	r.compiled[level] = compiled
	r.mu.Unlock()
	return compiled, nil
}

// Invalidate drops compiled scripts so edits land on the next hook (dev
// hot reload).
func (r *Runner) Invalidate() {
	r.mu.Lock()
	r.compiled = make(map[string]*tengo.Compiled)
	r.mu.Unlock()
}

func logFunc(level string) *tengo.UserFunction {
	return &tengo.UserFunction{
		Name: "log",
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			parts := make([]string, 0, len(args))
			for _, arg := range args {
				if s, ok := tengo.ToString(arg); ok {
					parts = append(parts, s)
				}
			}
			log.Printf("hooks: %s: %s", level, strings.Join(parts, " "))
			return tengo.UndefinedValue, nil
		},
	}
}
