package segment

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/levelstream/ecs"
	"github.com/milk9111/levelstream/ecs/component"
	"github.com/milk9111/levelstream/prefabs"
	"github.com/milk9111/levelstream/scene"
)

// Config wires a Loader. World, Content, and Prefabs are required; Space
// and OnLightsChanged are optional.
type Config struct {
	World   *ecs.World
	Space   *Space
	Content fs.FS
	Prefabs *prefabs.Cache
	// Container is the permanent container's segment name; persistent
	// entities are re-homed into it at spawn.
	Container string
	// OnLightsChanged fires after an apply or teardown changed the set of
	// static lights in the working set.
	OnLightsChanged func()
}

// Loader streams segment content into and out of the shared ECS working
// set. Parsing and plan building happen on background goroutines; every
// world mutation is deferred to the apply queue, which the game goroutine
// drains via Pump each frame.
type Loader struct {
	world     *ecs.World
	space     *Space
	content   fs.FS
	prefabs   *prefabs.Cache
	container string
	onLights  func()

	mu           sync.Mutex
	loaded       map[string]*loadedSegment
	pendingLoads map[string]*op
	queue        []func()
	foreground   string
}

type loadedSegment struct {
	entities []ecs.Entity
	shapes   []*cp.Shape
	lights   int
}

// plan is a fully resolved segment spec, ready to apply without further
// I/O or prefab lookups.
type plan struct {
	entities []plannedEntity
	lights   []plannedLight
}

type plannedEntity struct {
	spec       prefabs.Spec
	id         string
	x, y       float64
	persistent bool
}

type plannedLight struct {
	x, y  float64
	light component.Light
}

func NewLoader(cfg Config) (*Loader, error) {
	if cfg.World == nil {
		return nil, fmt.Errorf("segment: new loader: nil world")
	}
	if cfg.Content == nil {
		return nil, fmt.Errorf("segment: new loader: nil content FS")
	}
	if cfg.Prefabs == nil {
		return nil, fmt.Errorf("segment: new loader: nil prefab cache")
	}
	container := cfg.Container
	if container == "" {
		container = scene.DefaultPersistentContainer
	}
	return &Loader{
		world:        cfg.World,
		space:        cfg.Space,
		content:      cfg.Content,
		prefabs:      cfg.Prefabs,
		container:    container,
		onLights:     cfg.OnLightsChanged,
		loaded:       make(map[string]*loadedSegment),
		pendingLoads: make(map[string]*op),
	}, nil
}

// Pump drains the apply queue. Call it from the game goroutine once per
// frame, before anything reads the working set.
func (l *Loader) Pump() {
	l.mu.Lock()
	work := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, fn := range work {
		fn()
	}
}

func (l *Loader) enqueue(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
}

// BeginLoad starts loading a segment. A segment already present or
// already loading returns the existing completion.
func (l *Loader) BeginLoad(seg string) scene.Op {
	l.mu.Lock()
	if _, ok := l.loaded[seg]; ok {
		l.mu.Unlock()
		return completedOp(seg)
	}
	if o, ok := l.pendingLoads[seg]; ok {
		l.mu.Unlock()
		return o
	}
	o := newOp(seg)
	l.pendingLoads[seg] = o
	l.mu.Unlock()

	go l.runLoad(o)
	return o
}

func (l *Loader) runLoad(o *op) {
	data, err := fs.ReadFile(l.content, path.Join("segments", o.seg+".yaml"))
	if err != nil {
		l.failLoad(o, fmt.Errorf("segment: read %s: %w", o.seg, err))
		return
	}
	o.setProgress(0.4)

	spec, err := ParseSpec(data)
	if err != nil {
		l.failLoad(o, fmt.Errorf("segment: parse %s: %w", o.seg, err))
		return
	}
	pl, err := l.buildPlan(spec)
	if err != nil {
		l.failLoad(o, fmt.Errorf("segment: plan %s: %w", o.seg, err))
		return
	}
	o.setProgress(0.9)
	o.markReady()

	select {
	case <-o.allow:
	case <-o.cancel:
		l.mu.Lock()
		delete(l.pendingLoads, o.seg)
		l.mu.Unlock()
		o.finish(nil)
		return
	}

	l.enqueue(func() {
		ls := l.apply(o.seg, pl)
		l.mu.Lock()
		l.loaded[o.seg] = ls
		delete(l.pendingLoads, o.seg)
		l.mu.Unlock()
		o.setProgress(1)
		o.finish(nil)
		if ls.lights > 0 && l.onLights != nil {
			l.onLights()
		}
	})
}

func (l *Loader) failLoad(o *op, err error) {
	l.mu.Lock()
	delete(l.pendingLoads, o.seg)
	l.mu.Unlock()
	o.finish(err)
}

// buildPlan resolves every prefab reference up front.
func (l *Loader) buildPlan(spec *Spec) (*plan, error) {
	pl := &plan{}
	for _, ent := range spec.Entities {
		ps, err := l.prefabs.Resolve(ent.Prefab)
		if err != nil {
			return nil, err
		}
		persistent := ps.Persistent
		if ent.Persistent != nil {
			persistent = *ent.Persistent
		}
		pl.entities = append(pl.entities, plannedEntity{
			spec:       ps,
			id:         ent.ID,
			x:          ent.X,
			y:          ent.Y,
			persistent: persistent,
		})
	}
	for _, ls := range spec.Lights {
		pl.lights = append(pl.lights, plannedLight{
			x: ls.X,
			y: ls.Y,
			light: component.Light{
				Radius:    ls.Radius,
				Intensity: ls.Intensity,
				Color:     ParseHexColor(ls.Color),
			},
		})
	}
	return pl, nil
}

// apply spawns a plan into the working set. Runs on the game goroutine.
func (l *Loader) apply(seg string, pl *plan) *loadedSegment {
	ls := &loadedSegment{}
	for _, pe := range pl.entities {
		tag := seg
		if pe.persistent {
			tag = l.container
			if pe.id != "" && l.persistentExists(pe.id) {
				continue
			}
		}
		e := ecs.CreateEntity(l.world)
		_ = ecs.Add(l.world, e, component.TransformComponent, component.Transform{X: pe.x, Y: pe.y})
		_ = ecs.Add(l.world, e, component.SpriteComponent, component.Sprite{
			W:     pe.spec.Sprite.W,
			H:     pe.spec.Sprite.H,
			Color: ParseHexColor(pe.spec.Sprite.Color),
			Layer: pe.spec.Sprite.Layer,
		})
		_ = ecs.Add(l.world, e, component.SegmentTagComponent, component.SegmentTag{Segment: tag})
		if pe.persistent {
			_ = ecs.Add(l.world, e, component.PersistentComponent, component.Persistent{ID: pe.id})
		} else if pe.spec.Body != nil && l.space != nil {
			if shape := l.space.AddStaticBox(pe.x, pe.y, pe.spec.Body.W, pe.spec.Body.H); shape != nil {
				ls.shapes = append(ls.shapes, shape)
			}
		}
		ls.entities = append(ls.entities, e)
	}
	for _, pli := range pl.lights {
		e := ecs.CreateEntity(l.world)
		_ = ecs.Add(l.world, e, component.TransformComponent, component.Transform{X: pli.x, Y: pli.y})
		_ = ecs.Add(l.world, e, component.LightComponent, pli.light)
		_ = ecs.Add(l.world, e, component.SegmentTagComponent, component.SegmentTag{Segment: seg})
		ls.entities = append(ls.entities, e)
		ls.lights++
	}
	return ls
}

func (l *Loader) persistentExists(id string) bool {
	found := false
	ecs.ForEach(l.world, component.PersistentComponent, func(_ ecs.Entity, p *component.Persistent) {
		if p.ID == id {
			found = true
		}
	})
	return found
}

// BeginUnload starts removing a segment's contents from the working set.
func (l *Loader) BeginUnload(seg string) scene.Op {
	l.mu.Lock()
	if p, ok := l.pendingLoads[seg]; ok {
		l.mu.Unlock()
		// the load was parsed but never applied: discard it
		p.cancelNow()
		u := newOp(seg)
		go func() {
			<-p.done
			u.setProgress(1)
			u.finish(nil)
		}()
		return u
	}
	ls, ok := l.loaded[seg]
	if !ok {
		l.mu.Unlock()
		return completedOp(seg)
	}
	// claim now so a racing second unload is an idempotent no-op
	delete(l.loaded, seg)
	if l.foreground == seg {
		l.foreground = ""
	}
	l.mu.Unlock()

	u := newOp(seg)
	l.enqueue(func() {
		l.teardown(ls)
		u.setProgress(1)
		u.finish(nil)
		if ls.lights > 0 && l.onLights != nil {
			l.onLights()
		}
	})
	return u
}

// teardown destroys a segment's rooted entities and shapes. Entities
// flagged persistent survive regardless of tag. Runs on the game
// goroutine.
func (l *Loader) teardown(ls *loadedSegment) {
	for _, e := range ls.entities {
		if !ecs.IsAlive(l.world, e) {
			continue
		}
		if ecs.Has(l.world, e, component.PersistentComponent) {
			continue
		}
		ecs.DestroyEntity(l.world, e)
	}
	ls.entities = nil
	for _, shape := range ls.shapes {
		l.space.Remove(shape)
	}
	ls.shapes = nil
}

// Loaded reports whether the segment's contents are part of the working
// set.
func (l *Loader) Loaded(seg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[seg]
	return ok
}

// Segments returns the loaded segment names, sorted.
func (l *Loader) Segments() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.loaded))
	for seg := range l.loaded {
		out = append(out, seg)
	}
	sort.Strings(out)
	return out
}

// DestroyRooted tears down every non-persistent object rooted in the
// given segments, leaving the segments themselves loaded. It blocks until
// the game goroutine has pumped the teardown.
func (l *Loader) DestroyRooted(segments []string, exempt func(segment string) bool) {
	done := make(chan struct{})
	l.enqueue(func() {
		defer close(done)
		for _, seg := range segments {
			if exempt != nil && exempt(seg) {
				continue
			}
			l.mu.Lock()
			ls := l.loaded[seg]
			l.mu.Unlock()
			if ls == nil {
				continue
			}
			l.teardown(ls)
			if ls.lights > 0 {
				ls.lights = 0
				if l.onLights != nil {
					l.onLights()
				}
			}
		}
	})
	<-done
}

// SetForeground marks a loaded segment as the foreground context.
func (l *Loader) SetForeground(seg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.loaded[seg]; !ok {
		return fmt.Errorf("segment: set foreground %q: not loaded", seg)
	}
	l.foreground = seg
	return nil
}

// Foreground returns the current foreground segment, if any.
func (l *Loader) Foreground() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.foreground, l.foreground != ""
}

var _ scene.Loader = (*Loader)(nil)
