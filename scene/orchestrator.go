package scene

import (
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/milk9111/levelstream/levels"
)

// DefaultBootstrap is the well-known segment expected to exist at process
// start. It is shed once a real level takes over, unless the active level
// lists it as one of its own segments.
const DefaultBootstrap = "bootstrap"

// DefaultPersistentContainer is the segment name of the orchestrator's
// permanent container.
const DefaultPersistentContainer = "persistent"

// Baker recomputes static lighting data for the current working set. The
// orchestrator runs at most one bake at a time and never while a level is
// activating.
type Baker interface {
	Bake() *Signal
}

// Hooks receives level lifecycle callbacks. Implementations must not call
// back into the orchestrator.
type Hooks interface {
	LevelActivated(name string)
	LevelDeactivated(name string)
}

// Config wires an Orchestrator. Loader and Registry are required.
type Config struct {
	Loader   Loader
	Registry Registry

	// PersistentContainer defaults to DefaultPersistentContainer.
	PersistentContainer string
	// Bootstrap defaults to DefaultBootstrap.
	Bootstrap string

	Baker Baker // optional
	Hooks Hooks // optional
}

// Registry resolves level names to definitions. *levels.Registry satisfies
// it.
type Registry interface {
	Lookup(name string) (levels.Def, bool)
}

// Orchestrator tracks the set of currently loaded levels and guarantees
// that at most one is active once a public call completes. It is the only
// writer of the tracked set; levels never discover or mutate siblings.
//
// All public operations return awaitable signals and never panic or
// return errors past this boundary: failures are logged and surfaced via
// Signal.Err.
type Orchestrator struct {
	loader    Loader
	registry  Registry
	guard     *PersistentGuard
	bootstrap string
	baker     Baker
	hooks     Hooks

	mu        sync.Mutex
	tracked   []*Level
	byName    map[string]*Level
	switching map[string]*Signal

	bakeMu     sync.Mutex
	bakeActive bool
	bakeDirty  bool

	closed chan struct{}
}

// one live instance per process; New enforces it so nothing needs a
// global accessor
var orchestratorLive atomic.Bool

// New builds the process's orchestrator. It fails if one is already live;
// Close releases the slot.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("scene: new orchestrator: nil loader")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("scene: new orchestrator: nil registry")
	}
	if !orchestratorLive.CompareAndSwap(false, true) {
		return nil, ErrOrchestratorLive
	}
	container := cfg.PersistentContainer
	if container == "" {
		container = DefaultPersistentContainer
	}
	bootstrap := cfg.Bootstrap
	if bootstrap == "" {
		bootstrap = DefaultBootstrap
	}
	return &Orchestrator{
		loader:    cfg.Loader,
		registry:  cfg.Registry,
		guard:     NewPersistentGuard(container),
		bootstrap: bootstrap,
		baker:     cfg.Baker,
		hooks:     cfg.Hooks,
		byName:    make(map[string]*Level),
		switching: make(map[string]*Signal),
		closed:    make(chan struct{}),
	}, nil
}

// Close releases the live-instance slot. It does not unload anything;
// call UnloadAll first if teardown is wanted.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	select {
	case <-o.closed:
	default:
		close(o.closed)
	}
	o.mu.Unlock()
	orchestratorLive.Store(false)
}

// Guard returns the persistent-object guard.
func (o *Orchestrator) Guard() *PersistentGuard {
	return o.guard
}

// Tracked returns the names of levels currently in the tracked set, in
// tracking order.
func (o *Orchestrator) Tracked() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.tracked))
	for _, lvl := range o.tracked {
		out = append(out, lvl.Name())
	}
	return out
}

// Active returns the name of the active level, if any.
func (o *Orchestrator) Active() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, lvl := range o.tracked {
		if lvl.State() == StateActive {
			return lvl.Name(), true
		}
	}
	return "", false
}

// LevelState returns a tracked level's state. Untracked levels report
// StateNone.
func (o *Orchestrator) LevelState(name string) State {
	o.mu.Lock()
	lvl := o.byName[name]
	o.mu.Unlock()
	if lvl == nil {
		return StateNone
	}
	return lvl.State()
}

// Progress reports the named level's in-flight transition progress.
func (o *Orchestrator) Progress(name string) float64 {
	o.mu.Lock()
	lvl := o.byName[name]
	o.mu.Unlock()
	if lvl == nil {
		return 0
	}
	return lvl.Progress()
}

// LoadLevel resolves name and begins loading it into the tracked set. If
// activateOnLoad is set the call chains into ActivateAndUnloadOthers once
// the load completes.
func (o *Orchestrator) LoadLevel(name string, activateOnLoad bool) *Signal {
	def, ok := o.registry.Lookup(name)
	if !ok {
		err := fmt.Errorf("scene: load level %q: %w", name, ErrUnknownLevel)
		log.Print(err)
		return Failed(err)
	}

	o.mu.Lock()
	lvl := o.byName[name]
	if lvl != nil && lvl.State() != StateNone {
		state := lvl.State()
		o.mu.Unlock()
		if activateOnLoad && state == StateLoaded {
			return o.ActivateAndUnloadOthers(name)
		}
		log.Printf("scene: load level %q: already %s, skipping", name, state)
		return Completed()
	}
	if lvl == nil {
		lvl = newLevel(def, o.loader, o.guard, o.bootstrap)
		o.byName[name] = lvl
	}
	if !slices.Contains(o.tracked, lvl) {
		o.tracked = append(o.tracked, lvl)
	}
	o.mu.Unlock()

	sig := lvl.Load()
	if !activateOnLoad {
		return sig
	}

	out := NewSignal()
	go func() {
		<-sig.Done()
		if err := sig.Err(); err != nil {
			out.Complete(err)
			return
		}
		chained := o.ActivateAndUnloadOthers(name)
		<-chained.Done()
		out.Complete(chained.Err())
	}()
	return out
}

// ActivateAndUnloadOthers makes name the single active level: it drives
// the target through load and activation, deactivates every other tracked
// level before the target's activation is awaited to completion, and only
// unloads superseded levels once the target is already active. Calling it
// again for the same target while a switch is in flight folds into the
// same signal.
func (o *Orchestrator) ActivateAndUnloadOthers(name string) *Signal {
	if _, ok := o.registry.Lookup(name); !ok {
		err := fmt.Errorf("scene: activate %q: %w", name, ErrUnknownLevel)
		log.Print(err)
		return Failed(err)
	}

	o.mu.Lock()
	if sig, ok := o.switching[name]; ok {
		o.mu.Unlock()
		return sig
	}
	sig := NewSignal()
	o.switching[name] = sig
	o.mu.Unlock()

	go o.switchTo(name, sig)
	return sig
}

func (o *Orchestrator) switchTo(name string, sig *Signal) {
	defer func() {
		o.mu.Lock()
		delete(o.switching, name)
		o.mu.Unlock()
	}()

	target, err := o.targetReady(name)
	if err != nil {
		log.Print(err)
		sig.Complete(err)
		return
	}
	if target == nil {
		// already active: idempotent no-op
		sig.Complete(nil)
		return
	}

	// Quiesce and deactivate every other tracked level, most recently
	// tracked first, before the target activation is awaited.
	others := o.othersOf(name)
	for _, lvl := range others {
		lvl.awaitQuiescent()
		if lvl.State() == StateLoaded {
			// drive a half-loaded level forward so it reaches a state it
			// can be torn down from
			<-lvl.Activate().Done()
		}
		if lvl.State() == StateActive {
			<-lvl.Deactivate().Done()
			if o.hooks != nil {
				o.hooks.LevelDeactivated(lvl.Name())
			}
		}
	}

	act := target.Activate()
	<-act.Done()
	if err := act.Err(); err != nil {
		sig.Complete(fmt.Errorf("scene: activate %q: %w", name, err))
		return
	}
	if o.hooks != nil {
		o.hooks.LevelActivated(name)
	}

	// Superseded levels are unloaded only now that the target is active,
	// so shared-but-distinct segments are never torn down mid-activation.
	for _, lvl := range others {
		switch lvl.State() {
		case StateDeactivated, StateLoaded:
			u := lvl.Unload()
			<-u.Done()
			if u.Err() == nil {
				o.untrack(lvl)
			}
		case StateNone:
			o.untrack(lvl)
		}
	}

	o.shedBootstrap(target)
	sig.Complete(nil)
}

// targetReady brings the switch target to the Loaded state, returning nil
// when the target is already active.
func (o *Orchestrator) targetReady(name string) (*Level, error) {
	def, _ := o.registry.Lookup(name)

	o.mu.Lock()
	lvl := o.byName[name]
	if lvl == nil {
		lvl = newLevel(def, o.loader, o.guard, o.bootstrap)
		o.byName[name] = lvl
	}
	o.mu.Unlock()

	for {
		switch lvl.State() {
		case StateActive:
			return nil, nil
		case StateActivating:
			// fold into the in-flight activation
			lvl.awaitQuiescent()
		case StateLoading:
			lvl.awaitQuiescent()
		case StateLoaded:
			o.track(lvl)
			return lvl, nil
		case StateNone:
			o.track(lvl)
			load := lvl.Load()
			<-load.Done()
			if err := load.Err(); err != nil {
				return nil, fmt.Errorf("scene: activate %q: %w", name, err)
			}
		default:
			// Deactivated or Unloading: the request contradicts an ongoing
			// teardown; refuse rather than guess.
			return nil, fmt.Errorf("scene: activate %q: %w: state %s", name, ErrStateConflict, lvl.State())
		}
	}
}

// UnloadAll deactivates and unloads every tracked level and clears the
// tracked set.
func (o *Orchestrator) UnloadAll() *Signal {
	sig := NewSignal()
	go func() {
		o.mu.Lock()
		tracked := append([]*Level(nil), o.tracked...)
		o.mu.Unlock()

		var firstErr error
		for i := len(tracked) - 1; i >= 0; i-- {
			lvl := tracked[i]
			lvl.awaitQuiescent()
			if lvl.State() == StateActive {
				<-lvl.Deactivate().Done()
				if o.hooks != nil {
					o.hooks.LevelDeactivated(lvl.Name())
				}
			}
			switch lvl.State() {
			case StateDeactivated, StateLoaded:
				u := lvl.Unload()
				<-u.Done()
				if err := u.Err(); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					// still holds segments; stays tracked so a re-issued
					// UnloadAll retries the unload
					continue
				}
			}
			o.untrack(lvl)
		}
		sig.Complete(firstErr)
	}()
	return sig
}

// shedBootstrap unloads the bootstrap segment once a real level has taken
// over, unless the active level owns it.
func (o *Orchestrator) shedBootstrap(target *Level) {
	if !o.loader.Loaded(o.bootstrap) {
		return
	}
	if slices.Contains(target.Segments(), o.bootstrap) {
		return
	}
	op := o.loader.BeginUnload(o.bootstrap)
	<-op.Done()
	if err := op.Err(); err != nil {
		log.Printf("scene: unload bootstrap segment: %v", err)
	}
}

func (o *Orchestrator) track(lvl *Level) {
	o.mu.Lock()
	if !slices.Contains(o.tracked, lvl) {
		o.tracked = append(o.tracked, lvl)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(lvl *Level) {
	o.mu.Lock()
	o.tracked = slices.DeleteFunc(o.tracked, func(l *Level) bool { return l == lvl })
	o.mu.Unlock()
}

// othersOf returns every tracked level except name, most recently tracked
// first.
func (o *Orchestrator) othersOf(name string) []*Level {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*Level
	for i := len(o.tracked) - 1; i >= 0; i-- {
		if o.tracked[i].Name() != name {
			out = append(out, o.tracked[i])
		}
	}
	return out
}

// MarkLightingDirty schedules a static-light rebake. At most one bake runs
// at a time; a bake never starts while any tracked level is activating,
// and dirt arriving mid-bake coalesces into a single follow-up bake.
func (o *Orchestrator) MarkLightingDirty() {
	if o.baker == nil {
		return
	}
	o.bakeMu.Lock()
	if o.bakeActive {
		o.bakeDirty = true
		o.bakeMu.Unlock()
		return
	}
	o.bakeActive = true
	o.bakeMu.Unlock()
	go o.runBakes()
}

func (o *Orchestrator) runBakes() {
	for {
		if !o.waitNoActivations() {
			o.bakeMu.Lock()
			o.bakeActive = false
			o.bakeDirty = false
			o.bakeMu.Unlock()
			return
		}
		bake := o.baker.Bake()
		<-bake.Done()
		if err := bake.Err(); err != nil {
			log.Printf("scene: lighting bake: %v", err)
		}

		o.bakeMu.Lock()
		if o.bakeDirty {
			o.bakeDirty = false
			o.bakeMu.Unlock()
			continue
		}
		o.bakeActive = false
		o.bakeMu.Unlock()
		return
	}
}

// waitNoActivations blocks until no tracked level is activating. It
// returns false if the orchestrator closed while waiting.
func (o *Orchestrator) waitNoActivations() bool {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		o.mu.Lock()
		activating := false
		for _, lvl := range o.tracked {
			if lvl.State() == StateActivating {
				activating = true
				break
			}
		}
		o.mu.Unlock()
		if !activating {
			return true
		}
		select {
		case <-ticker.C:
		case <-o.closed:
			return false
		}
	}
}
