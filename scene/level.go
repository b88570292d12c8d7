package scene

import (
	"fmt"
	"log"
	"sync"

	"github.com/milk9111/levelstream/levels"
)

// Level drives one level definition's segment set through the loader. A
// level runs at most one transition at a time; each transition method
// returns the transition's completion signal, and re-issuing an in-flight
// transition returns the same signal instead of starting a duplicate.
//
// Calls from an incompatible state log and return an already-completed
// signal carrying ErrStateConflict, so redundant UI-trigger races degrade
// to harmless no-ops.
type Level struct {
	def       levels.Def
	loader    Loader
	guard     *PersistentGuard
	bootstrap string

	mu      sync.Mutex
	state   State
	pending []Op
	// held carries ready-but-unfinalized load ops from Load to Activate.
	held   []Op
	signal *Signal
}

func newLevel(def levels.Def, loader Loader, guard *PersistentGuard, bootstrap string) *Level {
	return &Level{
		def:       def,
		loader:    loader,
		guard:     guard,
		bootstrap: bootstrap,
		signal:    Completed(),
	}
}

// Name returns the level's registry name.
func (l *Level) Name() string {
	return l.def.Name
}

// Segments returns the level's segment names in load order.
func (l *Level) Segments() []string {
	return l.def.Segments
}

// State returns the current lifecycle state.
func (l *Level) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Progress reports mean fractional progress across the in-flight
// transition's segment operations, or 1 when nothing is in flight.
func (l *Level) Progress() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return 1
	}
	var sum float64
	for _, op := range l.pending {
		sum += op.Progress()
	}
	return sum / float64(len(l.pending))
}

// Load begins the asynchronous load of every segment not already present.
func (l *Level) Load() *Signal {
	l.mu.Lock()
	switch l.state {
	case StateLoading:
		sig := l.signal
		l.mu.Unlock()
		return sig
	case StateNone:
	default:
		return l.conflict("load")
	}

	var ops []Op
	for _, seg := range l.def.Segments {
		if l.loader.Loaded(seg) {
			continue
		}
		ops = append(ops, l.loader.BeginLoad(seg))
	}

	sig := NewSignal()
	l.state = StateLoading
	l.pending = ops
	l.signal = sig
	l.mu.Unlock()

	go l.finishLoad(sig, ops)
	return sig
}

func (l *Level) finishLoad(sig *Signal, ops []Op) {
	var firstErr error
	for _, op := range ops {
		select {
		case <-op.Ready():
		case <-op.Done():
		}
		if err := op.Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	l.mu.Lock()
	l.pending = nil
	if firstErr != nil {
		l.state = StateNone
		l.mu.Unlock()
		err := fmt.Errorf("scene: load %s: %w: %w", l.def.Name, ErrSegmentFault, firstErr)
		log.Print(err)
		sig.Complete(err)
		return
	}
	// hold the ops that still need finalization; already-done ops were
	// idempotent no-op loads
	for _, op := range ops {
		select {
		case <-op.Done():
		default:
			l.held = append(l.held, op)
		}
	}
	l.state = StateLoaded
	l.mu.Unlock()
	sig.Complete(nil)
}

// Activate releases every held load op to finalize and, once all are
// applied, selects the definition's active segment as foreground context.
func (l *Level) Activate() *Signal {
	l.mu.Lock()
	switch l.state {
	case StateActivating:
		sig := l.signal
		l.mu.Unlock()
		return sig
	case StateLoaded:
	default:
		return l.conflict("activate")
	}

	ops := l.held
	sig := NewSignal()
	l.state = StateActivating
	l.pending = ops
	l.held = nil
	l.signal = sig
	l.mu.Unlock()

	go l.finishActivate(sig, ops)
	return sig
}

func (l *Level) finishActivate(sig *Signal, ops []Op) {
	for _, op := range ops {
		op.AllowFinalize()
	}
	var firstErr error
	for _, op := range ops {
		<-op.Done()
		if err := op.Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	l.mu.Lock()
	l.pending = nil
	if firstErr != nil {
		// a failed op is spent; begin a fresh load for its segment so
		// re-issuing Activate can retry the finalize
		for _, op := range ops {
			if op.Err() == nil {
				continue
			}
			l.held = append(l.held, l.loader.BeginLoad(op.Segment()))
		}
		l.state = StateLoaded
		l.mu.Unlock()
		err := fmt.Errorf("scene: activate %s: %w: %w", l.def.Name, ErrSegmentFault, firstErr)
		log.Print(err)
		sig.Complete(err)
		return
	}
	l.state = StateActive
	l.mu.Unlock()

	if l.def.ActiveIndex >= 0 {
		if l.def.ActiveIndex < len(l.def.Segments) {
			if err := l.loader.SetForeground(l.def.Segments[l.def.ActiveIndex]); err != nil {
				log.Printf("scene: activate %s: set foreground: %v", l.def.Name, err)
			}
		} else {
			log.Printf("scene: activate %s: active index %d out of range (%d segments), foreground unset",
				l.def.Name, l.def.ActiveIndex, len(l.def.Segments))
		}
	}
	sig.Complete(nil)
}

// Deactivate destroys every non-persistent object rooted in this level's
// segments. It is synchronous: the level is Deactivated on return.
func (l *Level) Deactivate() *Signal {
	l.mu.Lock()
	switch l.state {
	case StateDeactivated:
		sig := l.signal
		l.mu.Unlock()
		return sig
	case StateActive:
	default:
		return l.conflict("deactivate")
	}
	// DestroyRooted blocks on the loader's apply queue; don't hold the
	// lock across it or State readers stall for a frame
	l.mu.Unlock()

	l.loader.DestroyRooted(l.def.Segments, l.guard.ExemptSegment)

	l.mu.Lock()
	l.state = StateDeactivated
	l.signal = Completed()
	sig := l.signal
	l.mu.Unlock()
	return sig
}

// Unload begins the asynchronous unload of every segment except the
// bootstrap segment and persistent-container segments.
func (l *Level) Unload() *Signal {
	l.mu.Lock()
	switch l.state {
	case StateUnloading:
		sig := l.signal
		l.mu.Unlock()
		return sig
	case StateDeactivated, StateLoaded:
	default:
		return l.conflict("unload")
	}

	from := l.state
	var ops []Op
	for _, seg := range l.def.Segments {
		if seg == l.bootstrap {
			continue
		}
		if l.guard.ExemptSegment(seg) {
			continue
		}
		ops = append(ops, l.loader.BeginUnload(seg))
	}

	sig := NewSignal()
	l.state = StateUnloading
	l.pending = ops
	l.held = nil
	l.signal = sig
	l.mu.Unlock()

	go l.finishUnload(sig, ops, from)
	return sig
}

func (l *Level) finishUnload(sig *Signal, ops []Op, from State) {
	var firstErr error
	for _, op := range ops {
		<-op.Done()
		if err := op.Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	l.mu.Lock()
	l.pending = nil
	if firstErr != nil {
		l.state = from
		l.mu.Unlock()
		err := fmt.Errorf("scene: unload %s: %w: %w", l.def.Name, ErrSegmentFault, firstErr)
		log.Print(err)
		sig.Complete(err)
		return
	}
	l.state = StateNone
	l.mu.Unlock()
	sig.Complete(nil)
}

// awaitQuiescent blocks until the level has no transition in flight.
func (l *Level) awaitQuiescent() {
	for {
		l.mu.Lock()
		st, sig := l.state, l.signal
		l.mu.Unlock()
		if !st.inFlight() || sig == nil {
			return
		}
		<-sig.Done()
	}
}

// conflict logs the incompatible request and releases the lock. Callers
// hold l.mu.
func (l *Level) conflict(op string) *Signal {
	st := l.state
	l.mu.Unlock()
	err := fmt.Errorf("scene: %s %s: %w: state %s", op, l.def.Name, ErrStateConflict, st)
	log.Print(err)
	return Failed(err)
}
