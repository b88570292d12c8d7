package scene

import (
	"fmt"
	"sync"
)

// fakeOp is a hand-cranked Op for driving levels through their states
// without a real content pipeline.
type fakeOp struct {
	seg string

	ready chan struct{}
	done  chan struct{}
	allow chan struct{}

	readyOnce sync.Once
	doneOnce  sync.Once
	allowOnce sync.Once

	mu  sync.Mutex
	err error
}

func newFakeOp(seg string) *fakeOp {
	return &fakeOp{
		seg:   seg,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		allow: make(chan struct{}),
	}
}

func completedFakeOp(seg string) *fakeOp {
	o := newFakeOp(seg)
	o.markReady()
	o.finish(nil)
	return o
}

func (o *fakeOp) Segment() string { return o.seg }

func (o *fakeOp) Progress() float64 {
	select {
	case <-o.done:
		return 1
	default:
		return 0.5
	}
}

func (o *fakeOp) Ready() <-chan struct{} { return o.ready }
func (o *fakeOp) Done() <-chan struct{}  { return o.done }

func (o *fakeOp) AllowFinalize() {
	o.allowOnce.Do(func() { close(o.allow) })
}

func (o *fakeOp) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *fakeOp) markReady() {
	o.readyOnce.Do(func() { close(o.ready) })
}

func (o *fakeOp) finish(err error) {
	o.doneOnce.Do(func() {
		o.mu.Lock()
		o.err = err
		o.mu.Unlock()
		o.markReady()
		close(o.done)
	})
}

// fakeLoader tracks a loaded set and completes ops on its own goroutines,
// mirroring the real loader's ready/allow/done protocol. Tests can gate
// readiness or finalization per segment and inject faults.
type fakeLoader struct {
	mu         sync.Mutex
	loaded     map[string]bool
	foreground string

	failLoads   map[string]error
	failApply   map[string]error
	failUnloads map[string]error
	holdReady   map[string]chan struct{}
	holdApply   map[string]chan struct{}

	loadCalls   []string
	unloadCalls []string
	destroyed   []string
}

func newFakeLoader(preloaded ...string) *fakeLoader {
	l := &fakeLoader{
		loaded:      make(map[string]bool),
		failLoads:   make(map[string]error),
		failApply:   make(map[string]error),
		failUnloads: make(map[string]error),
		holdReady:   make(map[string]chan struct{}),
		holdApply:   make(map[string]chan struct{}),
	}
	for _, seg := range preloaded {
		l.loaded[seg] = true
	}
	return l
}

// gateReady makes the next load of seg wait on the returned channel before
// reporting ready.
func (l *fakeLoader) gateReady(seg string) chan struct{} {
	ch := make(chan struct{})
	l.mu.Lock()
	l.holdReady[seg] = ch
	l.mu.Unlock()
	return ch
}

// gateApply makes loads of seg wait on the returned channel between
// finalization and completion, pinning a level in Activating.
func (l *fakeLoader) gateApply(seg string) chan struct{} {
	ch := make(chan struct{})
	l.mu.Lock()
	l.holdApply[seg] = ch
	l.mu.Unlock()
	return ch
}

func (l *fakeLoader) failLoad(seg string, err error) {
	l.mu.Lock()
	l.failLoads[seg] = err
	l.mu.Unlock()
}

func (l *fakeLoader) failFinalize(seg string, err error) {
	l.mu.Lock()
	l.failApply[seg] = err
	l.mu.Unlock()
}

func (l *fakeLoader) failUnload(seg string, err error) {
	l.mu.Lock()
	l.failUnloads[seg] = err
	l.mu.Unlock()
}

func (l *fakeLoader) clearFaults(seg string) {
	l.mu.Lock()
	delete(l.failLoads, seg)
	delete(l.failApply, seg)
	delete(l.failUnloads, seg)
	l.mu.Unlock()
}

func (l *fakeLoader) BeginLoad(seg string) Op {
	l.mu.Lock()
	l.loadCalls = append(l.loadCalls, seg)
	if l.loaded[seg] {
		l.mu.Unlock()
		return completedFakeOp(seg)
	}
	fail := l.failLoads[seg]
	ready := l.holdReady[seg]
	apply := l.holdApply[seg]
	l.mu.Unlock()

	o := newFakeOp(seg)
	go func() {
		if ready != nil {
			<-ready
		}
		if fail != nil {
			o.finish(fmt.Errorf("fake load %s: %w", seg, fail))
			return
		}
		o.markReady()
		<-o.allow
		if apply != nil {
			<-apply
		}
		// finalize faults apply at finalize time, so clearFaults between a
		// failed Activate and its retry takes effect on the held retry op
		l.mu.Lock()
		applyErr := l.failApply[seg]
		l.mu.Unlock()
		if applyErr != nil {
			o.finish(fmt.Errorf("fake finalize %s: %w", seg, applyErr))
			return
		}
		l.mu.Lock()
		l.loaded[seg] = true
		l.mu.Unlock()
		o.finish(nil)
	}()
	return o
}

func (l *fakeLoader) BeginUnload(seg string) Op {
	l.mu.Lock()
	l.unloadCalls = append(l.unloadCalls, seg)
	if err := l.failUnloads[seg]; err != nil {
		l.mu.Unlock()
		o := newFakeOp(seg)
		o.finish(fmt.Errorf("fake unload %s: %w", seg, err))
		return o
	}
	if !l.loaded[seg] {
		l.mu.Unlock()
		return completedFakeOp(seg)
	}
	delete(l.loaded, seg)
	if l.foreground == seg {
		l.foreground = ""
	}
	l.mu.Unlock()
	return completedFakeOp(seg)
}

func (l *fakeLoader) Loaded(seg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[seg]
}

func (l *fakeLoader) DestroyRooted(segments []string, exempt func(string) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, seg := range segments {
		if exempt != nil && exempt(seg) {
			continue
		}
		l.destroyed = append(l.destroyed, seg)
	}
}

func (l *fakeLoader) SetForeground(seg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded[seg] {
		return fmt.Errorf("fake loader: set foreground %q: not loaded", seg)
	}
	l.foreground = seg
	return nil
}

func (l *fakeLoader) foregroundSegment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.foreground
}

func (l *fakeLoader) destroyedSegments() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.destroyed...)
}

func (l *fakeLoader) unloadedSegments() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.unloadCalls...)
}

func (l *fakeLoader) loadedSegments() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.loaded))
	for seg := range l.loaded {
		out = append(out, seg)
	}
	return out
}

func (l *fakeLoader) loadCallsFor(seg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.loadCalls {
		if s == seg {
			n++
		}
	}
	return n
}

var _ Loader = (*fakeLoader)(nil)
