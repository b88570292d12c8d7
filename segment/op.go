package segment

import (
	"math"
	"sync"
	"sync/atomic"
)

// op is one in-flight load or unload. It satisfies scene.Op.
type op struct {
	seg string

	ready  chan struct{}
	done   chan struct{}
	allow  chan struct{}
	cancel chan struct{}

	readyOnce  sync.Once
	doneOnce   sync.Once
	allowOnce  sync.Once
	cancelOnce sync.Once

	progress atomic.Uint64

	errMu sync.Mutex
	err   error
}

func newOp(seg string) *op {
	return &op{
		seg:    seg,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		allow:  make(chan struct{}),
		cancel: make(chan struct{}),
	}
}

// completedOp is an already-finished no-op (idempotent load of a present
// segment, unload of an absent one).
func completedOp(seg string) *op {
	o := newOp(seg)
	o.setProgress(1)
	o.markReady()
	o.finish(nil)
	return o
}

func (o *op) Segment() string { return o.seg }

func (o *op) Progress() float64 {
	return math.Float64frombits(o.progress.Load())
}

func (o *op) Ready() <-chan struct{} { return o.ready }
func (o *op) Done() <-chan struct{}  { return o.done }

func (o *op) AllowFinalize() {
	o.allowOnce.Do(func() { close(o.allow) })
}

func (o *op) Err() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	return o.err
}

func (o *op) setProgress(p float64) {
	o.progress.Store(math.Float64bits(p))
}

func (o *op) markReady() {
	o.readyOnce.Do(func() { close(o.ready) })
}

// finish completes the op. err is published before either channel closes,
// so readers observing a closed channel see it.
func (o *op) finish(err error) {
	o.doneOnce.Do(func() {
		o.errMu.Lock()
		o.err = err
		o.errMu.Unlock()
		o.markReady()
		close(o.done)
	})
}

func (o *op) cancelNow() {
	o.cancelOnce.Do(func() { close(o.cancel) })
}
