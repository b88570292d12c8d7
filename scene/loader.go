package scene

// Op is one in-flight segment operation. A load op parses and prepares in
// the background, closes Ready when it is waiting to finalize, and closes
// Done once its contents are applied to the working set. An unload op
// closes Ready and Done together. Err is meaningful once either channel is
// closed; a non-nil value means the op failed.
type Op interface {
	// Segment returns the name of the segment the op addresses.
	Segment() string
	// Progress reports fractional progress in [0, 1].
	Progress() float64
	Ready() <-chan struct{}
	Done() <-chan struct{}
	// AllowFinalize releases a load op to apply its contents as soon as
	// it is ready. It is a no-op for unload ops and already-finalized ops.
	AllowFinalize()
	Err() error
}

// Loader is the segment side of the lifecycle: it brings named resource
// segments into and out of the shared working set.
type Loader interface {
	// BeginLoad starts loading a segment. Loading a segment that is already
	// present returns an already-completed op.
	BeginLoad(segment string) Op

	// BeginUnload starts removing a segment's contents from the working
	// set. Unloading a segment that is not present returns an
	// already-completed op.
	BeginUnload(segment string) Op

	// Loaded reports whether the segment's contents are part of the
	// working set.
	Loaded(segment string) bool

	// DestroyRooted tears down every non-persistent object rooted in the
	// given segments. Segments for which exempt returns true are skipped.
	DestroyRooted(segments []string, exempt func(segment string) bool)

	// SetForeground marks a loaded segment as the foreground context.
	SetForeground(segment string) error
}
