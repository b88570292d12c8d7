package scene

// PersistentGuard exempts the orchestrator's permanent container from
// level teardown. Detection is by container membership, not object type:
// anything living in (or retagged into) the container survives every
// deactivate/unload cycle.
type PersistentGuard struct {
	container string
}

func NewPersistentGuard(container string) *PersistentGuard {
	return &PersistentGuard{container: container}
}

// Container returns the permanent container's segment name.
func (g *PersistentGuard) Container() string {
	if g == nil {
		return ""
	}
	return g.container
}

// ExemptSegment reports whether the segment must never be torn down.
func (g *PersistentGuard) ExemptSegment(segment string) bool {
	return g != nil && segment != "" && segment == g.container
}
