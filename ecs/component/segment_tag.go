package component

// SegmentTag records which segment an entity is rooted in. Teardown and
// unload resolve ownership through this tag, so moving an entity between
// containers is just retagging it.
type SegmentTag struct {
	Segment string
}

var SegmentTagComponent = NewComponent[SegmentTag]()
