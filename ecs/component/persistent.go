package component

// Persistent marks an entity that must outlive any single level's
// lifecycle (the player rig, counters, ambience). Spawning re-homes such
// entities into the orchestrator's permanent container.
type Persistent struct {
	ID string
}

var PersistentComponent = NewComponent[Persistent]()
