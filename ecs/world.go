package ecs

import "github.com/milk9111/levelstream/ecs/component"

// System updates a world each frame.
type System interface {
	Update(w *World)
}

// World owns entities, component storage, and system order.
type World struct {
	entities entityStore
	stores   map[component.ComponentID]*SparseSet
	systems  []System
}

// NewWorld creates an empty ECS world.
func NewWorld() *World {
	return &World{stores: make(map[component.ComponentID]*SparseSet)}
}

// AddSystem appends a system to the update order.
func (w *World) AddSystem(s System) {
	if w == nil || s == nil {
		return
	}
	w.systems = append(w.systems, s)
}

// Update runs all systems once.
func (w *World) Update() {
	if w == nil {
		return
	}
	for _, s := range w.systems {
		if s != nil {
			s.Update(w)
		}
	}
}

func (w *World) store(id component.ComponentID) *SparseSet {
	if w == nil || id == 0 {
		return nil
	}
	s, ok := w.stores[id]
	if !ok {
		s = &SparseSet{}
		w.stores[id] = s
	}
	return s
}

// CreateEntity allocates a new entity.
func CreateEntity(w *World) Entity {
	if w == nil {
		return 0
	}
	return w.entities.create()
}

// DestroyEntity marks an entity as dead and drops its components.
func DestroyEntity(w *World, e Entity) bool {
	if w == nil || !w.entities.destroy(e) {
		return false
	}
	for _, s := range w.stores {
		s.Remove(uint32(e.id()))
	}
	return true
}

// IsAlive reports whether an entity handle is valid.
func IsAlive(w *World, e Entity) bool {
	if w == nil {
		return false
	}
	return w.entities.isAlive(e)
}

// Entities returns every live entity.
func Entities(w *World) []Entity {
	if w == nil {
		return nil
	}
	return w.entities.all()
}

// First returns any one entity that has the given component kind.
func First(w *World, k component.KindRef) (Entity, bool) {
	if w == nil || k == nil {
		return 0, false
	}
	s, ok := w.stores[k.ID()]
	if !ok || s.Len() == 0 {
		return 0, false
	}
	id := s.Entities()[0]
	return makeEntity(entityID(id), w.entities.gens[id-1]), true
}

// Query returns every entity that has all of the given component kinds.
func Query(w *World, kinds ...component.KindRef) []Entity {
	if w == nil || len(kinds) == 0 {
		return nil
	}
	base, ok := w.stores[kinds[0].ID()]
	if !ok {
		return nil
	}
	var out []Entity
	for _, id := range base.Entities() {
		match := true
		for _, k := range kinds[1:] {
			s, ok := w.stores[k.ID()]
			if !ok || !s.Has(id) {
				match = false
				break
			}
		}
		if match {
			out = append(out, makeEntity(entityID(id), w.entities.gens[id-1]))
		}
	}
	return out
}
