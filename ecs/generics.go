package ecs

import "github.com/milk9111/levelstream/ecs/component"

func Add[T any](w *World, e Entity, handle component.ComponentHandle[T], value T) error {
	if w == nil || !handle.Kind().Valid() {
		return component.ErrInvalidComponentKind
	}
	if !w.entities.isAlive(e) {
		return component.ErrEntityNotAlive
	}
	w.store(handle.Kind().ID()).Set(uint32(e.id()), &value)
	return nil
}

func Remove[T any](w *World, e Entity, handle component.ComponentHandle[T]) bool {
	if w == nil || !w.entities.isAlive(e) {
		return false
	}
	return w.store(handle.Kind().ID()).Remove(uint32(e.id()))
}

func Has[T any](w *World, e Entity, handle component.ComponentHandle[T]) bool {
	if w == nil || !w.entities.isAlive(e) {
		return false
	}
	return w.store(handle.Kind().ID()).Has(uint32(e.id()))
}

// Get returns a pointer into the stored component so callers can mutate it
// in place, like the systems do each frame.
func Get[T any](w *World, e Entity, handle component.ComponentHandle[T]) (*T, bool) {
	if w == nil || !w.entities.isAlive(e) {
		return nil, false
	}
	v := w.store(handle.Kind().ID()).Get(uint32(e.id()))
	if v == nil {
		return nil, false
	}
	cast, ok := v.(*T)
	if !ok {
		return nil, false
	}
	return cast, true
}

func ForEach[T any](w *World, handle component.ComponentHandle[T], fn func(Entity, *T)) {
	if w == nil || fn == nil {
		return
	}
	s, ok := w.stores[handle.Kind().ID()]
	if !ok {
		return
	}
	// copy the id list so fn may add or destroy entities mid-iteration
	ids := append([]uint32(nil), s.Entities()...)
	for _, id := range ids {
		v := s.Get(id)
		cast, ok := v.(*T)
		if !ok {
			continue
		}
		fn(makeEntity(entityID(id), w.entities.gens[id-1]), cast)
	}
}
