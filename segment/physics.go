package segment

import "github.com/jakecoffman/cp"

const gravity = 980.0

// Space owns the chipmunk space the segments register static collision
// boxes in. Segments add shapes on apply and remove them on unload; the
// shell steps the space each frame.
type Space struct {
	space *cp.Space
}

func NewSpace() *Space {
	space := cp.NewSpace()
	space.Iterations = 10
	space.SetGravity(cp.Vector{X: 0, Y: gravity})
	return &Space{space: space}
}

// AddStaticBox registers a static collision box with its top-left corner
// at (x, y).
func (s *Space) AddStaticBox(x, y, w, h float64) *cp.Shape {
	if s == nil || w <= 0 || h <= 0 {
		return nil
	}
	body := s.space.StaticBody
	shape := cp.NewBox2(body, cp.BB{L: x, B: y + h, R: x + w, T: y}, 0)
	shape.SetFriction(1)
	return s.space.AddShape(shape)
}

// Remove takes a shape back out of the space.
func (s *Space) Remove(shape *cp.Shape) {
	if s == nil || shape == nil {
		return
	}
	s.space.RemoveShape(shape)
}

// Step advances the simulation.
func (s *Space) Step(dt float64) {
	if s == nil {
		return
	}
	s.space.Step(dt)
}

// Underlying exposes the raw space for the shell's dynamic bodies.
func (s *Space) Underlying() *cp.Space {
	if s == nil {
		return nil
	}
	return s.space
}
