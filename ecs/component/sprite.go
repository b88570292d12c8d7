package component

import "image/color"

// Sprite is a solid-color rect. Segment content ships shapes and colors
// rather than image assets so a segment can be parsed entirely off the
// game goroutine.
type Sprite struct {
	W     float64
	H     float64
	Color color.NRGBA
	Layer int
}

var SpriteComponent = NewComponent[Sprite]()
