package component

import "image/color"

// Light is a static point light baked into the level lightmap. Moving
// lights are not supported; a rebake is requested whenever segments with
// lights enter or leave the working set.
type Light struct {
	Radius    float64
	Intensity float64
	Color     color.NRGBA
}

var LightComponent = NewComponent[Light]()
