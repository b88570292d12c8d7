package system

import (
	"image/color"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/levelstream/ecs"
	"github.com/milk9111/levelstream/ecs/component"
)

// RenderSystem draws every sprite in the working set, lowest layer first.
// Sprites are solid-color rects drawn through a shared 1x1 white pixel,
// scaled and tinted per entity.
type RenderSystem struct {
	pixel *ebiten.Image
}

func NewRenderSystem() *RenderSystem {
	pixel := ebiten.NewImage(1, 1)
	pixel.Fill(color.White)
	return &RenderSystem{pixel: pixel}
}

// Update is a no-op; rendering happens in Draw.
func (r *RenderSystem) Update(w *ecs.World) {}

func (r *RenderSystem) Draw(w *ecs.World, screen *ebiten.Image) {
	if r == nil || w == nil || screen == nil {
		return
	}

	type drawable struct {
		x, y   float64
		sprite component.Sprite
	}
	var items []drawable
	ecs.ForEach(w, component.SpriteComponent, func(e ecs.Entity, s *component.Sprite) {
		t, ok := ecs.Get(w, e, component.TransformComponent)
		if !ok {
			return
		}
		items = append(items, drawable{x: t.X, y: t.Y, sprite: *s})
	})
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].sprite.Layer < items[j].sprite.Layer
	})

	for _, item := range items {
		if item.sprite.W <= 0 || item.sprite.H <= 0 {
			continue
		}
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(item.sprite.W, item.sprite.H)
		op.GeoM.Translate(item.x, item.y)
		op.ColorScale.ScaleWithColor(item.sprite.Color)
		screen.DrawImage(r.pixel, op)
	}
}
