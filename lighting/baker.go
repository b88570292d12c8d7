package lighting

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"github.com/milk9111/levelstream/ecs"
	"github.com/milk9111/levelstream/ecs/component"
	"github.com/milk9111/levelstream/scene"
)

const defaultCell = 16

// PlacedLight is a static light with its world position, snapshotted off
// the working set on the game goroutine.
type PlacedLight struct {
	X, Y  float64
	Light component.Light
}

// CollectLights snapshots every static light in the world. Call from the
// game goroutine.
func CollectLights(w *ecs.World) []PlacedLight {
	var out []PlacedLight
	ecs.ForEach(w, component.LightComponent, func(e ecs.Entity, l *component.Light) {
		t, ok := ecs.Get(w, e, component.TransformComponent)
		if !ok {
			return
		}
		out = append(out, PlacedLight{X: t.X, Y: t.Y, Light: *l})
	})
	return out
}

// Baker recomputes the static lightmap for the working set. The shell
// feeds it light snapshots; the orchestrator decides when a bake may run.
// Bakes happen on a background goroutine over a low-resolution irradiance
// grid that is then upscaled to screen resolution.
type Baker struct {
	width   int
	height  int
	cell    int
	ambient float64

	mu       sync.Mutex
	lights   []PlacedLight
	lightmap *image.RGBA
}

func NewBaker(width, height int) *Baker {
	return &Baker{
		width:   width,
		height:  height,
		cell:    defaultCell,
		ambient: 0.25,
	}
}

// SetLights replaces the snapshot the next bake will use.
func (b *Baker) SetLights(lights []PlacedLight) {
	b.mu.Lock()
	b.lights = append([]PlacedLight(nil), lights...)
	b.mu.Unlock()
}

// Lightmap returns the most recent bake result, or nil before the first
// bake completes.
func (b *Baker) Lightmap() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lightmap
}

// Bake recomputes the lightmap from the current snapshot.
func (b *Baker) Bake() *scene.Signal {
	if b.width <= 0 || b.height <= 0 {
		return scene.Failed(fmt.Errorf("lighting: bake: invalid bounds %dx%d", b.width, b.height))
	}
	sig := scene.NewSignal()
	b.mu.Lock()
	lights := append([]PlacedLight(nil), b.lights...)
	b.mu.Unlock()

	go func() {
		grid := b.bakeGrid(lights)
		full := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
		draw.CatmullRom.Scale(full, full.Bounds(), grid, grid.Bounds(), draw.Src, nil)

		b.mu.Lock()
		b.lightmap = full
		b.mu.Unlock()
		sig.Complete(nil)
	}()
	return sig
}

// bakeGrid computes the low-res irradiance grid: ambient plus linear
// falloff per light, per cell center.
func (b *Baker) bakeGrid(lights []PlacedLight) *image.RGBA {
	cols := (b.width + b.cell - 1) / b.cell
	rows := (b.height + b.cell - 1) / b.cell
	grid := image.NewRGBA(image.Rect(0, 0, cols, rows))

	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			px := (float64(cx) + 0.5) * float64(b.cell)
			py := (float64(cy) + 0.5) * float64(b.cell)

			r := b.ambient
			g := b.ambient
			bl := b.ambient
			for _, pl := range lights {
				dx := px - pl.X
				dy := py - pl.Y
				dist := dx*dx + dy*dy
				radius := pl.Light.Radius
				if dist >= radius*radius {
					continue
				}
				falloff := 1 - math.Sqrt(dist)/radius
				gain := falloff * pl.Light.Intensity
				r += gain * float64(pl.Light.Color.R) / 255
				g += gain * float64(pl.Light.Color.G) / 255
				bl += gain * float64(pl.Light.Color.B) / 255
			}
			grid.SetRGBA(cx, cy, rgba(r, g, bl))
		}
	}
	return grid
}

func rgba(r, g, b float64) color.RGBA {
	return color.RGBA{R: clamp255(r), G: clamp255(g), B: clamp255(b), A: 0xff}
}

func clamp255(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v * 255)
}
