package main

import (
	"fmt"
	"image"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/ebitenui/ebitenui"

	"github.com/milk9111/levelstream/ecs"
	"github.com/milk9111/levelstream/ecs/component"
	"github.com/milk9111/levelstream/ecs/system"
	"github.com/milk9111/levelstream/hooks"
	"github.com/milk9111/levelstream/levels"
	"github.com/milk9111/levelstream/lighting"
	"github.com/milk9111/levelstream/prefabs"
	"github.com/milk9111/levelstream/scene"
	"github.com/milk9111/levelstream/segment"
)

const (
	baseWidth  = 1280
	baseHeight = 720
)

// lightmap multiplies onto the scene: dst * src
var multiplyBlend = ebiten.Blend{
	BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
	BlendFactorSourceAlpha:      ebiten.BlendFactorZero,
	BlendFactorDestinationRGB:   ebiten.BlendFactorZero,
	BlendFactorDestinationAlpha: ebiten.BlendFactorOne,
	BlendOperationRGB:           ebiten.BlendOperationAdd,
	BlendOperationAlpha:         ebiten.BlendOperationAdd,
}

type GameConfig struct {
	Registry     *levels.Registry
	Content      fs.FS
	InitialLevel string
	Dev          bool
}

// Game is the ebiten shell around the streaming runtime. Update pumps the
// loader's apply queue before anything reads the working set, so every
// world mutation lands on the game goroutine.
type Game struct {
	frames int

	registry *levels.Registry
	world    *ecs.World
	space    *segment.Space
	cache    *prefabs.Cache
	loader   *segment.Loader
	orch     *scene.Orchestrator
	baker    *lighting.Baker
	runner   *hooks.Runner
	render   *system.RenderSystem
	watcher  *prefabs.Watcher

	lightsDirty bool

	picker        *ebitenui.UI
	pickerVisible bool

	lastLightmap *image.RGBA
	lightImage   *ebiten.Image
}

func NewGame(cfg GameConfig) (*Game, error) {
	g := &Game{
		registry: cfg.Registry,
		world:    ecs.NewWorld(),
		space:    segment.NewSpace(),
		cache:    prefabs.NewCache(),
		baker:    lighting.NewBaker(baseWidth, baseHeight),
		runner:   hooks.NewRunner(cfg.Content),
		render:   system.NewRenderSystem(),
	}

	loader, err := segment.NewLoader(segment.Config{
		World:     g.world,
		Space:     g.space,
		Content:   cfg.Content,
		Prefabs:   g.cache,
		Container: scene.DefaultPersistentContainer,
		OnLightsChanged: func() {
			// fires inside Pump, on the game goroutine
			g.lightsDirty = true
		},
	})
	if err != nil {
		return nil, err
	}
	g.loader = loader

	for _, name := range cfg.Registry.Names() {
		if def, ok := cfg.Registry.Lookup(name); ok && def.Script != "" {
			g.runner.Bind(def.Name, def.Script)
		}
	}

	orch, err := scene.New(scene.Config{
		Loader:   loader,
		Registry: cfg.Registry,
		Baker:    g.baker,
		Hooks:    g.runner,
	})
	if err != nil {
		return nil, err
	}
	g.orch = orch

	g.picker = newLevelPickerUI(g)

	// the bootstrap segment and the permanent container stream in before
	// the first level; both apply on the first Pump
	for _, seg := range []string{scene.DefaultBootstrap, scene.DefaultPersistentContainer} {
		op := loader.BeginLoad(seg)
		op.AllowFinalize()
	}

	if cfg.InitialLevel != "" {
		g.orch.LoadLevel(cfg.InitialLevel, true)
	}

	if cfg.Dev {
		g.watcher = newContentWatcher()
	}

	return g, nil
}

// newContentWatcher watches the on-disk content directories that override
// embedded content. Missing dirs just aren't watched.
func newContentWatcher() *prefabs.Watcher {
	var dirs []string
	for _, dir := range []string{"prefabs", "levels", "levels/segments", "levels/scripts"} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		log.Print("dev: no content directories on disk, hot reload disabled")
		return nil
	}
	w, err := prefabs.NewWatcher(dirs...)
	if err != nil {
		log.Printf("dev: content watcher: %v", err)
		return nil
	}
	return w
}

func (g *Game) Close() {
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
	g.orch.Close()
}

func (g *Game) Update() error {
	g.frames++

	g.loader.Pump()
	g.drainWatcher()
	g.handleInput()
	g.consumeSwitchRequests()

	g.world.Update()
	g.space.Step(1.0 / 60.0)

	if g.lightsDirty {
		g.lightsDirty = false
		g.baker.SetLights(lighting.CollectLights(g.world))
		g.orch.MarkLightingDirty()
	}

	if g.pickerVisible {
		g.picker.Update()
	}
	return nil
}

func (g *Game) drainWatcher() {
	if g.watcher == nil {
		return
	}
	for {
		select {
		case path, ok := <-g.watcher.Events:
			if !ok {
				g.watcher = nil
				return
			}
			log.Printf("dev: content changed: %s", path)
			g.cache.Invalidate()
			g.runner.Invalidate()
		case err, ok := <-g.watcher.Errors:
			if !ok {
				g.watcher = nil
				return
			}
			log.Printf("dev: content watcher: %v", err)
		default:
			return
		}
	}
}

var digitKeys = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3,
	ebiten.KeyDigit4, ebiten.KeyDigit5, ebiten.KeyDigit6,
	ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
}

func (g *Game) handleInput() {
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.pickerVisible = !g.pickerVisible
	}
	names := g.registry.Names()
	for i, key := range digitKeys {
		if i >= len(names) {
			break
		}
		if inpututil.IsKeyJustPressed(key) {
			g.requestSwitch(names[i])
		}
	}
}

// requestSwitch spawns a switch-request entity instead of calling the
// orchestrator directly, so every trigger (keys, UI, scripts) funnels
// through the same consume step.
func (g *Game) requestSwitch(target string) {
	e := ecs.CreateEntity(g.world)
	_ = ecs.Add(g.world, e, component.LevelSwitchRequestComponent, component.LevelSwitchRequest{Target: target})
}

func (g *Game) consumeSwitchRequests() {
	var target string
	var requests []ecs.Entity
	ecs.ForEach(g.world, component.LevelSwitchRequestComponent, func(e ecs.Entity, r *component.LevelSwitchRequest) {
		target = r.Target
		requests = append(requests, e)
	})
	for _, e := range requests {
		ecs.DestroyEntity(g.world, e)
	}
	if target != "" {
		g.orch.ActivateAndUnloadOthers(target)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.render.Draw(g.world, screen)
	g.drawLightmap(screen)
	g.drawHUD(screen)

	if g.pickerVisible {
		g.picker.Draw(screen)
	}
}

func (g *Game) drawLightmap(screen *ebiten.Image) {
	lm := g.baker.Lightmap()
	if lm == nil {
		return
	}
	if lm != g.lastLightmap {
		g.lightImage = ebiten.NewImageFromImage(lm)
		g.lastLightmap = lm
	}
	op := &ebiten.DrawImageOptions{}
	op.Blend = multiplyBlend
	screen.DrawImage(g.lightImage, op)
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	var b strings.Builder
	fmt.Fprintf(&b, "FPS: %.2f    Tab: level picker    1-9: switch level\n", ebiten.ActualFPS())
	if active, ok := g.orch.Active(); ok {
		fmt.Fprintf(&b, "active: %s\n", active)
	} else {
		b.WriteString("active: (none)\n")
	}
	for _, name := range g.orch.Tracked() {
		state := g.orch.LevelState(name)
		fmt.Fprintf(&b, "  %s: %s", name, state)
		if progress := g.orch.Progress(name); progress < 1 {
			fmt.Fprintf(&b, " %3.0f%%", progress*100)
		}
		b.WriteString("\n")
	}
	ebitenutil.DebugPrint(screen, b.String())
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return baseWidth, baseHeight
}
