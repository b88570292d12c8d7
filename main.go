package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/levelstream/levels"
)

func main() {
	levelName := flag.String("level", "forest", "level name from the registry to stream in at start")
	contentDir := flag.String("content", "", "content directory overriding the embedded registry and segments")
	dev := flag.Bool("dev", false, "watch content directories and hot-reload prefabs and scripts")
	baseMonitor := flag.Bool("m", false, "use base monitor instead of primary (for multi-monitor setups)")
	flag.Parse()

	if *baseMonitor {
		ebiten.SetMonitor(ebiten.AppendMonitors(nil)[0])
	}

	content := levels.Content()
	if *contentDir != "" {
		c, err := levels.DirContent(*contentDir)
		if err != nil {
			log.Fatalf("open content dir %s: %v", *contentDir, err)
		}
		content = c
	}

	registry, err := levels.LoadRegistry(content, levels.RegistryPath)
	if err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("levelstream")

	game, err := NewGame(GameConfig{
		Registry:     registry,
		Content:      content,
		InitialLevel: *levelName,
		Dev:          *dev,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer game.Close()

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
