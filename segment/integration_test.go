package segment

import (
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/levelstream/ecs"
	"github.com/milk9111/levelstream/ecs/component"
	"github.com/milk9111/levelstream/levels"
	"github.com/milk9111/levelstream/prefabs"
	"github.com/milk9111/levelstream/scene"
)

type mapRegistry map[string]levels.Def

func (m mapRegistry) Lookup(name string) (levels.Def, bool) {
	def, ok := m[name]
	return def, ok
}

// startPumper stands in for the game loop, draining the apply queue on a
// background goroutine while orchestrator transitions run.
func startPumper(l *Loader) (stop func()) {
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-quit:
				return
			default:
				l.Pump()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			wg.Wait()
		})
	}
}

func awaitSignal(t *testing.T, sig *scene.Signal) error {
	t.Helper()
	select {
	case <-sig.Done():
		return sig.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("signal did not complete in time")
		return nil
	}
}

// Drives the real loader under the orchestrator: a persistent rig spawned
// into the permanent container must survive repeated level switches
// untouched, while each superseded level's own content is torn down.
func TestPersistentRigSurvivesLevelSwitches(t *testing.T) {
	content := fstest.MapFS{
		"segments/persistent.yaml": &fstest.MapFile{Data: []byte(`
name: persistent
entities:
  - prefab: player_rig
    x: 1
    y: 2
    id: rig
`)},
		"segments/a1.yaml": &fstest.MapFile{Data: []byte(`
name: a1
entities:
  - prefab: platform
    x: 10
    y: 20
`)},
		"segments/b1.yaml": &fstest.MapFile{Data: []byte(`
name: b1
entities:
  - prefab: torch
    x: 30
    y: 40
`)},
	}

	w := ecs.NewWorld()
	l, err := NewLoader(Config{
		World:     w,
		Space:     NewSpace(),
		Content:   content,
		Prefabs:   prefabs.NewCache(),
		Container: scene.DefaultPersistentContainer,
	})
	require.NoError(t, err)

	reg := mapRegistry{
		"alpha": {Name: "alpha", Segments: []string{"a1", scene.DefaultPersistentContainer}, ActiveIndex: 0},
		"beta":  {Name: "beta", Segments: []string{"b1", scene.DefaultPersistentContainer}, ActiveIndex: 0},
	}
	o, err := scene.New(scene.Config{Loader: l, Registry: reg})
	require.NoError(t, err)
	t.Cleanup(o.Close)

	stop := startPumper(l)
	defer stop()

	require.NoError(t, awaitSignal(t, o.LoadLevel("alpha", true)))

	rig, ok := findRig(l, w)
	require.True(t, ok, "rig should spawn with the first level")

	for i := 0; i < 10; i++ {
		target := "beta"
		if i%2 == 1 {
			target = "alpha"
		}
		require.NoError(t, awaitSignal(t, o.ActivateAndUnloadOthers(target)))
	}

	stop()

	// ten switches later the same rig entity is alive and unmoved
	assert.True(t, ecs.IsAlive(w, rig))
	tr, ok := ecs.Get(w, rig, component.TransformComponent)
	require.True(t, ok)
	assert.Equal(t, 1.0, tr.X)
	assert.Equal(t, 2.0, tr.Y)

	// exactly one rig, still the active level's working set around it
	var rigs int
	ecs.ForEach(w, component.PersistentComponent, func(_ ecs.Entity, p *component.Persistent) {
		if p.ID == "rig" {
			rigs++
		}
	})
	assert.Equal(t, 1, rigs)

	active, ok := o.Active()
	require.True(t, ok)
	assert.Equal(t, "alpha", active)
	assert.Equal(t, []string{"alpha"}, o.Tracked())
	assert.True(t, l.Loaded("a1"))
	assert.False(t, l.Loaded("b1"))
	assert.True(t, l.Loaded(scene.DefaultPersistentContainer))
}

func findRig(l *Loader, w *ecs.World) (ecs.Entity, bool) {
	var rig ecs.Entity
	found := false
	done := make(chan struct{})
	// read on the pump goroutine's schedule; a direct read would race the
	// apply queue
	l.enqueue(func() {
		defer close(done)
		ecs.ForEach(w, component.PersistentComponent, func(e ecs.Entity, p *component.Persistent) {
			if p.ID == "rig" {
				rig = e
				found = true
			}
		})
	})
	<-done
	return rig, found
}
