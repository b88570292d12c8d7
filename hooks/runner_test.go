package hooks

import (
	"bytes"
	"log"
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forestScript = `
onActivate := func(level) {
	log("entered", level)
}
onDeactivate := func(level) {
	log("left", level)
}
`

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestRunnerLifecycleHooks(t *testing.T) {
	buf := captureLog(t)
	r := NewRunner(fstest.MapFS{
		"scripts/forest.tengo": &fstest.MapFile{Data: []byte(forestScript)},
	})
	r.Bind("forest", "scripts/forest.tengo")

	r.LevelActivated("forest")
	assert.Contains(t, buf.String(), "entered forest")

	r.LevelDeactivated("forest")
	assert.Contains(t, buf.String(), "left forest")
}

func TestRunnerUnboundLevelIsNoOp(t *testing.T) {
	buf := captureLog(t)
	r := NewRunner(fstest.MapFS{})

	r.LevelActivated("nowhere")
	r.LevelDeactivated("nowhere")
	assert.Empty(t, buf.String())
}

func TestRunnerMissingScriptLogsAndContinues(t *testing.T) {
	buf := captureLog(t)
	r := NewRunner(fstest.MapFS{})
	r.Bind("forest", "scripts/forest.tengo")

	require.NotPanics(t, func() { r.LevelActivated("forest") })
	assert.Contains(t, buf.String(), "forest")
}

func TestRunnerBrokenScriptLogsAndContinues(t *testing.T) {
	buf := captureLog(t)
	r := NewRunner(fstest.MapFS{
		"scripts/broken.tengo": &fstest.MapFile{Data: []byte(`onActivate := func(`)},
	})
	r.Bind("broken", "scripts/broken.tengo")

	require.NotPanics(t, func() { r.LevelActivated("broken") })
	assert.Contains(t, buf.String(), "broken")
}

func TestRunnerMissingHookLogsAndContinues(t *testing.T) {
	buf := captureLog(t)
	// scripts must declare both hooks; one missing is a compile error that
	// logs without failing the transition
	r := NewRunner(fstest.MapFS{
		"scripts/halfhooked.tengo": &fstest.MapFile{Data: []byte(`
onActivate := func(level) {
	log("entered", level)
}
`)},
	})
	r.Bind("half", "scripts/halfhooked.tengo")

	require.NotPanics(t, func() { r.LevelActivated("half") })
	assert.Contains(t, buf.String(), "half")
	assert.NotContains(t, buf.String(), "entered half")
}

func TestRunnerInvalidateRecompiles(t *testing.T) {
	buf := captureLog(t)
	content := fstest.MapFS{
		"scripts/forest.tengo": &fstest.MapFile{Data: []byte(forestScript)},
	}
	r := NewRunner(content)
	r.Bind("forest", "scripts/forest.tengo")

	r.LevelActivated("forest")
	require.Contains(t, buf.String(), "entered forest")

	content["scripts/forest.tengo"] = &fstest.MapFile{Data: []byte(`
onActivate := func(level) {
	log("rewritten", level)
}
onDeactivate := func(level) {}
`)}

	// still memoized
	buf.Reset()
	r.LevelActivated("forest")
	assert.Contains(t, buf.String(), "entered forest")

	r.Invalidate()
	buf.Reset()
	r.LevelActivated("forest")
	assert.Contains(t, buf.String(), "rewritten forest")
}
