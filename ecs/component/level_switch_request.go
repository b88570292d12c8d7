package component

// LevelSwitchRequest is a one-shot request entity asking the outer Game
// loop to make the named level the active one. The game loop consumes
// every request per frame and keeps only the latest.
type LevelSwitchRequest struct {
	Target string
}

var LevelSwitchRequestComponent = NewComponent[LevelSwitchRequest]()
