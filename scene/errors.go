package scene

import "errors"

var (
	// ErrUnknownLevel means the requested level name is not in the registry.
	ErrUnknownLevel = errors.New("scene: unknown level")

	// ErrStateConflict means a transition was requested from an incompatible
	// state. The call degrades to a no-op; callers that need strict behavior
	// must check State() first.
	ErrStateConflict = errors.New("scene: state conflict")

	// ErrSegmentFault wraps a failed segment load or unload operation. The
	// level's state does not advance; re-issuing the same transition retries.
	ErrSegmentFault = errors.New("scene: segment fault")

	// ErrOrchestratorLive means an orchestrator instance is already alive in
	// this process.
	ErrOrchestratorLive = errors.New("scene: orchestrator already live")
)
