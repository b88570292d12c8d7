package scene

import (
	"context"
	"sync"
)

// Signal is a single-slot awaitable completion value. A level transition
// returns one Signal; re-issuing the same in-flight transition returns the
// same Signal rather than starting a duplicate.
type Signal struct {
	done chan struct{}
	once sync.Once
	err  error
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Completed returns an already-finished signal with no error.
func Completed() *Signal {
	s := NewSignal()
	s.Complete(nil)
	return s
}

// Failed returns an already-finished signal carrying err.
func Failed(err error) *Signal {
	s := NewSignal()
	s.Complete(err)
	return s
}

// Complete finishes the signal. Completing twice is a no-op; the first
// error sticks.
func (s *Signal) Complete(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Done is closed once the signal completes.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Err returns the completion error, or nil while still in flight.
func (s *Signal) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Await blocks until completion or context cancellation.
func (s *Signal) Await(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
