// Package lifecycle holds the authoritative run state of a console session.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-consolehost/consolehost/logging"
)

var (
	// ErrInvalidTransition is returned when a requested change would break a
	// RunState invariant or does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrShuttingDown is returned by operations refused because the session
	// is being torn down.
	ErrShuttingDown = errors.New("session is shutting down")
)

// RunState is an immutable snapshot of the session flags. It is replaced as
// a whole on every mutation.
type RunState struct {
	RendererInitialized bool
	CoreTypeSelected    bool
	EmulationStarted    bool
	Paused              bool
	ShuttingDown        bool

	// Generation increases by one on every published change.
	Generation uint64
}

func (s RunState) validate(prev RunState) error {
	if prev.ShuttingDown && !s.ShuttingDown {
		return fmt.Errorf("%w: shutting down cannot be cleared", ErrInvalidTransition)
	}
	if s.EmulationStarted && !s.RendererInitialized {
		return fmt.Errorf("%w: emulation started without a renderer", ErrInvalidTransition)
	}
	return nil
}

func (s RunState) String() string {
	return fmt.Sprintf("gen=%d renderer=%t core=%t started=%t paused=%t shutting_down=%t",
		s.Generation, s.RendererInitialized, s.CoreTypeSelected, s.EmulationStarted, s.Paused, s.ShuttingDown)
}

type observer struct {
	id int
	fn func(RunState)
}

// Store guards the RunState behind a single lock. Observers are notified
// after the lock has been released, so they may call back into the store.
type Store struct {
	mu        sync.Mutex
	state     RunState
	observers []observer
	nextID    int
	logger    *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Deferred()
	}
	return &Store{logger: logger}
}

// Snapshot returns the current state by value.
func (s *Store) Snapshot() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mutate applies fn to a copy of the current state and publishes it. If the
// result breaks an invariant nothing is published and the error wraps
// ErrInvalidTransition. The returned state is the one in effect afterwards.
func (s *Store) Mutate(fn func(*RunState)) (RunState, error) {
	s.mu.Lock()
	prev := s.state
	next := prev
	fn(&next)
	next.Generation = prev.Generation

	if err := next.validate(prev); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Rejected state change", "error", err, "state", prev)
		return prev, err
	}
	if next == prev {
		s.mu.Unlock()
		return prev, nil
	}

	next.Generation++
	s.state = next
	observers := s.copyObservers()
	s.mu.Unlock()

	s.notify(observers, next)
	return next, nil
}

// BeginShutdown sets ShuttingDown and reports whether this call was the one
// that set it. Concurrent callers see true exactly once.
func (s *Store) BeginShutdown() bool {
	s.mu.Lock()
	if s.state.ShuttingDown {
		s.mu.Unlock()
		return false
	}
	s.state.ShuttingDown = true
	s.state.Generation++
	next := s.state
	observers := s.copyObservers()
	s.mu.Unlock()

	s.notify(observers, next)
	return true
}

// Observe registers fn to be called with every published state. The
// returned function removes the observer.
func (s *Store) Observe(fn func(RunState)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) copyObservers() []observer {
	if len(s.observers) == 0 {
		return nil
	}
	out := make([]observer, len(s.observers))
	copy(out, s.observers)
	return out
}

func (s *Store) notify(observers []observer, state RunState) {
	for _, o := range observers {
		o.fn(state)
	}
}
