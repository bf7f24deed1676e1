package input

import (
	"log/slog"
	"sync"
	"time"

	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/logging"
)

// DefaultRepeatThreshold is the minimum time between two accepted presses of
// the same button. Hardware controllers occasionally report a press twice.
const DefaultRepeatThreshold = 50 * time.Millisecond

// PendingInput is a validated button transition waiting for the next tick.
type PendingInput struct {
	Action    action.Action
	Pressed   bool
	Timestamp time.Time
}

type buttonState struct {
	pressed   bool
	lastPress time.Time
}

// Queue validates raw press/release events and buffers the accepted ones
// until the frame clock drains them.
type Queue struct {
	mu      sync.Mutex
	buttons map[action.Action]buttonState
	pending []PendingInput

	repeatThreshold time.Duration
	now             func() time.Time
	gate            func() bool
	logger          *slog.Logger
}

type QueueOption func(*Queue)

// WithRepeatThreshold overrides DefaultRepeatThreshold.
func WithRepeatThreshold(d time.Duration) QueueOption {
	return func(q *Queue) { q.repeatThreshold = d }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// WithGate installs a check run by every Submit. When it returns false the
// event is dropped without touching the queue. The gate runs under the
// queue lock, so once it closes, a following Clear leaves the queue empty
// for good. It must not call back into the queue.
func WithGate(open func() bool) QueueOption {
	return func(q *Queue) { q.gate = open }
}

// WithLogger sets the logger used for drop diagnostics.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		buttons:         make(map[action.Action]buttonState),
		repeatThreshold: DefaultRepeatThreshold,
		now:             time.Now,
		logger:          logging.Deferred(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit records a press or release from any producer. It returns true if
// the event was accepted. Rejected events are routine (key repeat, stray
// releases) and only logged at debug level.
func (q *Queue) Submit(act action.Action, pressed bool) bool {
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gate != nil && !q.gate() {
		q.logger.Debug("Input rejected, queue closed", "action", act, "pressed", pressed)
		return false
	}

	state := q.buttons[act]

	if !pressed && !state.pressed {
		q.logger.Debug("Ignoring release for unpressed button", "action", act)
		return false
	}

	if pressed && !state.lastPress.IsZero() && now.Sub(state.lastPress) < q.repeatThreshold {
		q.logger.Debug("Ignoring repeat press within threshold", "action", act,
			"since_ms", now.Sub(state.lastPress).Milliseconds())
		return false
	}

	if state.pressed == pressed {
		q.logger.Debug("Ignoring redundant state", "action", act, "pressed", pressed)
		return false
	}

	if pressed {
		if opposite, ok := act.Opposite(); ok {
			if other := q.buttons[opposite]; other.pressed {
				other.pressed = false
				q.buttons[opposite] = other
				q.pending = append(q.pending, PendingInput{Action: opposite, Pressed: false, Timestamp: now})
				q.logger.Debug("Released opposing direction", "action", opposite, "for", act)
			}
		}
		state.lastPress = now
	}

	state.pressed = pressed
	q.buttons[act] = state
	q.pending = append(q.pending, PendingInput{Action: act, Pressed: pressed, Timestamp: now})
	return true
}

// Drain hands every queued input to the caller and leaves the queue empty.
// Inputs are returned in acceptance order.
func (q *Queue) Drain() []PendingInput {
	q.mu.Lock()
	inputs := q.pending
	q.pending = nil
	q.mu.Unlock()
	return inputs
}

// Clear drops queued inputs and forgets every button state.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.buttons = make(map[action.Action]buttonState)
	q.mu.Unlock()
}

// Pressed reports the last accepted state of a button.
func (q *Queue) Pressed(act action.Action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buttons[act].pressed
}

// Snapshot returns a copy of the button-state table.
func (q *Queue) Snapshot() map[action.Action]bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[action.Action]bool, len(q.buttons))
	for act, state := range q.buttons {
		out[act] = state.pressed
	}
	return out
}

// Len returns the number of inputs waiting for the next drain.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
