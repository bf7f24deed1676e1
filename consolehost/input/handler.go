package input

import (
	"sync"
	"time"

	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/input/event"
)

// hotkeyDebounce keeps a held key from toggling a host feature every frame.
const hotkeyDebounce = 300 * time.Millisecond

// Handler debounces host hotkeys (pause, fast-forward, snapshot...).
// Console buttons are never debounced here, the Queue owns their rules.
type Handler struct {
	mu             sync.Mutex
	lastActionTime map[action.Action]time.Time
	debounceDelay  time.Duration
	now            func() time.Time
}

func NewHandler() *Handler {
	return &Handler{
		lastActionTime: make(map[action.Action]time.Time),
		debounceDelay:  hotkeyDebounce,
		now:            time.Now,
	}
}

// ProcessEvent returns true if the event should be handled, false if it was
// debounced.
func (h *Handler) ProcessEvent(act action.Action, typ event.Type) bool {
	if act.IsConsole() || typ != event.Press {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if lastTime, exists := h.lastActionTime[act]; exists {
		if now.Sub(lastTime) < h.debounceDelay {
			return false
		}
	}
	h.lastActionTime[act] = now
	return true
}
