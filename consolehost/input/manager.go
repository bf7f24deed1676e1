package input

import (
	"log/slog"
	"sync"

	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/input/event"
)

// Submitter accepts console button transitions. Queue and the session both
// satisfy it.
type Submitter interface {
	Submit(act action.Action, pressed bool) bool
}

// Manager is the single entry point for every input producer: console
// buttons are forwarded to the Submitter, host actions run their callbacks.
type Manager struct {
	mu       sync.RWMutex
	handlers map[action.Action][]func()
	hotkeys  *Handler
	target   Submitter
}

func NewManager(target Submitter) *Manager {
	return &Manager{
		handlers: make(map[action.Action][]func()),
		hotkeys:  NewHandler(),
		target:   target,
	}
}

// On registers a callback for a host action. Callbacks run on the
// producer's goroutine and must not block.
func (m *Manager) On(act action.Action, callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[act] = append(m.handlers[act], callback)
}

// Trigger handles the given action and event type.
func (m *Manager) Trigger(act action.Action, evt event.Type) {
	if act.IsConsole() {
		if m.target != nil {
			m.target.Submit(act, evt == event.Press)
		}
		return
	}

	if !m.hotkeys.ProcessEvent(act, evt) || evt != event.Press {
		return
	}

	m.mu.RLock()
	callbacks := m.handlers[act]
	m.mu.RUnlock()

	if len(callbacks) == 0 {
		slog.Debug("No handler for host action", "action", act)
		return
	}
	for _, callback := range callbacks {
		callback()
	}
}
