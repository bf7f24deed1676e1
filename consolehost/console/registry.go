package console

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNoAdapter = errors.New("no adapter registered")

// ROM is a game image ready to hand to an adapter.
type ROM struct {
	Name string
	Data []byte
}

// Factory builds an adapter for a ROM.
type Factory func(rom ROM) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Type]Factory)
)

// Register makes a factory available for t. Adapters register themselves
// from init; registering twice replaces the earlier factory.
func Register(t Type, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = f
}

// New builds the adapter registered for t.
func New(t Type, rom ROM) (Adapter, error) {
	registryMu.RLock()
	f, ok := registry[t]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoAdapter, t)
	}
	return f(rom)
}

// Registered reports whether an adapter is available for t.
func Registered(t Type) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[t]
	return ok
}
