package consolehost

import "errors"

var (
	// ErrAdapterInit is returned by Load when no adapter could be built or
	// powered up for the ROM.
	ErrAdapterInit = errors.New("adapter initialization failed")

	// ErrRendererInit is returned by AttachRenderer when the frame consumer
	// could not be initialized.
	ErrRendererInit = errors.New("renderer initialization failed")

	// ErrTimeout marks a shutdown step that did not finish in time. It is
	// logged, never returned to callers.
	ErrTimeout = errors.New("timed out")

	// ErrNotLoaded is returned by operations that need a loaded game.
	ErrNotLoaded = errors.New("no game loaded")
)
