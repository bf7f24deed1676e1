package console

import (
	"github.com/valerio/go-consolehost/consolehost/audio"
	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/video"
)

// Frame is the output of one emulation step.
type Frame struct {
	Video video.Frame
	// Audio holds the samples produced during the step, interleaved, in
	// the adapter's AudioFormat.
	Audio []int16
}

// Adapter is the contract between the session and one emulated system.
// Stepping and button calls come from the tick goroutine only. Cheats,
// playback rate and save states may be requested from other goroutines
// while the clock runs, so implementations guard their state.
type Adapter interface {
	// PowerUp prepares the loaded ROM. It is called once before
	// StartEmulation.
	PowerUp() error
	StartEmulation()
	Pause()
	Resume()
	Shutdown()

	// PerformFrame advances one video frame. The returned video frame may
	// alias adapter memory and is only valid until the next call.
	PerformFrame() Frame

	PressButton(act action.Action)
	ReleaseButton(act action.Action)

	ActivateCheat(cheat Cheat) error
	ResetCheats()

	// SetPlaybackRate receives the fast-forward factor (1 is normal speed).
	SetPlaybackRate(rate float32)

	SaveState() ([]byte, error)
	LoadState(state []byte) error

	AudioFormat() audio.Format
}
