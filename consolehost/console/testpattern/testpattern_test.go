package testpattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-consolehost/consolehost/console"
	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/video"
)

func started(t *testing.T) *Adapter {
	t.Helper()
	a := New()
	require.NoError(t, a.PowerUp())
	a.StartEmulation()
	return a
}

func TestRegistered(t *testing.T) {
	adapter, err := console.New(console.Pattern, console.ROM{})
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, adapter)
}

func TestPerformFrame(t *testing.T) {
	a := started(t)
	frame := a.PerformFrame()

	assert.Equal(t, 256, frame.Video.Width)
	assert.Equal(t, 240, frame.Video.Height)
	assert.Len(t, frame.Video.Pixels, 256*240)
	assert.Len(t, frame.Audio, samplesPerFrame)

	// checkerboard corner, away from the cursor
	assert.Equal(t, video.WhiteColor, frame.Video.At(0, 0))
	assert.Equal(t, video.BlackColor, frame.Video.At(tileSize, 0))

	nonZero := 0
	for _, s := range frame.Audio {
		if s != 0 {
			nonZero++
		}
	}
	assert.Equal(t, len(frame.Audio), nonZero)
}

func TestPerformFrameWhilePaused(t *testing.T) {
	a := started(t)
	a.Pause()
	frame := a.PerformFrame()
	assert.Empty(t, frame.Audio)
	assert.False(t, frame.Video.Empty())

	a.Resume()
	assert.NotEmpty(t, a.PerformFrame().Audio)
}

func TestButtonA_CyclesPatterns(t *testing.T) {
	a := started(t)
	for i := 1; i <= PatternCount; i++ {
		a.PressButton(action.ButtonA)
		a.ReleaseButton(action.ButtonA)
		assert.Equal(t, i%PatternCount, a.Pattern())
	}

	a.PressButton(action.ButtonA)
	a.PressButton(action.ButtonA)
	assert.Equal(t, 1, a.Pattern(), "a held button does not cycle again")
}

func TestDPadMovesCursor(t *testing.T) {
	a := started(t)
	x0, y0 := a.Cursor()

	a.PressButton(action.ButtonRight)
	a.PressButton(action.ButtonUp)
	a.PerformFrame()
	a.PerformFrame()
	a.ReleaseButton(action.ButtonRight)
	a.ReleaseButton(action.ButtonUp)
	a.PerformFrame()

	x, y := a.Cursor()
	assert.Equal(t, x0+2*cursorSpeed, x)
	assert.Equal(t, y0-2*cursorSpeed, y)

	a.PressButton(action.ButtonLeft)
	for i := 0; i < 500; i++ {
		a.PerformFrame()
	}
	x, _ = a.Cursor()
	assert.Zero(t, x, "cursor stays on screen")
}

func TestCheats(t *testing.T) {
	tests := []struct {
		name    string
		cheat   console.Cheat
		wantErr bool
		want    int
	}{
		{"selects pattern", console.Cheat{Code: "PATTERN3", Type: console.GameGenie6, Active: true}, false, 3},
		{"inactive is recorded only", console.Cheat{Code: "PATTERN2", Type: console.GameGenie6}, false, 0},
		{"wrong type", console.Cheat{Code: "PATTERN1", Type: console.GameShark, Active: true}, true, 0},
		{"out of range", console.Cheat{Code: "PATTERN9", Type: console.GameGenie6, Active: true}, true, 0},
		{"garbage", console.Cheat{Code: "SXIOPO", Type: console.GameGenie6, Active: true}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := started(t)
			err := a.ActivateCheat(tt.cheat)
			if tt.wantErr {
				assert.ErrorIs(t, err, console.ErrInvalidCheat)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, a.Pattern())
		})
	}

	a := started(t)
	require.NoError(t, a.ActivateCheat(console.Cheat{Code: "pattern2", Type: console.GameGenie6, Active: true}))
	assert.Len(t, a.Cheats(), 1)
	a.ResetCheats()
	assert.Empty(t, a.Cheats())
	assert.Zero(t, a.Pattern())
}

func TestSaveLoadState(t *testing.T) {
	a := started(t)
	a.PressButton(action.ButtonA)
	a.PressButton(action.ButtonDown)
	for i := 0; i < 10; i++ {
		a.PerformFrame()
	}
	state, err := a.SaveState()
	require.NoError(t, err)

	b := started(t)
	require.NoError(t, b.LoadState(state))
	assert.Equal(t, a.Pattern(), b.Pattern())
	ax, ay := a.Cursor()
	bx, by := b.Cursor()
	assert.Equal(t, ax, bx)
	assert.Equal(t, ay, by)

	assert.Error(t, b.LoadState([]byte("nope")))
	bad := append([]byte(nil), state...)
	bad[0] = 'X'
	assert.Error(t, b.LoadState(bad))
}

func TestPlaybackRate(t *testing.T) {
	a := New()
	assert.Equal(t, float32(1), a.PlaybackRate())
	a.SetPlaybackRate(4)
	assert.Equal(t, float32(4), a.PlaybackRate())
	assert.Equal(t, 44100, a.AudioFormat().SampleRate)
	assert.Equal(t, 1, a.AudioFormat().Channels)
}

func TestLoadStateLeavesDeliveredFrameAlone(t *testing.T) {
	src := started(t)
	src.PressButton(action.ButtonA)
	state, err := src.SaveState()
	require.NoError(t, err)

	a := started(t)
	frame := a.PerformFrame()
	require.Equal(t, video.WhiteColor, frame.Video.At(0, 0))

	require.NoError(t, a.LoadState(state))
	assert.Equal(t, 1, a.Pattern())
	assert.Equal(t, video.WhiteColor, frame.Video.At(0, 0), "pixels change on the next frame only")

	a.Pause()
	frame = a.PerformFrame()
	assert.Equal(t, video.BlackColor, frame.Video.At(0, 0), "gradient starts black")
}
