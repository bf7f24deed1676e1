// Package testpattern is a built-in adapter that draws test patterns and
// plays a tone instead of emulating a system. It exercises the whole host
// without a ROM.
package testpattern

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/valerio/go-consolehost/consolehost/audio"
	"github.com/valerio/go-consolehost/consolehost/console"
	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/video"
)

const (
	PatternCount = 4

	tileSize        = 8
	stripeWidth     = 4
	animationFrames = 30
	stripeSpeed     = 2
	diagonalSpeed   = 4

	cursorSize  = 8
	cursorSpeed = 2

	sampleRate      = 44100
	samplesPerFrame = sampleRate / 60
	toneAmplitude   = 3000
	baseToneHz      = 220
)

var stateMagic = [4]byte{'T', 'P', 'A', 'T'}

const stateVersion = 1

// savedState is the fixed-size binary layout of a save state.
type savedState struct {
	Magic   [4]byte
	Version uint8
	Pattern uint8
	Base    uint8
	_       uint8
	Frame   uint32
	CursorX uint16
	CursorY uint16
	Phase   uint32
}

func init() {
	console.Register(console.Pattern, func(rom console.ROM) (console.Adapter, error) {
		return New(), nil
	})
}

// Adapter displays test patterns without actual emulation.
type Adapter struct {
	mu sync.Mutex

	fb     *video.FrameBuffer
	width  int
	height int

	pattern     int
	basePattern int
	frame       int
	cursorX     int
	cursorY     int
	held        map[action.Action]bool

	phase   int
	samples []int16

	// redraw is set when state changed outside PerformFrame. The frame
	// handed out last may still be read by the consumer, so only
	// PerformFrame touches the framebuffer.
	redraw bool

	cheats  []console.Cheat
	rate    float32
	powered bool
	running bool
	paused  bool
}

func New() *Adapter {
	spec, _ := console.SpecFor(console.Pattern)
	return &Adapter{
		fb:      video.NewFrameBuffer(spec.Width, spec.Height),
		width:   spec.Width,
		height:  spec.Height,
		cursorX: (spec.Width - cursorSize) / 2,
		cursorY: (spec.Height - cursorSize) / 2,
		held:    make(map[action.Action]bool),
		samples: make([]int16, samplesPerFrame),
		rate:    1,
	}
}

func (a *Adapter) PowerUp() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.powered = true
	a.render()
	return nil
}

func (a *Adapter) StartEmulation() {
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()
}

func (a *Adapter) Pause() {
	a.mu.Lock()
	a.paused = true
	a.mu.Unlock()
}

func (a *Adapter) Resume() {
	a.mu.Lock()
	a.paused = false
	a.mu.Unlock()
}

func (a *Adapter) Shutdown() {
	a.mu.Lock()
	a.running = false
	a.held = make(map[action.Action]bool)
	a.mu.Unlock()
}

// PerformFrame moves the cursor, redraws and synthesises one frame of tone.
// Before StartEmulation or while paused it returns the last picture and no
// audio.
func (a *Adapter) PerformFrame() console.Frame {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.powered || !a.running || a.paused {
		if a.redraw {
			a.render()
		}
		return console.Frame{Video: a.fb.Frame()}
	}

	a.frame++
	a.moveCursor()
	a.render()
	a.tone()

	return console.Frame{Video: a.fb.Frame(), Audio: a.samples}
}

func (a *Adapter) PressButton(act action.Action) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.held[act] && act == action.ButtonA {
		a.pattern = (a.pattern + 1) % PatternCount
		a.basePattern = a.pattern
	}
	a.held[act] = true
}

func (a *Adapter) ReleaseButton(act action.Action) {
	a.mu.Lock()
	delete(a.held, act)
	a.mu.Unlock()
}

var errUnsupportedCheat = errors.New("test pattern only understands GameGenie6 PATTERN<n>")

// ActivateCheat accepts GameGenie6 codes of the form PATTERN<n>, which
// force pattern n until the cheats are reset.
func (a *Adapter) ActivateCheat(cheat console.Cheat) error {
	if cheat.Type != console.GameGenie6 {
		return fmt.Errorf("%w: %w", console.ErrInvalidCheat, errUnsupportedCheat)
	}
	digits, ok := strings.CutPrefix(strings.ToUpper(cheat.Code), "PATTERN")
	if !ok {
		return fmt.Errorf("%w: %w", console.ErrInvalidCheat, errUnsupportedCheat)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 || n >= PatternCount {
		return fmt.Errorf("%w: pattern %q out of range", console.ErrInvalidCheat, digits)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if cheat.Active {
		a.pattern = n
	}
	a.cheats = append(a.cheats, cheat)
	return nil
}

func (a *Adapter) ResetCheats() {
	a.mu.Lock()
	a.cheats = nil
	a.pattern = a.basePattern
	a.mu.Unlock()
}

// Cheats returns the cheats activated since the last reset.
func (a *Adapter) Cheats() []console.Cheat {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]console.Cheat(nil), a.cheats...)
}

func (a *Adapter) SetPlaybackRate(rate float32) {
	a.mu.Lock()
	a.rate = rate
	a.mu.Unlock()
}

func (a *Adapter) PlaybackRate() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate
}

func (a *Adapter) SaveState() ([]byte, error) {
	a.mu.Lock()
	st := savedState{
		Magic:   stateMagic,
		Version: stateVersion,
		Pattern: uint8(a.pattern),
		Base:    uint8(a.basePattern),
		Frame:   uint32(a.frame),
		CursorX: uint16(a.cursorX),
		CursorY: uint16(a.cursorY),
		Phase:   uint32(a.phase),
	}
	a.mu.Unlock()

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, st); err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *Adapter) LoadState(state []byte) error {
	var st savedState
	if err := binary.Read(bytes.NewReader(state), binary.LittleEndian, &st); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if st.Magic != stateMagic || st.Version != stateVersion {
		return errors.New("not a test pattern save state")
	}
	if int(st.Pattern) >= PatternCount || int(st.Base) >= PatternCount {
		return fmt.Errorf("pattern %d out of range", st.Pattern)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pattern = int(st.Pattern)
	a.basePattern = int(st.Base)
	a.frame = int(st.Frame)
	a.cursorX = min(int(st.CursorX), a.width-cursorSize)
	a.cursorY = min(int(st.CursorY), a.height-cursorSize)
	a.phase = int(st.Phase)
	a.redraw = true
	return nil
}

func (a *Adapter) AudioFormat() audio.Format {
	return audio.Format{SampleRate: sampleRate, Channels: 1, Encoding: audio.EncodingInt16}
}

// Pattern returns the pattern currently drawn.
func (a *Adapter) Pattern() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pattern
}

// Cursor returns the top-left corner of the cursor block.
func (a *Adapter) Cursor() (x, y int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursorX, a.cursorY
}

func (a *Adapter) moveCursor() {
	if a.held[action.ButtonLeft] {
		a.cursorX -= cursorSpeed
	}
	if a.held[action.ButtonRight] {
		a.cursorX += cursorSpeed
	}
	if a.held[action.ButtonUp] {
		a.cursorY -= cursorSpeed
	}
	if a.held[action.ButtonDown] {
		a.cursorY += cursorSpeed
	}
	a.cursorX = min(max(a.cursorX, 0), a.width-cursorSize)
	a.cursorY = min(max(a.cursorY, 0), a.height-cursorSize)
}

func (a *Adapter) render() {
	a.redraw = false
	step := a.frame / animationFrames
	for y := 0; y < a.height; y++ {
		for x := 0; x < a.width; x++ {
			a.fb.SetPixel(x, y, a.patternColor(x, y, step))
		}
	}

	cursor := video.WhiteColor
	if a.held[action.ButtonB] {
		cursor = video.RGB565(0xFF, 0x40, 0x40)
	}
	for y := a.cursorY; y < a.cursorY+cursorSize; y++ {
		for x := a.cursorX; x < a.cursorX+cursorSize; x++ {
			a.fb.SetPixel(x, y, cursor)
		}
	}
}

func (a *Adapter) patternColor(x, y, step int) video.Color {
	switch a.pattern {
	case 0: // checkerboard
		if (x/tileSize+y/tileSize)%2 == 0 {
			return video.WhiteColor
		}
		return video.BlackColor
	case 1: // gradient
		switch x * 4 / a.width {
		case 0:
			return video.BlackColor
		case 1:
			return video.DarkGreyColor
		case 2:
			return video.LightGreyColor
		default:
			return video.WhiteColor
		}
	case 2: // vertical stripes, scrolling
		if ((x+step*stripeSpeed)/stripeWidth)%2 == 0 {
			return video.WhiteColor
		}
		return video.DarkGreyColor
	default: // diagonal lines, scrolling
		if ((x+y+step*diagonalSpeed)/tileSize)%2 == 0 {
			return video.LightGreyColor
		}
		return video.DarkGreyColor
	}
}

// tone fills the sample buffer with a square wave whose pitch follows the
// cursor's horizontal position. Holding B mutes it.
func (a *Adapter) tone() {
	if a.held[action.ButtonB] {
		clear(a.samples)
		return
	}

	freq := baseToneHz + a.cursorX*2
	half := sampleRate / (2 * freq)
	for i := range a.samples {
		if (a.phase/half)%2 == 0 {
			a.samples[i] = toneAmplitude
		} else {
			a.samples[i] = -toneAmplitude
		}
		a.phase++
	}
	a.phase %= 2 * half
}

var _ console.Adapter = (*Adapter)(nil)
