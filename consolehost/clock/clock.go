// Package clock drives an adapter at a fixed tick rate, feeding it queued
// input and routing its output to the audio pipeline and the renderer.
package clock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/valerio/go-consolehost/consolehost/audio"
	"github.com/valerio/go-consolehost/consolehost/console"
	"github.com/valerio/go-consolehost/consolehost/input"
	"github.com/valerio/go-consolehost/consolehost/lifecycle"
	"github.com/valerio/go-consolehost/consolehost/logging"
	"github.com/valerio/go-consolehost/consolehost/timing"
	"github.com/valerio/go-consolehost/consolehost/video"
)

// ErrNotReady is returned by Start when no adapter or frame sink is
// attached.
var ErrNotReady = errors.New("clock needs an adapter and a frame sink")

type State int

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FrameSink receives the one frame produced per tick. It must not block
// and must not call back into the clock.
type FrameSink interface {
	UpdateTexture(frame video.Frame)
}

// InputSource hands over the inputs accepted since the last tick.
type InputSource interface {
	Drain() []input.PendingInput
}

// AudioSink is the part of the audio pipeline the clock drives.
type AudioSink interface {
	Enqueue(samples []int16, src audio.Format)
	Stop()
	Reset() error
}

type Stats struct {
	Ticks  uint64
	Steps  uint64
	Frames uint64
}

// Clock owns the tick goroutine. Its lock guards only its own fields and
// is never held while calling the adapter, the sink or the pipeline.
type Clock struct {
	mu       sync.Mutex
	state    State
	adapter  console.Adapter
	sink     FrameSink
	maxFF    int
	ffFactor int

	newSource func() timing.Source
	source    timing.Source
	cancel    context.CancelFunc
	done      chan struct{}

	store  *lifecycle.Store
	inputs InputSource
	audio  AudioSink
	logger *slog.Logger

	skipAudio atomic.Bool
	ticks     atomic.Uint64
	steps     atomic.Uint64
	frames    atomic.Uint64
}

type Option func(*Clock)

// WithSource sets how the tick source is created. The default ticks at
// timing.DefaultRate.
func WithSource(newSource func() timing.Source) Option {
	return func(c *Clock) { c.newSource = newSource }
}

// WithRate ticks at rate per second from a time.Ticker.
func WithRate(rate int) Option {
	return WithSource(func() timing.Source { return timing.NewTickerSource(rate) })
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Clock) { c.logger = l }
}

func New(store *lifecycle.Store, inputs InputSource, sink AudioSink, opts ...Option) *Clock {
	c := &Clock{
		store:    store,
		inputs:   inputs,
		audio:    sink,
		maxFF:    1,
		ffFactor: 1,
		logger:   logging.Deferred(),
	}
	WithRate(timing.DefaultRate)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach sets the adapter to drive and its fast-forward ceiling. Only
// allowed before Start.
func (c *Clock) Attach(adapter console.Adapter, maxFastForward int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return fmt.Errorf("%w: attach while %s", lifecycle.ErrInvalidTransition, c.state)
	}
	c.adapter = adapter
	c.maxFF = max(maxFastForward, 1)
	c.ffFactor = 1
	return nil
}

// AttachSink sets the renderer frames are delivered to.
func (c *Clock) AttachSink(sink FrameSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return fmt.Errorf("%w: attach sink while %s", lifecycle.ErrInvalidTransition, c.state)
	}
	c.sink = sink
	return nil
}

// Start begins emulation and ticking.
func (c *Clock) Start() error {
	if c.store.Snapshot().ShuttingDown {
		return lifecycle.ErrShuttingDown
	}

	c.mu.Lock()
	if c.adapter == nil || c.sink == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start while %s", lifecycle.ErrInvalidTransition, state)
	}
	c.state = Running
	adapter := c.adapter
	c.mu.Unlock()

	if _, err := c.store.Mutate(func(st *lifecycle.RunState) {
		st.EmulationStarted = true
		st.Paused = false
	}); err != nil {
		c.mu.Lock()
		if c.state == Running {
			c.state = Idle
		}
		c.mu.Unlock()
		return fmt.Errorf("start emulation: %w", err)
	}

	adapter.StartEmulation()
	c.skipAudio.Store(true)
	c.startTicking()

	c.logger.Info("Emulation started")
	return nil
}

// Pause stops the audio path and the tick goroutine, then pauses the
// adapter. Once it returns no tick steps the adapter or delivers a frame.
// It must not be called from the tick goroutine.
func (c *Clock) Pause() error {
	if c.store.Snapshot().ShuttingDown {
		return lifecycle.ErrShuttingDown
	}
	adapter, err := c.claim(Running, Paused)
	if err != nil {
		return err
	}

	c.audio.Stop()
	if _, err := c.store.Mutate(func(st *lifecycle.RunState) { st.Paused = true }); err != nil {
		c.logger.Warn("Failed to record pause", "error", err)
	}
	c.stopTicking()
	adapter.Pause()

	c.logger.Info("Emulation paused")
	return nil
}

// Resume restarts a paused clock with a fresh audio device.
func (c *Clock) Resume() error {
	if c.store.Snapshot().ShuttingDown {
		return lifecycle.ErrShuttingDown
	}
	adapter, err := c.claim(Paused, Running)
	if err != nil {
		return err
	}

	if err := c.audio.Reset(); err != nil {
		c.logger.Warn("Failed to reset audio on resume", "error", err)
	}
	c.skipAudio.Store(true)
	adapter.Resume()
	if _, err := c.store.Mutate(func(st *lifecycle.RunState) { st.Paused = false }); err != nil {
		c.logger.Warn("Failed to record resume", "error", err)
	}
	c.startTicking()

	c.logger.Info("Emulation resumed")
	return nil
}

// Tick runs one frame: apply queued input, step the adapter once per
// fast-forward step and deliver the last frame. It is a no-op unless the
// session is started, not paused, not shutting down and the clock is
// running. Only one goroutine may call Tick at a time.
func (c *Clock) Tick() {
	st := c.store.Snapshot()
	if st.ShuttingDown || st.Paused || !st.EmulationStarted {
		return
	}

	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	adapter, sink, factor := c.adapter, c.sink, c.ffFactor
	c.mu.Unlock()

	c.ticks.Add(1)

	for _, in := range c.inputs.Drain() {
		if in.Pressed {
			adapter.PressButton(in.Action)
		} else {
			adapter.ReleaseButton(in.Action)
		}
	}

	format := adapter.AudioFormat()
	var last console.Frame
	for i := 0; i < factor; i++ {
		last = adapter.PerformFrame()
		c.steps.Add(1)

		if len(last.Audio) == 0 {
			continue
		}
		// the first chunk after (re)initialisation is garbage on some cores
		if c.skipAudio.CompareAndSwap(true, false) {
			continue
		}
		c.audio.Enqueue(last.Audio, format)
	}

	sink.UpdateTexture(last.Video)
	c.frames.Add(1)
}

// SetFastForward switches between normal speed and the adapter's maximum
// and forwards the factor as the playback rate. It returns the new factor.
func (c *Clock) SetFastForward(on bool) int {
	c.mu.Lock()
	factor := 1
	if on {
		factor = c.maxFF
	}
	c.ffFactor = factor
	adapter := c.adapter
	c.mu.Unlock()

	if adapter != nil {
		adapter.SetPlaybackRate(float32(factor))
	}
	c.logger.Info("Fast forward", "factor", factor)
	return factor
}

// ToggleFastForward flips fast-forward and returns the new factor.
func (c *Clock) ToggleFastForward() int {
	return c.SetFastForward(c.FastForward() == 1)
}

// FastForward returns the current step factor.
func (c *Clock) FastForward() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ffFactor
}

// Stop ends ticking for good. It is idempotent and may be called in any
// state.
func (c *Clock) Stop() {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return
	}
	c.state = Stopped
	c.mu.Unlock()

	c.stopTicking()
	c.logger.Debug("Clock stopped")
}

// ReleaseSource stops the underlying timer.
func (c *Clock) ReleaseSource() {
	c.mu.Lock()
	src := c.source
	c.source = nil
	c.mu.Unlock()

	if src != nil {
		src.Stop()
	}
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Clock) Stats() Stats {
	return Stats{
		Ticks:  c.ticks.Load(),
		Steps:  c.steps.Load(),
		Frames: c.frames.Load(),
	}
}

// claim moves the clock from one state to another, failing if some other
// caller got there first.
func (c *Clock) claim(from, to State) (console.Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from {
		return nil, fmt.Errorf("%w: %s while %s", lifecycle.ErrInvalidTransition, to, c.state)
	}
	c.state = to
	return c.adapter, nil
}

func (c *Clock) startTicking() {
	c.mu.Lock()
	if c.state != Running || c.cancel != nil {
		c.mu.Unlock()
		return
	}
	if c.source == nil {
		c.source = c.newSource()
	} else {
		c.source.Reset()
	}
	src := c.source
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	go c.run(ctx, src, done)
}

// stopTicking cancels the tick goroutine and waits for it to exit.
func (c *Clock) stopTicking() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Clock) run(ctx context.Context, src timing.Source, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-src.C():
			if ctx.Err() != nil {
				return
			}
			c.Tick()
		}
	}
}
