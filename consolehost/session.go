// Package consolehost runs one emulated system: it wires the input queue,
// the frame clock, the audio pipeline and a frame consumer around an
// adapter and tears them down again on shutdown.
package consolehost

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/valerio/go-consolehost/consolehost/audio"
	"github.com/valerio/go-consolehost/consolehost/backend"
	"github.com/valerio/go-consolehost/consolehost/clock"
	"github.com/valerio/go-consolehost/consolehost/config"
	"github.com/valerio/go-consolehost/consolehost/console"
	"github.com/valerio/go-consolehost/consolehost/input"
	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/lifecycle"
	"github.com/valerio/go-consolehost/consolehost/logging"
	"github.com/valerio/go-consolehost/consolehost/timing"
)

// AdapterFactory builds the adapter for a console type. console.New is
// the default.
type AdapterFactory func(t console.Type, rom console.ROM) (console.Adapter, error)

// Session owns every component of one running game. All methods are safe
// for concurrent use.
type Session struct {
	cfg    config.Config
	logger *slog.Logger

	store    *lifecycle.Store
	queue    *input.Queue
	inputs   *input.Manager
	pipeline *audio.Pipeline
	clock    *clock.Clock

	newAdapter AdapterFactory
	newDevice  audio.DeviceFactory
	newSource  func() timing.Source

	mu       sync.Mutex
	adapter  console.Adapter
	loading  bool
	consumer backend.FrameConsumer
	spec     console.Spec
	gameName string

	pauseMenu    atomic.Bool
	discardAudio atomic.Bool
	quit         chan struct{}
	quitOnce     sync.Once
	done         chan struct{}
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithAdapterFactory replaces the console registry lookup.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(s *Session) { s.newAdapter = f }
}

// WithDeviceFactory selects the audio output. The default discards audio.
func WithDeviceFactory(f audio.DeviceFactory) Option {
	return func(s *Session) { s.newDevice = f }
}

// WithSource replaces the wall-clock ticker that paces the frame clock.
func WithSource(newSource func() timing.Source) Option {
	return func(s *Session) { s.newSource = newSource }
}

func New(cfg config.Config, opts ...Option) *Session {
	s := &Session{
		cfg:        cfg,
		logger:     logging.Deferred(),
		newAdapter: console.New,
		newDevice:  audio.NewDiscard,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = config.Default().ShutdownTimeout
	}
	if s.newSource == nil {
		rate := cfg.TickRate
		s.newSource = func() timing.Source { return timing.NewTickerSource(rate) }
	}

	s.store = lifecycle.NewStore(s.logger)
	s.store.Observe(func(st lifecycle.RunState) {
		s.logger.Debug("Run state changed", "state", st)
	})

	s.queue = input.NewQueue(
		input.WithRepeatThreshold(cfg.RepeatThreshold),
		input.WithGate(func() bool { return !s.store.Snapshot().ShuttingDown }),
		input.WithLogger(s.logger),
	)
	s.pipeline = audio.NewPipeline(s.openDevice,
		audio.WithMaxPending(cfg.MaxPendingAudio),
		audio.WithPipelineLogger(s.logger),
	)
	s.clock = clock.New(s.store, s.queue, s.pipeline,
		clock.WithSource(s.newSource),
		clock.WithLogger(s.logger),
	)

	s.inputs = input.NewManager(s)
	s.registerHostActions()
	return s
}

// openDevice falls back to discarding audio when the configured output
// cannot be opened, so a missing sound card never stops a game.
func (s *Session) openDevice(sampleRate int) (audio.Device, error) {
	if s.discardAudio.Load() {
		return audio.NewDiscard(sampleRate)
	}
	dev, err := s.newDevice(sampleRate)
	if err == nil {
		return dev, nil
	}
	s.logger.Warn("Audio output unavailable, discarding audio", "error", err)
	s.discardAudio.Store(true)
	return audio.NewDiscard(sampleRate)
}

// registerHostActions binds host hotkeys. Callbacks run on the producer's
// goroutine, which is never the tick goroutine.
func (s *Session) registerHostActions() {
	s.inputs.On(action.HostPauseToggle, func() {
		if err := s.TogglePause(); err != nil {
			s.logger.Debug("Pause toggle ignored", "error", err)
		}
	})
	s.inputs.On(action.HostFastForwardToggle, func() { s.ToggleFastForward() })
	s.inputs.On(action.HostMenu, s.Background)
	s.inputs.On(action.HostQuit, s.RequestQuit)
}

// Load builds and powers up the adapter for rom. A session hosts one game
// for its whole life.
func (s *Session) Load(t console.Type, rom console.ROM) error {
	if s.store.Snapshot().ShuttingDown {
		return lifecycle.ErrShuttingDown
	}
	spec, ok := console.SpecFor(t)
	if !ok {
		return fmt.Errorf("%w: unknown console type %q", ErrAdapterInit, t)
	}

	s.mu.Lock()
	if s.adapter != nil || s.loading {
		s.mu.Unlock()
		return fmt.Errorf("%w: a game is already loaded", lifecycle.ErrInvalidTransition)
	}
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	adapter, err := s.newAdapter(t, rom)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAdapterInit, err)
	}
	if err := adapter.PowerUp(); err != nil {
		adapter.Shutdown()
		return fmt.Errorf("%w: power up: %w", ErrAdapterInit, err)
	}
	if err := s.clock.Attach(adapter, spec.MaxFastForward); err != nil {
		adapter.Shutdown()
		return fmt.Errorf("%w: %w", ErrAdapterInit, err)
	}

	// Shutdown copies the adapter under s.mu after BeginShutdown, so
	// checking here leaves exactly one of us to shut it down.
	s.mu.Lock()
	if s.store.Snapshot().ShuttingDown {
		s.mu.Unlock()
		adapter.Shutdown()
		return lifecycle.ErrShuttingDown
	}
	s.adapter = adapter
	s.spec = spec
	s.gameName = gameName(rom.Name, spec)
	s.mu.Unlock()

	if err := s.pipeline.Configure(adapter.AudioFormat()); err != nil {
		s.logger.Warn("Audio not configured", "error", err)
	}
	if _, err := s.store.Mutate(func(st *lifecycle.RunState) { st.CoreTypeSelected = true }); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	s.logger.Info("Game loaded", "console", spec.Name, "game", s.GameName(), "bytes", len(rom.Data))
	return nil
}

func gameName(romName string, spec console.Spec) string {
	if romName == "" {
		return string(spec.Type)
	}
	base := filepath.Base(romName)
	return base[:len(base)-len(filepath.Ext(base))]
}

// initializer is implemented by consumers that need setup before the
// first frame.
type initializer interface {
	Init() error
}

// AttachRenderer initializes consumer if it needs it and makes it the
// target of every delivered frame.
func (s *Session) AttachRenderer(consumer backend.FrameConsumer) error {
	if consumer == nil {
		return fmt.Errorf("%w: nil consumer", ErrRendererInit)
	}
	if s.store.Snapshot().ShuttingDown {
		return lifecycle.ErrShuttingDown
	}
	if in, ok := consumer.(initializer); ok {
		if err := in.Init(); err != nil {
			return fmt.Errorf("%w: %w", ErrRendererInit, err)
		}
	}
	if err := s.clock.AttachSink(consumer); err != nil {
		return fmt.Errorf("%w: %w", ErrRendererInit, err)
	}

	s.mu.Lock()
	s.consumer = consumer
	s.mu.Unlock()

	if _, err := s.store.Mutate(func(st *lifecycle.RunState) { st.RendererInitialized = true }); err != nil {
		return fmt.Errorf("%w: %w", ErrRendererInit, err)
	}
	return nil
}

// Start begins emulation. Load and AttachRenderer must have succeeded.
func (s *Session) Start() error {
	return s.clock.Start()
}

// Submit forwards a button transition to the input queue.
func (s *Session) Submit(act action.Action, pressed bool) bool {
	return s.queue.Submit(act, pressed)
}

// Inputs is the entry point for input producers such as the terminal
// and scripts.
func (s *Session) Inputs() *input.Manager {
	return s.inputs
}

func (s *Session) Pause() error {
	return s.clock.Pause()
}

func (s *Session) Resume() error {
	return s.clock.Resume()
}

func (s *Session) TogglePause() error {
	if s.clock.State() == clock.Paused {
		return s.Resume()
	}
	return s.Pause()
}

// ToggleFastForward flips between normal speed and the console's maximum
// and returns the new factor.
func (s *Session) ToggleFastForward() int {
	return s.clock.ToggleFastForward()
}

func (s *Session) SetFastForward(on bool) int {
	return s.clock.SetFastForward(on)
}

// Background pauses a running game and raises the pause-menu flag, as
// when the host loses focus.
func (s *Session) Background() {
	if err := s.Pause(); err != nil {
		s.logger.Debug("Background without pause", "error", err)
		return
	}
	s.pauseMenu.Store(true)
}

// Foreground reports and clears the pause-menu flag. The game stays
// paused until the user resumes it.
func (s *Session) Foreground() bool {
	return s.pauseMenu.Swap(false)
}

// RouteChanged reopens the audio device after the output route changed.
// A paused session picks up the new route on resume.
func (s *Session) RouteChanged() {
	if s.clock.State() != clock.Running {
		return
	}
	if err := s.pipeline.Reset(); err != nil {
		s.logger.Warn("Failed to reset audio after route change", "error", err)
	}
}

func (s *Session) loaded() (console.Adapter, error) {
	if s.store.Snapshot().ShuttingDown {
		return nil, lifecycle.ErrShuttingDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return nil, ErrNotLoaded
	}
	return s.adapter, nil
}

func (s *Session) ActivateCheat(cheat console.Cheat) error {
	adapter, err := s.loaded()
	if err != nil {
		return err
	}
	if err := adapter.ActivateCheat(cheat); err != nil {
		return fmt.Errorf("activate cheat %q: %w", cheat.Code, err)
	}
	s.logger.Info("Cheat activated", "type", cheat.Type, "code", cheat.Code)
	return nil
}

func (s *Session) ResetCheats() error {
	adapter, err := s.loaded()
	if err != nil {
		return err
	}
	adapter.ResetCheats()
	return nil
}

// SaveState writes the adapter state to path. The file is replaced
// atomically so a crash never leaves a truncated state behind.
func (s *Session) SaveState(path string) error {
	adapter, err := s.loaded()
	if err != nil {
		return err
	}
	state, err := adapter.SaveState()
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := writeFileAtomic(path, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	s.logger.Info("State saved", "path", path, "bytes", len(state))
	return nil
}

func (s *Session) LoadState(path string) error {
	adapter, err := s.loaded()
	if err != nil {
		return err
	}
	state, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := adapter.LoadState(state); err != nil {
		return fmt.Errorf("load state %s: %w", path, err)
	}
	s.logger.Info("State loaded", "path", path)
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// State returns the current run state.
func (s *Session) State() lifecycle.RunState {
	return s.store.Snapshot()
}

// Observe registers fn for every run state change.
func (s *Session) Observe(fn func(lifecycle.RunState)) (cancel func()) {
	return s.store.Observe(fn)
}

func (s *Session) GameName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameName
}

func (s *Session) Console() console.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

func (s *Session) ClockStats() clock.Stats {
	return s.clock.Stats()
}

func (s *Session) AudioStats() audio.Stats {
	return s.pipeline.Stats()
}

// RequestQuit asks the owner of the session to shut it down. It never
// blocks, so host actions can call it from an input producer that
// Shutdown itself waits for.
func (s *Session) RequestQuit() {
	s.quitOnce.Do(func() {
		s.logger.Info("Quit requested")
		close(s.quit)
	})
}

// QuitRequested is closed after RequestQuit.
func (s *Session) QuitRequested() <-chan struct{} {
	return s.quit
}

// Done is closed once Shutdown has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

var _ input.Submitter = (*Session)(nil)
