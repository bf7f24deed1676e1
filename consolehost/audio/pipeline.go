// Package audio moves the samples an emulated system produces each frame to
// an output device, converting them to the device's format and buffering
// them while the device is not ready.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/valerio/go-consolehost/consolehost/logging"
)

// DefaultMaxPending bounds the chunks held while the device is not active,
// about two seconds of audio at 60 frames per second.
const DefaultMaxPending = 120

var ErrClosed = errors.New("audio pipeline closed")

// Stats is a point-in-time view of the pipeline counters.
type Stats struct {
	Scheduled uint64
	Failed    uint64
	Dropped   uint64
	Pending   int
	Active    bool
}

// Pipeline owns the output device and the list of chunks waiting for it.
// Its lock only guards the pipeline's own fields and is never held while
// calling into the device.
//
// Enqueue is meant to be called from the frame clock's tick goroutine;
// Stop, Reset and Close may be called from anywhere.
type Pipeline struct {
	mu         sync.Mutex
	factory    DeviceFactory
	device     Device
	devFormat  Format
	source     Format
	configured bool

	active   bool
	starting bool
	flushing bool
	halted   bool
	closed   bool

	pending    [][]byte
	maxPending int
	dropping   bool

	scheduled atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	logger *slog.Logger
}

type PipelineOption func(*Pipeline)

// WithMaxPending overrides DefaultMaxPending. Zero or less means unbounded.
func WithMaxPending(n int) PipelineOption {
	return func(p *Pipeline) { p.maxPending = n }
}

func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(factory DeviceFactory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		factory:    factory,
		maxPending: DefaultMaxPending,
		logger:     logging.Deferred(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configure opens a device for the given source format, replacing the
// current one if the format changed. Pending chunks of the old format are
// discarded. The device is started by the next Enqueue.
func (p *Pipeline) Configure(src Format) error {
	if err := src.Validate(); err != nil {
		return fmt.Errorf("configure audio: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.configured && p.source == src && p.device != nil {
		p.mu.Unlock()
		return nil
	}
	old := p.detachLocked()
	p.source = src
	p.configured = true
	p.mu.Unlock()

	p.closeDevice(old)

	dev, err := p.factory(src.SampleRate)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	if err := p.install(dev); err != nil {
		p.closeDevice(dev)
		if errors.Is(err, ErrClosed) {
			return err
		}
		return nil
	}

	p.logger.Info("Audio device configured", "source", src, "device", dev.Format())
	return nil
}

// Enqueue converts one frame's samples and schedules them, or keeps them
// pending until the device becomes active. Samples are dropped while the
// pipeline is stopped.
func (p *Pipeline) Enqueue(samples []int16, src Format) {
	if len(samples) == 0 {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	reconfigure := !p.configured || p.source != src || p.device == nil
	p.mu.Unlock()

	if reconfigure {
		if err := p.Configure(src); err != nil {
			p.logger.Warn("Dropping audio, no device", "error", err)
			return
		}
	}

	p.mu.Lock()
	if p.closed || p.device == nil {
		p.mu.Unlock()
		return
	}
	if p.halted {
		p.mu.Unlock()
		p.logger.Debug("Dropping audio while stopped", "samples", len(samples))
		return
	}
	dev, format := p.device, p.devFormat
	p.mu.Unlock()

	chunk := Convert(nil, samples, src, format)

	p.mu.Lock()
	if p.device != dev || p.halted || p.closed {
		p.mu.Unlock()
		return
	}
	if p.active && !p.flushing && len(p.pending) == 0 {
		p.mu.Unlock()
		p.schedule(dev, chunk)
		return
	}

	p.appendPendingLocked(chunk)
	start := !p.active && !p.starting
	if start {
		p.starting = true
	}
	p.mu.Unlock()

	if start {
		p.start(dev)
	}
}

// Stop drops every pending chunk and halts the device without destroying
// it. Enqueue discards samples until Reset.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	dev := p.device
	p.pending = nil
	p.active = false
	p.flushing = false
	p.halted = true
	p.mu.Unlock()

	if dev != nil {
		dev.Stop()
	}
	p.logger.Debug("Audio stopped")
}

// Reset closes the current device, opens a fresh one from the factory and
// starts it. It is used on resume and when the output route changes.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	old := p.detachLocked()
	p.halted = false
	configured, src := p.configured, p.source
	p.mu.Unlock()

	p.closeDevice(old)

	// nothing has played yet, the first Enqueue opens the device
	if !configured {
		return nil
	}

	dev, err := p.factory(src.SampleRate)
	if err != nil {
		return fmt.Errorf("reopen audio device: %w", err)
	}
	if err := p.install(dev); err != nil {
		p.closeDevice(dev)
		if errors.Is(err, ErrClosed) {
			return err
		}
		return nil
	}

	p.mu.Lock()
	start := p.device == dev && !p.starting && !p.active
	if start {
		p.starting = true
	}
	p.mu.Unlock()

	if start {
		p.start(dev)
	}
	p.logger.Debug("Audio reset", "device", dev.Format())
	return nil
}

// Close tears the pipeline down for good.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	dev := p.detachLocked()
	p.mu.Unlock()

	if dev == nil {
		return nil
	}
	dev.Stop()
	if err := dev.Close(); err != nil {
		return fmt.Errorf("close audio device: %w", err)
	}
	return nil
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	pending, active := len(p.pending), p.active
	p.mu.Unlock()

	return Stats{
		Scheduled: p.scheduled.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Pending:   pending,
		Active:    active,
	}
}

// start runs dev.Start without the lock, then flushes whatever piled up
// while the device was getting ready.
func (p *Pipeline) start(dev Device) {
	err := dev.Start()

	p.mu.Lock()
	p.starting = false
	if p.device != dev || p.halted || p.closed {
		p.mu.Unlock()
		return
	}
	if err != nil {
		pending := len(p.pending)
		p.mu.Unlock()
		p.logger.Debug("Audio device not ready", "error", err, "pending", pending)
		return
	}
	p.active = true
	p.flushing = true
	p.mu.Unlock()

	p.flush(dev)
}

func (p *Pipeline) flush(dev Device) {
	for {
		p.mu.Lock()
		if p.device != dev || !p.active || len(p.pending) == 0 {
			if p.device == dev {
				p.flushing = false
				p.dropping = false
			}
			p.mu.Unlock()
			return
		}
		chunk := p.pending[0]
		p.pending[0] = nil
		p.pending = p.pending[1:]
		p.mu.Unlock()

		p.schedule(dev, chunk)
	}
}

func (p *Pipeline) schedule(dev Device, chunk []byte) {
	if err := dev.Schedule(chunk); err != nil {
		p.failed.Add(1)
		p.logger.Warn("Failed to schedule audio", "error", err, "bytes", len(chunk))
		return
	}
	p.scheduled.Add(1)
}

func (p *Pipeline) appendPendingLocked(chunk []byte) {
	if p.maxPending > 0 && len(p.pending) >= p.maxPending {
		p.pending[0] = nil
		p.pending = p.pending[1:]
		total := p.dropped.Add(1)
		if !p.dropping {
			p.dropping = true
			p.logger.Warn("Audio device not keeping up, dropping oldest chunks",
				"max_pending", p.maxPending, "dropped_total", total)
		}
	}
	p.pending = append(p.pending, chunk)
}

// detachLocked forgets the current device and all pending state, returning
// the device so the caller can close it after unlocking.
func (p *Pipeline) detachLocked() Device {
	dev := p.device
	p.device = nil
	p.pending = nil
	p.active = false
	p.starting = false
	p.flushing = false
	p.dropping = false
	return dev
}

var errDeviceInstalled = errors.New("audio device already installed")

// install makes dev current unless the pipeline closed or another device
// was installed in the meantime.
func (p *Pipeline) install(dev Device) error {
	format := dev.Format()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.device != nil {
		return errDeviceInstalled
	}
	p.device = dev
	p.devFormat = format
	return nil
}

func (p *Pipeline) closeDevice(dev Device) {
	if dev == nil {
		return
	}
	dev.Stop()
	if err := dev.Close(); err != nil {
		p.logger.Warn("Failed to close audio device", "error", err)
	}
}
