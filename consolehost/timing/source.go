// Package timing provides the tick sources that pace the frame clock.
package timing

import (
	"sync"
	"time"
)

// DefaultRate is the nominal display refresh the consoles target.
const DefaultRate = 60

// Source delivers ticks on a channel until stopped.
type Source interface {
	// C returns the tick channel. It stays open after Stop; no more ticks
	// arrive on it.
	C() <-chan time.Time

	// Reset restarts the period, useful after pauses.
	Reset()

	// Stop releases the underlying timer. It is safe to call more than once.
	Stop()
}

// FrameDuration returns the period of one tick at rate ticks per second.
func FrameDuration(rate int) time.Duration {
	if rate <= 0 {
		rate = DefaultRate
	}
	return time.Second / time.Duration(rate)
}

// TickerSource uses time.Ticker for simple, consistent frame timing. Ticks
// the consumer misses are dropped by the ticker, so a slow frame never
// causes a burst of catch-up frames.
type TickerSource struct {
	ticker *time.Ticker
	period time.Duration
	once   sync.Once
}

func NewTickerSource(rate int) *TickerSource {
	period := FrameDuration(rate)
	return &TickerSource{
		ticker: time.NewTicker(period),
		period: period,
	}
}

func (t *TickerSource) C() <-chan time.Time { return t.ticker.C }

func (t *TickerSource) Reset() {
	t.ticker.Reset(t.period)
}

func (t *TickerSource) Stop() {
	t.once.Do(t.ticker.Stop)
}

// FreeRunningSource ticks as fast as the consumer receives. Headless runs
// with a frame budget use it to finish without waiting on wall time.
type FreeRunningSource struct {
	ch   chan time.Time
	stop chan struct{}
	once sync.Once
}

func NewFreeRunningSource() *FreeRunningSource {
	s := &FreeRunningSource{
		ch:   make(chan time.Time),
		stop: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *FreeRunningSource) run() {
	for {
		select {
		case s.ch <- time.Now():
		case <-s.stop:
			return
		}
	}
}

func (s *FreeRunningSource) C() <-chan time.Time { return s.ch }

func (s *FreeRunningSource) Reset() {}

func (s *FreeRunningSource) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// ManualSource only ticks when Fire is called. Tests drive the clock with
// it.
type ManualSource struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func NewManualSource() *ManualSource {
	return &ManualSource{ch: make(chan time.Time)}
}

func (m *ManualSource) C() <-chan time.Time { return m.ch }

func (m *ManualSource) Reset() {}

// Fire blocks until the consumer takes the tick. It returns false without
// blocking once the source is stopped.
func (m *ManualSource) Fire(now time.Time) bool {
	if m.Stopped() {
		return false
	}
	m.ch <- now
	return true
}

func (m *ManualSource) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *ManualSource) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
