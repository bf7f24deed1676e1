package clock

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-consolehost/consolehost/audio"
	"github.com/valerio/go-consolehost/consolehost/console"
	"github.com/valerio/go-consolehost/consolehost/input"
	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/lifecycle"
	"github.com/valerio/go-consolehost/consolehost/timing"
	"github.com/valerio/go-consolehost/consolehost/video"
)

type buttonEvent struct {
	act     action.Action
	pressed bool
}

// callLog records the order calls reach the fakes in.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeAdapter struct {
	log     *callLog
	mu      sync.Mutex
	steps   int
	started int
	paused  int
	resumed int
	rate    float32
	buttons []buttonEvent
}

func (a *fakeAdapter) PowerUp() error { return nil }
func (a *fakeAdapter) StartEmulation() {
	a.mu.Lock()
	a.started++
	a.mu.Unlock()
}
func (a *fakeAdapter) Pause() {
	a.log.add("adapter pause")
	a.mu.Lock()
	a.paused++
	a.mu.Unlock()
}
func (a *fakeAdapter) Resume() {
	a.log.add("adapter resume")
	a.mu.Lock()
	a.resumed++
	a.mu.Unlock()
}
func (a *fakeAdapter) Shutdown() {}

// PerformFrame tags each frame with its step number in Width.
func (a *fakeAdapter) PerformFrame() console.Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steps++
	return console.Frame{
		Video: video.Frame{Width: a.steps},
		Audio: []int16{int16(a.steps)},
	}
}

func (a *fakeAdapter) PressButton(act action.Action) {
	a.mu.Lock()
	a.buttons = append(a.buttons, buttonEvent{act, true})
	a.mu.Unlock()
}

func (a *fakeAdapter) ReleaseButton(act action.Action) {
	a.mu.Lock()
	a.buttons = append(a.buttons, buttonEvent{act, false})
	a.mu.Unlock()
}

func (a *fakeAdapter) ActivateCheat(console.Cheat) error { return nil }
func (a *fakeAdapter) ResetCheats()                      {}

func (a *fakeAdapter) SetPlaybackRate(rate float32) {
	a.mu.Lock()
	a.rate = rate
	a.mu.Unlock()
}

func (a *fakeAdapter) SaveState() ([]byte, error) { return nil, nil }
func (a *fakeAdapter) LoadState([]byte) error     { return nil }
func (a *fakeAdapter) AudioFormat() audio.Format {
	return audio.Format{SampleRate: 44100, Channels: 1}
}

func (a *fakeAdapter) stepCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.steps
}

type fakeSink struct {
	mu     sync.Mutex
	frames []video.Frame
}

func (s *fakeSink) UpdateTexture(f video.Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type fakeAudio struct {
	log      *callLog
	mu       sync.Mutex
	enqueued [][]int16
	stops    int
	resets   int
}

func (a *fakeAudio) Enqueue(samples []int16, _ audio.Format) {
	a.mu.Lock()
	a.enqueued = append(a.enqueued, samples)
	a.mu.Unlock()
}

func (a *fakeAudio) Stop() {
	a.log.add("audio stop")
	a.mu.Lock()
	a.stops++
	a.mu.Unlock()
}

func (a *fakeAudio) Reset() error {
	a.log.add("audio reset")
	a.mu.Lock()
	a.resets++
	a.mu.Unlock()
	return nil
}

type fixture struct {
	clock   *Clock
	store   *lifecycle.Store
	queue   *input.Queue
	adapter *fakeAdapter
	sink    *fakeSink
	audio   *fakeAudio
	source  *timing.ManualSource
}

// newFixture builds an attached, not yet started clock whose tick source
// only fires on demand.
func newFixture(t *testing.T, maxFF int) *fixture {
	t.Helper()
	f := &fixture{
		store:   lifecycle.NewStore(nil),
		queue:   input.NewQueue(),
		adapter: &fakeAdapter{},
		sink:    &fakeSink{},
		audio:   &fakeAudio{},
		source:  timing.NewManualSource(),
	}
	_, err := f.store.Mutate(func(st *lifecycle.RunState) {
		st.RendererInitialized = true
		st.CoreTypeSelected = true
	})
	require.NoError(t, err)

	f.clock = New(f.store, f.queue, f.audio, WithSource(func() timing.Source { return f.source }))
	require.NoError(t, f.clock.Attach(f.adapter, maxFF))
	require.NoError(t, f.clock.AttachSink(f.sink))
	t.Cleanup(f.clock.Stop)
	return f
}

func TestStart_RequiresAdapterAndSink(t *testing.T) {
	store := lifecycle.NewStore(nil)
	c := New(store, input.NewQueue(), &fakeAudio{}, WithSource(func() timing.Source { return timing.NewManualSource() }))
	assert.ErrorIs(t, c.Start(), ErrNotReady)

	require.NoError(t, c.Attach(&fakeAdapter{}, 4))
	assert.ErrorIs(t, c.Start(), ErrNotReady)
	assert.Equal(t, Idle, c.State())
}

func TestStart_RequiresRenderer(t *testing.T) {
	store := lifecycle.NewStore(nil)
	c := New(store, input.NewQueue(), &fakeAudio{}, WithSource(func() timing.Source { return timing.NewManualSource() }))
	require.NoError(t, c.Attach(&fakeAdapter{}, 1))
	require.NoError(t, c.AttachSink(&fakeSink{}))

	assert.ErrorIs(t, c.Start(), lifecycle.ErrInvalidTransition)
	assert.Equal(t, Idle, c.State())
	assert.False(t, store.Snapshot().EmulationStarted)
}

func TestTick_StepsOnceAndSkipsFirstAudioChunk(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.clock.Start())
	assert.True(t, f.store.Snapshot().EmulationStarted)
	assert.Equal(t, 1, f.adapter.started)

	f.clock.Tick()
	f.clock.Tick()

	assert.Equal(t, 2, f.adapter.stepCount())
	assert.Equal(t, 2, f.sink.count())
	assert.Equal(t, [][]int16{{2}}, f.audio.enqueued)
	assert.Equal(t, Stats{Ticks: 2, Steps: 2, Frames: 2}, f.clock.Stats())
}

func TestTick_FastForwardDecimation(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.clock.Start())

	assert.Equal(t, 4, f.clock.SetFastForward(true))
	assert.Equal(t, float32(4), f.adapter.rate)

	f.clock.Tick()

	assert.Equal(t, 4, f.adapter.stepCount())
	require.Equal(t, 1, f.sink.count())
	assert.Equal(t, 4, f.sink.frames[0].Width, "the last step's frame is delivered")
	assert.Len(t, f.audio.enqueued, 3)

	assert.Equal(t, 1, f.clock.ToggleFastForward())
	assert.Equal(t, float32(1), f.adapter.rate)
	f.clock.Tick()
	assert.Equal(t, 5, f.adapter.stepCount())
	assert.Equal(t, 2, f.sink.count())
}

func TestTick_AppliesInputsInOrder(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.clock.Start())

	f.queue.Submit(action.ButtonUp, true)
	f.queue.Submit(action.ButtonDown, true)
	f.clock.Tick()

	assert.Equal(t, []buttonEvent{
		{action.ButtonUp, true},
		{action.ButtonUp, false},
		{action.ButtonDown, true},
	}, f.adapter.buttons)
	assert.Zero(t, f.queue.Len())
}

func TestTick_NoOpUnlessRunning(t *testing.T) {
	f := newFixture(t, 1)

	f.clock.Tick()
	assert.Zero(t, f.adapter.stepCount(), "not started")

	require.NoError(t, f.clock.Start())
	f.store.BeginShutdown()
	f.clock.Tick()
	assert.Zero(t, f.adapter.stepCount(), "shutting down")
	assert.Zero(t, f.sink.count())
}

func TestPauseFreezesStepping(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.clock.Start())
	f.clock.Tick()

	require.NoError(t, f.clock.Pause())
	assert.Equal(t, Paused, f.clock.State())
	assert.True(t, f.store.Snapshot().Paused)
	assert.Equal(t, 1, f.audio.stops)
	assert.Equal(t, 1, f.adapter.paused)

	for i := 0; i < 5; i++ {
		f.clock.Tick()
	}
	assert.Equal(t, 1, f.adapter.stepCount())
	assert.Equal(t, 1, f.sink.count())

	assert.ErrorIs(t, f.clock.Pause(), lifecycle.ErrInvalidTransition)

	require.NoError(t, f.clock.Resume())
	assert.False(t, f.store.Snapshot().Paused)
	assert.Equal(t, 1, f.audio.resets)
	assert.Equal(t, 1, f.adapter.resumed)

	f.clock.Tick()
	f.clock.Tick()
	assert.Equal(t, 3, f.adapter.stepCount())
	// first chunk after resume is skipped again
	assert.Equal(t, [][]int16{{3}}, f.audio.enqueued)

	assert.ErrorIs(t, f.clock.Resume(), lifecycle.ErrInvalidTransition)
}

func TestPauseWaitsForTickGoroutine(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.clock.Start())

	for i := 0; i < 3; i++ {
		require.True(t, f.source.Fire(time.Now()))
	}
	require.NoError(t, f.clock.Pause())
	steps := f.adapter.stepCount()

	f.clock.mu.Lock()
	done := f.clock.done
	f.clock.mu.Unlock()
	assert.Nil(t, done, "tick goroutine gone after Pause")

	f.clock.Tick()
	assert.Equal(t, steps, f.adapter.stepCount())

	require.NoError(t, f.clock.Resume())
	require.True(t, f.source.Fire(time.Now()))
	require.Eventually(t, func() bool { return f.adapter.stepCount() > steps }, time.Second, time.Millisecond)
}

func TestPauseResumeRejectedWhileShuttingDown(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.clock.Start())
	f.store.BeginShutdown()

	assert.ErrorIs(t, f.clock.Pause(), lifecycle.ErrShuttingDown)
	assert.ErrorIs(t, f.clock.Resume(), lifecycle.ErrShuttingDown)
	assert.Equal(t, Running, f.clock.State())
	assert.Zero(t, f.audio.stops)
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.clock.Start())

	f.clock.Stop()
	f.clock.Stop()
	assert.Equal(t, Stopped, f.clock.State())
	assert.ErrorIs(t, f.clock.Start(), lifecycle.ErrInvalidTransition)
	assert.ErrorIs(t, f.clock.Resume(), lifecycle.ErrInvalidTransition)

	f.clock.Tick()
	assert.Zero(t, f.adapter.stepCount())

	assert.False(t, f.source.Stopped())
	f.clock.ReleaseSource()
	f.clock.ReleaseSource()
	assert.True(t, f.source.Stopped())
}

func TestAttachOnlyWhileIdle(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.clock.Start())
	assert.ErrorIs(t, f.clock.Attach(&fakeAdapter{}, 1), lifecycle.ErrInvalidTransition)
	assert.ErrorIs(t, f.clock.AttachSink(&fakeSink{}), lifecycle.ErrInvalidTransition)
}

// loggedSource records when ticking (re)starts.
type loggedSource struct {
	*timing.ManualSource
	log *callLog
}

func (s loggedSource) Reset() {
	s.log.add("ticking restarted")
	s.ManualSource.Reset()
}

func TestPauseResumeOrdering(t *testing.T) {
	log := &callLog{}
	store := lifecycle.NewStore(nil)
	_, err := store.Mutate(func(st *lifecycle.RunState) {
		st.RendererInitialized = true
		st.CoreTypeSelected = true
	})
	require.NoError(t, err)
	store.Observe(func(st lifecycle.RunState) {
		if st.EmulationStarted {
			log.add(fmt.Sprintf("published paused=%t", st.Paused))
		}
	})

	adapter := &fakeAdapter{log: log}
	source := loggedSource{ManualSource: timing.NewManualSource(), log: log}
	c := New(store, input.NewQueue(), &fakeAudio{log: log},
		WithSource(func() timing.Source {
			log.add("ticking started")
			return source
		}))
	require.NoError(t, c.Attach(adapter, 1))
	require.NoError(t, c.AttachSink(&fakeSink{}))
	t.Cleanup(c.Stop)

	require.NoError(t, c.Start())
	require.NoError(t, c.Pause())
	require.NoError(t, c.Resume())

	assert.Equal(t, []string{
		"published paused=false",
		"ticking started",
		"audio stop",
		"published paused=true",
		"adapter pause",
		"audio reset",
		"adapter resume",
		"published paused=false",
		"ticking restarted",
	}, log.get())
}
