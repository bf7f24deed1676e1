package lifecycle

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_MutatePublishesWholeState(t *testing.T) {
	s := NewStore(nil)

	state, err := s.Mutate(func(st *RunState) {
		st.RendererInitialized = true
		st.CoreTypeSelected = true
	})
	require.NoError(t, err)
	assert.True(t, state.RendererInitialized)
	assert.True(t, state.CoreTypeSelected)
	assert.Equal(t, uint64(1), state.Generation)
	assert.Equal(t, state, s.Snapshot())
}

func TestStore_Invariants(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*RunState)
		apply func(*RunState)
	}{
		{
			name:  "emulation without renderer",
			setup: func(*RunState) {},
			apply: func(st *RunState) { st.EmulationStarted = true },
		},
		{
			name:  "shutting down is sticky",
			setup: func(st *RunState) { st.ShuttingDown = true },
			apply: func(st *RunState) { st.ShuttingDown = false },
		},
		{
			name: "renderer cleared while running",
			setup: func(st *RunState) {
				st.RendererInitialized = true
				st.EmulationStarted = true
			},
			apply: func(st *RunState) { st.RendererInitialized = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(nil)
			before, err := s.Mutate(tt.setup)
			require.NoError(t, err)

			after, err := s.Mutate(tt.apply)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before, after)
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

func TestStore_NoChangeDoesNotPublish(t *testing.T) {
	s := NewStore(nil)
	calls := 0
	s.Observe(func(RunState) { calls++ })

	_, err := s.Mutate(func(st *RunState) { st.Paused = false })
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Zero(t, s.Snapshot().Generation)
}

func TestStore_ObserverRunsOutsideLock(t *testing.T) {
	s := NewStore(nil)

	var seen []RunState
	s.Observe(func(st RunState) {
		// would deadlock if the store still held its lock
		seen = append(seen, s.Snapshot())
		if !st.Paused {
			_, _ = s.Mutate(func(next *RunState) { next.Paused = true })
		}
	})

	_, err := s.Mutate(func(st *RunState) { st.CoreTypeSelected = true })
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.True(t, s.Snapshot().Paused)
}

func TestStore_ObserveCancel(t *testing.T) {
	s := NewStore(nil)
	var a, b int
	cancelA := s.Observe(func(RunState) { a++ })
	s.Observe(func(RunState) { b++ })

	_, _ = s.Mutate(func(st *RunState) { st.Paused = true })
	cancelA()
	_, _ = s.Mutate(func(st *RunState) { st.Paused = false })

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestStore_BeginShutdownOnce(t *testing.T) {
	s := NewStore(nil)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginShutdown() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.True(t, s.Snapshot().ShuttingDown)
	assert.False(t, s.BeginShutdown())
}

func TestStore_ConcurrentReadersNeverSeeTornState(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Mutate(func(st *RunState) { st.RendererInitialized = true })
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = s.Mutate(func(st *RunState) {
				// started and paused always flip together here
				st.EmulationStarted = !st.EmulationStarted
				st.Paused = st.EmulationStarted
			})
		}
		close(stop)
	}()

	for running := true; running; {
		select {
		case <-stop:
			running = false
		default:
		}
		st := s.Snapshot()
		assert.Equal(t, st.EmulationStarted, st.Paused)
	}
	wg.Wait()
}
