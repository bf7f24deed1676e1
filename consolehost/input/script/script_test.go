package script

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/input/event"
)

type step struct {
	act  action.Action
	evt  event.Type
	wait time.Duration
}

type recorder struct {
	mu    sync.Mutex
	steps []step
}

func (r *recorder) Trigger(act action.Action, evt event.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step{act: act, evt: evt})
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step{wait: d})
	return nil
}

func TestRun(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []step
	}{
		{
			name: "press and release",
			src:  `press("start") wait(100) release("start")`,
			want: []step{
				{act: action.ButtonStart, evt: event.Press},
				{wait: 100 * time.Millisecond},
				{act: action.ButtonStart, evt: event.Release},
			},
		},
		{
			name: "tap default hold",
			src:  `tap("a")`,
			want: []step{
				{act: action.ButtonA, evt: event.Press},
				{wait: 50 * time.Millisecond},
				{act: action.ButtonA, evt: event.Release},
			},
		},
		{
			name: "loops and host actions",
			src:  `for i = 1, 2 do tap("right", 10) end press("pause")`,
			want: []step{
				{act: action.ButtonRight, evt: event.Press},
				{wait: 10 * time.Millisecond},
				{act: action.ButtonRight, evt: event.Release},
				{act: action.ButtonRight, evt: event.Press},
				{wait: 10 * time.Millisecond},
				{act: action.ButtonRight, evt: event.Release},
				{act: action.HostPauseToggle, evt: event.Press},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r := NewRunner(rec, WithSleep(rec.sleep))
			require.NoError(t, r.Run(context.Background(), tt.name, tt.src))
			assert.Equal(t, tt.want, rec.steps)
		})
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown action", `press("turbo")`},
		{"negative wait", `wait(-1)`},
		{"syntax", `press(`},
		{"runtime", `error("boom")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			err := NewRunner(rec, WithSleep(rec.sleep)).Run(context.Background(), tt.name, tt.src)
			assert.Error(t, err)
		})
	}
}

func TestRun_CancelStopsWait(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, "long", `press("a") wait(60000) release("a")`) }()

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.steps) == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("script did not stop after cancel")
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.lua")
	require.NoError(t, os.WriteFile(path, []byte(`log("hi") press("b")`), 0o644))

	rec := &recorder{}
	require.NoError(t, NewRunner(rec, WithSleep(rec.sleep)).RunFile(context.Background(), path))
	assert.Equal(t, []step{{act: action.ButtonB, evt: event.Press}}, rec.steps)

	err := NewRunner(rec).RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.lua"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
