package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("Audio device not keeping up", "dropped", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "Audio device not keeping up", record["msg"])
	assert.EqualValues(t, 3, record["dropped"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "text")
	require.NoError(t, err)

	logger.Debug("Tick", "frame", 1)
	assert.Contains(t, buf.String(), "level=DEBUG msg=Tick frame=1")
}

func TestNew_BadFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestDeferred_FollowsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var first, second bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&first, nil)))

	logger := Deferred().With("component", "clock")
	logger.Info("before swap")

	slog.SetDefault(slog.New(slog.NewTextHandler(&second, nil)))
	logger.WithGroup("tick").Info("after swap", "n", 3)
	logger.Debug("filtered by the current default")

	assert.Contains(t, first.String(), "before swap")
	assert.NotContains(t, first.String(), "after swap")
	assert.Contains(t, second.String(), "after swap")
	assert.Contains(t, second.String(), "component=clock")
	assert.Contains(t, second.String(), "tick.n=3")
	assert.NotContains(t, second.String(), "filtered")
}

func TestDeferred_AsDefaultDoesNotLoop(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	slog.SetDefault(Deferred())
	assert.NotPanics(t, func() { slog.Info("dropped") })
}
