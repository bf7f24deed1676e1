package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		rate int
		want time.Duration
	}{
		{60, 16666666 * time.Nanosecond},
		{30, 33333333 * time.Nanosecond},
		{0, 16666666 * time.Nanosecond},
		{-5, 16666666 * time.Nanosecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FrameDuration(tt.rate), "rate %d", tt.rate)
	}
}

func TestTickerSource(t *testing.T) {
	s := NewTickerSource(1000)
	defer s.Stop()

	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatal("no tick within a second")
	}

	s.Stop()
	s.Stop()
}

func TestFreeRunningSource(t *testing.T) {
	s := NewFreeRunningSource()
	for i := 0; i < 10; i++ {
		<-s.C()
	}
	s.Stop()
	s.Stop()

	select {
	case <-s.C():
		// a send already in flight may still land once
	case <-time.After(10 * time.Millisecond):
	}
}

func TestManualSource(t *testing.T) {
	s := NewManualSource()
	got := make(chan time.Time, 1)
	go func() { got <- <-s.C() }()

	now := time.Unix(100, 0)
	assert.True(t, s.Fire(now))
	assert.Equal(t, now, <-got)

	s.Stop()
	assert.True(t, s.Stopped())
	assert.False(t, s.Fire(now))
}
