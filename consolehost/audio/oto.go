//go:build !headless

package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoRingCapacity holds about 185 ms of 44.1 kHz stereo int16.
const otoRingCapacity = 32768

// The OS audio layer allows a single oto context per process, so it is
// created on first use and shared by every device afterwards.
var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
	otoRate    int
)

func ensureOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-ready
		otoRate = sampleRate
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if sampleRate != otoRate {
		return nil, fmt.Errorf("audio context already running at %d Hz, cannot open %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// OtoDevice plays chunks through the system audio output. The player pulls
// from a ring buffer that Schedule fills.
type OtoDevice struct {
	ctx    *oto.Context
	player *oto.Player
	ring   *RingBuffer
	format Format
}

// OtoFactory returns a DeviceFactory opening oto devices at the given volume
// (0 silent, 1 normal).
func OtoFactory(volume float64) DeviceFactory {
	return func(sampleRate int) (Device, error) {
		return NewOtoDevice(sampleRate, volume)
	}
}

func NewOtoDevice(sampleRate int, volume float64) (*OtoDevice, error) {
	ctx, err := ensureOtoContext(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}

	format := Format{SampleRate: sampleRate, Channels: 2, Encoding: EncodingInt16}
	rb := NewRingBuffer(otoRingCapacity)
	player := ctx.NewPlayer(rb)
	// ~50 ms inside the player, the rest stays in the ring
	player.SetBufferSize(sampleRate / 20 * format.FrameBytes())
	player.SetVolume(min(max(volume, 0), 2))

	return &OtoDevice{ctx: ctx, player: player, ring: rb, format: format}, nil
}

func (d *OtoDevice) Format() Format { return d.format }

// Start fails until the context reports no error, which is how a missing or
// busy output shows up.
func (d *OtoDevice) Start() error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	d.player.Play()
	return nil
}

func (d *OtoDevice) Schedule(chunk []byte) error {
	_, err := d.ring.Write(chunk)
	return err
}

func (d *OtoDevice) Stop() {
	d.player.Pause()
	d.ring.Clear()
}

func (d *OtoDevice) Close() error {
	d.ring.Close()
	return d.player.Close()
}
