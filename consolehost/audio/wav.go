package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVRecorder writes everything scheduled on its devices to a 16-bit stereo
// WAV file. The file is finalised by Close, so it survives the device
// resets done on pause/resume.
type WAVRecorder struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	enc     *wav.Encoder
	buf     *goaudio.IntBuffer
	format  Format
	samples int
	closed  bool
}

func NewWAVRecorder(path string, sampleRate int) (*WAVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}

	format := Format{SampleRate: sampleRate, Channels: 2, Encoding: EncodingInt16}
	return &WAVRecorder{
		path:   path,
		file:   f,
		enc:    wav.NewEncoder(f, sampleRate, 16, format.Channels, 1),
		format: format,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

// Factory returns a DeviceFactory whose devices all write to this recorder.
func (r *WAVRecorder) Factory() DeviceFactory {
	return func(sampleRate int) (Device, error) {
		if sampleRate != r.format.SampleRate {
			return nil, fmt.Errorf("wav recorder runs at %d Hz, source is %d Hz", r.format.SampleRate, sampleRate)
		}
		return &wavDevice{rec: r}, nil
	}
}

func (r *WAVRecorder) write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("wav recorder closed")
	}
	r.buf.Data = DecodeInt16(r.buf.Data[:0], chunk)
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	r.samples += len(r.buf.Data)
	return nil
}

// Samples returns the number of samples written so far.
func (r *WAVRecorder) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Close writes the WAV header sizes and closes the file.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.enc.Close()
	fileErr := r.file.Close()
	if encErr != nil {
		return fmt.Errorf("finalise %s: %w", r.path, encErr)
	}
	return fileErr
}

// wavDevice is one pipeline-owned handle on a recorder. Closing it does not
// finalise the file.
type wavDevice struct {
	rec     *WAVRecorder
	mu      sync.Mutex
	running bool
}

func (d *wavDevice) Format() Format { return d.rec.format }

func (d *wavDevice) Start() error {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	return nil
}

func (d *wavDevice) Schedule(chunk []byte) error {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return errors.New("wav device not started")
	}
	return d.rec.write(chunk)
}

func (d *wavDevice) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *wavDevice) Close() error {
	d.Stop()
	return nil
}

// LazyWAV opens its recorder on the first device request, at the rate of
// the first source. It lets the CLI pick WAV output before a game is
// loaded.
type LazyWAV struct {
	path string
	mu   sync.Mutex
	rec  *WAVRecorder
}

func NewLazyWAV(path string) *LazyWAV {
	return &LazyWAV{path: path}
}

func (l *LazyWAV) Open(sampleRate int) (Device, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rec == nil {
		rec, err := NewWAVRecorder(l.path, sampleRate)
		if err != nil {
			return nil, err
		}
		l.rec = rec
	}
	return l.rec.Factory()(sampleRate)
}

// Close finalises the file if anything was opened.
func (l *LazyWAV) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rec == nil {
		return nil
	}
	return l.rec.Close()
}
