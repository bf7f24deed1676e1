package audio

// Device is an output the pipeline schedules converted chunks on. Start may
// fail while the underlying hardware is not ready yet; the pipeline keeps
// buffering and retries on the next chunk.
type Device interface {
	// Format is the layout every scheduled chunk is converted to.
	Format() Format
	Start() error
	// Schedule hands over a chunk. The device owns it afterwards.
	Schedule(chunk []byte) error
	// Stop halts output and drops anything queued inside the device. The
	// device can be started again.
	Stop()
	Close() error
}

// DeviceFactory opens a device for a source stream running at sampleRate.
type DeviceFactory func(sampleRate int) (Device, error)

// Discard accepts and drops every chunk. It is the device for headless runs
// without audio output.
type Discard struct {
	format Format
}

func NewDiscard(sampleRate int) (Device, error) {
	return &Discard{format: Format{SampleRate: sampleRate, Channels: 2, Encoding: EncodingInt16}}, nil
}

func (d *Discard) Format() Format        { return d.format }
func (d *Discard) Start() error          { return nil }
func (d *Discard) Schedule([]byte) error { return nil }
func (d *Discard) Stop()                 {}
func (d *Discard) Close() error          { return nil }
