package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoding is the sample representation of a stream.
type Encoding int

const (
	// EncodingInt16 is signed 16-bit PCM.
	EncodingInt16 Encoding = iota
	// EncodingUint16 is unsigned (offset binary) 16-bit PCM, as some cores
	// emit it.
	EncodingUint16
	// EncodingFloat32 is 32-bit float PCM in [-1, 1].
	EncodingFloat32
)

func (e Encoding) String() string {
	switch e {
	case EncodingInt16:
		return "s16"
	case EncodingUint16:
		return "u16"
	case EncodingFloat32:
		return "f32"
	default:
		return "unknown"
	}
}

// bytesPerSample returns the little-endian storage size of one sample.
func (e Encoding) bytesPerSample() int {
	if e == EncodingFloat32 {
		return 4
	}
	return 2
}

// Format describes an interleaved sample stream.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// Validate rejects formats the pipeline cannot convert.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("unsupported channel count %d", f.Channels)
	}
	if f.Encoding < EncodingInt16 || f.Encoding > EncodingFloat32 {
		return fmt.Errorf("unsupported encoding %d", f.Encoding)
	}
	return nil
}

// FrameBytes is the size of one sample frame (all channels) in bytes.
func (f Format) FrameBytes() int {
	return f.Channels * f.Encoding.bytesPerSample()
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.Encoding)
}

// Convert turns samples emitted by an adapter in format from into bytes in
// format to, appending to dst. Only the encoding and channel layout are
// converted; sample rates must already match. The source samples are
// always carried as int16 slots; EncodingUint16 sources store the raw
// unsigned bits in them.
func Convert(dst []byte, src []int16, from, to Format) []byte {
	if from.Channels < 1 || to.Channels < 1 {
		return dst
	}

	frames := len(src) / from.Channels
	need := frames * to.FrameBytes()
	if cap(dst)-len(dst) < need {
		grown := make([]byte, len(dst), len(dst)+need)
		copy(grown, dst)
		dst = grown
	}

	out := dst[len(dst) : len(dst)+need]
	pos := 0
	for i := 0; i < frames; i++ {
		frame := src[i*from.Channels : (i+1)*from.Channels]
		for c := 0; c < to.Channels; c++ {
			v := mixChannel(frame, c, to.Channels, from.Encoding)
			pos += putSample(out[pos:], v, to.Encoding)
		}
	}
	return dst[:len(dst)+need]
}

// mixChannel picks the source value for output channel c. Stereo to mono
// averages, mono to stereo duplicates.
func mixChannel(frame []int16, c, outChannels int, enc Encoding) int16 {
	if outChannels == 1 && len(frame) > 1 {
		sum := 0
		for _, s := range frame {
			sum += int(toSigned(s, enc))
		}
		return int16(sum / len(frame))
	}
	if c >= len(frame) {
		c = len(frame) - 1
	}
	return toSigned(frame[c], enc)
}

func toSigned(s int16, enc Encoding) int16 {
	if enc == EncodingUint16 {
		return int16(uint16(s) ^ 0x8000)
	}
	return s
}

func putSample(b []byte, v int16, enc Encoding) int {
	switch enc {
	case EncodingFloat32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)/32768))
		return 4
	case EncodingUint16:
		binary.LittleEndian.PutUint16(b, uint16(v)^0x8000)
		return 2
	default:
		binary.LittleEndian.PutUint16(b, uint16(v))
		return 2
	}
}

// DecodeInt16 reads little-endian signed 16-bit samples back into ints.
// Devices that hand samples to an encoder use it.
func DecodeInt16(dst []int, b []byte) []int {
	for i := 0; i+1 < len(b); i += 2 {
		dst = append(dst, int(int16(binary.LittleEndian.Uint16(b[i:]))))
	}
	return dst
}
