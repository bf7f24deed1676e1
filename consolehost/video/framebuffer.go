package video

// Color is an RGB565 pixel: 5 bits red, 6 bits green, 5 bits blue.
type Color uint16

const (
	WhiteColor     Color = 0xFFFF
	LightGreyColor Color = 0x9CD3
	DarkGreyColor  Color = 0x4A69
	BlackColor     Color = 0x0000
)

// RGB565 packs 8-bit channels into a Color, dropping the low bits.
func RGB565(r, g, b uint8) Color {
	return Color(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

// RGB expands c back to 8-bit channels, replicating the high bits into the
// low ones so white stays 0xFF.
func (c Color) RGB() (r, g, b uint8) {
	r5 := uint8(c>>11) & 0x1F
	g6 := uint8(c>>5) & 0x3F
	b5 := uint8(c) & 0x1F
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// FrameBuffer is a mutable RGB565 surface owned by an adapter.
type FrameBuffer struct {
	width  int
	height int
	buffer []uint16
}

// NewFrameBuffer creates a frame buffer with the specified size.
func NewFrameBuffer(width, height int) *FrameBuffer {
	return &FrameBuffer{
		width:  width,
		height: height,
		buffer: make([]uint16, width*height),
	}
}

func (fb *FrameBuffer) GetPixel(x, y int) Color {
	return Color(fb.buffer[y*fb.width+x])
}

func (fb *FrameBuffer) SetPixel(x, y int, color Color) {
	fb.buffer[y*fb.width+x] = uint16(color)
}

// Fill sets every pixel to color.
func (fb *FrameBuffer) Fill(color Color) {
	for i := range fb.buffer {
		fb.buffer[i] = uint16(color)
	}
}

func (fb *FrameBuffer) Width() int  { return fb.width }
func (fb *FrameBuffer) Height() int { return fb.height }

// Frame returns a read-only view of the buffer. The view aliases the
// buffer's memory and is only valid until the next write.
func (fb *FrameBuffer) Frame() Frame {
	return Frame{Pixels: fb.buffer, Width: fb.width, Height: fb.height}
}
