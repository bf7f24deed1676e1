// Package video defines the frames handed from an emulated system to the
// renderer.
package video

import (
	"image"
	"image/color"
)

// Frame is a view of an adapter's video output. Pixels are RGB565, row
// major, Width*Height long. The memory belongs to the adapter: consumers
// that keep a frame past the call that delivered it must Clone it.
type Frame struct {
	Pixels []uint16
	Width  int
	Height int
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Width == 0 || f.Height == 0 || len(f.Pixels) < f.Width*f.Height
}

func (f Frame) At(x, y int) Color {
	return Color(f.Pixels[y*f.Width+x])
}

// Clone copies the pixels so the result outlives the adapter's buffer.
func (f Frame) Clone() Frame {
	pixels := make([]uint16, len(f.Pixels))
	copy(pixels, f.Pixels)
	return Frame{Pixels: pixels, Width: f.Width, Height: f.Height}
}

// ToImage converts the frame to an opaque RGBA image.
func (f Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if f.Empty() {
		return img
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.At(x, y).RGB()
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xFF})
		}
	}
	return img
}
