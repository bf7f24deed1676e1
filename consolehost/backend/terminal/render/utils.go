// Package render holds the drawing helpers of the terminal backend.
package render

import (
	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-consolehost/consolehost/video"
)

// TermColor maps an RGB565 pixel to a true-color terminal color.
func TermColor(c video.Color) tcell.Color {
	r, g, b := c.RGB()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// HalfBlock draws two vertically stacked pixels in one cell: the upper half
// block in the top color over a background of the bottom color. Equal
// pixels use a full block so terminals without background colors still
// show them.
func HalfBlock(top, bottom video.Color) (rune, tcell.Style) {
	if top == bottom {
		return '█', tcell.StyleDefault.Foreground(TermColor(top))
	}
	return '▀', tcell.StyleDefault.Foreground(TermColor(top)).Background(TermColor(bottom))
}

// FitStep returns the smallest integer sampling step that fits a
// width x height frame into cols x rows cells, with two pixel rows per
// cell.
func FitStep(width, height, cols, rows int) int {
	if cols <= 0 || rows <= 0 {
		return 0
	}
	step := 1
	for width/step > cols || (height/step+1)/2 > rows {
		step++
	}
	return step
}
