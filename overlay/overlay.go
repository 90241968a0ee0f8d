// Package overlay draws labels and boxes onto frames, and combines frames for
// display.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Colors used by the demos.
var (
	White = color.RGBA{0xff, 0xff, 0xff, 0xff}
	Blue  = color.RGBA{0x00, 0x00, 0xff, 0xff}
	Green = color.RGBA{0x00, 0xff, 0x00, 0xff}
)

// DrawLabel draws text with its baseline starting at pt.
func DrawLabel(dst draw.Image, text string, pt image.Point, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(pt.X, pt.Y),
	}
	d.DrawString(text)
}

// DrawRect draws the outline of r, thickness pixels wide, on the inside of r.
func DrawRect(dst draw.Image, r image.Rectangle, c color.Color, thickness int) {
	r = r.Canon().Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	if thickness < 1 {
		thickness = 1
	}
	src := image.NewUniform(c)
	t := thickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), // top
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), // left
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// DrawRates draws the frames read and grabbed per second in the top left
// corner.
func DrawRates(dst draw.Image, read, grabbed float64) {
	DrawLabel(dst, fmt.Sprintf("Frames Read/   Sec: %3.1f", read), image.Pt(10, 20), White)
	DrawLabel(dst, fmt.Sprintf("Frames Grabbed/Sec: %3.1f", grabbed), image.Pt(10, 50), White)
}

// DrawCounts draws the frames displayed and read in the last second, as
// counted by a periodic counter.
func DrawCounts(dst draw.Image, displayed, read int) {
	DrawLabel(dst, fmt.Sprintf("Frames Displayed (PS): %d", displayed), image.Pt(10, 20), White)
	DrawLabel(dst, fmt.Sprintf("Frames Read (PS): %d", read), image.Pt(10, 40), White)
}

// Resize scales img to exactly width by height.
func Resize(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Linear)
}

// HStack places right next to left, resizing right to the size of left.
func HStack(left, right image.Image) *image.NRGBA {
	size := left.Bounds().Size()
	if right.Bounds().Size() != size {
		right = Resize(right, size.X, size.Y)
	}
	dst := imaging.New(2*size.X, size.Y, color.Black)
	dst = imaging.Paste(dst, left, image.Pt(0, 0))
	dst = imaging.Paste(dst, right, image.Pt(size.X, 0))
	return dst
}
