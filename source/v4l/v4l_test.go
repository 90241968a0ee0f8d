package v4l

import (
	"image/color"
	"testing"

	"github.com/korandiz/v4l"
)

func TestFindConfig(t *testing.T) {
	configs := []v4l.DeviceConfig{
		{Format: FormatYUYV, Width: 640, Height: 480, FPS: v4l.Frac{N: 30, D: 1}},
		{Format: FormatMJPEG, Width: 1280, Height: 720, FPS: v4l.Frac{N: 30, D: 1}},
		{Format: FormatMJPEG, Width: 640, Height: 480, FPS: v4l.Frac{N: 15, D: 1}},
		{Format: FormatMJPEG, Width: 640, Height: 480, FPS: v4l.Frac{N: 30, D: 1}},
	}
	preferred := v4l.DeviceConfig{Format: FormatMJPEG, Width: 640, Height: 480, FPS: v4l.Frac{N: 30, D: 1}}
	c, ok := findConfig(preferred, configs)
	if !ok || c != configs[3] {
		t.Fatalf("findConfig, got %v, expected %v", c, configs[3])
	}

	// Format matters more than size.
	preferred.Format = FormatYUYV
	preferred.Width = 1280
	c, _ = findConfig(preferred, configs)
	if c != configs[0] {
		t.Fatalf("findConfig for yuyv, got %v, expected %v", c, configs[0])
	}

	if _, ok := findConfig(preferred, nil); ok {
		t.Fatalf("findConfig without configs returned ok")
	}
}

func TestFourCC(t *testing.T) {
	// As reported by the v4l2 driver for YUYV.
	if FormatYUYV != 1448695129 {
		t.Fatalf("yuyv fourcc, got %d", FormatYUYV)
	}
}

func TestYUYVToNRGBA(t *testing.T) {
	// Two gray pixels, then two white pixels.
	buf := []byte{
		128, 128, 128, 128,
		255, 128, 255, 128,
	}
	img, err := yuyvToNRGBA(buf, 2, 2)
	if err != nil {
		t.Fatalf("converting: %v", err)
	}
	exp := color.NRGBA{R: 128, G: 128, B: 128, A: 0xff}
	if c := img.NRGBAAt(1, 0); c != exp {
		t.Fatalf("pixel 1,0, got %v, expected %v", c, exp)
	}
	exp = color.NRGBA{R: 255, G: 255, B: 255, A: 0xff}
	if c := img.NRGBAAt(0, 1); c != exp {
		t.Fatalf("pixel 0,1, got %v, expected %v", c, exp)
	}

	if _, err := yuyvToNRGBA(buf[:6], 2, 2); err == nil {
		t.Fatalf("missing error for short frame")
	}
	if _, err := yuyvToNRGBA(buf, 1, 2); err == nil {
		t.Fatalf("missing error for odd width")
	}
}
