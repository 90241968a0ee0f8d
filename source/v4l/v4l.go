// Package v4l implements a frame source reading a USB webcam directly through
// Video4Linux, without gstreamer.
package v4l

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"

	"github.com/disintegration/imaging"
	"github.com/korandiz/v4l"

	"github.com/wsmith/csicam"
	"github.com/wsmith/csicam/source"
)

// Pixel formats as V4L2 four character codes.
var (
	FormatMJPEG = fourCC("MJPG")
	FormatYUYV  = fourCC("YUYV")
)

func fourCC(s string) uint32 {
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24
}

// Opts has options for a webcam source. Zero values are replaced with
// defaults.
type Opts struct {
	Format    uint32 // FormatMJPEG or FormatYUYV. Default FormatMJPEG.
	Width     int    // Default 640.
	Height    int    // Default 480.
	Framerate int    // Default 30.
	Verbose   bool
}

var optsDefault = Opts{
	Format:    FormatMJPEG,
	Width:     640,
	Height:    480,
	Framerate: 30,
}

// Source captures frames from a V4L2 device.
type Source struct {
	opts   Opts
	path   string
	device *v4l.Device
	config v4l.DeviceConfig
	buf    []byte
}

// Check that Source implements interface Source.
var _ csicam.Source = (*Source)(nil)

// FindDevices returns the V4L2 devices present on the system.
func FindDevices() []source.Device {
	var r []source.Device
	for _, info := range v4l.FindDevices() {
		r = append(r, source.Device{
			ID:   info.Path,
			Name: fmt.Sprintf("%s (%s)", info.DeviceName, info.DriverName),
		})
	}
	return r
}

// Open opens the device at path, e.g. /dev/video1, selects the supported
// configuration closest to opts and starts streaming.
//
// Callers must call Close to clean up.
func Open(path string, opts *Opts) (src *Source, rerr error) {
	xopts := optsDefault
	if opts != nil {
		xopts = *opts
		if xopts.Format == 0 {
			xopts.Format = optsDefault.Format
		}
		if xopts.Width == 0 {
			xopts.Width = optsDefault.Width
		}
		if xopts.Height == 0 {
			xopts.Height = optsDefault.Height
		}
		if xopts.Framerate == 0 {
			xopts.Framerate = optsDefault.Framerate
		}
	}

	device, err := v4l.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %v", path, err)
	}
	s := &Source{opts: xopts, path: path, device: device}

	// Ensure cleanup in case of failure.
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	configs, err := device.ListConfigs()
	if err != nil {
		return nil, fmt.Errorf("listing configs of %s: %v", path, err)
	}
	preferred := v4l.DeviceConfig{
		Format: xopts.Format,
		Width:  xopts.Width,
		Height: xopts.Height,
		FPS:    v4l.Frac{N: uint32(xopts.Framerate), D: 1},
	}
	config, ok := findConfig(preferred, configs)
	if !ok {
		return nil, fmt.Errorf("no usable config for %s", path)
	}
	if config.Format != FormatMJPEG && config.Format != FormatYUYV {
		return nil, fmt.Errorf("device %s does not support mjpeg or yuyv", path)
	}
	if xopts.Verbose {
		log.Printf("webcam %s, using %dx%d at %d/%d fps", path, config.Width, config.Height, config.FPS.N, config.FPS.D)
	}
	if err := device.SetConfig(config); err != nil {
		return nil, fmt.Errorf("setting config of %s: %v", path, err)
	}
	s.config = config

	info, err := device.BufferInfo()
	if err != nil {
		return nil, fmt.Errorf("buffer info of %s: %v", path, err)
	}
	s.buf = make([]byte, info.BufferSize)

	if err := device.TurnOn(); err != nil {
		return nil, fmt.Errorf("turning on %s: %v", path, err)
	}
	return s, nil
}

// findConfig returns the config closest to preferred. A different format
// weighs more than any size or framerate difference.
func findConfig(preferred v4l.DeviceConfig, configs []v4l.DeviceConfig) (v4l.DeviceConfig, bool) {
	if len(configs) == 0 {
		return v4l.DeviceConfig{}, false
	}
	selected := 0
	lowest := -1
	for i := range configs {
		score := scoreConfig(preferred, configs[i])
		if lowest < 0 || score < lowest {
			selected = i
			lowest = score
		}
	}
	return configs[selected], true
}

func scoreConfig(a, b v4l.DeviceConfig) (score int) {
	abs := func(a int) int {
		if a < 0 {
			return -a
		}
		return a
	}
	if a.Format != b.Format {
		score += 100000
	}
	score += abs(a.Width - b.Width)
	score += abs(a.Height - b.Height)
	score += abs(fps(a.FPS) - fps(b.FPS))
	return
}

func fps(f v4l.Frac) int {
	if f.D == 0 {
		return 0
	}
	return int(f.N / f.D)
}

// Grab captures the next frame from the device.
func (s *Source) Grab() (*image.NRGBA, error) {
	vbuf, err := s.device.Capture()
	if err != nil {
		return nil, fmt.Errorf("capturing from %s: %v", s.path, err)
	}
	n, err := vbuf.Read(s.buf)
	if err != nil {
		return nil, fmt.Errorf("reading buffer from %s: %v", s.path, err)
	}
	switch s.config.Format {
	case FormatMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(s.buf[:n]))
		if err != nil {
			return nil, fmt.Errorf("decoding mjpeg frame: %v", err)
		}
		return imaging.Clone(img), nil
	case FormatYUYV:
		return yuyvToNRGBA(s.buf[:n], s.config.Width, s.config.Height)
	}
	return nil, errors.New("unsupported format")
}

// yuyvToNRGBA converts packed YUYV 4:2:2 pixels.
func yuyvToNRGBA(buf []byte, width, height int) (*image.NRGBA, error) {
	if width%2 != 0 {
		return nil, fmt.Errorf("odd width %d for yuyv", width)
	}
	if len(buf) < width*height*2 {
		return nil, fmt.Errorf("short yuyv frame, got %d bytes, expected %d", len(buf), width*height*2)
	}
	ycc := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := buf[y*width*2 : (y+1)*width*2]
		for x := 0; x < width; x += 2 {
			p := row[2*x : 2*x+4]
			ycc.Y[y*ycc.YStride+x] = p[0]
			ycc.Y[y*ycc.YStride+x+1] = p[2]
			ci := y*ycc.CStride + x/2
			ycc.Cb[ci] = p[1]
			ycc.Cr[ci] = p[3]
		}
	}
	return imaging.Clone(ycc), nil
}

// Close stops streaming and closes the device.
func (s *Source) Close() error {
	if s.device == nil {
		return nil
	}
	s.device.TurnOff()
	s.device.Close()
	s.device = nil
	return nil
}
