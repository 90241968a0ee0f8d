// Package ffmpeg implements a webcam frame source using ffmpeg, for systems
// without gstreamer.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/wsmith/csicam"
	"github.com/wsmith/csicam/source"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y ffmpeg v4l-utils")

// Opts has options for an ffmpeg source. Zero values are replaced with
// defaults.
type Opts struct {
	Width     int // Default 640.
	Height    int // Default 480.
	Framerate int // Default 30.
	Verbose   bool
}

var optsDefault = Opts{
	Width:     640,
	Height:    480,
	Framerate: 30,
}

// Source reads raw RGBA frames from an ffmpeg process capturing from a V4L2
// device.
type Source struct {
	opts   Opts
	device string
	cancel context.CancelFunc
	pipe   io.ReadCloser
}

// Check that Source implements interface Source.
var _ csicam.Source = (*Source)(nil)

// ListDevices returns the devices reported by v4l2-ctl.
// ListDevices returns an error if no devices are available.
func ListDevices() ([]source.Device, error) {
	cmd := exec.Command("v4l2-ctl", "--list-devices")
	buf, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("listing devices using v4l2-ctl: %v", err)
	}
	return parseDevices(string(buf))
}

// parseDevices parses v4l2-ctl --list-devices output: a device name followed
// by indented device paths. Platform devices of the SoC are skipped.
func parseDevices(s string) ([]source.Device, error) {
	var cur string
	var devices []source.Device
	for _, line := range strings.Split(s, "\n") {
		if !strings.HasPrefix(line, "\t") {
			cur = strings.TrimSuffix(strings.TrimSpace(line), ":")
			continue
		}
		if cur == "" || strings.HasPrefix(cur, "bcm2835-") || strings.HasPrefix(cur, "NVIDIA Tegra") {
			continue
		}
		path := strings.TrimSpace(line)
		if !strings.HasPrefix(path, "/dev/video") {
			continue
		}
		devices = append(devices, source.Device{
			Name: fmt.Sprintf("%s (%s)", cur, path),
			ID:   path,
		})
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices available")
	}
	return devices, nil
}

// Open starts ffmpeg capturing from device, e.g. /dev/video1, scaled to the
// requested size.
//
// Callers must call Close to clean up.
func Open(device string, opts *Opts) (*Source, error) {
	xopts := optsDefault
	if opts != nil {
		xopts = *opts
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

	args := Args(device, xopts.Width, xopts.Height, xopts.Framerate)
	if xopts.Verbose {
		log.Printf("starting ffmpeg with args %s", args)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = pw
	if xopts.Verbose {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("starting command ffmpeg: %w", err)
	}
	go func() {
		err := cmd.Wait()
		if err == nil {
			err = io.EOF
		}
		pw.CloseWithError(err)
	}()

	return &Source{opts: xopts, device: device, cancel: cancel, pipe: pr}, nil
}

// Args returns the ffmpeg arguments for capturing raw RGBA frames of
// width by height to stdout.
func Args(device string, width, height, framerate int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-framerate", fmt.Sprintf("%d", framerate),
		"-i", device,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	}
}

// Grab reads the next frame written by ffmpeg.
func (s *Source) Grab() (*image.NRGBA, error) {
	return readFrame(s.pipe, s.opts.Width, s.opts.Height)
}

// readFrame reads one RGBA frame. Ffmpeg writes opaque pixels, so the bytes
// are valid non-premultiplied colors.
func readFrame(r io.Reader, width, height int) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if _, err := io.ReadFull(r, img.Pix); err != nil {
		return nil, fmt.Errorf("reading frame from ffmpeg: %w", err)
	}
	return img, nil
}

// Close stops ffmpeg.
func (s *Source) Close() error {
	s.cancel()
	return s.pipe.Close()
}
