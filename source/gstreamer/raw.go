package gstreamer

import (
	"bufio"
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
)

// fdsink writes raw frames to stdout of gst-launch-1.0.
const fdsink = "fdsink fd=1 sync=false"

// Opts has options for a gstreamer source.
type Opts struct {
	Verbose bool
}

// RawSource reads raw BGR frames from a gst-launch-1.0 process.
type RawSource struct {
	opts   Opts
	size   image.Point
	cancel context.CancelFunc
	pipe   io.ReadCloser
	reader *bufio.Reader
	buf    []byte
}

// Check that RawSource implements interface Source.
var _ csicam.Source = (*RawSource)(nil)

// NewRawSource starts gst-launch-1.0 with the pipeline of desc, writing raw
// BGR frames to a pipe. Frames are read from the pipe by Grab.
//
// Callers must call Close to clean up.
func NewRawSource(desc csicam.Descriptor, opts *Opts) (*RawSource, error) {
	var xopts Opts
	if opts != nil {
		xopts = *opts
	}

	size := desc.FrameSize()
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid frame size %v", size)
	}

	args := append([]string{"-q"}, csicam.LaunchArgs(desc.Launch(fdsink))...)
	if xopts.Verbose {
		log.Printf("starting gstreamer as gst-launch-1.0 %s", strings.Join(args, " "))
	}

	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", args...)
	cmd.Stdout = pw
	if xopts.Verbose {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("starting gstreamer with gst-launch-1.0: %w", err)
	}
	go func() {
		err := cmd.Wait()
		if err == nil {
			err = io.EOF
		} else {
			err = fmt.Errorf("gst-launch-1.0 exited: %v", err)
		}
		pw.CloseWithError(err)
	}()

	s := newRawSource(pr, size)
	s.opts = xopts
	s.cancel = cancel
	return s, nil
}

func newRawSource(r io.ReadCloser, size image.Point) *RawSource {
	return &RawSource{
		size:   size,
		pipe:   r,
		reader: bufio.NewReaderSize(r, 1<<20),
		buf:    make([]byte, size.X*size.Y*3),
	}
}

// Grab reads the next frame from the pipe.
func (s *RawSource) Grab() (*image.NRGBA, error) {
	if _, err := io.ReadFull(s.reader, s.buf); err != nil {
		return nil, fmt.Errorf("reading frame from gstreamer: %w", err)
	}
	return bgrToNRGBA(s.buf, s.size), nil
}

// Close stops gstreamer.
func (s *RawSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.pipe != nil {
		s.pipe.Close()
	}
	return nil
}

// bgrToNRGBA converts packed BGR pixels to an opaque NRGBA image.
func bgrToNRGBA(buf []byte, size image.Point) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	n := size.X * size.Y
	for i := 0; i < n; i++ {
		b, g, r := buf[3*i], buf[3*i+1], buf[3*i+2]
		p := img.Pix[4*i : 4*i+4 : 4*i+4]
		p[0] = r
		p[1] = g
		p[2] = b
		p[3] = 0xff
	}
	return img
}
