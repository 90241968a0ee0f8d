package gstreamer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"

	"github.com/wsmith/csicam"
)

// JPEGSource is a frame source for which gstreamer writes JPEG images to a
// temporary directory. Only the most recent image is kept, older images
// that were not grabbed in time are dropped.
type JPEGSource struct {
	opts    Opts
	tempDir string
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
	frames  chan *image.NRGBA // Holds at most the latest frame.
	errs    chan error
	done    chan struct{}
	exited  chan struct{} // Closed when gst-launch-1.0 has exited.
	exitErr error         // Why gst-launch-1.0 exited, set before exited is closed.
}

// Check that JPEGSource implements interface Source.
var _ csicam.Source = (*JPEGSource)(nil)

// NewJPEGSource starts gst-launch-1.0 with the pipeline of desc, encoding
// frames as JPEG files in a temporary directory. These files are decoded,
// removed and returned by Grab.
//
// Callers must call Close to clean up.
func NewJPEGSource(desc csicam.Descriptor, opts *Opts) (src *JPEGSource, rerr error) {
	s := newJPEGSource()
	if opts != nil {
		s.opts = *opts
	}

	// Ensure cleanup in case of failure.
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	tempDir, err := csicam.TempDir()
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %v", err)
	}
	s.tempDir = tempDir
	if s.opts.Verbose {
		log.Printf("gstreamer jpeg source, writing images to tempdir %s", s.tempDir)
	}

	logf := func(format string, args ...interface{}) {
		if s.opts.Verbose {
			log.Printf(format, args...)
		}
	}

	// Watch before starting gstreamer, so the first image is not missed.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %v", err)
	}
	s.watcher = watcher
	if err := watcher.Add(s.tempDir); err != nil {
		return nil, fmt.Errorf("registering file change watcher for temp dir: %v", err)
	}

	go s.watch(logf)

	sink := "jpegenc ! multifilesink location=" + s.tempDir + "/frame%05d.jpg"
	args := append([]string{"-q"}, csicam.LaunchArgs(desc.Launch(sink))...)
	logf("starting gstreamer as gst-launch-1.0 %s", strings.Join(args, " "))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", args...)
	cmd.Dir = s.tempDir
	if s.opts.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("starting gstreamer with gst-launch-1.0: %w", err)
	}
	go func() {
		err := cmd.Wait()
		if err == nil {
			err = errors.New("pipeline ended")
		}
		s.exit(fmt.Errorf("gst-launch-1.0 exited: %v", err))
	}()

	return s, nil
}

func newJPEGSource() *JPEGSource {
	return &JPEGSource{
		frames: make(chan *image.NRGBA, 1),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// exit records that gstreamer is gone. All later grabs fail with err. Called
// once.
func (s *JPEGSource) exit(err error) {
	s.exitErr = err
	close(s.exited)
}

func (s *JPEGSource) watch(logf func(format string, args ...interface{})) {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Write == 0 || !strings.HasSuffix(ev.Name, ".jpg") {
				continue
			}
			img, err := decodeJPEGFile(ev.Name)
			if err != nil {
				logf("decoding jpeg %q: %v (may be partially written)", ev.Name, err)
				continue
			}
			if err := os.Remove(ev.Name); err != nil {
				logf("removing image %s: %v", ev.Name, err)
			}
			s.put(img)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendErr(fmt.Errorf("watching for changes: %v", err))
		}
	}
}

// put replaces a pending frame with img. Only called from the watch
// goroutine, so the second send cannot block.
func (s *JPEGSource) put(img *image.NRGBA) {
	select {
	case s.frames <- img:
	default:
		select {
		case <-s.frames:
			if s.opts.Verbose {
				log.Printf("dropping image, not grabbed in time")
			}
		default:
		}
		s.frames <- img
	}
}

func (s *JPEGSource) sendErr(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func decodeJPEGFile(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, err
	}
	return imaging.Clone(img), nil
}

// Grab waits for the next image written by gstreamer. Once gstreamer has
// exited, Grab returns the pending image if any, and the exit error after.
func (s *JPEGSource) Grab() (*image.NRGBA, error) {
	select {
	case img := <-s.frames:
		return img, nil
	case err := <-s.errs:
		return nil, err
	case <-s.exited:
		select {
		case img := <-s.frames:
			return img, nil
		default:
		}
		return nil, s.exitErr
	case <-s.done:
		return nil, errors.New("source closed")
	}
}

// Close shuts down the source, stopping gstreamer and removing the temporary
// directory.
func (s *JPEGSource) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	return nil
}
