// Package csicam caches frames from a camera in the background, so an
// application always has the most recent frame available without waiting for
// the camera.
//
// A Camera reads frames from a Source, typically a gstreamer pipeline for a
// CSI camera on a Jetson board, see package source/gstreamer. Frame rates of
// both grabbing and reading are estimated while running.
//
// The lifecycle is Open, Start, Read (any number of times), Stop, Release.
package csicam

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/wsmith/csicam/overlay"
)

// ErrAlreadyRunning is returned when starting something that is already
// running. It is not fatal, state is unchanged.
var ErrAlreadyRunning = errors.New("already running")

// Source is a blocking source of frames, e.g. a camera.
type Source interface {
	// Grab waits for the next frame and returns it. The returned image is
	// owned by the caller.
	Grab() (*image.NRGBA, error)

	// Close releases the source. Grab must not be called after Close.
	Close() error
}

// OpenError is returned by Open when the source cannot deliver frames.
type OpenError struct {
	Err error
}

// Error returns a human-readable description.
func (e *OpenError) Error() string {
	return fmt.Sprintf("opening camera: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *OpenError) Unwrap() error {
	return e.Err
}

// Opts are options for a Camera.
type Opts struct {
	DisplayRates bool          // Draw grab and read rates onto frames returned by Read.
	Alpha        float64       // Smoothing factor for rate estimation, DefaultAlpha if zero.
	RetryDelay   time.Duration // Pause after a failed grab. 10ms if zero.
	Verbose      bool
	Now          func() time.Time // Clock for rate estimation, time.Now if nil.
}

var optsDefault = Opts{
	Alpha:      DefaultAlpha,
	RetryDelay: 10 * time.Millisecond,
	Now:        time.Now,
}

// Camera holds the latest frame of a Source, updated by a background
// goroutine.
type Camera struct {
	opts   Opts
	source Source

	lifecycle sync.Mutex // Held for all of Start and Stop.

	mutex   sync.Mutex // Guards below, and the estimators.
	frame   *image.NRGBA
	grabbed bool
	grabs   *RateEstimator
	reads   *RateEstimator
	stop    chan struct{} // Non-nil while running.
	done    chan struct{} // Closed when the capture goroutine has exited.
}

// Open grabs the first frame from source and returns a Camera for it. If
// source cannot deliver a frame, source is closed and an *OpenError is
// returned.
//
// Callers must call Release when done.
func Open(source Source, opts *Opts) (camera *Camera, rerr error) {
	if source == nil {
		return nil, &OpenError{errors.New("no source")}
	}

	// Ensure cleanup in case of failure.
	defer func() {
		if rerr != nil {
			source.Close()
		}
	}()

	xopts := optsDefault
	if opts != nil {
		xopts = *opts
		if xopts.Alpha == 0 {
			xopts.Alpha = optsDefault.Alpha
		}
		if xopts.RetryDelay == 0 {
			xopts.RetryDelay = optsDefault.RetryDelay
		}
		if xopts.Now == nil {
			xopts.Now = optsDefault.Now
		}
	}

	now := xopts.Now()
	grabs, err := NewRateEstimator(xopts.Alpha, now)
	if err != nil {
		return nil, &OpenError{err}
	}
	reads, err := NewRateEstimator(xopts.Alpha, now)
	if err != nil {
		return nil, &OpenError{err}
	}

	frame, err := source.Grab()
	if err != nil {
		return nil, &OpenError{fmt.Errorf("first frame: %w", err)}
	}
	if frame == nil {
		return nil, &OpenError{errors.New("first frame: source returned no image")}
	}
	if xopts.Verbose {
		log.Printf("camera opened, frame size %v", frame.Bounds().Size())
	}

	c := &Camera{
		opts:    xopts,
		source:  source,
		frame:   frame,
		grabbed: true,
		grabs:   grabs,
		reads:   reads,
	}
	return c, nil
}

// Start starts grabbing frames in the background. Start returns
// ErrAlreadyRunning if grabbing was already started.
func (c *Camera) Start() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stop != nil {
		return ErrAlreadyRunning
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.capture(c.stop, c.done)
	return nil
}

func (c *Camera) capture(stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		frame, err := c.source.Grab()
		if err != nil || frame == nil {
			if err == nil {
				err = errors.New("no image")
			}
			log.Printf("grabbing frame from camera: %v", err)
			select {
			case <-stop:
				return
			case <-time.After(c.opts.RetryDelay):
			}
			continue
		}

		c.mutex.Lock()
		c.frame = frame
		c.grabbed = true
		c.grabs.Tick(c.opts.Now())
		c.mutex.Unlock()
	}
}

// Read returns a copy of the most recent frame. It does not wait for a new
// frame, so consecutive reads can return the same frame. The first return
// value reports whether a frame was available.
func (c *Camera) Read() (bool, *image.NRGBA) {
	c.mutex.Lock()
	if c.frame == nil {
		c.mutex.Unlock()
		return false, nil
	}
	frame := imaging.Clone(c.frame)
	grabbed := c.grabbed
	c.reads.Tick(c.opts.Now())
	rates := Rates{Grabbed: c.grabs.Rate(), Read: c.reads.Rate()}
	c.mutex.Unlock()

	if c.opts.DisplayRates {
		overlay.DrawRates(frame, rates.Read, rates.Grabbed)
	}
	return grabbed, frame
}

// Rates returns the current rate estimates.
func (c *Camera) Rates() Rates {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Rates{Grabbed: c.grabs.Rate(), Read: c.reads.Rate()}
}

// GrabRate returns the estimated frames per second grabbed from the source.
func (c *Camera) GrabRate() float64 {
	return c.Rates().Grabbed
}

// ReadRate returns the estimated frames per second returned by Read.
func (c *Camera) ReadRate() float64 {
	return c.Rates().Read
}

// Running returns whether background grabbing is active.
func (c *Camera) Running() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stop != nil
}

// Stop stops background grabbing and waits until the capture goroutine has
// finished its current grab and exited. No frames are stored after Stop
// returns. Stop on a stopped camera does nothing.
func (c *Camera) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mutex.Lock()
	stop, done := c.stop, c.done
	c.mutex.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done

	c.mutex.Lock()
	c.stop, c.done = nil, nil
	c.mutex.Unlock()
	if c.opts.Verbose {
		log.Printf("camera stopped")
	}
}

// Release stops grabbing if needed and closes the source. The camera must
// not be used afterwards.
func (c *Camera) Release() error {
	c.Stop()
	if c.source == nil {
		return nil
	}
	err := c.source.Close()
	c.source = nil
	if err != nil {
		return fmt.Errorf("closing camera source: %v", err)
	}
	return nil
}
