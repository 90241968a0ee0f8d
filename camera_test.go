package csicam_test

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wsmith/csicam"
)

// fakeSource returns frames with their first pixel set to a sequence number.
type fakeSource struct {
	mutex   sync.Mutex
	n       int
	fail    func(n int) bool // If set and true, the grab fails.
	delay   time.Duration
	closed  bool
	active  int32 // Concurrent grabs.
	overlap int32 // Set if grabs ever ran concurrently.
}

var errFake = errors.New("fake grab error")

func (s *fakeSource) Grab() (*image.NRGBA, error) {
	if atomic.AddInt32(&s.active, 1) > 1 {
		atomic.StoreInt32(&s.overlap, 1)
	}
	defer atomic.AddInt32(&s.active, -1)

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	n := s.n
	s.n++
	if s.fail != nil && s.fail(n) {
		return nil, errFake
	}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(0, 0, color.NRGBA{R: uint8(n), A: 0xff})
	return img, nil
}

func (s *fakeSource) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) grabs() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.n
}

func seq(img *image.NRGBA) int {
	return int(img.NRGBAAt(0, 0).R)
}

func TestOpenErrors(t *testing.T) {
	_, err := csicam.Open(nil, nil)
	var oerr *csicam.OpenError
	if !errors.As(err, &oerr) {
		t.Fatalf("open nil source, got %v, expected OpenError", err)
	}

	src := &fakeSource{fail: func(int) bool { return true }}
	_, err = csicam.Open(src, nil)
	if !errors.As(err, &oerr) || !errors.Is(err, errFake) {
		t.Fatalf("open failing source, got %v, expected OpenError wrapping grab error", err)
	}
	if !src.closed {
		t.Fatalf("source not closed after failed open")
	}

	_, err = csicam.Open(&fakeSource{}, &csicam.Opts{Alpha: 1})
	if err == nil {
		t.Fatalf("missing error for alpha 1")
	}
}

func TestReadWithoutStart(t *testing.T) {
	src := &fakeSource{}
	c, err := csicam.Open(src, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Release()

	// Without background grabbing, reads keep returning the first frame.
	for i := 0; i < 3; i++ {
		ok, img := c.Read()
		if !ok || img == nil {
			t.Fatalf("read %d, got no frame", i)
		}
		if seq(img) != 0 {
			t.Fatalf("read %d, got frame %d, expected 0", i, seq(img))
		}
	}
	if n := src.grabs(); n != 1 {
		t.Fatalf("grabs, got %d, expected 1", n)
	}
}

func TestReadReturnsCopy(t *testing.T) {
	c, err := csicam.Open(&fakeSource{}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Release()

	_, img := c.Read()
	img.SetNRGBA(0, 0, color.NRGBA{R: 99, A: 0xff})
	_, img = c.Read()
	if seq(img) != 0 {
		t.Fatalf("modifying a read frame changed the camera frame, got %d", seq(img))
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{delay: time.Millisecond}
	c, err := csicam.Open(src, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Release()

	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(); err != csicam.ErrAlreadyRunning {
		t.Fatalf("second start, got %v, expected ErrAlreadyRunning", err)
	}
	if !c.Running() {
		t.Fatalf("camera not running after start")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, img := c.Read()
		if seq(img) > 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no new frames after start")
		}
		time.Sleep(time.Millisecond)
	}

	c.Stop()
	if c.Running() {
		t.Fatalf("camera running after stop")
	}
	n := src.grabs()
	_, img := c.Read()
	time.Sleep(20 * time.Millisecond)
	if src.grabs() != n {
		t.Fatalf("grabs after stop, got %d, expected %d", src.grabs(), n)
	}
	_, again := c.Read()
	if seq(again) != seq(img) {
		t.Fatalf("frame changed after stop, got %d, expected %d", seq(again), seq(img))
	}
	if atomic.LoadInt32(&src.overlap) != 0 {
		t.Fatalf("concurrent grabs on source")
	}

	// Stop is idempotent, and the camera can be started again.
	c.Stop()
	if err := c.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	c.Stop()
}

func TestConcurrentStartStop(t *testing.T) {
	src := &fakeSource{delay: time.Millisecond}
	c, err := csicam.Open(src, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Release()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.Start()
				c.Stop()
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&src.overlap) != 0 {
		t.Fatalf("two capture goroutines grabbed at the same time")
	}
	if c.Running() {
		t.Fatalf("camera running after last stop")
	}
}

func TestGrabErrorKeepsFrame(t *testing.T) {
	// All grabs after the first fail.
	src := &fakeSource{fail: func(n int) bool { return n > 0 }}
	c, err := csicam.Open(src, &csicam.Opts{RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Release()

	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for src.grabs() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("capture stopped retrying")
		}
		time.Sleep(time.Millisecond)
	}
	ok, img := c.Read()
	if !ok || seq(img) != 0 {
		t.Fatalf("read after failed grabs, got %v %d, expected true 0", ok, seq(img))
	}
	if r := c.GrabRate(); r != 0 {
		t.Fatalf("grab rate with only failures, got %v, expected 0", r)
	}
}

func TestRelease(t *testing.T) {
	src := &fakeSource{}
	c, err := csicam.Open(src, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if c.Running() {
		t.Fatalf("running after release")
	}
	if !src.closed {
		t.Fatalf("source not closed by release")
	}
	if err := c.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestRates(t *testing.T) {
	var mutex sync.Mutex
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		mutex.Lock()
		defer mutex.Unlock()
		return now
	}
	c, err := csicam.Open(&fakeSource{}, &csicam.Opts{Now: clock, DisplayRates: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Release()

	for i := 0; i < 200; i++ {
		mutex.Lock()
		now = now.Add(100 * time.Millisecond)
		mutex.Unlock()
		c.Read()
	}
	r := c.ReadRate()
	if r < 9.9 || r > 10.1 {
		t.Fatalf("read rate, got %v, expected about 10", r)
	}
	if c.GrabRate() != 0 {
		t.Fatalf("grab rate without start, got %v, expected 0", c.GrabRate())
	}

	// Frames of 4x4 are too small for labels, drawing must clip.
	if ok, img := c.Read(); !ok || img.Bounds().Dx() != 4 {
		t.Fatalf("read with rates drawn, got %v %v", ok, img.Bounds())
	}
}
