// Package display defines where frames are shown, and how key presses come
// back from the viewer.
package display

import (
	"image"
	"sync"
	"time"
)

// Key codes as delivered by WaitKey. Printable keys are their character
// code, e.g. 'q'.
const (
	KeyEsc = 27
)

// Display shows frames and reports key presses.
type Display interface {
	// Show displays img, replacing the previous frame.
	Show(img image.Image) error

	// WaitKey waits up to d for a key press. WaitKey returns false if no
	// key was pressed in time.
	WaitKey(d time.Duration) (int, bool)

	// Close shuts down the display.
	Close() error
}

// Null is a display that discards frames. Keys can be injected with Press.
type Null struct {
	mutex sync.Mutex
	shown int
	last  image.Image
	keys  chan int
}

// Check that Null implements interface Display.
var _ Display = (*Null)(nil)

// NewNull returns a new Null display.
func NewNull() *Null {
	return &Null{keys: make(chan int, 16)}
}

// Show records img as the last frame.
func (n *Null) Show(img image.Image) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.shown++
	n.last = img
	return nil
}

// Shown returns the number of frames shown, and the last one.
func (n *Null) Shown() (int, image.Image) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.shown, n.last
}

// Press queues a key press. Presses beyond the queue size are dropped.
func (n *Null) Press(key int) {
	select {
	case n.keys <- key:
	default:
	}
}

// WaitKey returns a pressed key, waiting up to d.
func (n *Null) WaitKey(d time.Duration) (int, bool) {
	return WaitKey(n.keys, d)
}

// Close does nothing.
func (n *Null) Close() error {
	return nil
}

// WaitKey waits up to d for a key on keys, for use by Display
// implementations.
func WaitKey(keys <-chan int, d time.Duration) (int, bool) {
	select {
	case k := <-keys:
		return k, true
	default:
	}
	if d <= 0 {
		return 0, false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case k := <-keys:
		return k, true
	case <-t.C:
		return 0, false
	}
}

