package csicam

import (
	"fmt"
	"sync"
	"time"
)

// Counter counts events, e.g. frames displayed, and at a fixed interval
// latches the count as the rate of the last period and starts again from
// zero.
type Counter struct {
	mutex sync.Mutex
	count int
	last  int

	stop chan struct{}
	done chan struct{}
}

// NewCounter returns a counter. Call Start to latch periodically, or Latch
// to latch manually.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc counts one event.
func (c *Counter) Inc() {
	c.mutex.Lock()
	c.count++
	c.mutex.Unlock()
}

// Last returns the number of events counted in the last completed period.
func (c *Counter) Last() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.last
}

// Latch ends the current period.
func (c *Counter) Latch() {
	c.mutex.Lock()
	c.last = c.count
	c.count = 0
	c.mutex.Unlock()
}

// Start latches the counter every interval until Stop is called.
// Start returns ErrAlreadyRunning if the counter was already started.
func (c *Counter) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid latch interval %v", interval)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.stop != nil {
		return ErrAlreadyRunning
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				c.Latch()
			}
		}
	}(c.stop, c.done)
	return nil
}

// Stop stops periodic latching and waits for it to finish.
func (c *Counter) Stop() {
	c.mutex.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mutex.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
