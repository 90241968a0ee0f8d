package csicam

import (
	"fmt"
	"time"
)

// DefaultAlpha is the default smoothing factor for rate estimation.
const DefaultAlpha = 0.95

// RateEstimator estimates an event rate in events per second with an
// exponential moving average over the reciprocal of the time between events.
//
// A RateEstimator is not safe for concurrent use; Camera guards its
// estimators with its own lock.
type RateEstimator struct {
	alpha float64
	rate  float64
	last  time.Time
}

// NewRateEstimator returns an estimator with smoothing factor alpha, which
// must be in [0, 1). The first interval is measured from start.
func NewRateEstimator(alpha float64, start time.Time) (*RateEstimator, error) {
	if alpha < 0 || alpha >= 1 {
		return nil, fmt.Errorf("alpha must be in [0, 1), got %v", alpha)
	}
	return &RateEstimator{alpha: alpha, last: start}, nil
}

// Tick registers an event at time now and returns the updated rate.
// An event at or before the previous event does not change the rate.
func (e *RateEstimator) Tick(now time.Time) float64 {
	dt := now.Sub(e.last).Seconds()
	if dt <= 0 {
		return e.rate
	}
	e.last = now
	e.rate = e.alpha*e.rate + (1-e.alpha)/dt
	return e.rate
}

// Rate returns the current estimate.
func (e *RateEstimator) Rate() float64 {
	return e.rate
}

// Rates is a snapshot of the frame rates of a Camera.
type Rates struct {
	Grabbed float64 // Frames per second grabbed from the source.
	Read    float64 // Frames per second read by the application.
}

// String returns the rates formatted for display.
func (r Rates) String() string {
	return fmt.Sprintf("grabbed %.1f/s, read %.1f/s", r.Grabbed, r.Read)
}
