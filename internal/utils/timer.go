package utils

import "time"

// Timer measures the wall-clock time of one operation. It starts on
// construction; Stop freezes the measurement and later calls to Stop return
// the same value.
type Timer struct {
	startTime time.Time
	duration  time.Duration
	stopped   bool
}

// NewTimer returns a running Timer.
func NewTimer() *Timer {
	return &Timer{startTime: time.Now()}
}

// Elapsed returns the time since the start, or the frozen duration once the
// timer has been stopped.
func (t *Timer) Elapsed() time.Duration {
	if t.stopped {
		return t.duration
	}
	return time.Since(t.startTime)
}

// Stop freezes the timer and returns the measured duration.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.duration = time.Since(t.startTime)
		t.stopped = true
	}
	return t.duration
}
