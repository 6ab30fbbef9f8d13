package avatar

import "time"

// Clock turns variable frame times into a whole number of fixed animation
// ticks. Time beyond maxCatchUp ticks in one frame is dropped rather than
// replayed.
type Clock struct {
	step       time.Duration
	acc        time.Duration
	maxCatchUp int
	dropped    uint64
}

// NewClock returns a clock ticking hz times per second.
func NewClock(hz, maxCatchUp int) *Clock {
	if hz <= 0 {
		hz = 30
	}
	if maxCatchUp <= 0 {
		maxCatchUp = 1
	}
	return &Clock{
		step:       time.Second / time.Duration(hz),
		maxCatchUp: maxCatchUp,
	}
}

// Advance adds the frame time dt and returns how many ticks to run now.
func (c *Clock) Advance(dt time.Duration) int {
	if dt < 0 {
		dt = 0
	}
	c.acc += dt
	n := int(c.acc / c.step)
	c.acc -= time.Duration(n) * c.step
	if n > c.maxCatchUp {
		c.dropped += uint64(n - c.maxCatchUp)
		n = c.maxCatchUp
	}
	return n
}

// Step returns the tick length in seconds.
func (c *Clock) Step() float32 { return float32(c.step.Seconds()) }

// Dropped returns the number of ticks skipped to catch up.
func (c *Clock) Dropped() uint64 { return c.dropped }

// FrameInterval returns the time between frames at hz.
func FrameInterval(hz int) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}
