package attempt

import (
	"sync"
	"time"
)

// Clock is the time source an attempt runs against.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// WallClock is the production Clock backed by package time.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

func (WallClock) NewTicker(d time.Duration) Ticker {
	return wallTicker{t: time.NewTicker(d)}
}

type wallTicker struct{ t *time.Ticker }

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

// Countdown emits one tick per elapsed second until stopped. A slow
// reader never sees stacked ticks, so each tick is worth exactly one
// second off the clock.
type Countdown struct {
	ticker Ticker
	once   sync.Once
}

// StartCountdown starts ticking immediately.
func StartCountdown(clock Clock) *Countdown {
	return &Countdown{ticker: clock.NewTicker(time.Second)}
}

// C returns the tick channel.
func (c *Countdown) C() <-chan time.Time {
	return c.ticker.C()
}

// Stop cancels the countdown. Safe to call more than once.
func (c *Countdown) Stop() {
	c.once.Do(c.ticker.Stop)
}
