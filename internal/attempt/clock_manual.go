package attempt

import (
	"sync"
	"time"
)

// ManualClock is a Clock that only moves when Advance is called. Ticks are
// delivered synchronously: Advance returns once every live ticker's reader
// has received its ticks, which keeps tests free of sleeps.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualClock) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{
		period: d,
		next:   m.now.Add(d),
		c:      make(chan time.Time),
		done:   make(chan struct{}),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing every tick that falls due.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t, at := m.nextDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = at
		t.next = at.Add(t.period)
		m.mu.Unlock()

		t.fire(at)
	}
}

// Tickers reports how many tickers have not been stopped.
func (m *ManualClock) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

func (m *ManualClock) nextDue(target time.Time) (*manualTicker, time.Time) {
	var due *manualTicker
	for _, t := range m.tickers {
		if t.stopped() || t.next.After(target) {
			continue
		}
		if due == nil || t.next.Before(due.next) {
			due = t
		}
	}
	if due == nil {
		return nil, time.Time{}
	}
	return due, due.next
}

type manualTicker struct {
	period time.Duration
	next   time.Time
	c      chan time.Time
	done   chan struct{}
	once   sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.once.Do(func() { close(t.done) })
}

func (t *manualTicker) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *manualTicker) fire(at time.Time) {
	select {
	case t.c <- at:
	case <-t.done:
	}
}
