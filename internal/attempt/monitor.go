package attempt

import "github.com/stemsi/hoa-backend/internal/model"

// Monitor turns host visibility signals into integrity violations.
// Every signal is forwarded to the sink, whether or not it changed
// anything.
type Monitor struct {
	sink func(sig model.VisibilitySignal, triggered bool)
}

// NewMonitor returns a Monitor reporting to sink. A nil sink is allowed.
func NewMonitor(sink func(sig model.VisibilitySignal, triggered bool)) *Monitor {
	return &Monitor{sink: sink}
}

// Observe applies sig to s and reports whether it forced submission.
// Only a hidden signal while the attempt is running can trigger.
func (m *Monitor) Observe(s *Session, sig model.VisibilitySignal) bool {
	triggered := false
	if sig.Hidden {
		triggered = s.IntegrityViolation()
	}
	if m.sink != nil {
		m.sink(sig, triggered)
	}
	return triggered
}
