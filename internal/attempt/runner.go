package attempt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/model"
)

// EventType labels what a Runner pushes to its subscribers.
type EventType string

const (
	EventTick      EventType = "tick"
	EventSubmitted EventType = "submitted"
)

// Event is pushed to subscribers from the runner loop.
type Event struct {
	Type      EventType
	Remaining int
	Review    *model.Review
}

// RunnerConfig wires a Runner to its surroundings. Hooks run on the
// runner goroutine and must not call back into the Runner.
type RunnerConfig struct {
	AttemptID uuid.UUID
	StudentID int
	Clock     Clock
	Logger    zerolog.Logger

	// OnSubmit fires exactly once, when the attempt is submitted.
	OnSubmit func(review model.Review)
	// OnVisibility receives every visibility signal.
	OnVisibility func(sig model.VisibilitySignal, triggered bool)
}

type command struct {
	fn   func(*Session) error
	done chan error
}

// Runner owns one Session and is the only goroutine that touches it.
// User commands, countdown ticks and visibility reports are all applied
// from its loop, one at a time.
type Runner struct {
	id        uuid.UUID
	studentID int
	sess      *Session
	clock     Clock
	monitor   *Monitor
	onSubmit  func(model.Review)
	log       zerolog.Logger

	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	submitted chan struct{}
	closeOnce sync.Once

	countdown *Countdown
	finished  bool

	subMu  sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewRunner starts the loop for sess. Call Close to release it.
func NewRunner(sess *Session, cfg RunnerConfig) *Runner {
	clock := cfg.Clock
	if clock == nil {
		clock = WallClock{}
	}
	r := &Runner{
		id:        cfg.AttemptID,
		studentID: cfg.StudentID,
		sess:      sess,
		clock:     clock,
		monitor:   NewMonitor(cfg.OnVisibility),
		onSubmit:  cfg.OnSubmit,
		log:       cfg.Logger.With().Str("component", "attempt_runner").Str("attempt_id", cfg.AttemptID.String()).Logger(),
		cmds:      make(chan command),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		submitted: make(chan struct{}),
		subs:      make(map[chan Event]struct{}),
	}
	// The ticker starts before the loop so no elapsed time is missed
	// while the goroutine is being scheduled. A session restored as
	// submitted reports so at once; its hooks still run from the loop.
	if sess.Submitted() {
		close(r.submitted)
	} else {
		r.countdown = StartCountdown(clock)
	}
	go r.loop()
	return r
}

// ID returns the attempt id.
func (r *Runner) ID() uuid.UUID { return r.id }

// StudentID returns the owner of the attempt.
func (r *Runner) StudentID() int { return r.studentID }

// Exam returns the exam definition; it is immutable so no locking is needed.
func (r *Runner) Exam() *model.Exam { return r.sess.Exam() }

// Submitted is closed once the attempt has been submitted.
func (r *Runner) Submitted() <-chan struct{} { return r.submitted }

// Done is closed when the loop has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) loop() {
	defer close(r.done)
	defer r.closeSubscribers()

	var ticks <-chan time.Time
	if r.countdown != nil {
		ticks = r.countdown.C()
	}
	r.settle()

	for {
		select {
		case <-r.quit:
			if r.countdown != nil {
				r.countdown.Stop()
			}
			return

		case c := <-r.cmds:
			err := c.fn(r.sess)
			r.settle()
			c.done <- err

		case <-ticks:
			r.sess.Tick()
			r.publish(Event{Type: EventTick, Remaining: r.sess.Remaining()})
			r.settle()
		}

		if r.finished {
			ticks = nil
		}
	}
}

// settle runs the submission side effects the first time the session is
// seen in the Submitted phase.
func (r *Runner) settle() {
	if r.finished || !r.sess.Submitted() {
		return
	}
	r.finished = true
	if r.countdown != nil {
		r.countdown.Stop()
	}

	review, err := r.review()
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to build review")
		return
	}
	r.log.Info().
		Str("reason", string(review.SubmitReason)).
		Int("correct", review.Correct).
		Int("total", review.Total).
		Bool("integrity_flag", review.IntegrityFlag).
		Msg("Attempt submitted")

	select {
	case <-r.submitted:
	default:
		close(r.submitted)
	}
	if r.onSubmit != nil {
		r.onSubmit(review)
	}
	r.publish(Event{Type: EventSubmitted, Remaining: r.sess.Remaining(), Review: &review})
}

func (r *Runner) review() (model.Review, error) {
	review, err := r.sess.Review()
	if err != nil {
		return model.Review{}, err
	}
	review.AttemptID = r.id
	review.StudentID = r.studentID
	return review, nil
}

// Do runs fn on the runner goroutine and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(*Session) error) error {
	c := command{fn: fn, done: make(chan error, 1)}
	select {
	case r.cmds <- c:
	case <-r.quit:
		return ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Answer records an answer for question i.
func (r *Runner) Answer(ctx context.Context, i int, a model.Answer) error {
	return r.Do(ctx, func(s *Session) error { return s.Answer(i, a) })
}

// Navigate focuses question i.
func (r *Runner) Navigate(ctx context.Context, i int) error {
	return r.Do(ctx, func(s *Session) error { return s.Navigate(i) })
}

// Submit ends the attempt. Submitting twice is not an error.
func (r *Runner) Submit(ctx context.Context) error {
	return r.Do(ctx, func(s *Session) error {
		s.Submit()
		return nil
	})
}

// ReportVisibility feeds a host visibility signal to the integrity monitor.
func (r *Runner) ReportVisibility(ctx context.Context, sig model.VisibilitySignal) (triggered bool, err error) {
	err = r.Do(ctx, func(s *Session) error {
		triggered = r.monitor.Observe(s, sig)
		return nil
	})
	return triggered, err
}

// Snapshot returns the current test-taker view.
func (r *Runner) Snapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	err := r.Do(ctx, func(s *Session) error {
		snap = s.Snapshot()
		return nil
	})
	snap.AttemptID = r.id
	return snap, err
}

// Review returns the graded attempt, or ErrNotSubmitted.
func (r *Runner) Review(ctx context.Context) (model.Review, error) {
	var review model.Review
	err := r.Do(ctx, func(*Session) error {
		var err error
		review, err = r.review()
		return err
	})
	return review, err
}

// Subscribe registers for tick and submission events. Slow subscribers
// miss events rather than stall the loop. The channel is closed when the
// runner closes or cancel is called.
func (r *Runner) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	r.subMu.Lock()
	defer r.subMu.Unlock()
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	r.subs[ch] = struct{}{}

	return ch, func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if _, ok := r.subs[ch]; ok {
			delete(r.subs, ch)
			close(ch)
		}
	}
}

func (r *Runner) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (r *Runner) closeSubscribers() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		close(ch)
	}
	r.subs = nil
	r.closed = true
}

// Close stops the loop and waits for it to exit. It must not be called
// from a hook or from a function passed to Do.
func (r *Runner) Close() {
	r.closeOnce.Do(func() { close(r.quit) })
	<-r.done
}
