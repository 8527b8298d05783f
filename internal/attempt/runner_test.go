package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/model"
)

type submitRecorder struct {
	mu      sync.Mutex
	reviews []model.Review
}

func (s *submitRecorder) record(r model.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, r)
}

func (s *submitRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reviews)
}

func startRunner(t *testing.T, exam *model.Exam, cfg RunnerConfig) (*Runner, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	sess, err := NewSession(exam, clock, seeded())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Clock = clock
	cfg.Logger = zerolog.Nop()
	if cfg.AttemptID == uuid.Nil {
		cfg.AttemptID = uuid.New()
	}
	r := NewRunner(sess, cfg)
	t.Cleanup(r.Close)
	return r, clock
}

func waitSubmitted(t *testing.T, r *Runner) {
	t.Helper()
	select {
	case <-r.Submitted():
	case <-time.After(2 * time.Second):
		t.Fatal("attempt was not submitted")
	}
}

func TestRunnerTimeoutSubmitsOnce(t *testing.T) {
	exam := chemistryExam()
	exam.DurationSeconds = 3
	rec := &submitRecorder{}
	r, clock := startRunner(t, exam, RunnerConfig{OnSubmit: rec.record})

	clock.Advance(2 * time.Second)
	snap, err := r.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.RemainingSeconds != 1 || snap.Phase != model.PhaseInProgress {
		t.Fatalf("after 2s: %+v", snap)
	}

	clock.Advance(time.Second)
	waitSubmitted(t, r)
	clock.Advance(10 * time.Second)

	snap, _ = r.Snapshot(context.Background())
	if snap.RemainingSeconds != 0 || snap.SubmitReason != model.SubmitReasonTimeout {
		t.Fatalf("after timeout: %+v", snap)
	}
	if rec.count() != 1 {
		t.Fatalf("OnSubmit called %d times", rec.count())
	}
	if clock.Tickers() != 0 {
		t.Fatal("countdown still running after submission")
	}
}

func TestRunnerCountsTimeFromConstruction(t *testing.T) {
	exam := chemistryExam()
	exam.DurationSeconds = 3
	r, clock := startRunner(t, exam, RunnerConfig{})

	// No command has reached the loop yet; every second still counts.
	clock.Advance(3 * time.Second)
	waitSubmitted(t, r)

	snap, err := r.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.RemainingSeconds != 0 || snap.SubmitReason != model.SubmitReasonTimeout {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestRunnerRestoredSubmissionIsSettledAtOnce(t *testing.T) {
	clock := NewManualClock(epoch.Add(time.Hour))
	sess, err := RestoreSession(chemistryExam(), clock, seeded(), Resume{
		StartedAt: epoch,
		Submitted: &Submission{Reason: model.SubmitReasonManual, At: epoch.Add(time.Minute)},
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := &submitRecorder{}
	r := NewRunner(sess, RunnerConfig{AttemptID: uuid.New(), Clock: clock, Logger: zerolog.Nop(), OnSubmit: rec.record})
	t.Cleanup(r.Close)

	select {
	case <-r.Submitted():
	default:
		t.Fatal("restored submission not visible right after construction")
	}
	if clock.Tickers() != 0 {
		t.Fatal("countdown started for a submitted attempt")
	}

	// The hook still fires once from the loop so the result is persisted again.
	if _, err := r.Snapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatalf("OnSubmit called %d times", rec.count())
	}
}

func TestRunnerManualSubmitStopsCountdown(t *testing.T) {
	rec := &submitRecorder{}
	r, clock := startRunner(t, chemistryExam(), RunnerConfig{OnSubmit: rec.record})
	ctx := context.Background()

	if err := r.Answer(ctx, 0, model.TextAnswer("Electron")); err != nil {
		t.Fatal(err)
	}
	if err := r.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatal("OnSubmit should run before Submit returns")
	}
	if err := r.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	if clock.Tickers() != 0 {
		t.Fatal("countdown not stopped")
	}
	if rec.count() != 1 {
		t.Fatalf("OnSubmit called %d times", rec.count())
	}

	review, err := r.Review(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if review.AttemptID != r.ID() || review.Correct != 1 || review.Total != 2 {
		t.Fatalf("review = %+v", review)
	}
}

func TestRunnerReviewBeforeSubmit(t *testing.T) {
	r, _ := startRunner(t, chemistryExam(), RunnerConfig{})
	if _, err := r.Review(context.Background()); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunnerVisibility(t *testing.T) {
	type seen struct {
		sig       model.VisibilitySignal
		triggered bool
	}
	var mu sync.Mutex
	var signals []seen
	rec := &submitRecorder{}

	r, _ := startRunner(t, chemistryExam(), RunnerConfig{
		OnSubmit: rec.record,
		OnVisibility: func(sig model.VisibilitySignal, triggered bool) {
			mu.Lock()
			defer mu.Unlock()
			signals = append(signals, seen{sig, triggered})
		},
	})
	ctx := context.Background()

	visible := model.VisibilitySignal{Hidden: false, Kind: model.VisibilityWindowBlur}
	hidden := model.VisibilitySignal{Hidden: true, Kind: model.VisibilityTabSwitch}

	if trig, err := r.ReportVisibility(ctx, visible); err != nil || trig {
		t.Fatalf("visible signal: %v %v", trig, err)
	}
	if trig, err := r.ReportVisibility(ctx, hidden); err != nil || !trig {
		t.Fatalf("first hidden signal: %v %v", trig, err)
	}
	if trig, err := r.ReportVisibility(ctx, hidden); err != nil || trig {
		t.Fatalf("second hidden signal: %v %v", trig, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(signals) != 3 {
		t.Fatalf("sink saw %d signals", len(signals))
	}
	if signals[0].triggered || !signals[1].triggered || signals[2].triggered {
		t.Fatalf("triggered flags = %+v", signals)
	}
	if rec.count() != 1 || !rec.reviews[0].IntegrityFlag || rec.reviews[0].SubmitReason != model.SubmitReasonIntegrity {
		t.Fatalf("reviews = %+v", rec.reviews)
	}
}

func TestRunnerSubscribe(t *testing.T) {
	r, clock := startRunner(t, chemistryExam(), RunnerConfig{})
	events, cancel := r.Subscribe()
	defer cancel()

	clock.Advance(time.Second)
	ev := nextEvent(t, events)
	if ev.Type != EventTick || ev.Remaining != 899 {
		t.Fatalf("event = %+v", ev)
	}

	if err := r.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	ev = nextEvent(t, events)
	if ev.Type != EventSubmitted || ev.Review == nil || ev.Review.SubmitReason != model.SubmitReasonManual {
		t.Fatalf("event = %+v", ev)
	}

	r.Close()
	if _, ok := <-events; ok {
		t.Fatal("channel should be closed with the runner")
	}
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestRunnerClosed(t *testing.T) {
	r, clock := startRunner(t, chemistryExam(), RunnerConfig{})
	r.Close()
	r.Close()

	if err := r.Submit(context.Background()); !errors.Is(err, ErrRunnerClosed) {
		t.Fatalf("err = %v", err)
	}
	if clock.Tickers() != 0 {
		t.Fatal("countdown survived close")
	}
	events, _ := r.Subscribe()
	if _, ok := <-events; ok {
		t.Fatal("subscribe after close should yield a closed channel")
	}
}

func TestRunnerRespectsContext(t *testing.T) {
	r, _ := startRunner(t, chemistryExam(), RunnerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Do(ctx, func(*Session) error { return nil })
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunnerSerialisesConcurrentCommands(t *testing.T) {
	r, clock := startRunner(t, chemistryExam(), RunnerConfig{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Answer(ctx, i%2, answerFor(i%2))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = r.Snapshot(ctx)
		}()
	}
	clock.Advance(5 * time.Second)
	wg.Wait()

	snap, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Questions[0].Answered || !snap.Questions[1].Answered {
		t.Fatal("answers lost")
	}
	if snap.RemainingSeconds != 895 {
		t.Fatalf("remaining = %d", snap.RemainingSeconds)
	}
}

func answerFor(i int) model.Answer {
	if i == 1 {
		return model.NewChoiceSet("Air")
	}
	return model.TextAnswer("Electron")
}
