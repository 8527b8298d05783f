package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/attempt"
	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func publishedExam() *model.Exam {
	return &model.Exam{
		ID:              uuid.MustParse("7d0c8f3e-4f4a-4d0e-9a51-2f0c3c1b9e01"),
		Title:           "SSC Chemistry – Chapter 3 Quiz",
		Chapter:         "States of Matter",
		DurationSeconds: 15 * 60,
		Status:          model.ExamStatusPublished,
		Questions: []model.Question{
			{
				Kind:          model.QuestionKindSingleChoice,
				Prompt:        "Which particle carries a negative charge?",
				Options:       []string{"Proton", "Neutron", "Electron", "Nucleus"},
				CorrectSingle: "Electron",
			},
			{
				Kind:       model.QuestionKindMultiChoice,
				Prompt:     "Select all mixtures.",
				Options:    []string{"Air", "Salt solution", "Pure water", "Oxygen"},
				CorrectSet: []string{"Air", "Salt solution"},
			},
		},
	}
}

type fakeExams map[uuid.UUID]*model.Exam

func (f fakeExams) GetExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f[id]
	if !ok {
		return nil, attempt.ErrExamNotFound
	}
	return e, nil
}

type fakeStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
	answers  map[uuid.UUID]map[int]json.RawMessage
	reviews  map[uuid.UUID]*model.Review
	saved    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attempts: make(map[uuid.UUID]*model.Attempt),
		answers:  make(map[uuid.UUID]map[int]json.RawMessage),
		reviews:  make(map[uuid.UUID]*model.Review),
	}
}

func (f *fakeStore) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListInProgress(context.Context) ([]*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Attempt
	for _, a := range f.attempts {
		if a.Phase == model.PhaseInProgress {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAnswers(_ context.Context, id uuid.UUID) (map[int]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers[id], nil
}

func (f *fakeStore) GetReview(_ context.Context, id uuid.UUID) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakeStore) SaveReview(_ context.Context, r *model.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved++
	f.reviews[r.AttemptID] = r
	if a, ok := f.attempts[r.AttemptID]; ok {
		a.Phase = model.PhaseSubmitted
	}
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	queues    map[string][][]byte
	events    []model.MonitorEvent
	answers   map[uuid.UUID]map[int]json.RawMessage
	active    map[string]uuid.UUID
	submitted map[uuid.UUID][]byte
	failQueue map[string]bool
	failMark  bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		queues:    make(map[string][][]byte),
		answers:   make(map[uuid.UUID]map[int]json.RawMessage),
		active:    make(map[string]uuid.UUID),
		submitted: make(map[uuid.UUID][]byte),
		failQueue: make(map[string]bool),
	}
}

func (b *fakeBus) Enqueue(_ context.Context, queue string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failQueue[queue] {
		return errors.New("queue down")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.queues[queue] = append(b.queues[queue], data)
	return nil
}

func (b *fakeBus) Publish(_ context.Context, _ uuid.UUID, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, payload.(model.MonitorEvent))
	return nil
}

func (b *fakeBus) SaveAnswer(_ context.Context, id uuid.UUID, index int, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.answers[id] == nil {
		b.answers[id] = make(map[int]json.RawMessage)
	}
	b.answers[id][index] = raw
	return nil
}

func (b *fakeBus) LoadAnswers(_ context.Context, id uuid.UUID) (map[int]json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.answers[id], nil
}

func (b *fakeBus) SetActive(_ context.Context, examID uuid.UUID, studentID int, attemptID uuid.UUID, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[attemptKey{examID, studentID}.String()] = attemptID
	return nil
}

func (b *fakeBus) GetActive(_ context.Context, examID uuid.UUID, studentID int) (uuid.UUID, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.active[attemptKey{examID, studentID}.String()]
	return id, ok, nil
}

func (b *fakeBus) MarkSubmitted(_ context.Context, review model.Review, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failMark {
		return errors.New("redis down")
	}
	data, err := json.Marshal(review)
	if err != nil {
		return err
	}
	b.submitted[review.AttemptID] = data
	return nil
}

func (b *fakeBus) LoadSubmitted(_ context.Context, id uuid.UUID) (*model.Review, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.submitted[id]
	if !ok {
		return nil, false, nil
	}
	var review model.Review
	if err := json.Unmarshal(data, &review); err != nil {
		return nil, false, err
	}
	return &review, true, nil
}

func (b *fakeBus) count(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue])
}

func (b *fakeBus) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

func (b *fakeBus) lastReview(t *testing.T) model.Review {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queues[config.WorkerKey.PersistResultsQueue]
	if len(q) == 0 {
		t.Fatal("no result queued")
	}
	var r model.Review
	if err := json.Unmarshal(q[len(q)-1], &r); err != nil {
		t.Fatal(err)
	}
	return r
}

type harness struct {
	svc   *AttemptService
	store *fakeStore
	bus   *fakeBus
	clock *attempt.ManualClock
	exam  *model.Exam
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	exam := publishedExam()
	h := &harness{
		store: newFakeStore(),
		bus:   newFakeBus(),
		clock: attempt.NewManualClock(epoch),
		exam:  exam,
	}
	cfg := &config.Config{AttemptRetention: time.Hour}
	h.svc = NewAttemptService(fakeExams{exam.ID: exam}, h.store, h.bus, h.clock, cfg, zerolog.Nop())
	t.Cleanup(h.svc.Close)
	return h
}

func text(s string) model.AnswerValue { return model.AnswerValue{Text: &s} }

func choices(v ...string) model.AnswerValue { return model.AnswerValue{Choices: v} }

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Start(ctx, h.exam.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if first.Resumed {
		t.Fatal("first start reported as resumed")
	}
	second, err := h.svc.Start(ctx, h.exam.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if second.AttemptID != first.AttemptID || !second.Resumed {
		t.Fatalf("second start = %+v, want resume of %s", second, first.AttemptID)
	}
	if len(h.store.attempts) != 1 {
		t.Fatalf("stored attempts = %d", len(h.store.attempts))
	}
	if h.bus.count(config.WorkerKey.PersistOptionOrderQueue) != 1 {
		t.Fatal("option order not queued")
	}
	if first.Snapshot.RemainingSeconds != 900 || len(first.Snapshot.Questions) != 2 {
		t.Fatalf("snapshot = %+v", first.Snapshot)
	}
	if types := h.bus.eventTypes(); len(types) != 1 || types[0] != model.MonitorAttemptStarted {
		t.Fatalf("events = %v", types)
	}
}

func TestStartConcurrentCallsShareAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.svc.Start(ctx, h.exam.ID, 7)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = res.AttemptID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("attempt ids differ: %v", ids)
		}
	}
}

func TestStartRefusals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.Start(ctx, uuid.New(), 7); !errors.Is(err, attempt.ErrExamNotFound) {
		t.Fatalf("unknown exam: %v", err)
	}

	h.exam.Status = model.ExamStatusDraft
	if _, err := h.svc.Start(ctx, h.exam.ID, 7); !errors.Is(err, ErrExamNotPublished) {
		t.Fatalf("draft exam: %v", err)
	}

	h.exam.Status = model.ExamStatusPublished
	start, end := epoch.Add(time.Hour), epoch.Add(2*time.Hour)
	h.exam.ScheduledStart, h.exam.ScheduledEnd = &start, &end
	if _, err := h.svc.Start(ctx, h.exam.ID, 7); !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("upcoming exam: %v", err)
	}
}

func TestAnswerAutosavesAndChecksOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)

	if err := h.svc.Answer(ctx, res.AttemptID, 7, 1, choices("Salt solution", "Air")); err != nil {
		t.Fatal(err)
	}
	raw := h.bus.answers[res.AttemptID][1]
	if string(raw) != `{"choices":["Air","Salt solution"]}` {
		t.Fatalf("autosaved = %s", raw)
	}
	if h.bus.count(config.WorkerKey.PersistAnswersQueue) != 1 {
		t.Fatal("answer not queued")
	}

	if err := h.svc.Answer(ctx, res.AttemptID, 8, 0, text("Electron")); !errors.Is(err, ErrNotAttemptOwner) {
		t.Fatalf("foreign student: %v", err)
	}
	if err := h.svc.Answer(ctx, res.AttemptID, 7, 0, model.AnswerValue{}); !errors.Is(err, attempt.ErrInvalidInput) {
		t.Fatalf("malformed answer: %v", err)
	}
	if err := h.svc.Answer(ctx, res.AttemptID, 7, 0, choices("Electron")); !errors.Is(err, attempt.ErrAnswerShape) {
		t.Fatalf("wrong shape: %v", err)
	}
	if err := h.svc.Answer(ctx, res.AttemptID, 7, 5, text("x")); !errors.Is(err, attempt.ErrIndexOutOfRange) {
		t.Fatalf("out of range: %v", err)
	}
	if err := h.svc.Answer(ctx, uuid.New(), 7, 0, text("x")); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("unknown attempt: %v", err)
	}
}

func TestSubmitQueuesResultAndFreezes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)

	if _, err := h.svc.Review(ctx, res.AttemptID, 7); !errors.Is(err, ErrAttemptRunning) {
		t.Fatalf("review before submit: %v", err)
	}

	_ = h.svc.Answer(ctx, res.AttemptID, 7, 0, text("Electron"))
	_ = h.svc.Answer(ctx, res.AttemptID, 7, 1, choices("Air", "Salt solution"))

	review, err := h.svc.Submit(ctx, res.AttemptID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if review.Correct != 2 || review.Total != 2 || review.SubmitReason != model.SubmitReasonManual {
		t.Fatalf("review = %+v", review)
	}
	if queued := h.bus.lastReview(t); queued.AttemptID != res.AttemptID || queued.StudentID != 7 {
		t.Fatalf("queued review = %+v", queued)
	}

	// Frozen: a late answer is ignored and not autosaved.
	if err := h.svc.Answer(ctx, res.AttemptID, 7, 0, text("Proton")); err != nil {
		t.Fatal(err)
	}
	if h.bus.count(config.WorkerKey.PersistAnswersQueue) != 2 {
		t.Fatal("late answer was autosaved")
	}
	again, _ := h.svc.Review(ctx, res.AttemptID, 7)
	if again.Correct != 2 {
		t.Fatalf("review changed after submit: %+v", again)
	}
	if _, err := h.svc.Submit(ctx, res.AttemptID, 7); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if h.bus.count(config.WorkerKey.PersistResultsQueue) != 1 {
		t.Fatal("result queued twice")
	}

	// A new start after submission begins a fresh attempt.
	next, err := h.svc.Start(ctx, h.exam.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if next.AttemptID == res.AttemptID || next.Resumed {
		t.Fatalf("restart = %+v", next)
	}
}

func TestTimeoutSubmitsThroughClock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)

	h.clock.Advance(15 * time.Minute)
	snap, err := h.svc.Snapshot(ctx, res.AttemptID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != model.PhaseSubmitted || snap.RemainingSeconds != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if r := h.bus.lastReview(t); r.SubmitReason != model.SubmitReasonTimeout || r.Correct != 0 {
		t.Fatalf("queued review = %+v", r)
	}
}

func TestVisibilityFlagsAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)

	triggered, err := h.svc.ReportVisibility(ctx, res.AttemptID, 7, model.VisibilitySignal{Hidden: false, Kind: model.VisibilityWindowBlur})
	if err != nil || triggered {
		t.Fatalf("visible signal: %v %v", triggered, err)
	}
	triggered, err = h.svc.ReportVisibility(ctx, res.AttemptID, 7, model.VisibilitySignal{Hidden: true, Kind: model.VisibilityTabSwitch})
	if err != nil || !triggered {
		t.Fatalf("hidden signal: %v %v", triggered, err)
	}
	triggered, _ = h.svc.ReportVisibility(ctx, res.AttemptID, 7, model.VisibilitySignal{Hidden: true, Kind: model.VisibilityTabSwitch})
	if triggered {
		t.Fatal("second violation triggered again")
	}

	if n := h.bus.count(config.WorkerKey.PersistIntegrityQueue); n != 3 {
		t.Fatalf("integrity events = %d, want 3", n)
	}
	r := h.bus.lastReview(t)
	if !r.IntegrityFlag || r.SubmitReason != model.SubmitReasonIntegrity {
		t.Fatalf("review = %+v", r)
	}
}

func TestResultsFallBackToDirectSave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bus.failQueue[config.WorkerKey.PersistResultsQueue] = true
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)

	if _, err := h.svc.Submit(ctx, res.AttemptID, 7); err != nil {
		t.Fatal(err)
	}
	if h.store.saved != 1 {
		t.Fatalf("direct saves = %d", h.store.saved)
	}
}

func TestSubmitFallsBackWhenRecordFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bus.failMark = true
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)

	if _, err := h.svc.Submit(ctx, res.AttemptID, 7); err != nil {
		t.Fatal(err)
	}
	if h.store.saved != 1 {
		t.Fatalf("direct saves = %d", h.store.saved)
	}
}

// restart stops the harness service and brings up a fresh one over the same
// store, bus and clock, as a process restart would.
func (h *harness) restart(t *testing.T) *AttemptService {
	t.Helper()
	h.svc.Close()
	svc := NewAttemptService(fakeExams{h.exam.ID: h.exam}, h.store, h.bus, h.clock, &config.Config{AttemptRetention: time.Hour}, zerolog.Nop())
	t.Cleanup(svc.Close)
	return svc
}

func TestRestoreKeepsSubmittedAttemptFrozen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)
	_ = h.svc.Answer(ctx, res.AttemptID, 7, 0, text("Electron"))
	_ = h.svc.Answer(ctx, res.AttemptID, 7, 1, choices("Air", "Salt solution"))
	h.clock.Advance(2 * time.Minute)
	if _, err := h.svc.Submit(ctx, res.AttemptID, 7); err != nil {
		t.Fatal(err)
	}

	// The results worker has not run: the row is still IN_PROGRESS.
	if a, _ := h.store.GetByID(ctx, res.AttemptID); a.Phase != model.PhaseInProgress {
		t.Fatal("store already updated")
	}

	svc := h.restart(t)
	if err := svc.RestoreAll(ctx); err != nil {
		t.Fatal(err)
	}

	snap, err := svc.Snapshot(ctx, res.AttemptID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != model.PhaseSubmitted || snap.RemainingSeconds != 780 {
		t.Fatalf("restored snapshot = %+v", snap)
	}

	if err := svc.Answer(ctx, res.AttemptID, 7, 0, text("Proton")); err != nil {
		t.Fatal(err)
	}
	review, err := svc.Review(ctx, res.AttemptID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if review.SubmitReason != model.SubmitReasonManual || review.Correct != 2 {
		t.Fatalf("review after restart = %+v", review)
	}
	if !review.SubmittedAt.Equal(epoch.Add(2 * time.Minute)) {
		t.Fatalf("submitted at = %v", review.SubmittedAt)
	}

	next, err := svc.Start(ctx, h.exam.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if next.AttemptID == res.AttemptID || next.Resumed {
		t.Fatalf("start after restart = %+v", next)
	}
}

func TestStartDoesNotReopenRecordedSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)
	_ = h.svc.Answer(ctx, res.AttemptID, 7, 0, text("Electron"))
	if _, err := h.svc.Submit(ctx, res.AttemptID, 7); err != nil {
		t.Fatal(err)
	}

	// No RestoreAll: the active pointer leads Start back to the old attempt.
	svc := h.restart(t)
	next, err := svc.Start(ctx, h.exam.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if next.AttemptID == res.AttemptID || next.Resumed {
		t.Fatalf("start reopened submitted attempt: %+v", next)
	}
	review, err := svc.Review(ctx, res.AttemptID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if review.SubmitReason != model.SubmitReasonManual || review.Correct != 1 {
		t.Fatalf("review = %+v", review)
	}
}

func TestReviewFromStoreAfterRetire(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.svc.Start(ctx, h.exam.ID, 7)
	review, _ := h.svc.Submit(ctx, res.AttemptID, 7)
	_ = h.store.SaveReview(ctx, review)

	h.svc.retire(res.AttemptID)
	if h.svc.Live() != 0 {
		t.Fatalf("live runners = %d", h.svc.Live())
	}

	got, err := h.svc.Review(ctx, res.AttemptID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.AttemptID != res.AttemptID {
		t.Fatalf("review = %+v", got)
	}
	if _, err := h.svc.Review(ctx, res.AttemptID, 8); !errors.Is(err, ErrNotAttemptOwner) {
		t.Fatalf("foreign review: %v", err)
	}
	if _, err := h.svc.Snapshot(ctx, res.AttemptID, 7); !errors.Is(err, ErrAttemptSubmitted) {
		t.Fatalf("snapshot after retire: %v", err)
	}
}

func TestRestoreAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	running := &model.Attempt{
		ID:          uuid.New(),
		ExamID:      h.exam.ID,
		StudentID:   7,
		Phase:       model.PhaseInProgress,
		StartedAt:   epoch.Add(-5 * time.Minute),
		OptionOrder: [][]string{{"Nucleus", "Electron", "Neutron", "Proton"}, {"Oxygen", "Air", "Pure water", "Salt solution"}},
	}
	expired := &model.Attempt{
		ID:        uuid.New(),
		ExamID:    h.exam.ID,
		StudentID: 9,
		Phase:     model.PhaseInProgress,
		StartedAt: epoch.Add(-time.Hour),
	}
	_ = h.store.Create(ctx, running)
	_ = h.store.Create(ctx, expired)
	_ = h.bus.SaveAnswer(ctx, running.ID, 0, []byte(`{"text":"Electron"}`))
	h.store.answers[expired.ID] = map[int]json.RawMessage{1: json.RawMessage(`{"choices":["Air","Salt solution"]}`)}

	if err := h.svc.RestoreAll(ctx); err != nil {
		t.Fatal(err)
	}
	if h.svc.Live() != 2 {
		t.Fatalf("live = %d", h.svc.Live())
	}

	snap, err := h.svc.Snapshot(ctx, running.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if snap.RemainingSeconds != 600 || !snap.Questions[0].Answered {
		t.Fatalf("restored snapshot = %+v", snap)
	}
	if snap.Questions[0].Options[0] != "Nucleus" {
		t.Fatalf("option order lost: %v", snap.Questions[0].Options)
	}

	review, err := h.svc.Review(ctx, expired.ID, 9)
	if err != nil {
		t.Fatal(err)
	}
	if review.SubmitReason != model.SubmitReasonTimeout || review.Correct != 1 {
		t.Fatalf("expired review = %+v", review)
	}
	// The expired attempt had no stored order, so its reshuffle is queued.
	if h.bus.count(config.WorkerKey.PersistOptionOrderQueue) != 1 {
		t.Fatal("option order of reshuffled attempt not queued")
	}

	// A start for the restored student resumes instead of creating a new attempt.
	res, err := h.svc.Start(ctx, h.exam.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if res.AttemptID != running.ID || !res.Resumed {
		t.Fatalf("start after restore = %+v", res)
	}
}
