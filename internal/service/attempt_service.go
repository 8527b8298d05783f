package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/stemsi/hoa-backend/internal/attempt"
	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/repository"
)

var (
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrNotAttemptOwner  = errors.New("attempt belongs to another student")
	ErrExamNotAvailable = errors.New("exam is outside its schedule window")
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	ErrAttemptRunning   = errors.New("attempt is still in progress")
)

// hookTimeout bounds the Redis and PostgreSQL calls made from runner hooks.
const hookTimeout = 3 * time.Second

// submittedMarkerTTL keeps the submission record until the results worker
// has written the review; the worker deletes it sooner on success.
const submittedMarkerTTL = 24 * time.Hour

// AttemptStore is the persistent side of attempts.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	ListInProgress(ctx context.Context) ([]*model.Attempt, error)
	ListAnswers(ctx context.Context, attemptID uuid.UUID) (map[int]json.RawMessage, error)
	GetReview(ctx context.Context, id uuid.UUID) (*model.Review, error)
	SaveReview(ctx context.Context, review *model.Review) error
}

type attemptKey struct {
	examID    uuid.UUID
	studentID int
}

func (k attemptKey) String() string {
	return fmt.Sprintf("%s:%d", k.examID, k.studentID)
}

// AttemptService owns every live attempt of this process. Each attempt is
// driven by its own attempt.Runner; the service only keeps the registry and
// turns runner hooks into queue pushes and monitor events.
type AttemptService struct {
	exams     ExamSource
	store     AttemptStore
	bus       AttemptBus
	clock     attempt.Clock
	retention time.Duration
	log       zerolog.Logger

	starts singleflight.Group

	mu        sync.RWMutex
	byID      map[uuid.UUID]*attempt.Runner
	byStudent map[attemptKey]uuid.UUID
	timers    map[uuid.UUID]*time.Timer
	closed    bool
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	exams ExamSource,
	store AttemptStore,
	bus AttemptBus,
	clock attempt.Clock,
	cfg *config.Config,
	log zerolog.Logger,
) *AttemptService {
	if clock == nil {
		clock = attempt.WallClock{}
	}
	return &AttemptService{
		exams:     exams,
		store:     store,
		bus:       bus,
		clock:     clock,
		retention: cfg.AttemptRetention,
		log:       log.With().Str("component", "attempt_service").Logger(),
		byID:      make(map[uuid.UUID]*attempt.Runner),
		byStudent: make(map[attemptKey]uuid.UUID),
		timers:    make(map[uuid.UUID]*time.Timer),
	}
}

// Start begins an attempt, or returns the student's running attempt at the
// same exam. Concurrent starts for one student and exam share one result.
func (s *AttemptService) Start(ctx context.Context, examID uuid.UUID, studentID int) (*model.StartAttemptResponse, error) {
	key := attemptKey{examID: examID, studentID: studentID}
	v, err, _ := s.starts.Do(key.String(), func() (any, error) {
		return s.start(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.StartAttemptResponse), nil
}

func (s *AttemptService) start(ctx context.Context, key attemptKey) (*model.StartAttemptResponse, error) {
	if r := s.active(key); r != nil {
		return s.startResponse(ctx, r, true)
	}
	if r := s.resumeStored(ctx, key); r != nil {
		return s.startResponse(ctx, r, true)
	}

	exam, err := s.exams.GetExam(ctx, key.examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}
	if exam.Window(s.clock.Now()) != model.WindowOngoing {
		return nil, ErrExamNotAvailable
	}

	sess, err := attempt.NewSession(exam, s.clock, nil)
	if err != nil {
		return nil, err
	}
	a := &model.Attempt{
		ID:        uuid.New(),
		ExamID:    exam.ID,
		StudentID: key.studentID,
		Phase:     model.PhaseInProgress,
		StartedAt: sess.StartedAt(),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	r, err := s.launch(a.ID, key, sess)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, a, sess.OptionOrder(), time.Duration(exam.DurationSeconds)*time.Second)

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("exam_id", exam.ID.String()).
		Int("student_id", key.studentID).
		Msg("Attempt started")
	return s.startResponse(ctx, r, false)
}

func (s *AttemptService) startResponse(ctx context.Context, r *attempt.Runner, resumed bool) (*model.StartAttemptResponse, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &model.StartAttemptResponse{AttemptID: r.ID(), Resumed: resumed, Snapshot: snap}, nil
}

// active returns the student's running attempt at the exam, if this
// process holds one.
func (s *AttemptService) active(key attemptKey) *attempt.Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.byID[s.byStudent[key]]
	if r == nil || isSubmitted(r) {
		return nil
	}
	return r
}

func isSubmitted(r *attempt.Runner) bool {
	select {
	case <-r.Submitted():
		return true
	default:
		return false
	}
}

// resumeStored picks up an attempt that is running according to Redis but
// not loaded in this process, for example after a restart that skipped it.
func (s *AttemptService) resumeStored(ctx context.Context, key attemptKey) *attempt.Runner {
	id, ok, err := s.bus.GetActive(ctx, key.examID, key.studentID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read active attempt pointer")
		return nil
	}
	if !ok {
		return nil
	}
	s.mu.RLock()
	_, loaded := s.byID[id]
	s.mu.RUnlock()
	if loaded {
		// Submitted here, row not yet flushed by the results worker.
		return nil
	}
	a, err := s.store.GetByID(ctx, id)
	if err != nil || a.Phase != model.PhaseInProgress || a.StudentID != key.studentID {
		return nil
	}
	r, err := s.restore(ctx, a)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id.String()).Msg("Failed to resume attempt")
		return nil
	}
	if isSubmitted(r) {
		return nil
	}
	return r
}

// launch starts the runner for sess and registers it.
func (s *AttemptService) launch(id uuid.UUID, key attemptKey, sess *attempt.Session) (*attempt.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, attempt.ErrRunnerClosed
	}

	r := attempt.NewRunner(sess, attempt.RunnerConfig{
		AttemptID: id,
		StudentID: key.studentID,
		Clock:     s.clock,
		Logger:    s.log,
		OnSubmit:  s.onSubmit,
		OnVisibility: func(sig model.VisibilitySignal, triggered bool) {
			s.onVisibility(id, key, sig, triggered)
		},
	})
	s.byID[id] = r
	s.byStudent[key] = id
	return r, nil
}

// announce pushes the start side effects: active pointer, option order for
// the worker and the monitor event. Failures are logged; the attempt runs
// from memory either way.
func (s *AttemptService) announce(ctx context.Context, a *model.Attempt, order [][]string, duration time.Duration) {
	if err := s.bus.SetActive(ctx, a.ExamID, a.StudentID, a.ID, duration+s.retention); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to set active attempt")
	}
	if err := s.bus.Enqueue(ctx, config.WorkerKey.PersistOptionOrderQueue, model.OptionOrderSaved{AttemptID: a.ID, Order: order}); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to queue option order")
	}
	s.publish(ctx, a.ExamID, model.MonitorAttemptStarted, a.ID, a.StudentID, nil)
}

func (s *AttemptService) publish(ctx context.Context, examID uuid.UUID, typ string, attemptID uuid.UUID, studentID int, data any) {
	ev := model.MonitorEvent{Type: typ, AttemptID: attemptID, StudentID: studentID, At: s.clock.Now()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to marshal monitor data")
			return
		}
		ev.Data = raw
	}
	if err := s.bus.Publish(ctx, examID, ev); err != nil {
		s.log.Warn().Err(err).Str("type", typ).Msg("Failed to publish monitor event")
	}
}

// onSubmit runs on the runner goroutine once per runner. A runner restored
// from a submission record fires it again, which re-queues the same review.
func (s *AttemptService) onSubmit(review model.Review) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	// The record goes first so a restart before the results flush restores
	// the attempt as submitted.
	marked := true
	if err := s.bus.MarkSubmitted(ctx, review, submittedMarkerTTL); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", review.AttemptID.String()).Msg("Failed to record submission")
		marked = false
	}
	queueErr := s.bus.Enqueue(ctx, config.WorkerKey.PersistResultsQueue, review)
	if queueErr != nil || !marked {
		s.log.Warn().Err(queueErr).Str("attempt_id", review.AttemptID.String()).Msg("Saving result directly")
		if err := s.store.SaveReview(ctx, &review); err != nil {
			s.log.Error().Err(err).Str("attempt_id", review.AttemptID.String()).Msg("Failed to save result")
		}
	}

	s.publish(ctx, review.ExamID, model.MonitorAttemptSubmitted, review.AttemptID, review.StudentID, map[string]any{
		"correct":        review.Correct,
		"total":          review.Total,
		"submit_reason":  review.SubmitReason,
		"integrity_flag": review.IntegrityFlag,
	})
	s.scheduleRetire(review.AttemptID)
}

func (s *AttemptService) onVisibility(id uuid.UUID, key attemptKey, sig model.VisibilitySignal, triggered bool) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	ev := model.IntegrityEvent{
		AttemptID: id,
		ExamID:    key.examID,
		StudentID: key.studentID,
		Hidden:    sig.Hidden,
		Kind:      sig.Kind,
		Triggered: triggered,
		CreatedAt: s.clock.Now(),
	}
	if err := s.bus.Enqueue(ctx, config.WorkerKey.PersistIntegrityQueue, ev); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id.String()).Msg("Failed to queue integrity event")
	}
	if sig.Hidden {
		s.publish(ctx, key.examID, model.MonitorIntegrity, id, key.studentID, ev)
	}
}

// scheduleRetire drops a submitted runner from memory after the retention
// window; by then its review is in PostgreSQL.
func (s *AttemptService) scheduleRetire(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.timers[id]; ok {
		return
	}
	s.timers[id] = time.AfterFunc(s.retention, func() { s.retire(id) })
}

func (s *AttemptService) retire(id uuid.UUID) {
	s.mu.Lock()
	r := s.byID[id]
	delete(s.byID, id)
	delete(s.timers, id)
	if r != nil {
		key := attemptKey{examID: r.Exam().ID, studentID: r.StudentID()}
		if s.byStudent[key] == id {
			delete(s.byStudent, key)
		}
	}
	s.mu.Unlock()

	if r != nil {
		r.Close()
		s.log.Debug().Str("attempt_id", id.String()).Msg("Attempt retired")
	}
}

// Runner returns the live runner of an attempt owned by studentID.
func (s *AttemptService) Runner(ctx context.Context, attemptID uuid.UUID, studentID int) (*attempt.Runner, error) {
	s.mu.RLock()
	r := s.byID[attemptID]
	s.mu.RUnlock()

	if r == nil {
		return nil, s.explainMissing(ctx, attemptID, studentID)
	}
	if r.StudentID() != studentID {
		return nil, ErrNotAttemptOwner
	}
	return r, nil
}

// explainMissing maps an attempt that is not in memory onto the error the
// caller should see.
func (s *AttemptService) explainMissing(ctx context.Context, attemptID uuid.UUID, studentID int) error {
	a, err := s.store.GetByID(ctx, attemptID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("get attempt: %w", err)
	}
	if a.StudentID != studentID {
		return ErrNotAttemptOwner
	}
	if a.Phase == model.PhaseSubmitted {
		return ErrAttemptSubmitted
	}
	return ErrAttemptNotFound
}

// Answer records an answer and autosaves it. Answers sent after submission
// are ignored.
func (s *AttemptService) Answer(ctx context.Context, attemptID uuid.UUID, studentID, index int, value model.AnswerValue) error {
	r, err := s.Runner(ctx, attemptID, studentID)
	if err != nil {
		return err
	}
	a, err := value.Answer()
	if err != nil {
		return fmt.Errorf("%w: %w", attempt.ErrInvalidInput, err)
	}

	var stored model.Answer
	err = r.Do(ctx, func(sess *attempt.Session) error {
		if sess.Submitted() {
			return nil
		}
		if err := sess.Answer(index, a); err != nil {
			return err
		}
		stored, _ = sess.AnswerAt(index)
		return nil
	})
	if err != nil || stored == nil {
		return err
	}

	s.autosave(ctx, attemptID, index, stored)
	return nil
}

func (s *AttemptService) autosave(ctx context.Context, attemptID uuid.UUID, index int, a model.Answer) {
	raw, err := model.MarshalAnswer(a)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal answer")
		return
	}
	if err := s.bus.SaveAnswer(ctx, attemptID, index, raw); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to autosave answer")
	}
	saved := model.AnswerSaved{AttemptID: attemptID, QuestionIndex: index, Answer: raw, SavedAt: s.clock.Now()}
	if err := s.bus.Enqueue(ctx, config.WorkerKey.PersistAnswersQueue, saved); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to queue answer")
	}
}

// Navigate focuses question index.
func (s *AttemptService) Navigate(ctx context.Context, attemptID uuid.UUID, studentID, index int) error {
	r, err := s.Runner(ctx, attemptID, studentID)
	if err != nil {
		return err
	}
	return r.Navigate(ctx, index)
}

// Submit ends the attempt manually and returns the graded review.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Review, error) {
	r, err := s.Runner(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if err := r.Submit(ctx); err != nil {
		return nil, err
	}
	review, err := r.Review(ctx)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ReportVisibility forwards a host visibility signal to the attempt.
func (s *AttemptService) ReportVisibility(ctx context.Context, attemptID uuid.UUID, studentID int, sig model.VisibilitySignal) (bool, error) {
	r, err := s.Runner(ctx, attemptID, studentID)
	if err != nil {
		return false, err
	}
	return r.ReportVisibility(ctx, sig)
}

// Snapshot returns the live view of an attempt.
func (s *AttemptService) Snapshot(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Snapshot, error) {
	r, err := s.Runner(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Review returns the graded attempt from memory while the runner is
// retained, and from PostgreSQL afterwards.
func (s *AttemptService) Review(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Review, error) {
	s.mu.RLock()
	r := s.byID[attemptID]
	s.mu.RUnlock()

	if r != nil {
		if r.StudentID() != studentID {
			return nil, ErrNotAttemptOwner
		}
		review, err := r.Review(ctx)
		switch {
		case err == nil:
			return &review, nil
		case errors.Is(err, attempt.ErrNotSubmitted):
			return nil, ErrAttemptRunning
		case !errors.Is(err, attempt.ErrRunnerClosed):
			return nil, err
		}
	}

	review, err := s.store.GetReview(ctx, attemptID)
	if err == nil {
		if review.StudentID != studentID {
			return nil, ErrNotAttemptOwner
		}
		return review, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("get review: %w", err)
	}

	a, err := s.store.GetByID(ctx, attemptID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	if recorded, ok, err := s.bus.LoadSubmitted(ctx, attemptID); err == nil && ok {
		return recorded, nil
	}
	return nil, ErrAttemptRunning
}

// RestoreAll reloads every in-progress attempt after a restart. Attempts
// handed in before the restart come back frozen; those whose time ran out
// while the process was down are submitted as timeouts.
func (s *AttemptService) RestoreAll(ctx context.Context) error {
	attempts, err := s.store.ListInProgress(ctx)
	if err != nil {
		return fmt.Errorf("list in-progress attempts: %w", err)
	}

	restored, finished := 0, 0
	for _, a := range attempts {
		s.mu.RLock()
		_, loaded := s.byID[a.ID]
		s.mu.RUnlock()
		if loaded {
			continue
		}

		r, err := s.restore(ctx, a)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to restore attempt, skipping")
			continue
		}
		restored++
		if isSubmitted(r) {
			finished++
		}
	}

	s.log.Info().
		Int("restored", restored).
		Int("submitted", finished).
		Int("total", len(attempts)).
		Msg("Attempts restored")
	return nil
}

func (s *AttemptService) restore(ctx context.Context, a *model.Attempt) (*attempt.Runner, error) {
	exam, err := s.exams.GetExam(ctx, a.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	st, err := s.resumeState(ctx, a)
	if err != nil {
		return nil, err
	}
	sess, err := attempt.RestoreSession(exam, s.clock, nil, st)
	if err != nil {
		return nil, err
	}

	key := attemptKey{examID: a.ExamID, studentID: a.StudentID}
	r, err := s.launch(a.ID, key, sess)
	if err != nil {
		return nil, err
	}
	if a.OptionOrder == nil {
		if err := s.bus.Enqueue(ctx, config.WorkerKey.PersistOptionOrderQueue, model.OptionOrderSaved{AttemptID: a.ID, Order: sess.OptionOrder()}); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to queue option order")
		}
	}
	return r, nil
}

// resumeState collects what survived the restart. A recorded submission
// wins over the autosave hash: the attempt comes back frozen as handed in.
func (s *AttemptService) resumeState(ctx context.Context, a *model.Attempt) (attempt.Resume, error) {
	review, ok, err := s.bus.LoadSubmitted(ctx, a.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to read submission record")
	}
	if ok {
		return resumeFromReview(a, review), nil
	}

	raw, err := s.bus.LoadAnswers(ctx, a.ID)
	if err != nil || len(raw) == 0 {
		raw, err = s.store.ListAnswers(ctx, a.ID)
		if err != nil {
			return attempt.Resume{}, fmt.Errorf("list answers: %w", err)
		}
	}
	answers := make(map[int]model.Answer, len(raw))
	for idx, data := range raw {
		ans, err := model.UnmarshalAnswer(data)
		if err != nil {
			continue
		}
		answers[idx] = ans
	}
	return attempt.Resume{StartedAt: a.StartedAt, Options: a.OptionOrder, Answers: answers}, nil
}

func resumeFromReview(a *model.Attempt, review *model.Review) attempt.Resume {
	st := attempt.Resume{
		StartedAt: a.StartedAt,
		Options:   make([][]string, len(review.Items)),
		Answers:   make(map[int]model.Answer, len(review.Items)),
		Submitted: &attempt.Submission{
			Reason:  review.SubmitReason,
			Flagged: review.IntegrityFlag,
			At:      review.SubmittedAt,
		},
	}
	for _, item := range review.Items {
		if item.Index < 0 || item.Index >= len(review.Items) {
			continue
		}
		st.Options[item.Index] = item.Options
		if ans, err := item.Selected.Answer(); err == nil {
			st.Answers[item.Index] = ans
		}
	}
	return st
}

// Live reports how many runners this process holds.
func (s *AttemptService) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close stops every runner. Running attempts stay IN_PROGRESS in
// PostgreSQL and are restored on the next start.
func (s *AttemptService) Close() {
	s.mu.Lock()
	s.closed = true
	runners := make([]*attempt.Runner, 0, len(s.byID))
	for _, r := range s.byID {
		runners = append(runners, r)
	}
	for _, t := range s.timers {
		t.Stop()
	}
	s.byID = make(map[uuid.UUID]*attempt.Runner)
	s.byStudent = make(map[attemptKey]uuid.UUID)
	s.timers = make(map[uuid.UUID]*time.Timer)
	s.mu.Unlock()

	for _, r := range runners {
		r.Close()
	}
	s.log.Info().Int("runners", len(runners)).Msg("Attempt service stopped")
}
