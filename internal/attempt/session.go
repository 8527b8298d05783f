package attempt

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/stemsi/hoa-backend/internal/model"
)

// Session is the state machine for one exam attempt. It is not safe for
// concurrent use; Runner serialises access to it.
type Session struct {
	exam    *model.Exam
	options [][]string
	answers []model.Answer

	current   int
	remaining int
	flagged   bool
	phase     model.Phase
	reason    model.SubmitReason

	now         func() time.Time
	startedAt   time.Time
	submittedAt time.Time
}

// NewSession starts an attempt at exam. Choice options are shuffled once
// here and never again. A nil exam yields ErrExamNotFound.
func NewSession(exam *model.Exam, clock Clock, rng *rand.Rand) (*Session, error) {
	if exam == nil {
		return nil, ErrExamNotFound
	}
	if exam.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidInput, exam.DurationSeconds)
	}
	if clock == nil {
		clock = WallClock{}
	}

	n := len(exam.Questions)
	s := &Session{
		exam:      exam,
		options:   make([][]string, n),
		answers:   make([]model.Answer, n),
		current:   0,
		remaining: exam.DurationSeconds,
		phase:     model.PhaseInProgress,
		now:       clock.Now,
		startedAt: clock.Now(),
	}
	if n == 0 {
		s.current = -1
	}
	for i, q := range exam.Questions {
		if q.Kind.HasOptions() {
			s.options[i] = Shuffle(q.Options, rng)
		}
		s.answers[i] = q.EmptyAnswer()
	}
	return s, nil
}

// Resume is the state of an attempt that outlives the process: when it
// started, the option order shown to the student and the saved answers.
// Submitted is set when the attempt was already handed in.
type Resume struct {
	StartedAt time.Time
	Options   [][]string
	Answers   map[int]model.Answer
	Submitted *Submission
}

// Submission records how and when an attempt was handed in.
type Submission struct {
	Reason  model.SubmitReason
	Flagged bool
	At      time.Time
}

// RestoreSession rebuilds an attempt after a restart. Time keeps running
// while the process is down, so an attempt whose duration has elapsed comes
// back already submitted as a timeout. A recorded submission is restored
// frozen with its original reason and time. Stored option orders that no
// longer match the question are reshuffled; answers of the wrong shape are
// dropped.
func RestoreSession(exam *model.Exam, clock Clock, rng *rand.Rand, st Resume) (*Session, error) {
	s, err := NewSession(exam, clock, rng)
	if err != nil {
		return nil, err
	}
	s.startedAt = st.StartedAt

	for i, q := range exam.Questions {
		if i < len(st.Options) && q.Kind.HasOptions() && isPermutation(st.Options[i], q.Options) {
			s.options[i] = append([]string(nil), st.Options[i]...)
		}
	}
	for i, a := range st.Answers {
		if i < 0 || i >= len(s.answers) || a == nil || !shapeMatches(exam.Questions[i], a) {
			continue
		}
		if set, ok := a.(model.ChoiceSet); ok {
			a = model.NewChoiceSet(set...)
		}
		s.answers[i] = a
	}

	if sub := st.Submitted; sub != nil && sub.Reason != "" {
		used := int(sub.At.Sub(st.StartedAt) / time.Second)
		s.remaining = min(exam.DurationSeconds, max(0, exam.DurationSeconds-used))
		s.flagged = sub.Flagged
		s.phase = model.PhaseSubmitted
		s.reason = sub.Reason
		s.submittedAt = sub.At
		return s, nil
	}

	elapsed := int(s.now().Sub(st.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	s.remaining = exam.DurationSeconds - elapsed
	if s.remaining <= 0 {
		s.remaining = 0
		s.finish(model.SubmitReasonTimeout)
	}
	return s, nil
}

func isPermutation(order, options []string) bool {
	if len(order) != len(options) {
		return false
	}
	counts := make(map[string]int, len(options))
	for _, o := range options {
		counts[o]++
	}
	for _, o := range order {
		counts[o]--
		if counts[o] < 0 {
			return false
		}
	}
	return true
}

// Exam returns the definition the session was built from.
func (s *Session) Exam() *model.Exam { return s.exam }

// Len is the number of questions.
func (s *Session) Len() int { return len(s.exam.Questions) }

func (s *Session) Phase() model.Phase               { return s.phase }
func (s *Session) Submitted() bool                  { return s.phase == model.PhaseSubmitted }
func (s *Session) Remaining() int                   { return s.remaining }
func (s *Session) IntegrityFlag() bool              { return s.flagged }
func (s *Session) SubmitReason() model.SubmitReason { return s.reason }
func (s *Session) StartedAt() time.Time             { return s.startedAt }
func (s *Session) SubmittedAt() time.Time           { return s.submittedAt }

// CurrentIndex returns the focused question, or false for an exam with
// no questions.
func (s *Session) CurrentIndex() (int, bool) {
	if s.current < 0 {
		return 0, false
	}
	return s.current, true
}

// Options returns the display order of question i's options.
func (s *Session) Options(i int) []string {
	if i < 0 || i >= len(s.options) {
		return nil
	}
	return s.options[i]
}

// OptionOrder returns the display order of every question; entries for
// text questions are nil.
func (s *Session) OptionOrder() [][]string {
	out := make([][]string, len(s.options))
	for i, o := range s.options {
		out[i] = append([]string(nil), o...)
	}
	return out
}

// AnswerAt returns the stored answer for question i.
func (s *Session) AnswerAt(i int) (model.Answer, error) {
	if i < 0 || i >= len(s.answers) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, ErrIndexOutOfRange)
	}
	return s.answers[i], nil
}

// Answer records v for question i. Once submitted it does nothing.
func (s *Session) Answer(i int, v model.Answer) error {
	if s.Submitted() {
		return nil
	}
	if i < 0 || i >= len(s.answers) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrIndexOutOfRange)
	}
	q := s.exam.Questions[i]
	if v == nil || !shapeMatches(q, v) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrAnswerShape)
	}
	if set, ok := v.(model.ChoiceSet); ok {
		v = model.NewChoiceSet(set...)
	}
	s.answers[i] = v
	return nil
}

// Navigate moves focus to question i. Once submitted it does nothing.
func (s *Session) Navigate(i int) error {
	if s.Submitted() {
		return nil
	}
	if i < 0 || i >= len(s.answers) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrIndexOutOfRange)
	}
	s.current = i
	return nil
}

// Tick takes one second off the clock and reports whether it ended the
// attempt.
func (s *Session) Tick() bool {
	if s.Submitted() {
		return false
	}
	if s.remaining > 1 {
		s.remaining--
		return false
	}
	s.remaining = 0
	return s.finish(model.SubmitReasonTimeout)
}

// IntegrityViolation flags the attempt and submits it. Only the first
// violation has any effect.
func (s *Session) IntegrityViolation() bool {
	if s.Submitted() {
		return false
	}
	s.flagged = true
	return s.finish(model.SubmitReasonIntegrity)
}

// Submit ends the attempt. It reports whether this call did the submitting.
func (s *Session) Submit() bool {
	return s.finish(model.SubmitReasonManual)
}

func (s *Session) finish(reason model.SubmitReason) bool {
	if s.Submitted() {
		return false
	}
	s.phase = model.PhaseSubmitted
	s.reason = reason
	s.submittedAt = s.now()
	return true
}

// IsComplete reports whether question i has a non-empty answer.
func (s *Session) IsComplete(i int) bool {
	if i < 0 || i >= len(s.answers) {
		return false
	}
	return !s.answers[i].Empty()
}

// Score returns the number of correct answers and the question count.
func (s *Session) Score() (correct, total int, err error) {
	if !s.Submitted() {
		return 0, 0, ErrNotSubmitted
	}
	for i, q := range s.exam.Questions {
		if IsCorrect(q, s.answers[i]) {
			correct++
		}
	}
	return correct, len(s.exam.Questions), nil
}

// Snapshot returns the test-taker's view. The answer key is not included.
func (s *Session) Snapshot() model.Snapshot {
	snap := model.Snapshot{
		ExamID:           s.exam.ID,
		Title:            s.exam.Title,
		Phase:            s.phase,
		RemainingSeconds: s.remaining,
		IntegrityFlag:    s.flagged,
		SubmitReason:     s.reason,
		Questions:        make([]model.QuestionView, len(s.exam.Questions)),
	}
	if i, ok := s.CurrentIndex(); ok {
		snap.CurrentIndex = &i
	}
	for i, q := range s.exam.Questions {
		snap.Questions[i] = model.QuestionView{
			Index:    i,
			Kind:     q.Kind,
			Prompt:   q.Prompt,
			Options:  s.options[i],
			ImageURL: q.ImageURL,
			Answered: s.IsComplete(i),
			Answer:   model.ValueOf(s.answers[i]),
		}
	}
	return snap
}

// Review grades the frozen answers. It fails with ErrNotSubmitted while
// the attempt is still running.
func (s *Session) Review() (model.Review, error) {
	correct, total, err := s.Score()
	if err != nil {
		return model.Review{}, err
	}
	r := model.Review{
		ExamID:        s.exam.ID,
		Title:         s.exam.Title,
		Chapter:       s.exam.Chapter,
		SubmitReason:  s.reason,
		IntegrityFlag: s.flagged,
		Correct:       correct,
		Total:         total,
		StartedAt:     s.startedAt,
		SubmittedAt:   s.submittedAt,
		Items:         make([]model.ReviewItem, total),
	}
	for i, q := range s.exam.Questions {
		r.Items[i] = model.ReviewItem{
			Index:       i,
			Prompt:      q.Prompt,
			Kind:        q.Kind,
			Options:     s.options[i],
			Selected:    model.ValueOf(s.answers[i]),
			Correct:     model.ValueOf(q.CorrectAnswer()),
			IsCorrect:   IsCorrect(q, s.answers[i]),
			Explanation: q.Explanation,
			ImageURL:    q.ImageURL,
		}
	}
	return r, nil
}
