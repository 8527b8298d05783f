package model

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle state of an attempt.
type Phase string

const (
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseSubmitted  Phase = "SUBMITTED"
)

// SubmitReason records which event ended an attempt.
type SubmitReason string

const (
	SubmitReasonManual    SubmitReason = "MANUAL"
	SubmitReasonTimeout   SubmitReason = "TIMEOUT"
	SubmitReasonIntegrity SubmitReason = "INTEGRITY"
)

// Outcome is the pass/fail verdict shown in the results history.
type Outcome string

const (
	OutcomePass Outcome = "Pass"
	OutcomeFail Outcome = "Fail"
)

// Attempt is the persisted record of one student's run through an exam.
type Attempt struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	StudentID     int          `json:"student_id"`
	Phase         Phase        `json:"phase"`
	SubmitReason  SubmitReason `json:"submit_reason,omitempty"`
	IntegrityFlag bool         `json:"integrity_flag"`
	Correct       *int         `json:"correct,omitempty"`
	Total         *int         `json:"total,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	SubmittedAt   *time.Time   `json:"submitted_at,omitempty"`
	// OptionOrder is the shuffled option order, once persisted.
	OptionOrder [][]string `json:"-"`
}

// QuestionView is one question as a test-taker sees it while the attempt
// is running. It never carries the answer key.
type QuestionView struct {
	Index    int          `json:"index"`
	Kind     QuestionKind `json:"kind"`
	Prompt   string       `json:"prompt"`
	Options  []string     `json:"options,omitempty"`
	ImageURL string       `json:"image_url,omitempty"`
	Answered bool         `json:"answered"`
	Answer   AnswerValue  `json:"answer"`
}

// Snapshot is a read-only view of a live attempt.
type Snapshot struct {
	AttemptID        uuid.UUID      `json:"attempt_id"`
	ExamID           uuid.UUID      `json:"exam_id"`
	Title            string         `json:"title"`
	Phase            Phase          `json:"phase"`
	CurrentIndex     *int           `json:"current_index"`
	RemainingSeconds int            `json:"remaining_seconds"`
	IntegrityFlag    bool           `json:"integrity_flag"`
	SubmitReason     SubmitReason   `json:"submit_reason,omitempty"`
	Questions        []QuestionView `json:"questions"`
}

// ReviewItem is the graded view of one question after submission.
type ReviewItem struct {
	Index       int          `json:"index"`
	Prompt      string       `json:"prompt"`
	Kind        QuestionKind `json:"kind"`
	Options     []string     `json:"options,omitempty"`
	Selected    AnswerValue  `json:"selected"`
	Correct     AnswerValue  `json:"correct"`
	IsCorrect   bool         `json:"is_correct"`
	Explanation string       `json:"explanation,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
}

// Review is the frozen, graded outcome of a submitted attempt.
type Review struct {
	AttemptID     uuid.UUID    `json:"attempt_id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	StudentID     int          `json:"student_id"`
	Title         string       `json:"title"`
	Chapter       string       `json:"chapter,omitempty"`
	SubmitReason  SubmitReason `json:"submit_reason"`
	IntegrityFlag bool         `json:"integrity_flag"`
	Correct       int          `json:"correct"`
	Total         int          `json:"total"`
	StartedAt     time.Time    `json:"started_at"`
	SubmittedAt   time.Time    `json:"submitted_at"`
	Items         []ReviewItem `json:"items"`
}

// ResultSummary is one row of a student's results history.
type ResultSummary struct {
	AttemptID     uuid.UUID    `json:"attempt_id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	Title         string       `json:"title"`
	Chapter       string       `json:"chapter,omitempty"`
	Correct       int          `json:"correct"`
	Total         int          `json:"total"`
	Percent       int          `json:"percent"`
	Outcome       Outcome      `json:"outcome"`
	SubmitReason  SubmitReason `json:"submit_reason"`
	IntegrityFlag bool         `json:"integrity_flag"`
	SubmittedAt   time.Time    `json:"submitted_at"`
}

// ResultQuery holds the history filters accepted from the query string.
type ResultQuery struct {
	Q       string  `form:"q" binding:"max=100"`
	Outcome Outcome `form:"outcome" binding:"omitempty,oneof=Pass Fail"`
	Sort    string  `form:"sort" binding:"omitempty,oneof=dateDesc dateAsc scoreDesc scoreAsc"`
}

// ExamResultRow is one submitted attempt as shown on the admin result sheet.
type ExamResultRow struct {
	AttemptID     uuid.UUID    `json:"attempt_id"`
	StudentID     int          `json:"student_id"`
	StudentName   string       `json:"student_name"`
	Correct       int          `json:"correct"`
	Total         int          `json:"total"`
	SubmitReason  SubmitReason `json:"submit_reason"`
	IntegrityFlag bool         `json:"integrity_flag"`
	StartedAt     time.Time    `json:"started_at"`
	SubmittedAt   *time.Time   `json:"submitted_at,omitempty"`
}

// TimeSpent returns the elapsed attempt time, or false when it is unknown.
func (r ExamResultRow) TimeSpent() (time.Duration, bool) {
	if r.SubmittedAt == nil || r.StartedAt.IsZero() {
		return 0, false
	}
	return r.SubmittedAt.Sub(r.StartedAt), true
}

// ExamResultStats summarises an exam's submitted attempts.
type ExamResultStats struct {
	Attempts int     `json:"attempts"`
	Average  float64 `json:"average"`
	Max      int     `json:"max"`
}

// StartAttemptResponse is returned when a student starts or resumes an attempt.
type StartAttemptResponse struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	Resumed   bool      `json:"resumed"`
	Snapshot  Snapshot  `json:"snapshot"`
}
