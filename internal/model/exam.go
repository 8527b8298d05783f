package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Difficulty is the admin-assigned difficulty label.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// WindowStatus describes where "now" falls relative to an exam's schedule.
type WindowStatus string

const (
	WindowUpcoming WindowStatus = "Upcoming"
	WindowOngoing  WindowStatus = "Ongoing"
	WindowClosed   WindowStatus = "Closed"
)

// Exam is the immutable definition an attempt is built from.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	AuthorID        int        `json:"author_id"`
	Chapter         string     `json:"chapter,omitempty"`
	Difficulty      Difficulty `json:"difficulty,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end,omitempty"`
	Status          ExamStatus `json:"status"`
	Questions       []Question `json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Window reports the schedule status at now. Exams without a full
// schedule are always Ongoing.
func (e *Exam) Window(now time.Time) WindowStatus {
	if e.ScheduledStart == nil || e.ScheduledEnd == nil {
		return WindowOngoing
	}
	if now.Before(*e.ScheduledStart) {
		return WindowUpcoming
	}
	if now.After(*e.ScheduledEnd) {
		return WindowClosed
	}
	return WindowOngoing
}

// ExamSummary is the student-facing listing entry (no questions, no key).
type ExamSummary struct {
	ID              uuid.UUID    `json:"id"`
	Title           string       `json:"title"`
	Chapter         string       `json:"chapter,omitempty"`
	Difficulty      Difficulty   `json:"difficulty,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
	DurationSeconds int          `json:"duration_seconds"`
	QuestionCount   int          `json:"question_count"`
	ScheduledStart  *time.Time   `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time   `json:"scheduled_end,omitempty"`
	Window          WindowStatus `json:"window"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	Chapter         string     `json:"chapter" binding:"required,max=255"`
	Difficulty      Difficulty `json:"difficulty" binding:"omitempty,oneof=Easy Medium Hard"`
	Tags            []string   `json:"tags" binding:"omitempty,max=20,dive,required,max=50"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	ScheduledStart  *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
}

// UpdateExamRequest is the payload for updating a draft exam.
type UpdateExamRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=255"`
	Chapter         string     `json:"chapter" binding:"omitempty,max=255"`
	Difficulty      Difficulty `json:"difficulty" binding:"omitempty,oneof=Easy Medium Hard"`
	Tags            []string   `json:"tags" binding:"omitempty,max=20,dive,required,max=50"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	ScheduledStart  *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
}

// Apply copies the non-zero fields of the request onto e.
func (r UpdateExamRequest) Apply(e *Exam) {
	if r.Title != "" {
		e.Title = r.Title
	}
	if r.Chapter != "" {
		e.Chapter = r.Chapter
	}
	if r.Difficulty != "" {
		e.Difficulty = r.Difficulty
	}
	if r.Tags != nil {
		e.Tags = r.Tags
	}
	if r.DurationMinutes > 0 {
		e.DurationSeconds = r.DurationMinutes * 60
	}
	if r.ScheduledStart != nil {
		e.ScheduledStart = r.ScheduledStart
	}
	if r.ScheduledEnd != nil {
		e.ScheduledEnd = r.ScheduledEnd
	}
}
