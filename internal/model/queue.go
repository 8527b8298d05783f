package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnswerSaved is queued whenever a live attempt records an answer.
type AnswerSaved struct {
	AttemptID     uuid.UUID       `json:"attempt_id"`
	QuestionIndex int             `json:"question_index"`
	Answer        json.RawMessage `json:"answer"`
	SavedAt       time.Time       `json:"saved_at"`
}

// OptionOrderSaved is queued once per attempt with the shuffled option
// order of every question (nil for questions without options).
type OptionOrderSaved struct {
	AttemptID uuid.UUID  `json:"attempt_id"`
	Order     [][]string `json:"order"`
}

// MonitorEvent is published on an exam's monitor channel for live admin views.
type MonitorEvent struct {
	Type      string          `json:"type"`
	AttemptID uuid.UUID       `json:"attempt_id"`
	StudentID int             `json:"student_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	At        time.Time       `json:"at"`
}

const (
	MonitorAttemptStarted   = "attempt_started"
	MonitorAttemptSubmitted = "attempt_submitted"
	MonitorIntegrity        = "integrity"
)
