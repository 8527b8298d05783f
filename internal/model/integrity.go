package model

import (
	"time"

	"github.com/google/uuid"
)

// VisibilityKind names the host signal that hid the exam.
type VisibilityKind string

const (
	VisibilityTabSwitch  VisibilityKind = "tab_switch"
	VisibilityWindowBlur VisibilityKind = "window_blur"
)

// VisibilitySignal is a single report from the host about whether the
// exam is currently visible to the test-taker.
type VisibilitySignal struct {
	Hidden bool           `json:"hidden"`
	Kind   VisibilityKind `json:"kind"`
}

// IntegrityEvent is a visibility signal recorded against an attempt.
type IntegrityEvent struct {
	AttemptID uuid.UUID      `json:"attempt_id"`
	ExamID    uuid.UUID      `json:"exam_id"`
	StudentID int            `json:"student_id"`
	Hidden    bool           `json:"hidden"`
	Kind      VisibilityKind `json:"kind"`
	Triggered bool           `json:"triggered"`
	CreatedAt time.Time      `json:"created_at"`
}
