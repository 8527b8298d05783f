package attempt

import "errors"

var (
	// ErrInvalidInput is the umbrella for rejected user input. Concrete
	// causes are wrapped alongside it so errors.Is matches both.
	ErrInvalidInput    = errors.New("invalid input")
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrAnswerShape     = errors.New("answer shape does not match question kind")

	ErrNotSubmitted = errors.New("attempt has not been submitted")
	ErrExamNotFound = errors.New("exam not found")
	ErrRunnerClosed = errors.New("attempt runner closed")
)
