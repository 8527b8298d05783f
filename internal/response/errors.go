package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotAttemptOwner   ErrCode = "NOT_ATTEMPT_OWNER"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswer  ErrCode = "INVALID_ANSWER"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Exam-specific
	ErrExamNotAvailable ErrCode = "EXAM_NOT_AVAILABLE"
	ErrExamNotPublished ErrCode = "EXAM_NOT_PUBLISHED"
	ErrNotExamAuthor    ErrCode = "NOT_EXAM_AUTHOR"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrExamNotDraft     ErrCode = "EXAM_NOT_DRAFT"
	ErrAttemptSubmitted ErrCode = "ATTEMPT_SUBMITTED"
	ErrAttemptRunning   ErrCode = "ATTEMPT_IN_PROGRESS"

	// Rate limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is for students only."
	case ErrAdminAccessOnly:
		return "This resource is for admins only."
	case ErrNotAttemptOwner:
		return "This attempt belongs to another student."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidAnswer:
		return "The answer does not fit this question."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	case ErrExamNotAvailable:
		return "This exam is not open right now."
	case ErrExamNotPublished:
		return "This exam has not been published."
	case ErrNotExamAuthor:
		return "You are not the author of this exam."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrExamNotDraft:
		return "Only draft exams can be changed."
	case ErrAttemptSubmitted:
		return "This attempt has already been submitted."
	case ErrAttemptRunning:
		return "This attempt is still in progress."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
