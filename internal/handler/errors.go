package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/hoa-backend/internal/attempt"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/repository"
	"github.com/stemsi/hoa-backend/internal/response"
	"github.com/stemsi/hoa-backend/internal/service"
)

// classify maps a service error onto an HTTP status and API error code.
// The WebSocket stream reuses the code for its error events.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrSessionInvalidated):
		return http.StatusUnauthorized, response.ErrSessionInvalidated

	case errors.Is(err, service.ErrNotAttemptOwner):
		return http.StatusForbidden, response.ErrNotAttemptOwner
	case errors.Is(err, service.ErrNotExamAuthor):
		return http.StatusForbidden, response.ErrNotExamAuthor
	case errors.Is(err, service.ErrExamNotAvailable):
		return http.StatusForbidden, response.ErrExamNotAvailable

	case errors.Is(err, attempt.ErrExamNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		repository.IsNotFound(err):
		return http.StatusNotFound, response.ErrNotFound

	case errors.Is(err, service.ErrExamNotPublished):
		return http.StatusConflict, response.ErrExamNotPublished
	case errors.Is(err, service.ErrExamNotDraft):
		return http.StatusConflict, response.ErrExamNotDraft
	case errors.Is(err, service.ErrAttemptSubmitted),
		errors.Is(err, attempt.ErrRunnerClosed):
		return http.StatusConflict, response.ErrAttemptSubmitted
	case errors.Is(err, service.ErrAttemptRunning):
		return http.StatusConflict, response.ErrAttemptRunning

	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusBadRequest, response.ErrNoQuestions
	case errors.Is(err, attempt.ErrAnswerShape),
		errors.Is(err, attempt.ErrIndexOutOfRange),
		errors.Is(err, model.ErrMalformedAnswer):
		return http.StatusBadRequest, response.ErrInvalidAnswer
	case errors.Is(err, attempt.ErrInvalidInput):
		return http.StatusBadRequest, response.ErrValidation

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, response.ErrInternal
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failWithError writes the error envelope for err.
func failWithError(c *gin.Context, err error) {
	status, code := classify(err)
	response.Fail(c, status, code)
}
