package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/middleware"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/report"
	"github.com/stemsi/hoa-backend/internal/response"
	"github.com/stemsi/hoa-backend/internal/service"
	"github.com/stemsi/hoa-backend/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints (exam list,
// attempts, results history).
type StudentPortalHandler struct {
	examService    *service.ExamService
	attemptService *service.AttemptService
	resultService  *service.ResultService
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	examService *service.ExamService,
	attemptService *service.AttemptService,
	resultService *service.ResultService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		examService:    examService,
		attemptService: attemptService,
		resultService:  resultService,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

func attemptParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// ListExams godoc
// GET /api/v1/student/exams
// Returns published exams with their schedule window.
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	exams, err := h.examService.ListPublished(c.Request.Context(), time.Now())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.ExamSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempts
// Starts an attempt, or resumes the one already in progress.
func (h *StudentPortalHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.attemptService.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, res)
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
// Returns the live snapshot of an attempt.
func (h *StudentPortalHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}

	snap, err := h.attemptService.Snapshot(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// ListResults godoc
// GET /api/v1/student/results?q=&outcome=&sort=
// Returns the student's graded attempts, filtered and sorted.
func (h *StudentPortalHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.ResultQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results, err := h.resultService.History(c.Request.Context(), claims.UserID, q)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if results == nil {
		results = []model.ResultSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// GetResult godoc
// GET /api/v1/student/results/:attempt_id
// Returns the graded review: frozen answers, the key and explanations.
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}

	review, err := h.attemptService.Review(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, review)
}

// DownloadResultCSV godoc
// GET /api/v1/student/results/:attempt_id/csv
func (h *StudentPortalHandler) DownloadResultCSV(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}

	review, err := h.attemptService.Review(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteAttemptCSV(&buf, *review); err != nil {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Str("attempt_id", attemptID.String()).Msg("Failed to render attempt CSV")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Attachment(c, report.AttemptCSVFilename(review.Title), "text/csv; charset=utf-8", buf.Bytes())
}
