package handler

import (
	"bytes"
	"net/http"
	"strconv"

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

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExamHandler handles exam authoring and result endpoints for admins.
// Every operation is scoped to exams the caller authored.
type ExamHandler struct {
	examService   *service.ExamService
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, resultService *service.ResultService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService:   examService,
		resultService: resultService,
		log:           log.With().Str("component", "exam_handler").Logger(),
	}
}

// examParam parses the :id path parameter, writing a 400 on failure.
func examParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context, defaultPerPage int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	return page, perPage
}

// ListExams godoc
// GET /api/v1/admin/exams
// Lists the caller's exams with pagination.
func (h *ExamHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, perPage := pageParams(c, 10)
	exams, pagination, err := h.examService.ListByAuthor(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates a new exam in DRAFT status.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
// Returns the exam with its questions and answer key.
func (h *ExamHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := examParam(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		failWithError(c, err)
		return
	}
	if exam.AuthorID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotExamAuthor)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/admin/exams/:id
// Updates a DRAFT exam's metadata.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := examParam(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), examID, claims.UserID, req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := examParam(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID, claims.UserID); err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/exams/:id/questions
// Replaces every question of a DRAFT exam.
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := examParam(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.examService.ReplaceQuestions(c.Request.Context(), examID, claims.UserID, req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// PublishExam godoc
// POST /api/v1/admin/exams/:id/publish
// Transitions DRAFT → PUBLISHED and caches the definition in Redis.
func (h *ExamHandler) PublishExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := examParam(c)
	if !ok {
		return
	}

	if err := h.examService.Publish(c.Request.Context(), examID, claims.UserID); err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.ExamStatusPublished})
}

// RefreshExamCache godoc
// POST /api/v1/admin/exams/:id/refresh-cache
// Rebuilds the Redis definition of a published exam from PostgreSQL.
func (h *ExamHandler) RefreshExamCache(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := examParam(c)
	if !ok {
		return
	}

	if err := h.examService.RefreshCache(c.Request.Context(), examID, claims.UserID); err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetExamResults godoc
// GET /api/v1/admin/exams/:id/results
// Lists submitted attempts with pagination plus statistics over all of them.
func (h *ExamHandler) GetExamResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := examParam(c)
	if !ok {
		return
	}

	page, perPage := pageParams(c, 20)
	rows, stats, pagination, err := h.resultService.ExamResults(c.Request.Context(), examID, claims.UserID, page, perPage)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": rows, "stats": stats}, pagination)
}

// ExportResultsCSV godoc
// GET /api/v1/admin/exams/:id/results.csv
func (h *ExamHandler) ExportResultsCSV(c *gin.Context) {
	h.exportResults(c, "csv", "text/csv; charset=utf-8", func(buf *bytes.Buffer, exam *model.Exam, rows []model.ExamResultRow) error {
		return report.WriteResultSheetCSV(buf, rows)
	})
}

// ExportResultsXLSX godoc
// GET /api/v1/admin/exams/:id/results.xlsx
func (h *ExamHandler) ExportResultsXLSX(c *gin.Context) {
	h.exportResults(c, "xlsx", xlsxContentType, func(buf *bytes.Buffer, exam *model.Exam, rows []model.ExamResultRow) error {
		return report.WriteResultSheetXLSX(buf, exam.Title, rows)
	})
}

func (h *ExamHandler) exportResults(
	c *gin.Context,
	ext, contentType string,
	write func(*bytes.Buffer, *model.Exam, []model.ExamResultRow) error,
) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := examParam(c)
	if !ok {
		return
	}

	exam, rows, err := h.resultService.ExamResultSheet(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, exam, rows); err != nil {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Str("exam_id", examID.String()).Str("format", ext).Msg("Failed to render result sheet")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Attachment(c, report.ResultSheetFilename(exam.Title, ext), contentType, buf.Bytes())
}
