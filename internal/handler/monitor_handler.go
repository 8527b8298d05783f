package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/middleware"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/response"
	"github.com/stemsi/hoa-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	rdb            *redis.Client
	examService    *service.ExamService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		examService:    examService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Streams a snapshot of the exam's attempts, then relays attempt and
// integrity events from Redis Pub/Sub with a periodic refresh.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
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

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, "snapshot", exam)

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Refreshes are skipped until something happens at the exam
	active := false

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Events are already JSON; forward them untouched
			writeSSEData(c, []byte(msg.Payload))
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendSnapshot(c, reqCtx, "refresh", exam)

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func writeSSEData(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

// sendSnapshot writes the full attempt table as one SSE event.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, typ string, exam *model.Exam) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snap, err := h.monitorService.GetSnapshot(ctx, exam.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to build monitor snapshot")
		return
	}

	c.SSEvent("message", gin.H{
		"type": typ,
		"data": gin.H{
			"exam": gin.H{
				"id":               exam.ID.String(),
				"title":            exam.Title,
				"duration_seconds": exam.DurationSeconds,
				"total_questions":  len(exam.Questions),
			},
			"snapshot": snap,
		},
	})
	c.Writer.Flush()
}
