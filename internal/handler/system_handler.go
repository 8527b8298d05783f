package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/database"
	"github.com/stemsi/hoa-backend/internal/response"
	"github.com/stemsi/hoa-backend/internal/service"
)

const healthTimeout = 3 * time.Second

// SystemHandler reports process health and worker backlog.
type SystemHandler struct {
	pool           *pgxpool.Pool
	rdb            *redis.Client
	attemptService *service.AttemptService
	startTime      time.Time
	log            zerolog.Logger
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, attemptService *service.AttemptService, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:           pool,
		rdb:            rdb,
		attemptService: attemptService,
		startTime:      time.Now(),
		log:            log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Pings PostgreSQL and Redis. Responds 503 when either is down.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	deps, healthy := database.Health(ctx, h.pool, h.rdb)
	code, status := http.StatusOK, "ok"
	if !healthy {
		code, status = http.StatusServiceUnavailable, "degraded"
		h.log.Warn().Interface("dependencies", deps).Msg("Health check failed")
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

type systemStatus struct {
	Uptime       string `json:"uptime"`
	LiveAttempts int    `json:"live_attempts"`

	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`

	// Worker queues
	QueueAnswers     int64 `json:"queue_answers"`
	QueueIntegrity   int64 `json:"queue_integrity"`
	QueueOptionOrder int64 `json:"queue_option_order"`
	QueueResults     int64 `json:"queue_results"`
}

// Status godoc
// GET /api/v1/admin/system/status
// Returns runtime figures, the number of live attempts and the backlog of
// every persistence queue.
func (h *SystemHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := systemStatus{
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		LiveAttempts: h.attemptService.Live(),
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    mem.HeapAlloc,
		NumGC:        mem.NumGC,
		GoVersion:    runtime.Version(),
	}

	pipe := h.rdb.Pipeline()
	answersCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswersQueue)
	integrityCmd := pipe.LLen(ctx, config.WorkerKey.PersistIntegrityQueue)
	orderCmd := pipe.LLen(ctx, config.WorkerKey.PersistOptionOrderQueue)
	resultsCmd := pipe.LLen(ctx, config.WorkerKey.PersistResultsQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read queue lengths")
	} else {
		s.QueueAnswers = answersCmd.Val()
		s.QueueIntegrity = integrityCmd.Val()
		s.QueueOptionOrder = orderCmd.Val()
		s.QueueResults = resultsCmd.Val()
	}

	response.Success(c, http.StatusOK, s)
}
