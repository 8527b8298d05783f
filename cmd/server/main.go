package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/attempt"
	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/database"
	"github.com/stemsi/hoa-backend/internal/handler"
	"github.com/stemsi/hoa-backend/internal/logger"
	"github.com/stemsi/hoa-backend/internal/repository"
	"github.com/stemsi/hoa-backend/internal/router"
	"github.com/stemsi/hoa-backend/internal/service"
	"github.com/stemsi/hoa-backend/internal/validator"
	"github.com/stemsi/hoa-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting HOA Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, userRepo)
	examService := service.NewExamService(examRepo, rdb, cfg, log)
	attemptService := service.NewAttemptService(examService, attemptRepo, service.NewRedisBus(rdb), attempt.WallClock{}, cfg, log)
	resultService := service.NewResultService(attemptRepo, examRepo, cfg)
	monitorService := service.NewMonitorService(monitorRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		StudentPortal: handler.NewStudentPortalHandler(examService, attemptService, resultService, log),
		Exam:          handler.NewExamHandler(examService, resultService, log),
		WS:            handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Monitor:       handler.NewMonitorHandler(rdb, examService, monitorService, log),
		System:        handler.NewSystemHandler(pool, rdb, attemptService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	autosaveWorker := worker.NewAutosaveWorker(pool, rdb, log)
	integrityWorker := worker.NewIntegrityWorker(pool, rdb, log)
	optionOrderWorker := worker.NewOptionOrderWorker(pool, rdb, log)
	resultsWorker := worker.NewResultsWorker(pool, rdb, log)

	workers.Go(func() { autosaveWorker.Start(workerCtx) })
	workers.Go(func() { integrityWorker.Start(workerCtx) })
	workers.Go(func() { optionOrderWorker.Start(workerCtx) })
	workers.Go(func() { resultsWorker.Start(workerCtx) })

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams into Redis BEFORE accepting traffic.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Restore Running Attempts ─────────────────────────────────────
	// Attempts that were in progress when the last process stopped resume
	// with their remaining time; those whose deadline passed are submitted.
	if err := attemptService.RestoreAll(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to restore running attempts")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, rdb, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop every attempt runner. Running attempts stay IN_PROGRESS and
	// are restored by the next process.
	attemptService.Close()

	// 3. Stop background workers and wait for them to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
