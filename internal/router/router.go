package router

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/handler"
	"github.com/stemsi/hoa-backend/internal/middleware"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/response"
	"github.com/stemsi/hoa-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Exam          *handler.ExamHandler
	WS            *handler.WSHandler
	Monitor       *handler.MonitorHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	rdb *redis.Client,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	brotliConfig := middleware.DefaultBrotliConfig
	brotliConfig.Skipper = func(c *gin.Context) bool {
		return middleware.SkipPrecompressed(c) || strings.HasSuffix(c.Request.URL.Path, "/monitor")
	}
	router.Use(middleware.BrotliWithConfig(brotliConfig))

	router.GET("/health", handlers.System.Health)

	requireJWT := middleware.RequireJWT(authService)
	activeSession := middleware.RequireActiveSession(authService)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	loginLimiter := middleware.NewRateLimiter(rdb, cfg.LoginRateLimit, time.Minute)

	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/logout", requireJWT, activeSession, handlers.Auth.Logout)
		auth.GET("/me", requireJWT, activeSession, handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(requireJWT, activeSession, middleware.RequireRole(model.RoleStudent), middleware.NoStore())
	{
		studentAPI.GET("/exams", handlers.StudentPortal.ListExams)
		studentAPI.POST("/exams/:exam_id/attempts", handlers.StudentPortal.StartAttempt)
		studentAPI.GET("/attempts/:attempt_id", handlers.StudentPortal.GetAttempt)
		studentAPI.GET("/results", handlers.StudentPortal.ListResults)
		studentAPI.GET("/results/:attempt_id", handlers.StudentPortal.GetResult)
		studentAPI.GET("/results/:attempt_id/csv", handlers.StudentPortal.DownloadResultCSV)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	// Browsers cannot set headers on a WebSocket handshake, so RequireJWT
	// also accepts ?token=.
	ws := router.Group("/ws/v1")
	ws.Use(requireJWT, activeSession, middleware.RequireRole(model.RoleStudent))
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(requireJWT, activeSession, middleware.RequireRole(model.RoleAdmin))
	{
		adminAPI.GET("/exams", handlers.Exam.ListExams)
		adminAPI.POST("/exams", handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:id", handlers.Exam.GetExam)
		adminAPI.PUT("/exams/:id", handlers.Exam.UpdateExam)
		adminAPI.DELETE("/exams/:id", handlers.Exam.DeleteExam)
		adminAPI.PUT("/exams/:id/questions", handlers.Exam.ReplaceQuestions)
		adminAPI.POST("/exams/:id/publish", handlers.Exam.PublishExam)
		adminAPI.POST("/exams/:id/refresh-cache", handlers.Exam.RefreshExamCache)

		adminAPI.GET("/exams/:id/results", handlers.Exam.GetExamResults)
		adminAPI.GET("/exams/:id/results.csv", handlers.Exam.ExportResultsCSV)
		adminAPI.GET("/exams/:id/results.xlsx", handlers.Exam.ExportResultsXLSX)

		adminAPI.GET("/exams/:id/monitor", handlers.Monitor.MonitorExamSSE)

		adminAPI.GET("/system/status", handlers.System.Status)
	}

	return router
}
