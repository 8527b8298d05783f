package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/attempt"
	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/repository"
	"github.com/stemsi/hoa-backend/internal/response"
)

// Domain Errors
var (
	ErrNotExamAuthor    = errors.New("not the author of this exam")
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrExamNotDraft     = errors.New("exam status is not DRAFT")
	ErrExamNotPublished = errors.New("exam status is not PUBLISHED")
)

// ExamSource supplies exam definitions to the attempt service.
type ExamSource interface {
	GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// ExamService handles exam authoring and the Redis definition cache.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		cacheTTL: cfg.ExamCacheTTL,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// ListByAuthor retrieves the author's exams, newest first.
func (s *ExamService) ListByAuthor(ctx context.Context, authorID, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListPaginated(ctx, authorID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, response.NewPagination(page, perPage, total), nil
}

// ListPublished returns the student-facing listing with each exam's window
// status evaluated at now.
func (s *ExamService) ListPublished(ctx context.Context, now time.Time) ([]model.ExamSummary, error) {
	summaries, err := s.examRepo.ListPublishedSummaries(ctx)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		e := model.Exam{ScheduledStart: summaries[i].ScheduledStart, ScheduledEnd: summaries[i].ScheduledEnd}
		summaries[i].Window = e.Window(now)
	}
	return summaries, nil
}

// Create inserts a new exam as DRAFT.
func (s *ExamService) Create(ctx context.Context, authorID int, req model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Title:           req.Title,
		AuthorID:        authorID,
		Chapter:         req.Chapter,
		Difficulty:      req.Difficulty,
		Tags:            req.Tags,
		DurationSeconds: req.DurationMinutes * 60,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
		Status:          model.ExamStatusDraft,
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// editable loads an exam the author may still change.
func (s *ExamService) editable(ctx context.Context, id uuid.UUID, authorID int) (*model.Exam, error) {
	existing, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if authorID != 0 && existing.AuthorID != authorID {
		return nil, ErrNotExamAuthor
	}
	if existing.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}
	return existing, nil
}

// Update modifies an existing draft exam.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, authorID int, req model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.editable(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	req.Apply(exam)
	if exam.ScheduledStart != nil && exam.ScheduledEnd != nil && !exam.ScheduledEnd.After(*exam.ScheduledStart) {
		return nil, fmt.Errorf("%w: scheduled_end must be after scheduled_start", attempt.ErrInvalidInput)
	}
	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// ReplaceQuestions swaps the full question list of a draft exam.
func (s *ExamService) ReplaceQuestions(ctx context.Context, id uuid.UUID, authorID int, req model.ReplaceQuestionsRequest) ([]model.Question, error) {
	if _, err := s.editable(ctx, id, authorID); err != nil {
		return nil, err
	}
	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = q.ToQuestion()
	}
	if err := s.examRepo.ReplaceQuestions(ctx, id, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	return questions, nil
}

// Delete removes a draft exam.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID, authorID int) error {
	if _, err := s.editable(ctx, id, authorID); err != nil {
		return err
	}
	return s.examRepo.Delete(ctx, id)
}

// Publish changes exam status to PUBLISHED and caches the definition in Redis.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, authorID int) error {
	exam, err := s.editable(ctx, examID, authorID)
	if err != nil {
		return err
	}
	if len(exam.Questions) == 0 {
		return ErrNoQuestions
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	exam.Status = model.ExamStatusPublished

	// The row is the source of truth; a cold cache heals on first read.
	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to warm cache on publish")
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// RefreshCache re-caches the definition of a published exam.
func (s *ExamService) RefreshCache(ctx context.Context, examID uuid.UUID, authorID int) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if authorID != 0 && exam.AuthorID != authorID {
		return ErrNotExamAuthor
	}
	if exam.Status != model.ExamStatusPublished {
		return ErrExamNotPublished
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Cache refreshed")
	return nil
}

// WarmExamCache stores the full definition, answer key included, under
// exam:{id}:definition. Only the attempt service reads it; students never
// see the key.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	payload, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	key := config.CacheKey.ExamDefinitionKey(exam.ID.String())
	if err := s.rdb.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming published exams...")

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExam returns the definition for an attempt: Redis first, PostgreSQL
// on a miss, re-caching what it read. Unknown exams yield
// attempt.ErrExamNotFound.
func (s *ExamService) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamDefinitionKey(id.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var exam model.Exam
		if err := json.Unmarshal(data, &exam); err == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", id.String()).Msg("Corrupt cached definition, reloading")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Redis read failed, falling back to database")
	}

	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, attempt.ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	// Self-heal so the next start is served from Redis.
	if exam.Status == model.ExamStatusPublished {
		if err := s.WarmExamCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to re-cache exam")
		}
	}
	return exam, nil
}
