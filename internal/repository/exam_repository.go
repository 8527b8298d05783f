package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/hoa-backend/internal/model"
)

// ExamRepository handles exam data access. Questions live in a JSONB
// column so an exam definition is always read and written as one unit.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, author_id, chapter, difficulty, tags, duration_seconds,
	scheduled_start, scheduled_end, status, created_at, updated_at`

func scanExam(row pgx.Row, e *model.Exam, extra ...any) error {
	dest := []any{&e.ID, &e.Title, &e.AuthorID, &e.Chapter, &e.Difficulty, &e.Tags, &e.DurationSeconds,
		&e.ScheduledStart, &e.ScheduledEnd, &e.Status, &e.CreatedAt, &e.UpdatedAt}
	return row.Scan(append(dest, extra...)...)
}

// GetByID retrieves an exam with its questions.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	row := r.pool.QueryRow(ctx, `SELECT `+examColumns+`, questions FROM exams WHERE id = $1`, id)
	if err := scanExam(row, e, &e.Questions); err != nil {
		return nil, err
	}
	return e, nil
}

// ListPaginated lists exams without questions, newest first. Pass
// authorID=0 to list every author's exams.
func (r *ExamRepository) ListPaginated(ctx context.Context, authorID, limit, offset int) ([]model.Exam, int, error) {
	where := ""
	args := []any{}
	if authorID > 0 {
		where = ` WHERE author_id = $1`
		args = append(args, authorID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examColumns + ` FROM exams` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams := make([]model.Exam, 0)
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListPublished returns every published exam with questions.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`, questions FROM exams WHERE status = $1 ORDER BY created_at DESC`,
		model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e, &e.Questions); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ListPublishedSummaries returns the student-facing listing.
func (r *ExamRepository) ListPublishedSummaries(ctx context.Context) ([]model.ExamSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, chapter, difficulty, tags, duration_seconds,
		        jsonb_array_length(questions), scheduled_start, scheduled_end
		 FROM exams WHERE status = $1
		 ORDER BY scheduled_start NULLS FIRST, created_at DESC`,
		model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]model.ExamSummary, 0)
	for rows.Next() {
		var s model.ExamSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Chapter, &s.Difficulty, &s.Tags, &s.DurationSeconds,
			&s.QuestionCount, &s.ScheduledStart, &s.ScheduledEnd); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	if e.Questions == nil {
		e.Questions = []model.Question{}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, author_id, chapter, difficulty, tags, duration_seconds,
		                    scheduled_start, scheduled_end, status, questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.AuthorID, e.Chapter, e.Difficulty, e.Tags, e.DurationSeconds,
		e.ScheduledStart, e.ScheduledEnd, e.Status, e.Questions,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update writes the metadata of an exam (not its questions or status).
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return r.pool.QueryRow(ctx,
		`UPDATE exams
		 SET title = $1, chapter = $2, difficulty = $3, tags = $4, duration_seconds = $5,
		     scheduled_start = $6, scheduled_end = $7, updated_at = NOW()
		 WHERE id = $8
		 RETURNING updated_at`,
		e.Title, e.Chapter, e.Difficulty, e.Tags, e.DurationSeconds,
		e.ScheduledStart, e.ScheduledEnd, e.ID,
	).Scan(&e.UpdatedAt)
}

// ReplaceQuestions overwrites the full question list of an exam.
func (r *ExamRepository) ReplaceQuestions(ctx context.Context, id uuid.UUID, questions []model.Question) error {
	if questions == nil {
		questions = []model.Question{}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET questions = $1, updated_at = NOW() WHERE id = $2`,
		questions, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus updates an exam's status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes an exam.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}
