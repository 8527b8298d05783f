package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/hoa-backend/internal/model"
)

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, student_id, phase, COALESCE(submit_reason, ''), integrity_flag,
	correct, total, started_at, submitted_at, option_order`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var order []byte
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Phase, &a.SubmitReason, &a.IntegrityFlag,
		&a.Correct, &a.Total, &a.StartedAt, &a.SubmittedAt, &order)
	if err != nil {
		return nil, err
	}
	if len(order) > 0 {
		if err := json.Unmarshal(order, &a.OptionOrder); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Create inserts a new in-progress attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempts (id, exam_id, student_id, phase, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.ExamID, a.StudentID, model.PhaseInProgress, a.StartedAt)
	return err
}

// GetByID retrieves an attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// ListInProgress returns every attempt that has not been submitted.
func (r *AttemptRepository) ListInProgress(ctx context.Context) ([]*model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE phase = $1 ORDER BY started_at`,
		model.PhaseInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListAnswers returns the persisted autosave answers of an attempt keyed
// by question index.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) (map[int]json.RawMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_index, answer FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[int]json.RawMessage)
	for rows.Next() {
		var idx int
		var raw []byte
		if err := rows.Scan(&idx, &raw); err != nil {
			return nil, err
		}
		answers[idx] = raw
	}
	return answers, rows.Err()
}

// GetReview returns the stored review of a submitted attempt. It returns
// pgx.ErrNoRows when the attempt is unknown or not yet persisted as submitted.
func (r *AttemptRepository) GetReview(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT review FROM attempts WHERE id = $1 AND phase = $2 AND review IS NOT NULL`,
		id, model.PhaseSubmitted,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	review := &model.Review{}
	if err := json.Unmarshal(raw, review); err != nil {
		return nil, err
	}
	return review, nil
}

// SaveReview persists a graded attempt synchronously. The results worker
// does the same in bulk; this path is used when the queue is unavailable.
func (r *AttemptRepository) SaveReview(ctx context.Context, review *model.Review) error {
	raw, err := json.Marshal(review)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE attempts
		 SET phase = $1, submit_reason = $2, integrity_flag = $3, correct = $4, total = $5,
		     review = $6, submitted_at = $7
		 WHERE id = $8`,
		model.PhaseSubmitted, review.SubmitReason, review.IntegrityFlag, review.Correct, review.Total,
		raw, review.SubmittedAt, review.AttemptID)
	return err
}

// ListResultsByStudent returns the student's submitted attempts, newest first.
func (r *AttemptRepository) ListResultsByStudent(ctx context.Context, studentID int) ([]model.ResultSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.exam_id, e.title, e.chapter, a.correct, a.total,
		        a.submit_reason, a.integrity_flag, a.submitted_at
		 FROM attempts a JOIN exams e ON e.id = a.exam_id
		 WHERE a.student_id = $1 AND a.phase = $2 AND a.correct IS NOT NULL
		 ORDER BY a.submitted_at DESC`,
		studentID, model.PhaseSubmitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.ResultSummary, 0)
	for rows.Next() {
		var s model.ResultSummary
		if err := rows.Scan(&s.AttemptID, &s.ExamID, &s.Title, &s.Chapter, &s.Correct, &s.Total,
			&s.SubmitReason, &s.IntegrityFlag, &s.SubmittedAt); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

const examResultColumns = `a.id, a.student_id, u.name, COALESCE(a.correct, 0), COALESCE(a.total, 0),
		COALESCE(a.submit_reason, ''), a.integrity_flag, a.started_at, a.submitted_at`

// ListResultsByExam returns every submitted attempt of an exam, ordered by
// student name. Used for result sheet exports.
func (r *AttemptRepository) ListResultsByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamResultRow, error) {
	return r.queryExamResults(ctx,
		`SELECT `+examResultColumns+`
		 FROM attempts a JOIN users u ON u.id = a.student_id
		 WHERE a.exam_id = $1 AND a.phase = $2
		 ORDER BY u.name ASC, a.started_at ASC`,
		examID, model.PhaseSubmitted)
}

// ListResultsByExamPaginated returns one page of ListResultsByExam.
func (r *AttemptRepository) ListResultsByExamPaginated(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, error) {
	return r.queryExamResults(ctx,
		`SELECT `+examResultColumns+`
		 FROM attempts a JOIN users u ON u.id = a.student_id
		 WHERE a.exam_id = $1 AND a.phase = $2
		 ORDER BY u.name ASC, a.started_at ASC
		 LIMIT $3 OFFSET $4`,
		examID, model.PhaseSubmitted, limit, offset)
}

func (r *AttemptRepository) queryExamResults(ctx context.Context, query string, args ...any) ([]model.ExamResultRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.ExamResultRow, 0)
	for rows.Next() {
		var row model.ExamResultRow
		if err := rows.Scan(&row.AttemptID, &row.StudentID, &row.StudentName, &row.Correct, &row.Total,
			&row.SubmitReason, &row.IntegrityFlag, &row.StartedAt, &row.SubmittedAt); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// ExamResultStats counts an exam's submitted attempts and returns the
// average score rounded to two decimals and the best score.
func (r *AttemptRepository) ExamResultStats(ctx context.Context, examID uuid.UUID) (model.ExamResultStats, error) {
	var stats model.ExamResultStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(ROUND(AVG(COALESCE(correct, 0))::numeric, 2), 0)::float8,
		        COALESCE(MAX(COALESCE(correct, 0)), 0)
		 FROM attempts
		 WHERE exam_id = $1 AND phase = $2`,
		examID, model.PhaseSubmitted).Scan(&stats.Attempts, &stats.Average, &stats.Max)
	return stats, err
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
