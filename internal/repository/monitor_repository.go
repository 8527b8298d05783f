package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/hoa-backend/internal/config"
)

// MonitorRepository provides data access for the live exam monitor.
// It combines PostgreSQL (attempt state) and Redis (live answer counts).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// AttemptStatus is one row of the monitor's attempt table.
type AttemptStatus struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	StudentID     int       `json:"student_id"`
	Name          string    `json:"name"`
	Phase         string    `json:"phase"`
	Correct       *int      `json:"correct,omitempty"`
	IntegrityFlag bool      `json:"integrity_flag"`
}

// ListAttempts returns every attempt at the exam with its student's name.
func (r *MonitorRepository) ListAttempts(ctx context.Context, examID uuid.UUID) ([]AttemptStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.student_id, u.name, a.phase, a.correct, a.integrity_flag
		 FROM attempts a JOIN users u ON u.id = a.student_id
		 WHERE a.exam_id = $1
		 ORDER BY a.started_at`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]AttemptStatus, 0)
	for rows.Next() {
		var s AttemptStatus
		if err := rows.Scan(&s.AttemptID, &s.StudentID, &s.Name, &s.Phase, &s.Correct, &s.IntegrityFlag); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetAnsweredCounts reads the size of each attempt's autosave hash in one
// pipeline round trip.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, attemptIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	result := make(map[uuid.UUID]int64, len(attemptIDs))
	if len(attemptIDs) == 0 {
		return result, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(attemptIDs))
	for i, id := range attemptIDs {
		cmds[i] = pipe.HLen(ctx, config.CacheKey.AttemptAnswersKey(id.String()))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for i, id := range attemptIDs {
		result[id] = cmds[i].Val()
	}
	return result, nil
}

// GetIntegrityCounts returns the number of hidden-page signals per attempt.
func (r *MonitorRepository) GetIntegrityCounts(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, COUNT(*)
		 FROM integrity_events
		 WHERE exam_id = $1 AND hidden
		 GROUP BY attempt_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var id uuid.UUID
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}
