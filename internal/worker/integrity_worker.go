package worker

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
)

var integrityColumns = []string{"attempt_id", "exam_id", "student_id", "hidden", "kind", "triggered", "created_at"}

// IntegrityWorker batches visibility signals into integrity_events using COPY.
type IntegrityWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewIntegrityWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *IntegrityWorker {
	return &IntegrityWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "integrity_worker").Logger(),
	}
}

func (w *IntegrityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("IntegrityWorker started")
	batchLoop(ctx, w.rdb, config.WorkerKey.PersistIntegrityQueue, w.log, w.flushSafe)
}

// flushSafe attempts bulk insert, then fallback insert, then requeue
func (w *IntegrityWorker) flushSafe(ctx context.Context, batch []*model.IntegrityEvent) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func integrityRows(batch []*model.IntegrityEvent) [][]interface{} {
	rows := make([][]interface{}, 0, len(batch))
	for _, e := range batch {
		rows = append(rows, []interface{}{
			e.AttemptID, e.ExamID, e.StudentID, e.Hidden, string(e.Kind), e.Triggered, e.CreatedAt,
		})
	}
	return rows
}

func (w *IntegrityWorker) bulkInsert(ctx context.Context, batch []*model.IntegrityEvent) error {
	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"integrity_events"},
		integrityColumns,
		pgx.CopyFromRows(integrityRows(batch)),
	)
	return err
}

func (w *IntegrityWorker) fallbackInsert(ctx context.Context, batch []*model.IntegrityEvent) {
	failed := make([]*model.IntegrityEvent, 0)

	for _, e := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO integrity_events (attempt_id, exam_id, student_id, hidden, kind, triggered, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.AttemptID, e.ExamID, e.StudentID, e.Hidden, string(e.Kind), e.Triggered, e.CreatedAt,
		)
		if err != nil {
			w.log.Error().Err(err).Str("attempt_id", e.AttemptID.String()).Msg("Insert failed, requeueing")
			failed = append(failed, e)
		}
	}

	requeue(ctx, w.rdb, config.WorkerKey.PersistIntegrityQueue, w.log, failed)
}
