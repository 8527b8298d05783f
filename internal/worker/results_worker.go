package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
)

// ResultsWorker persists graded attempts and then clears their autosave
// buffers in Redis.
type ResultsWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultsWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultsWorker {
	return &ResultsWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "results_worker").Logger(),
	}
}

func (w *ResultsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultsWorker started")
	batchLoop(ctx, w.rdb, config.WorkerKey.PersistResultsQueue, w.log, w.flushSafe)
}

func (w *ResultsWorker) flushSafe(ctx context.Context, batch []*model.Review) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpdate(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk result update failed, using fallback")

		failed := make([]*model.Review, 0)
		done := make([]*model.Review, 0, len(batch))
		for _, r := range batch {
			if err := w.persistSingle(ctx, r); err != nil {
				w.log.Error().Err(err).Str("attempt_id", r.AttemptID.String()).Msg("persistSingle failed, requeueing")
				failed = append(failed, r)
				continue
			}
			done = append(done, r)
		}
		w.clearAutosaved(ctx, done)
		requeue(ctx, w.rdb, config.WorkerKey.PersistResultsQueue, w.log, failed)
		return
	}

	w.clearAutosaved(ctx, batch)
}

type resultColumns struct {
	ids         []uuid.UUID
	reasons     []string
	flags       []bool
	correct     []int
	total       []int
	reviews     [][]byte
	submittedAt []time.Time
}

func buildResultColumns(batch []*model.Review) (resultColumns, error) {
	n := len(batch)
	cols := resultColumns{
		ids:         make([]uuid.UUID, 0, n),
		reasons:     make([]string, 0, n),
		flags:       make([]bool, 0, n),
		correct:     make([]int, 0, n),
		total:       make([]int, 0, n),
		reviews:     make([][]byte, 0, n),
		submittedAt: make([]time.Time, 0, n),
	}
	for _, r := range batch {
		raw, err := json.Marshal(r)
		if err != nil {
			return resultColumns{}, err
		}
		cols.ids = append(cols.ids, r.AttemptID)
		cols.reasons = append(cols.reasons, string(r.SubmitReason))
		cols.flags = append(cols.flags, r.IntegrityFlag)
		cols.correct = append(cols.correct, r.Correct)
		cols.total = append(cols.total, r.Total)
		cols.reviews = append(cols.reviews, raw)
		cols.submittedAt = append(cols.submittedAt, r.SubmittedAt)
	}
	return cols, nil
}

func (w *ResultsWorker) bulkUpdate(ctx context.Context, batch []*model.Review) error {
	cols, err := buildResultColumns(batch)
	if err != nil {
		return err
	}

	query := `
		UPDATE attempts AS a
		SET phase = 'SUBMITTED',
		    submit_reason = t.reason,
		    integrity_flag = t.flag,
		    correct = t.correct,
		    total = t.total,
		    review = t.review,
		    submitted_at = t.submitted_at
		FROM (
			SELECT u.attempt_id, u.reason, u.flag, u.correct, u.total, u.review, u.submitted_at
			FROM UNNEST(
				$1::uuid[],
				$2::text[],
				$3::bool[],
				$4::int[],
				$5::int[],
				$6::jsonb[],
				$7::timestamptz[]
			) AS u (attempt_id, reason, flag, correct, total, review, submitted_at)
		) AS t
		WHERE a.id = t.attempt_id
	`
	_, err = w.pool.Exec(ctx, query,
		cols.ids, cols.reasons, cols.flags, cols.correct, cols.total, cols.reviews, cols.submittedAt)
	return err
}

func (w *ResultsWorker) persistSingle(ctx context.Context, r *model.Review) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx,
		`UPDATE attempts
		 SET phase = 'SUBMITTED', submit_reason = $1, integrity_flag = $2,
		     correct = $3, total = $4, review = $5, submitted_at = $6
		 WHERE id = $7`,
		string(r.SubmitReason), r.IntegrityFlag, r.Correct, r.Total, raw, r.SubmittedAt, r.AttemptID,
	)
	return err
}

// releaseActive deletes the active-attempt pointer only while it still names
// the persisted attempt. A retake started before the flush keeps its pointer.
var releaseActive = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// clearAutosaved removes the autosave hashes, submission records and
// active-attempt pointers of persisted attempts.
func (w *ResultsWorker) clearAutosaved(ctx context.Context, batch []*model.Review) {
	if len(batch) == 0 {
		return
	}
	if err := clearAttemptKeys(ctx, w.rdb, batch); err != nil {
		w.log.Warn().Err(err).Msg("Failed to clear autosave buffers")
	}
}

func clearAttemptKeys(ctx context.Context, rdb *redis.Client, batch []*model.Review) error {
	pipe := rdb.Pipeline()
	for _, r := range batch {
		id := r.AttemptID.String()
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(id), config.CacheKey.AttemptSubmittedKey(id))
		releaseActive.Eval(ctx, pipe, []string{config.CacheKey.ActiveAttemptKey(r.ExamID.String(), r.StudentID)}, id)
	}
	_, err := pipe.Exec(ctx)
	return err
}
