package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
)

// AutosaveWorker consumes the answers queue and UPSERTs each answer into
// attempt_answers.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	queue := config.WorkerKey.PersistAnswersQueue

	result, err := w.rdb.BLPop(ctx, PollTimeout, queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var payload model.AnswerSaved
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistAnswer(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", payload.AttemptID.String()).
			Int("question_index", payload.QuestionIndex).
			Msg("Persist error, retrying in 5s")
		w.rdb.RPush(context.Background(), queue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// persistAnswer keeps the newest answer per question; an older payload
// arriving after a retry never overwrites a newer one.
func (w *AutosaveWorker) persistAnswer(ctx context.Context, p *model.AnswerSaved) error {
	savedAt := p.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err := w.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_index, answer, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id, question_index) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = EXCLUDED.updated_at
		 WHERE attempt_answers.updated_at <= EXCLUDED.updated_at`,
		p.AttemptID, p.QuestionIndex, []byte(p.Answer), savedAt,
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	queue := config.WorkerKey.PersistAnswersQueue
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, queue).Result()
		if err != nil {
			break
		}

		var payload model.AnswerSaved
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistAnswer(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, queue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
