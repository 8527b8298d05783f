package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
)

// OptionOrderWorker records the shuffled option order of each attempt so
// a review can be rendered in the order the student saw.
type OptionOrderWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewOptionOrderWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *OptionOrderWorker {
	return &OptionOrderWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "option_order_worker").Logger(),
	}
}

func (w *OptionOrderWorker) Start(ctx context.Context) {
	w.log.Info().Msg("OptionOrderWorker started")
	batchLoop(ctx, w.rdb, config.WorkerKey.PersistOptionOrderQueue, w.log, w.flushSafe)
}

func (w *OptionOrderWorker) flushSafe(ctx context.Context, batch []*model.OptionOrderSaved) {
	if len(batch) == 0 {
		return
	}
	err := w.bulkUpdate(ctx, batch)
	if err == nil {
		return
	}
	w.log.Warn().Err(err).Msg("bulk option order update failed, using fallback")

	failed := make([]*model.OptionOrderSaved, 0)
	for _, p := range batch {
		if err := w.persistSingle(ctx, p); err != nil {
			w.log.Error().Err(err).Str("attempt_id", p.AttemptID.String()).Msg("persistSingle failed, requeueing")
			failed = append(failed, p)
		}
	}
	requeue(ctx, w.rdb, config.WorkerKey.PersistOptionOrderQueue, w.log, failed)
}

func optionOrderColumns(batch []*model.OptionOrderSaved) ([]uuid.UUID, [][]byte) {
	ids := make([]uuid.UUID, 0, len(batch))
	orders := make([][]byte, 0, len(batch))
	for _, p := range batch {
		ob, _ := json.Marshal(p.Order)
		ids = append(ids, p.AttemptID)
		orders = append(orders, ob)
	}
	return ids, orders
}

func (w *OptionOrderWorker) bulkUpdate(ctx context.Context, batch []*model.OptionOrderSaved) error {
	ids, orders := optionOrderColumns(batch)

	query := `
		UPDATE attempts AS a
		SET option_order = t.oo
		FROM (
			SELECT u.attempt_id, u.oo
			FROM UNNEST($1::uuid[], $2::jsonb[]) AS u (attempt_id, oo)
		) AS t
		WHERE a.id = t.attempt_id
	`
	_, err := w.pool.Exec(ctx, query, ids, orders)
	return err
}

func (w *OptionOrderWorker) persistSingle(ctx context.Context, p *model.OptionOrderSaved) error {
	ob, _ := json.Marshal(p.Order)
	_, err := w.pool.Exec(ctx,
		`UPDATE attempts SET option_order = $1 WHERE id = $2`,
		ob, p.AttemptID,
	)
	return err
}
