package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// batchLoop drains queue into batches of T and hands each batch to flush
// once it is full or BatchTimeout has passed. On shutdown the pending
// batch is flushed with a fresh 5s deadline.
func batchLoop[T any](ctx context.Context, rdb *redis.Client, queue string, log zerolog.Logger, flush func(context.Context, []*T)) {
	buffer := make([]*T, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if len(buffer) > 0 {
				flush(shutdownCtx, buffer)
			}
			cancel()
			return
		default:
		}

		result, err := rdb.BLPop(ctx, PollTimeout, queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		item := new(T)
		if err := json.Unmarshal([]byte(result[1]), item); err != nil {
			// Malformed payloads can never succeed; drop them.
			log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

// requeue pushes failed items back onto queue in one pipeline.
func requeue[T any](ctx context.Context, rdb *redis.Client, queue string, log zerolog.Logger, items []*T) {
	if len(items) == 0 {
		return
	}
	pipe := rdb.Pipeline()
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Back off so a dead database is not hammered.
	time.Sleep(2 * time.Second)
}
