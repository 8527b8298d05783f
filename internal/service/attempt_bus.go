package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
)

// AttemptBus carries the side effects of live attempts out of the process:
// work queues for the persistence workers, the autosave hash, the active
// attempt pointer, the submission record and the admin monitor channel.
type AttemptBus interface {
	Enqueue(ctx context.Context, queue string, payload any) error
	Publish(ctx context.Context, examID uuid.UUID, payload any) error
	SaveAnswer(ctx context.Context, attemptID uuid.UUID, index int, raw []byte) error
	LoadAnswers(ctx context.Context, attemptID uuid.UUID) (map[int]json.RawMessage, error)
	SetActive(ctx context.Context, examID uuid.UUID, studentID int, attemptID uuid.UUID, ttl time.Duration) error
	GetActive(ctx context.Context, examID uuid.UUID, studentID int) (uuid.UUID, bool, error)
	MarkSubmitted(ctx context.Context, review model.Review, ttl time.Duration) error
	LoadSubmitted(ctx context.Context, attemptID uuid.UUID) (*model.Review, bool, error)
}

// RedisBus is the production AttemptBus.
type RedisBus struct {
	rdb *redis.Client
}

// NewRedisBus creates a new RedisBus.
func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Enqueue(ctx context.Context, queue string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return b.rdb.RPush(ctx, queue, data).Err()
}

func (b *RedisBus) Publish(ctx context.Context, examID uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return b.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), data).Err()
}

// SaveAnswer overwrites one field of the attempt's autosave hash.
func (b *RedisBus) SaveAnswer(ctx context.Context, attemptID uuid.UUID, index int, raw []byte) error {
	return b.rdb.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String()), strconv.Itoa(index), raw).Err()
}

func (b *RedisBus) LoadAnswers(ctx context.Context, attemptID uuid.UUID) (map[int]json.RawMessage, error) {
	fields, err := b.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, err
	}
	answers := make(map[int]json.RawMessage, len(fields))
	for k, v := range fields {
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		answers[idx] = json.RawMessage(v)
	}
	return answers, nil
}

func (b *RedisBus) SetActive(ctx context.Context, examID uuid.UUID, studentID int, attemptID uuid.UUID, ttl time.Duration) error {
	return b.rdb.Set(ctx, config.CacheKey.ActiveAttemptKey(examID.String(), studentID), attemptID.String(), ttl).Err()
}

func (b *RedisBus) GetActive(ctx context.Context, examID uuid.UUID, studentID int) (uuid.UUID, bool, error) {
	val, err := b.rdb.Get(ctx, config.CacheKey.ActiveAttemptKey(examID.String(), studentID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// MarkSubmitted stores the graded review so a restart before the results
// flush cannot reopen the attempt.
func (b *RedisBus) MarkSubmitted(ctx context.Context, review model.Review, ttl time.Duration) error {
	data, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}
	return b.rdb.Set(ctx, config.CacheKey.AttemptSubmittedKey(review.AttemptID.String()), data, ttl).Err()
}

func (b *RedisBus) LoadSubmitted(ctx context.Context, attemptID uuid.UUID) (*model.Review, bool, error) {
	data, err := b.rdb.Get(ctx, config.CacheKey.AttemptSubmittedKey(attemptID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var review model.Review
	if err := json.Unmarshal(data, &review); err != nil {
		return nil, false, fmt.Errorf("unmarshal review: %w", err)
	}
	return &review, true, nil
}
