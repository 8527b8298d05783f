package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
)

// liveRedis connects to REDIS_URL or skips the test.
func liveRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestClearAttemptKeysKeepsRetakePointer(t *testing.T) {
	rdb := liveRedis(t)
	ctx := context.Background()

	examID := uuid.New()
	first := &model.Review{AttemptID: uuid.New(), ExamID: examID, StudentID: 7}
	retake := uuid.New()
	active := config.CacheKey.ActiveAttemptKey(examID.String(), 7)
	answers := config.CacheKey.AttemptAnswersKey(first.AttemptID.String())
	submitted := config.CacheKey.AttemptSubmittedKey(first.AttemptID.String())
	t.Cleanup(func() { rdb.Del(context.Background(), active, answers, submitted) })

	// The student started a retake before the first result was flushed.
	rdb.Set(ctx, active, retake.String(), time.Minute)
	rdb.HSet(ctx, answers, "0", `{"text":"Electron"}`)
	rdb.Set(ctx, submitted, `{}`, time.Minute)

	if err := clearAttemptKeys(ctx, rdb, []*model.Review{first}); err != nil {
		t.Fatal(err)
	}
	if got, err := rdb.Get(ctx, active).Result(); err != nil || got != retake.String() {
		t.Fatalf("active pointer = %q, %v; want retake %s", got, err, retake)
	}
	if n := rdb.Exists(ctx, answers, submitted).Val(); n != 0 {
		t.Fatalf("%d attempt keys left behind", n)
	}

	// Once the pointer names the flushed attempt it is released.
	rdb.Set(ctx, active, first.AttemptID.String(), time.Minute)
	if err := clearAttemptKeys(ctx, rdb, []*model.Review{first}); err != nil {
		t.Fatal(err)
	}
	if err := rdb.Get(ctx, active).Err(); !errors.Is(err, redis.Nil) {
		t.Fatalf("active pointer kept: %v", err)
	}
}
