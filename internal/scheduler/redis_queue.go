package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the sorted set holding deferred jobs.
const DefaultQueueKey = "crosspost:jobs"

// RedisQueue persists jobs in a Valkey sorted set scored by due time.
// Poll claims a due job by removing its member; only the caller whose
// ZREM removed it runs the job, so several processes can poll the same set.
type RedisQueue struct {
	client  *redis.Client
	key     string
	handler Handler
	now     func() time.Time
}

func NewRedisQueue(client *redis.Client, key string, handler Handler) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key, handler: handler, now: time.Now}
}

func (q *RedisQueue) Enqueue(ctx context.Context, at time.Time, job Job) error {
	member, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue encode: %w", err)
	}
	if err := q.client.ZAdd(ctx, q.key, redis.Z{Score: float64(at.Unix()), Member: member}).Err(); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	slog.Info("job scheduled", "post_id", job.PostID, "at", at.Format(time.RFC3339), "backend", "redis")
	return nil
}

// Poll runs every job whose due time has passed and returns how many this
// caller claimed.
func (q *RedisQueue) Poll(ctx context.Context) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue poll: %w", err)
	}

	claimed := 0
	for _, member := range due {
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return claimed, fmt.Errorf("queue claim: %w", err)
		}
		if removed == 0 {
			continue // another poller got it
		}
		claimed++

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			slog.Error("queue dropped undecodable job", "member", member, "error", err)
			continue
		}
		if err := q.handler(ctx, job); err != nil {
			slog.Error("scheduled job failed", "post_id", job.PostID, "error", err)
		}
	}
	return claimed, nil
}

// Tick adapts Poll to a Scheduler tick function.
func (q *RedisQueue) Tick(ctx context.Context) {
	if _, err := q.Poll(ctx); err != nil {
		slog.Warn("queue poll failed", "error", err)
	}
}
