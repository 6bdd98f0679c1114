package jobqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weavehub/weave/apperr"
)

// QueueEntry is the payload pushed onto the durable Redis queue, minimal by
// design: the job table is the source of truth, this just carries enough to
// dequeue and look the row back up.
type QueueEntry struct {
	JobID      string    `json:"job_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a Redis-backed FIFO that survives process restarts, so a crash
// mid-batch does not lose queued-but-not-started jobs.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	if queueName == "" {
		queueName = "jobqueue:pending"
	}
	return &Queue{client: client, key: queueName}
}

func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	entry := QueueEntry{JobID: jobID, EnqueuedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return apperr.WrapInternal(err, "marshaling queue entry")
	}
	return q.client.RPush(ctx, q.key, data).Err()
}

// Dequeue blocks up to timeout for the next job id, returning "" on timeout.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", apperr.WrapInternal(err, "dequeuing job")
	}
	if len(result) < 2 {
		return "", nil
	}
	var entry QueueEntry
	if err := json.Unmarshal([]byte(result[1]), &entry); err != nil {
		return "", apperr.WrapInternal(err, "unmarshaling queue entry")
	}
	return entry.JobID, nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
