package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage on top of Redis primitives: LPUSH/BRPOP
// lists for the ready regions, a ZSET scored by epoch seconds for the
// scheduled set, a SET for in-flight tasks, and a list for the failed
// region. BRPOP gives the per-call exclusivity the Storage contract
// requires, so any number of workers can share one queue.
type RedisStorage struct {
	client redis.UniversalClient
}

// NewRedisStorage creates a Redis-backed task storage.
func NewRedisStorage(client redis.UniversalClient) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrStorageNil
	}
	return &RedisStorage{client: client}, nil
}

// popDueScript removes and returns all scheduled entries due at or before
// the given epoch-seconds timestamp. Fetch and removal run as one script so
// no entry can be delivered twice from the scheduled set.
var popDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if #due > 0 then
	redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
end
return due
`)

func (s *RedisStorage) PushReady(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	return s.client.LPush(ctx, readyKey(task.QueueName, task.Priority), data).Err()
}

func (s *RedisStorage) PopReady(ctx context.Context, queueName string, priorities []Priority, timeout time.Duration) (*Task, error) {
	keys := make([]string, len(priorities))
	for i, p := range priorities {
		keys[i] = readyKey(queueName, p)
	}

	// One blocking pop across all priority keys bounds the wait to a single
	// timeout. BRPOP checks keys in the given order, so the priority ranking
	// is preserved whenever more than one list has ready work.
	if timeout <= 0 {
		for _, key := range keys {
			data, err := s.client.RPop(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, err
			}
			return unmarshalTask([]byte(data))
		}
		return nil, nil
	}

	res, err := s.client.BRPop(ctx, timeout, keys...).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP replies with [key, value].
	return unmarshalTask([]byte(res[1]))
}

func (s *RedisStorage) PushScheduled(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	return s.client.ZAdd(ctx, scheduledKey(task.QueueName), redis.Z{
		Score:  float64(task.ScheduledAt.Unix()),
		Member: data,
	}).Err()
}

func (s *RedisStorage) PopDueScheduled(ctx context.Context, queueName string, now time.Time) ([]*Task, error) {
	members, err := popDueScript.Run(ctx, s.client,
		[]string{scheduledKey(queueName)},
		strconv.FormatInt(now.Unix(), 10),
	).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	tasks := make([]*Task, 0, len(members))
	for _, member := range members {
		task, err := unmarshalTask([]byte(member))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *RedisStorage) MarkProcessing(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	return s.client.SAdd(ctx, processingKey(task.QueueName), data).Err()
}

func (s *RedisStorage) UnmarkProcessing(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	// SREM of an absent member is a no-op, which makes Complete idempotent.
	return s.client.SRem(ctx, processingKey(task.QueueName), data).Err()
}

func (s *RedisStorage) PushFailed(ctx context.Context, failed *FailedTask) error {
	data, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("failed to marshal failed task %s: %w", failed.ID, err)
	}
	return s.client.LPush(ctx, failedKey(failed.QueueName), data).Err()
}

func (s *RedisStorage) Counts(ctx context.Context, queueName string) (*Stats, error) {
	readyCmds := make(map[Priority]*redis.IntCmd, len(priorityOrder))

	pipe := s.client.Pipeline()
	for _, p := range priorityOrder {
		readyCmds[p] = pipe.LLen(ctx, readyKey(queueName, p))
	}
	scheduledCmd := pipe.ZCard(ctx, scheduledKey(queueName))
	processingCmd := pipe.SCard(ctx, processingKey(queueName))
	failedCmd := pipe.LLen(ctx, failedKey(queueName))

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	stats := &Stats{
		QueueName:       queueName,
		Ready:           make(map[Priority]int64, len(priorityOrder)),
		ScheduledCount:  scheduledCmd.Val(),
		ProcessingCount: processingCmd.Val(),
		FailedCount:     failedCmd.Val(),
	}
	for p, cmd := range readyCmds {
		stats.Ready[p] = cmd.Val()
	}
	return stats, nil
}

func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func unmarshalTask(data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task record: %w", err)
	}
	return &task, nil
}
