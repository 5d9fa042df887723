// Package taskqueue is a small Redis-backed queue for work that must happen
// outside a database transaction, such as sending mail.
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

var ErrTaskNotFound = errors.New("task not found")

// Task is a unit of background work stored in Redis.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Status    TaskStatus      `json:"status"`
	Error     string          `json:"error,omitempty"`
	DedupKey  string          `json:"dedup_key,omitempty"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the task payload into v.
func (t *Task) Decode(v interface{}) error {
	return json.Unmarshal(t.Payload, v)
}

func (t *Task) finished() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

const (
	keyPrefix   = "gmg:task:"
	keyIndex    = "gmg:tasks:index"    // sorted set: score=created_at, member=task_id
	keyDedupSet = "gmg:tasks:dedup:"   // hash per type: dedup_key -> task_id
	keyPending  = "gmg:tasks:pending:" // list per type, oldest at the tail
	taskTTL     = 7 * 24 * time.Hour
)

// Service manages the Redis-backed task queue.
type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

func (s *Service) taskKey(id string) string { return keyPrefix + id }

// Enqueue creates a new task. A non-empty dedupKey returns the unfinished task
// already queued under it instead of adding another.
func (s *Service) Enqueue(ctx context.Context, taskType string, payload interface{}, dedupKey string) (*Task, error) {
	if dedupKey != "" {
		existing, err := s.rdb.HGet(ctx, keyDedupSet+taskType, dedupKey).Result()
		if err == nil && existing != "" {
			task, err := s.GetByID(ctx, existing)
			if err != nil {
				return nil, err
			}
			if task != nil && !task.finished() {
				return task, nil
			}
		}
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	task := &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Payload:   payloadBytes,
		Status:    TaskPending,
		DedupKey:  dedupKey,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.taskKey(task.ID), data, taskTTL)
	pipe.ZAdd(ctx, keyIndex, redis.Z{
		Score:  float64(task.CreatedAt.UnixMilli()),
		Member: task.ID,
	})
	pipe.LPush(ctx, keyPending+taskType, task.ID)
	if dedupKey != "" {
		pipe.HSet(ctx, keyDedupSet+taskType, dedupKey, task.ID)
		pipe.Expire(ctx, keyDedupSet+taskType, taskTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// GetByID retrieves a task by its ID, nil if it expired or never existed.
func (s *Service) GetByID(ctx context.Context, id string) (*Task, error) {
	data, err := s.rdb.Get(ctx, s.taskKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Claim takes the oldest pending task of taskType and marks it running. It
// returns nil when the queue is empty.
func (s *Service) Claim(ctx context.Context, taskType string) (*Task, error) {
	for {
		id, err := s.rdb.RPop(ctx, keyPending+taskType).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		task, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if task == nil || task.Status != TaskPending {
			continue
		}
		task.Status = TaskRunning
		task.Attempts++
		task.UpdatedAt = time.Now()
		if err := s.save(ctx, task); err != nil {
			return nil, err
		}
		return task, nil
	}
}

// Complete marks a claimed task done.
func (s *Service) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, TaskCompleted, "")
}

// Fail marks a claimed task failed. Failed tasks are not retried.
func (s *Service) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(ctx, id, TaskFailed, msg)
}

func (s *Service) finish(ctx context.Context, id string, status TaskStatus, errMsg string) error {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	task.Status = status
	task.Error = errMsg
	task.UpdatedAt = time.Now()
	if task.DedupKey != "" {
		s.rdb.HDel(ctx, keyDedupSet+task.Type, task.DedupKey)
	}
	return s.save(ctx, task)
}

func (s *Service) save(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.taskKey(task.ID), data, taskTTL).Err()
}

// Pending returns how many tasks of taskType wait to be claimed.
func (s *Service) Pending(ctx context.Context, taskType string) (int64, error) {
	return s.rdb.LLen(ctx, keyPending+taskType).Result()
}

// Purge removes finished tasks created before the cutoff and returns how
// many were dropped.
func (s *Service) Purge(ctx context.Context, before time.Time) (int, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, keyIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", before.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, err
	}

	pipe := s.rdb.TxPipeline()
	purged := 0
	for _, id := range ids {
		task, err := s.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		if task == nil {
			pipe.ZRem(ctx, keyIndex, id)
			continue
		}
		if !task.finished() {
			continue
		}
		pipe.Del(ctx, s.taskKey(id))
		pipe.ZRem(ctx, keyIndex, id)
		purged++
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return purged, nil
}
