// Package redis provides a Redis-backed implementation of worker.Queue:
// distributed tick-request queueing with blocking dequeue and a
// processing set for in-flight deadline tracking.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"kgcp.evalgo.org/petri"
	"kgcp.evalgo.org/worker"
)

// Queue handles workflow tick-request queueing using Redis.
type Queue struct {
	client *redis.Client
	ctx    context.Context
	prefix string // key prefix for queue keys, e.g. "kgcp:"
}

// envelope is the wire shape of a worker.TickRequest stored in Redis.
// worker.TickRequest itself carries no JSON tags since it only crosses
// process boundaries through this envelope.
type envelope struct {
	WorkflowID string         `json:"workflowID"`
	QueueName  string         `json:"queueName"`
	Marking    petri.Marking  `json:"marking"`
	Vars       map[string]any `json:"vars"`
	TimeoutMS  int64          `json:"timeoutMs"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
	RetryCount int            `json:"retryCount"`
}

func toEnvelope(req *worker.TickRequest, retryCount int) envelope {
	return envelope{
		WorkflowID: req.WorkflowID,
		QueueName:  req.QueueName,
		Marking:    req.Marking,
		Vars:       req.Vars,
		TimeoutMS:  req.Timeout.Milliseconds(),
		EnqueuedAt: time.Now(),
		RetryCount: retryCount,
	}
}

func (e envelope) toTickRequest() *worker.TickRequest {
	return &worker.TickRequest{
		WorkflowID: e.WorkflowID,
		QueueName:  e.QueueName,
		Marking:    e.Marking,
		Vars:       e.Vars,
		Timeout:    time.Duration(e.TimeoutMS) * time.Millisecond,
	}
}

// Config configures the Redis queue.
type Config struct {
	RedisURL  string // defaults to KGCP_REDIS_URL or redis://localhost:6379/0
	KeyPrefix string // defaults to "kgcp:"
}

// NewQueue creates a new Redis-backed worker.Queue.
func NewQueue(ctx context.Context, config Config) (*Queue, error) {
	redisURL := config.RedisURL
	if redisURL == "" {
		redisURL = os.Getenv("KGCP_REDIS_URL")
	}
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "kgcp:"
	}

	return &Queue{client: client, ctx: ctx, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) queueKey(queueName string) string {
	return fmt.Sprintf("%s%s", q.prefix, queueName)
}

// Enqueue implements worker.Queue: job must be a *worker.TickRequest.
func (q *Queue) Enqueue(job interface{}) error {
	req, ok := job.(*worker.TickRequest)
	if !ok {
		return fmt.Errorf("redis queue: job is not a *worker.TickRequest")
	}

	data, err := json.Marshal(toEnvelope(req, 0))
	if err != nil {
		return fmt.Errorf("failed to marshal tick request: %w", err)
	}

	return q.client.RPush(q.ctx, q.queueKey(req.QueueName), string(data)).Err()
}

// Dequeue implements worker.Queue: blocks up to timeout, returns
// (nil, nil) on timeout with no job available.
func (q *Queue) Dequeue(queueName string, timeout time.Duration) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := q.client.BLPop(ctx, timeout, q.queueKey(queueName)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		// The read deadline follows ctx, which expires together with the
		// blocking wait, so an empty queue can surface as a timeout error.
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tick request: %w", err)
	}

	return env.toTickRequest(), nil
}

// MarkProcessing adds a workflow ID to the processing set with a deadline.
func (q *Queue) MarkProcessing(workflowID string, deadline time.Time) error {
	return q.client.ZAdd(q.ctx, q.prefix+"processing", redis.Z{
		Score:  float64(deadline.Unix()),
		Member: workflowID,
	}).Err()
}

// CompleteJob removes a workflow ID from the processing set.
func (q *Queue) CompleteJob(workflowID string) error {
	return q.client.ZRem(q.ctx, q.prefix+"processing", workflowID).Err()
}

// FailJob clears workflowID's processing marker. It does not attempt
// to reconstruct and re-enqueue a TickRequest: the worker.Queue
// interface gives FailJob only the ID, queue name, and retry count,
// not the marking/vars a tick needs to resume correctly, so blind
// reconstruction would silently reset workflow state. Callers that
// want a retry should Enqueue a fresh TickRequest with the last known
// marking themselves.
func (q *Queue) FailJob(workflowID string, requeue bool, queueName string, retryCount int) error {
	return q.CompleteJob(workflowID)
}

// GetQueueDepth returns the number of pending tick requests in a queue.
func (q *Queue) GetQueueDepth(queueName string) (int, error) {
	depth, err := q.client.LLen(q.ctx, q.queueKey(queueName)).Result()
	if err != nil {
		return 0, err
	}
	return int(depth), nil
}

// IsProcessing reports whether workflowID currently holds a processing marker.
func (q *Queue) IsProcessing(workflowID string) (bool, error) {
	score, err := q.client.ZScore(q.ctx, q.prefix+"processing", workflowID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return score > 0, nil
}

// WaitForJobCompletion polls until workflowID leaves the processing set
// and checkStatus reports a terminal status, or timeout elapses.
func (q *Queue) WaitForJobCompletion(workflowID string, timeout time.Duration, checkStatus func(string) (string, error)) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		inProcessing, err := q.IsProcessing(workflowID)
		if err != nil {
			return fmt.Errorf("failed to check processing status: %w", err)
		}

		if !inProcessing {
			status, err := checkStatus(workflowID)
			if err != nil {
				return fmt.Errorf("failed to get workflow status: %w", err)
			}
			switch status {
			case "converged":
				return nil
			case "failed":
				return fmt.Errorf("workflow failed")
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for tick completion")
		}
	}
	return nil
}
