// Package worker schedules workflow ticks across queue classes. A
// single workflow's tick is single-threaded cooperative, but distinct
// workflows may progress in parallel — this pool gives each queue
// class its own worker count so "sequential" work gets one lane while
// "parallel"/"priority" work fans out across several.
package worker

import (
	"context"
	"fmt"
	"time"

	"kgcp.evalgo.org/common"
)

// Queue defines the interface for tick-request queue operations.
type Queue interface {
	Dequeue(queueName string, timeout time.Duration) (interface{}, error)
	Enqueue(job interface{}) error
	MarkProcessing(jobID string, deadline time.Time) error
	CompleteJob(jobID string) error
	FailJob(jobID string, requeue bool, queueName string, retryCount int) error
}

// JobProcessor processes one dequeued job (a workflow tick request).
type JobProcessor interface {
	Process(ctx context.Context, job interface{}) error
	GetJobID(job interface{}) string
	GetTimeout(job interface{}) time.Duration
}

// Pool manages a pool of workers that process jobs from queues.
type Pool struct {
	workers   []*Worker
	queue     Queue
	processor JobProcessor
	log       *common.ContextLogger
	stopChan  chan struct{}
}

// Worker represents a single worker that processes jobs from a queue.
type Worker struct {
	id        int
	queueName string
	queue     Queue
	processor JobProcessor
	log       *common.ContextLogger
	stopChan  chan struct{}
}

// Config configures the worker pool, one worker count per queue class.
type Config struct {
	Queues map[string]int // queue name -> number of workers
}

// DefaultConfig keeps one lane strictly sequential (to demonstrate
// single-threaded cooperative execution end to end), several lanes for
// ordinary concurrent workflow progress, and a small priority lane for
// cancellation-region and timeout follow-up ticks that must not queue
// behind bulk work.
func DefaultConfig() Config {
	return Config{
		Queues: map[string]int{
			"sequential": 1,
			"parallel":   5,
			"priority":   2,
		},
	}
}

// NewPool creates a new worker pool.
func NewPool(queue Queue, processor JobProcessor, config Config, log *common.ContextLogger) *Pool {
	if log == nil {
		log = common.NewContextLogger(common.NewLogger(common.DefaultLoggerConfig()), nil)
	}

	pool := &Pool{
		workers:   make([]*Worker, 0),
		queue:     queue,
		processor: processor,
		log:       log,
		stopChan:  make(chan struct{}),
	}

	for queueName, workerCount := range config.Queues {
		for i := 0; i < workerCount; i++ {
			pool.workers = append(pool.workers, &Worker{
				id:        i,
				queueName: queueName,
				queue:     queue,
				processor: processor,
				log:       log,
				stopChan:  make(chan struct{}),
			})
		}
	}

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start() {
	p.log.Infof("starting worker pool with %d workers", len(p.workers))

	for _, worker := range p.workers {
		go worker.Start()
		p.log.WithFields(map[string]any{"worker_id": worker.id, "queue": worker.queueName}).Info("worker started")
	}
}

// Stop stops all workers in the pool.
func (p *Pool) Stop() {
	p.log.Info("stopping worker pool")
	close(p.stopChan)

	for _, worker := range p.workers {
		close(worker.stopChan)
	}

	p.log.Info("worker pool stopped")
}

// Start runs a worker's processing loop until its stopChan closes.
func (w *Worker) Start() {
	w.log.WithFields(map[string]any{"worker_id": w.id, "queue": w.queueName}).Debug("worker loop entered")

	for {
		select {
		case <-w.stopChan:
			w.log.WithFields(map[string]any{"worker_id": w.id, "queue": w.queueName}).Debug("worker loop exited")
			return
		default:
			if err := w.processNext(); err != nil {
				w.log.WithError(err).WithFields(map[string]any{"worker_id": w.id, "queue": w.queueName}).Warn("worker tick failed")
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// processNext fetches and processes the next job from the queue.
func (w *Worker) processNext() error {
	job, err := w.queue.Dequeue(w.queueName, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to dequeue: %w", err)
	}

	if job == nil {
		return nil
	}

	jobID := w.processor.GetJobID(job)
	timeout := w.processor.GetTimeout(job)
	deadline := time.Now().Add(timeout)

	if err := w.queue.MarkProcessing(jobID, deadline); err != nil {
		w.log.WithError(err).WithFields(map[string]any{"job_id": jobID}).Warn("failed to mark job processing, re-enqueueing")
		w.queue.Enqueue(job)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := w.processor.Process(ctx, job); err != nil {
		w.log.WithError(err).WithFields(map[string]any{"job_id": jobID, "queue": w.queueName}).Warn("job failed")
		if failErr := w.queue.FailJob(jobID, false, w.queueName, 0); failErr != nil {
			w.log.WithError(failErr).WithFields(map[string]any{"job_id": jobID}).Warn("failed to record job failure")
		}
		return nil
	}

	if err := w.queue.CompleteJob(jobID); err != nil {
		w.log.WithError(err).WithFields(map[string]any{"job_id": jobID}).Warn("failed to mark job complete")
	}

	return nil
}
