package worker

import (
	"context"
	"fmt"
	"time"

	"kgcp.evalgo.org/common"
	"kgcp.evalgo.org/petri"
	"kgcp.evalgo.org/workflow"
)

// TickRequest is one dequeued unit of work: advance workflowID one
// tick from marking, with vars bound for guard/condition evaluation.
type TickRequest struct {
	WorkflowID string
	QueueName  string
	Marking    petri.Marking
	Vars       map[string]any
	Timeout    time.Duration
}

// ExecutorLookup resolves a workflow ID to the Executor driving it.
// One Executor per active workflow: the single logical actor that
// owns that workflow's marking.
type ExecutorLookup interface {
	Executor(workflowID string) (*workflow.Executor, error)
}

// TickProcessor implements JobProcessor by delegating each job to
// workflow.Executor.Tick and re-enqueueing the workflow for its next
// tick whenever the net has not yet converged. This is what makes a
// "job" in this package a workflow, not a one-shot task: ticking one
// workflow to completion costs one re-enqueue per tick, so a worker is
// never pinned to a single workflow for longer than one tick, leaving
// room for other workflows queued behind it.
type TickProcessor struct {
	Executors ExecutorLookup
	Queue     Queue
	Log       *common.ContextLogger
}

// NewTickProcessor builds a TickProcessor.
func NewTickProcessor(executors ExecutorLookup, queue Queue, log *common.ContextLogger) *TickProcessor {
	if log == nil {
		log = common.NewContextLogger(common.NewLogger(common.DefaultLoggerConfig()), nil)
	}
	return &TickProcessor{Executors: executors, Queue: queue, Log: log}
}

// GetJobID returns the workflow ID of the TickRequest.
func (p *TickProcessor) GetJobID(job interface{}) string {
	req, ok := job.(*TickRequest)
	if !ok {
		return ""
	}
	return req.WorkflowID
}

// GetTimeout returns the TickRequest's configured timeout, defaulting
// to 30s to bound a single tick's suspension points.
func (p *TickProcessor) GetTimeout(job interface{}) time.Duration {
	req, ok := job.(*TickRequest)
	if !ok || req.Timeout <= 0 {
		return 30 * time.Second
	}
	return req.Timeout
}

// Process runs one tick of the requested workflow and, if the net has
// not converged, enqueues the resulting marking as the next tick's
// request on the same queue class.
func (p *TickProcessor) Process(ctx context.Context, job interface{}) error {
	req, ok := job.(*TickRequest)
	if !ok {
		return fmt.Errorf("worker: job is not a *TickRequest")
	}

	exec, err := p.Executors.Executor(req.WorkflowID)
	if err != nil {
		return fmt.Errorf("worker: resolving executor for workflow %s: %w", req.WorkflowID, err)
	}

	nextMarking, summary, result, err := exec.Tick(ctx, req.Marking, req.Vars)
	if err != nil {
		return fmt.Errorf("worker: tick %d of workflow %s: %w", summary.TickNumber, req.WorkflowID, err)
	}

	p.Log.WithFields(map[string]any{
		"workflow_id": req.WorkflowID,
		"tick_number": summary.TickNumber,
		"converged":   summary.Converged,
		"success":     result.Success,
	}).Debug("workflow tick processed")

	if !summary.Converged && p.Queue != nil {
		if err := p.Queue.Enqueue(&TickRequest{
			WorkflowID: req.WorkflowID,
			QueueName:  req.QueueName,
			Marking:    nextMarking,
			Vars:       req.Vars,
			Timeout:    req.Timeout,
		}); err != nil {
			return fmt.Errorf("worker: re-enqueueing workflow %s: %w", req.WorkflowID, err)
		}
	}

	return nil
}
