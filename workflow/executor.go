package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"kgcp.evalgo.org/common"
	"kgcp.evalgo.org/db"
	"kgcp.evalgo.org/eventstore"
	"kgcp.evalgo.org/hooks"
	"kgcp.evalgo.org/petri"
	"kgcp.evalgo.org/statemanager"
	"kgcp.evalgo.org/triplestore"
	"kgcp.evalgo.org/vectorclock"
)

// ExecutionResult is the uniform result type every pattern in this
// package returns (task id, success, output data, error message).
type ExecutionResult struct {
	TaskID       string
	Success      bool
	OutputData   map[string]any
	ErrorMessage string
}

// TickSummary is the per-tick commit-log record published for external
// replication.
type TickSummary struct {
	TickNumber     uint64
	Timestamp      time.Time
	WorkflowID     string
	EventsAppended []string
	TriplesAdded   int
	TriplesRemoved int
	RulesFired     []string
	DurationMS     float64
	Converged      bool
}

// Executor drives one workflow's marking forward one tick at a time:
// compute enabled transitions, run PRE_TRANSACTION hooks, fire, commit
// the staged triple delta, run POST_TRANSACTION/POST_COMMIT hooks,
// record events, as a net+marking+hooks+events pipeline.
type Executor struct {
	Net        *petri.Net
	Hooks      *hooks.Executor
	Store      triplestore.Store
	Events     *eventstore.Store
	WorkflowID string
	ActorID    string
	Clock      vectorclock.Clock
	Log        *common.ContextLogger

	// Transactions durably records each tick's transaction lifecycle and
	// hook receipts when set. Nil is valid: a purely in-memory executor
	// (as used by most tests) just skips the durable audit trail.
	Transactions *db.TransactionStore

	// Operations tracks in-flight transactions in memory for fast
	// "what's running right now" introspection, separate from
	// Transactions' durable record. Nil is valid.
	Operations *statemanager.Manager

	tickNumber uint64
}

// NewExecutor wires a tick executor to its net, hook engine, triple
// store, and event store.
func NewExecutor(net *petri.Net, hookExec *hooks.Executor, store triplestore.Store, events *eventstore.Store, workflowID, actorID string, log *common.ContextLogger) *Executor {
	if log == nil {
		log = common.NewContextLogger(common.NewLogger(common.DefaultLoggerConfig()), nil)
	}
	return &Executor{
		Net: net, Hooks: hookExec, Store: store, Events: events,
		WorkflowID: workflowID, ActorID: actorID, Clock: vectorclock.Zero(actorID), Log: log,
	}
}

// Tick computes the enabled transition set under marking, selects one
// (deferred choice: first by id, a deterministic but otherwise
// arbitrary tie-break left fully engine-internal), and drives it
// through the full hook lifecycle.
func (e *Executor) Tick(ctx context.Context, marking petri.Marking, vars map[string]any) (petri.Marking, TickSummary, ExecutionResult, error) {
	start := time.Now()
	e.tickNumber++
	summary := TickSummary{TickNumber: e.tickNumber, Timestamp: start, WorkflowID: e.WorkflowID}

	if _, err := e.appendEvent(eventstore.EventTickStart, map[string]any{"tick": e.tickNumber}); err != nil {
		return marking, summary, ExecutionResult{}, fmt.Errorf("tick_start: %w", err)
	}

	enabled := e.Net.EnabledTransitions(marking)
	if len(enabled) == 0 {
		summary.Converged = true
		summary.DurationMS = elapsedMS(start)
		return marking, summary, ExecutionResult{Success: true, OutputData: map[string]any{"converged": true}}, nil
	}
	sort.Strings(enabled)
	chosen := enabled[0]

	tc := &hooks.TxContext{EvalContext: &hooks.EvalContext{Store: e.Store, Variables: vars}, TxnID: uuid.New().String()}

	if e.Transactions != nil {
		reason := fmt.Sprintf("tick %d fired transition %q", e.tickNumber, chosen)
		if _, err := e.Transactions.Open(ctx, e.WorkflowID, tc.TxnID, e.ActorID, reason); err != nil {
			return marking, summary, ExecutionResult{}, fmt.Errorf("opening transaction: %w", err)
		}
	}
	if e.Operations != nil {
		e.Operations.StartOperation(tc.TxnID, "tick", map[string]interface{}{
			"workflow_id": e.WorkflowID, "transition": chosen,
		})
	}

	preReceipts, err := e.Hooks.ExecutePhase(ctx, hooks.PhasePreTransaction, tc)
	if err != nil {
		return marking, summary, ExecutionResult{}, fmt.Errorf("pre_transaction hooks: %w", err)
	}
	summary.RulesFired = append(summary.RulesFired, matchedHookIDs(preReceipts)...)
	e.recordReceipts(ctx, tc.TxnID, preReceipts)

	if rollback, reason := tc.ShouldRollback(); rollback {
		if e.Transactions != nil {
			if err := e.Transactions.Rollback(ctx, tc.TxnID, reason); err != nil {
				e.Log.WithError(err).Warn("failed to record transaction rollback")
			}
		}
		if e.Operations != nil {
			e.Operations.CompleteOperation(tc.TxnID, fmt.Errorf("rolled back: %s", reason))
		}
		if _, evErr := e.appendEvent(eventstore.EventTickEnd, map[string]any{
			"tick": e.tickNumber, "transition": chosen, "rejected": true, "reason": reason,
		}); evErr != nil {
			return marking, summary, ExecutionResult{}, fmt.Errorf("tick_end: %w", evErr)
		}
		summary.DurationMS = elapsedMS(start)
		return marking, summary, ExecutionResult{Success: false, ErrorMessage: reason}, nil
	}

	next, err := e.Net.Fire(chosen, marking)
	if err != nil {
		return marking, summary, ExecutionResult{}, fmt.Errorf("firing %q: %w", chosen, err)
	}

	for _, t := range tc.AddedTriples {
		if err := e.Store.Add(ctx, t, nil); err != nil {
			return marking, summary, ExecutionResult{}, fmt.Errorf("committing added triple: %w", err)
		}
	}
	for _, t := range tc.RemovedTriples {
		if err := e.Store.Remove(ctx, t, nil); err != nil {
			return marking, summary, ExecutionResult{}, fmt.Errorf("committing removed triple: %w", err)
		}
	}
	summary.TriplesAdded = len(tc.AddedTriples)
	summary.TriplesRemoved = len(tc.RemovedTriples)

	postReceipts, err := e.Hooks.ExecutePhase(ctx, hooks.PhasePostTransaction, tc)
	if err != nil {
		return next, summary, ExecutionResult{}, fmt.Errorf("post_transaction hooks: %w", err)
	}
	summary.RulesFired = append(summary.RulesFired, matchedHookIDs(postReceipts)...)
	e.recordReceipts(ctx, tc.TxnID, postReceipts)

	reason := fmt.Sprintf("tick %d fired transition %q", e.tickNumber, chosen)
	if e.Transactions != nil {
		if err := e.Transactions.Commit(ctx, tc.TxnID); err != nil {
			return next, summary, ExecutionResult{}, fmt.Errorf("committing transaction: %w", err)
		}
	}
	if err := e.Hooks.RecordProvenance(ctx, tc, e.ActorID, reason, "workflow.Executor", chosen, start); err != nil {
		e.Log.WithError(err).Warn("failed to record transaction provenance")
	}
	if e.Operations != nil {
		e.Operations.CompleteOperation(tc.TxnID, nil)
	}

	commitReceipts, err := e.Hooks.ExecutePhase(ctx, hooks.PhasePostCommit, tc)
	if err != nil {
		return next, summary, ExecutionResult{}, fmt.Errorf("post_commit hooks: %w", err)
	}
	summary.RulesFired = append(summary.RulesFired, matchedHookIDs(commitReceipts)...)
	e.recordReceipts(ctx, tc.TxnID, commitReceipts)

	var eventIDs []string
	statusEv, err := e.appendEvent(eventstore.EventStatusChange, map[string]any{"tick": e.tickNumber, "transition": chosen})
	if err != nil {
		return next, summary, ExecutionResult{}, fmt.Errorf("status_change: %w", err)
	}
	eventIDs = append(eventIDs, statusEv.EventID)

	if len(e.Net.Postset(chosen)) > 1 {
		ev, err := e.appendEvent(eventstore.EventSplit, map[string]any{"tick": e.tickNumber, "transition": chosen, "branches": e.Net.Postset(chosen)})
		if err != nil {
			return next, summary, ExecutionResult{}, fmt.Errorf("split: %w", err)
		}
		eventIDs = append(eventIDs, ev.EventID)
	}
	if len(e.Net.Preset(chosen)) > 1 {
		ev, err := e.appendEvent(eventstore.EventJoin, map[string]any{"tick": e.tickNumber, "transition": chosen, "inputs": e.Net.Preset(chosen)})
		if err != nil {
			return next, summary, ExecutionResult{}, fmt.Errorf("join: %w", err)
		}
		eventIDs = append(eventIDs, ev.EventID)
	}

	endEv, err := e.appendEvent(eventstore.EventTickEnd, map[string]any{"tick": e.tickNumber, "transition": chosen})
	if err != nil {
		return next, summary, ExecutionResult{}, fmt.Errorf("tick_end: %w", err)
	}
	eventIDs = append(eventIDs, endEv.EventID)

	summary.EventsAppended = eventIDs
	summary.DurationMS = elapsedMS(start)

	e.Log.WithFields(map[string]any{
		"workflow_id": e.WorkflowID, "tick": e.tickNumber, "transition": chosen,
		"triples_added": summary.TriplesAdded, "triples_removed": summary.TriplesRemoved,
	}).Debug("tick completed")

	return next, summary, ExecutionResult{TaskID: chosen, Success: true, OutputData: map[string]any{"transition": chosen}}, nil
}

// Cancel applies a cancellation region: resets the named nodes' tokens,
// terminates any in-flight MI instances caught inside the region, and
// records a CANCELLATION event.
func (e *Executor) Cancel(region CancellationRegion, marking petri.Marking, instances []MIInstance) (petri.Marking, []MIInstance, error) {
	next := region.Cancel(marking)
	remaining := region.CancelInstances(instances)
	if _, err := e.appendEvent(eventstore.EventCancellation, map[string]any{
		"trigger_task": region.TriggerTask, "nodes": region.NodeIDs,
	}); err != nil {
		return marking, instances, fmt.Errorf("cancellation: %w", err)
	}
	return next, remaining, nil
}

func (e *Executor) appendEvent(eventType eventstore.EventType, payload map[string]any) (eventstore.Event, error) {
	e.Clock = e.Clock.Increment(e.ActorID)
	ev := eventstore.Event{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		Timestamp:    time.Now(),
		TickNumber:   e.tickNumber,
		WorkflowID:   e.WorkflowID,
		Payload:      payload,
		VectorClock:  e.Clock,
		PreviousHash: e.Events.TailHash(e.WorkflowID),
	}
	ev.EventHash = eventstore.ComputeHash(ev)
	if _, err := e.Events.Append(ev); err != nil {
		return eventstore.Event{}, err
	}
	return ev, nil
}

// recordReceipts durably audits receipts against txnID when a
// TransactionStore is configured. A write failure here is logged, not
// propagated: losing an audit row must never abort an otherwise sound tick.
func (e *Executor) recordReceipts(ctx context.Context, txnID string, receipts []hooks.HookReceipt) {
	if e.Transactions == nil {
		return
	}
	for _, r := range receipts {
		if err := e.Transactions.RecordReceipt(ctx, txnID, r); err != nil {
			e.Log.WithError(err).WithFields(map[string]any{"txn_id": txnID, "hook_id": r.HookID}).
				Warn("failed to record hook receipt")
		}
	}
}

func matchedHookIDs(receipts []hooks.HookReceipt) []string {
	var out []string
	for _, r := range receipts {
		if r.ConditionMatched {
			out = append(out, r.HookID)
		}
	}
	return out
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
