package hooks

import (
	"context"
	"fmt"
	"time"

	"kgcp.evalgo.org/common"
	"kgcp.evalgo.org/triplestore"
)

// TxContext is the staging context a transaction carries through hook
// evaluation: an EvalContext plus the delta graph being staged and a
// metadata bag hooks use to signal rollback.
type TxContext struct {
	*EvalContext
	TxnID          string
	AddedTriples   []triplestore.Triple
	RemovedTriples []triplestore.Triple
}

// ShouldRollback reports whether a REJECT action (or any other hook)
// has asked the embedding transaction to roll back.
func (tc *TxContext) ShouldRollback() (bool, string) {
	if v, ok := tc.Metadata["should_rollback"]; ok {
		if b, ok := v.(bool); ok && b {
			reason, _ := tc.Metadata["rollback_reason"].(string)
			return true, reason
		}
	}
	return false, ""
}

// HookMatch is one (hook_id, matched) pair, the result of
// EvaluateConditions.
type HookMatch struct {
	HookID  string
	Matched bool
}

// Executor runs registered hooks against a transaction's staging
// context, phase by phase: a priority-ordered phase scan that produces
// a HookReceipt per hook.
type Executor struct {
	Registry *Registry
	Store    triplestore.Store
	Log      *common.ContextLogger
}

// NewExecutor wires a hook executor to registry and store.
func NewExecutor(registry *Registry, store triplestore.Store, log *common.ContextLogger) *Executor {
	if log == nil {
		log = common.NewContextLogger(common.NewLogger(common.DefaultLoggerConfig()), nil)
	}
	return &Executor{Registry: registry, Store: store, Log: log}
}

// LoadHooksToGraph materializes every registered hook as RDF triples
// under a `hook:` namespace so SPARQL-backed conditions can reason
// about the registry itself.
func (e *Executor) LoadHooksToGraph(ctx context.Context) error {
	for _, h := range e.Registry.GetAll() {
		subj := "hook:" + h.ID
		if err := e.Store.Add(ctx, triplestore.Triple{Subject: subj, Predicate: "hook:phase", Object: string(h.Phase), ObjectIsLiteral: true}, nil); err != nil {
			return fmt.Errorf("loading hook %q to graph: %w", h.ID, err)
		}
		if err := e.Store.Add(ctx, triplestore.Triple{Subject: subj, Predicate: "hook:action", Object: string(h.Action), ObjectIsLiteral: true}, nil); err != nil {
			return fmt.Errorf("loading hook %q to graph: %w", h.ID, err)
		}
		enabledLiteral := "false"
		if h.Enabled {
			enabledLiteral = "true"
		}
		if err := e.Store.Add(ctx, triplestore.Triple{Subject: subj, Predicate: "hook:enabled", Object: enabledLiteral, ObjectIsLiteral: true}, nil); err != nil {
			return fmt.Errorf("loading hook %q to graph: %w", h.ID, err)
		}
	}
	return nil
}

// EvaluateConditions evaluates every enabled hook in phase against tc
// and returns which ones matched, without applying any action.
func (e *Executor) EvaluateConditions(ctx context.Context, phase Phase, tc *TxContext) ([]HookMatch, error) {
	hooks := e.Registry.GetByPhase(phase)
	matches := make([]HookMatch, 0, len(hooks))
	for _, h := range hooks {
		res, err := h.Condition.Evaluate(ctx, tc.EvalContext)
		if err != nil {
			return matches, fmt.Errorf("hook %q condition evaluation failed: %w", h.ID, err)
		}
		matches = append(matches, HookMatch{HookID: h.ID, Matched: res.Triggered})
	}
	return matches, nil
}

// ExecutePhase runs every enabled hook registered in phase, in priority
// order: evaluate condition, apply action if triggered, append a
// receipt. A REJECT action sets tc.Metadata["should_rollback"] = true
// with "rollback_reason"; the caller (the owning transaction) must
// check TxContext.ShouldRollback after each phase.
func (e *Executor) ExecutePhase(ctx context.Context, phase Phase, tc *TxContext) ([]HookReceipt, error) {
	if tc.Metadata == nil {
		tc.Metadata = make(map[string]any)
	}

	hooks := e.Registry.GetByPhase(phase)
	receipts := make([]HookReceipt, 0, len(hooks))

	for _, h := range hooks {
		start := time.Now()
		receipt := HookReceipt{HookID: h.ID, Phase: phase, Timestamp: start}

		res, err := h.Condition.Evaluate(ctx, tc.EvalContext)
		if err != nil {
			receipt.Error = err.Error()
			receipt.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
			receipts = append(receipts, receipt)
			e.Registry.AddReceipt(receipt)
			continue
		}
		receipt.ConditionMatched = res.Triggered

		if res.Triggered {
			affected, err := e.applyAction(h, tc)
			receipt.ActionTaken = h.Action
			receipt.TriplesAffected = affected
			if err != nil {
				receipt.Error = err.Error()
			}
		}

		receipt.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
		receipts = append(receipts, receipt)
		e.Registry.AddReceipt(receipt)

		e.Log.WithFields(map[string]any{
			"hook_id": h.ID, "phase": phase, "matched": res.Triggered, "action": h.Action,
		}).Debug("hook evaluated")
	}

	return receipts, nil
}

func (e *Executor) applyAction(h *Hook, tc *TxContext) (int, error) {
	switch h.Action {
	case ActionAssert:
		return 0, nil
	case ActionReject:
		reason, _ := h.HandlerData["reason"].(string)
		if reason == "" {
			reason = fmt.Sprintf("hook %q rejected the transaction", h.ID)
		}
		tc.Metadata["should_rollback"] = true
		tc.Metadata["rollback_reason"] = reason
		return 0, nil
	case ActionNotify:
		e.Log.WithFields(map[string]any{"hook_id": h.ID, "handler_data": h.HandlerData}).Info("hook notification")
		return 0, nil
	case ActionTransform:
		return e.applyTransform(h, tc)
	default:
		return 0, fmt.Errorf("unknown action %q", h.Action)
	}
}

// applyTransform mutates tc's staging delta per handler_data. It must
// be idempotent if re-run: adds/removals are deduplicated against the
// existing staged delta rather than blindly appended.
func (e *Executor) applyTransform(h *Hook, tc *TxContext) (int, error) {
	affected := 0

	if rawAdds, ok := h.HandlerData["add_triples"].([]triplestore.Triple); ok {
		for _, t := range rawAdds {
			if !containsTriple(tc.AddedTriples, t) {
				tc.AddedTriples = append(tc.AddedTriples, t)
				affected++
			}
		}
	}
	if rawRemoves, ok := h.HandlerData["remove_triples"].([]triplestore.Triple); ok {
		for _, t := range rawRemoves {
			if !containsTriple(tc.RemovedTriples, t) {
				tc.RemovedTriples = append(tc.RemovedTriples, t)
				affected++
			}
		}
	}
	return affected, nil
}

// RecordProvenance serializes a committed transaction's provenance
// (agent, timestamp, reason, source, activity) as RDF triples under a
// `prov:` namespace and adds them to the store outside tc's staged
// delta, since provenance describes the transaction rather than the
// knowledge graph state it produced. Called from the commit path once
// TxContext.TxnID is known to have committed.
func (e *Executor) RecordProvenance(ctx context.Context, tc *TxContext, agent, reason, source, activity string, at time.Time) error {
	subj := "txn:" + tc.TxnID
	triples := []triplestore.Triple{
		{Subject: subj, Predicate: "prov:agent", Object: agent, ObjectIsLiteral: true},
		{Subject: subj, Predicate: "prov:timestamp", Object: at.UTC().Format(time.RFC3339Nano), ObjectIsLiteral: true},
		{Subject: subj, Predicate: "prov:source", Object: source, ObjectIsLiteral: true},
		{Subject: subj, Predicate: "prov:activity", Object: activity, ObjectIsLiteral: true},
	}
	if reason != "" {
		triples = append(triples, triplestore.Triple{Subject: subj, Predicate: "prov:reason", Object: reason, ObjectIsLiteral: true})
	}
	for _, t := range triples {
		if err := e.Store.Add(ctx, t, nil); err != nil {
			return fmt.Errorf("recording provenance for %q: %w", tc.TxnID, err)
		}
	}
	return nil
}

func containsTriple(triples []triplestore.Triple, t triplestore.Triple) bool {
	for _, existing := range triples {
		if existing == t {
			return true
		}
	}
	return false
}
