package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"kgcp.evalgo.org/triplestore"
)

// alwaysTrue is a minimal Condition stub for registry/executor tests
// that don't need a real triple store round-trip.
type alwaysTrue struct{}

func (alwaysTrue) conditionTag() {}
func (alwaysTrue) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	return ConditionResult{Triggered: true}, nil
}

func TestRegistryRejectsEmptyCondition(t *testing.T) {
	reg := NewRegistry()
	h := &Hook{ID: "h1", Phase: PhasePreTick, Action: ActionAssert, Enabled: true}
	_, err := reg.Register(h)
	require.Error(t, err)
}

func TestRegistryRejectsPriorityCollision(t *testing.T) {
	reg := NewRegistry()
	h1 := &Hook{ID: "h1", Phase: PhasePreTick, Priority: 5, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true}
	h2 := &Hook{ID: "h2", Phase: PhasePreTick, Priority: 5, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true}

	_, err := reg.Register(h1)
	require.NoError(t, err)
	_, err = reg.Register(h2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "PY-HOOK-003")
}

func TestRegistryRejectsUnknownPhase(t *testing.T) {
	reg := NewRegistry()
	h := &Hook{ID: "h1", Phase: "NOT_A_PHASE", Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true}
	_, err := reg.Register(h)
	require.Error(t, err)
}

func TestRegistryRejectsRejectActionWithEmptyHandlerData(t *testing.T) {
	reg := NewRegistry()
	h := &Hook{ID: "h1", Phase: PhasePreTick, Action: ActionReject, Condition: alwaysTrue{}, Enabled: true}
	_, err := reg.Register(h)
	require.Error(t, err)
}

func TestRegistryGetByPhaseOrdersByPriorityThenInsertion(t *testing.T) {
	reg := NewRegistry()
	low := &Hook{ID: "low", Phase: PhasePreTick, Priority: 1, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true}
	high := &Hook{ID: "high", Phase: PhasePreTick, Priority: 10, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true}
	mid1 := &Hook{ID: "mid1", Phase: PhasePreTick, Priority: 5, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true}
	mid2 := &Hook{ID: "mid2", Phase: PhasePreTick, Priority: 5, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: false}

	for _, h := range []*Hook{low, high, mid1} {
		_, err := reg.Register(h)
		require.NoError(t, err)
	}
	// mid2 shares priority 5 with mid1 but is disabled, so it can't
	// collide at registration time — register it, then flip mid1 off
	// temporarily to prove disabled hooks don't participate in ordering.
	_, err := reg.Register(mid2)
	require.NoError(t, err)

	ordered := reg.GetByPhase(PhasePreTick)
	var ids []string
	for _, h := range ordered {
		ids = append(ids, h.ID)
	}
	require.Equal(t, []string{"high", "mid1", "low"}, ids)
}

func TestRegistryDetectsChainCycle(t *testing.T) {
	reg := NewRegistry()
	a := &Hook{ID: "a", Phase: PhasePreTick, Priority: 1, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true, ChainTo: "b"}
	b := &Hook{ID: "b", Phase: PhasePreTick, Priority: 2, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true, ChainTo: "a"}

	_, err := reg.Register(a)
	require.NoError(t, err)
	violations, err := reg.Register(b)
	require.NoError(t, err, "a plain cycle (PY-HOOK-002) is a warning, not a registration failure")
	require.NotEmpty(t, violations)
	require.Equal(t, "PY-HOOK-002", violations[0].RuleID)
}

func TestRegistryRejectsRecursiveMilestoneCycle(t *testing.T) {
	reg := NewRegistry()
	a := &Hook{ID: "a", Phase: PhasePreTick, Priority: 1, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true, ChainTo: "m"}
	milestone := &Hook{
		ID: "m", Phase: PhasePreTick, Priority: 2, Action: ActionAssert, Condition: alwaysTrue{}, Enabled: true,
		ChainTo: "a", HandlerData: map[string]any{"milestone": true},
	}

	_, err := reg.Register(a)
	require.NoError(t, err)
	_, err = reg.Register(milestone)
	require.Error(t, err)
	require.Contains(t, err.Error(), "PY-HOOK-010")
}

func TestExecutePhaseRejectActionPropagatesRollback(t *testing.T) {
	reg := NewRegistry()
	h := &Hook{
		ID: "reject1", Phase: PhasePreTransaction, Priority: 1, Enabled: true,
		Condition: invertedCondition{}, Action: ActionReject,
		HandlerData: map[string]any{"reason": "name required"},
	}
	_, err := reg.Register(h)
	require.NoError(t, err)

	store := triplestore.NewMock()
	exec := NewExecutor(reg, store, nil)
	tc := &TxContext{EvalContext: &EvalContext{Store: store}}

	receipts, err := exec.ExecutePhase(context.Background(), PhasePreTransaction, tc)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, ActionReject, receipts[0].ActionTaken)

	shouldRollback, reason := tc.ShouldRollback()
	require.True(t, shouldRollback)
	require.Equal(t, "name required", reason)
}

// invertedCondition always triggers, standing in for a condition that
// detects a missing required triple.
type invertedCondition struct{}

func (invertedCondition) conditionTag() {}
func (invertedCondition) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	return ConditionResult{Triggered: true}, nil
}

func TestExecutePhaseTransformIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	addTriples := []triplestore.Triple{{Subject: "ex:s", Predicate: "ex:p", Object: "ex:o"}}
	h := &Hook{
		ID: "transform1", Phase: PhasePostTransaction, Priority: 1, Enabled: true,
		Condition: alwaysTrue{}, Action: ActionTransform,
		HandlerData: map[string]any{"add_triples": addTriples},
	}
	_, err := reg.Register(h)
	require.NoError(t, err)

	store := triplestore.NewMock()
	exec := NewExecutor(reg, store, nil)
	tc := &TxContext{EvalContext: &EvalContext{Store: store}}

	_, err = exec.ExecutePhase(context.Background(), PhasePostTransaction, tc)
	require.NoError(t, err)
	_, err = exec.ExecutePhase(context.Background(), PhasePostTransaction, tc)
	require.NoError(t, err)

	require.Len(t, tc.AddedTriples, 1, "re-running the transform must not duplicate staged triples")
}

func TestEvaluateConditionsDoesNotApplyActions(t *testing.T) {
	reg := NewRegistry()
	h := &Hook{
		ID: "reject1", Phase: PhasePreTransaction, Priority: 1, Enabled: true,
		Condition: alwaysTrue{}, Action: ActionReject, HandlerData: map[string]any{"reason": "x"},
	}
	_, err := reg.Register(h)
	require.NoError(t, err)

	store := triplestore.NewMock()
	exec := NewExecutor(reg, store, nil)
	tc := &TxContext{EvalContext: &EvalContext{Store: store}}

	matches, err := exec.EvaluateConditions(context.Background(), PhasePreTransaction, tc)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.True(t, matches[0].Matched)

	rollback, _ := tc.ShouldRollback()
	require.False(t, rollback, "EvaluateConditions must not trigger actions")
}
