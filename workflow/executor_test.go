package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"kgcp.evalgo.org/eventstore"
	"kgcp.evalgo.org/hooks"
	"kgcp.evalgo.org/petri"
	"kgcp.evalgo.org/statemanager"
	"kgcp.evalgo.org/triplestore"
)

func simpleSequenceNet() *petri.Net {
	n := petri.NewNet()
	n.AddPlace(petri.Place{ID: "p:start", IsSource: true})
	n.AddPlace(petri.Place{ID: "p:end", IsSink: true})
	n.AddTransition(petri.Transition{ID: "t:work"})
	_ = n.AddArc(petri.Arc{Source: "p:start", Target: "t:work"})
	_ = n.AddArc(petri.Arc{Source: "t:work", Target: "p:end"})
	return n
}

func newTestExecutor(t *testing.T, registry *hooks.Registry) (*Executor, triplestore.Store, *eventstore.Store) {
	store := triplestore.NewMock()
	events := eventstore.NewStore(eventstore.CompactionPolicy{MaxHotEvents: 1000, MaxWarmEvents: 1000})
	hookExec := hooks.NewExecutor(registry, store, nil)
	exec := NewExecutor(simpleSequenceNet(), hookExec, store, events, "wf-1", "actor-1", nil)
	return exec, store, events
}

func TestTickFiresEnabledTransitionAndAdvancesMarking(t *testing.T) {
	exec, _, _ := newTestExecutor(t, hooks.NewRegistry())
	marking := petri.Marking{"p:start": 1}

	next, summary, result, err := exec.Tick(context.Background(), marking, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "t:work", result.TaskID)
	require.Equal(t, uint64(0), next.Get("p:start"))
	require.Equal(t, uint64(1), next.Get("p:end"))
	require.NotEmpty(t, summary.EventsAppended)
	require.False(t, summary.Converged)
}

func TestTickConvergesWhenNoTransitionIsEnabled(t *testing.T) {
	exec, _, _ := newTestExecutor(t, hooks.NewRegistry())
	marking := petri.Marking{}

	next, summary, result, err := exec.Tick(context.Background(), marking, nil)
	require.NoError(t, err)
	require.True(t, summary.Converged)
	require.True(t, result.Success)
	require.Equal(t, marking, next)
}

func TestTickAbortsCommitWhenAHookRejects(t *testing.T) {
	reg := hooks.NewRegistry()
	h := &hooks.Hook{
		ID: "reject-always", Phase: hooks.PhasePreTransaction, Priority: 1, Enabled: true,
		Condition:   hooks.ThresholdCondition{Variable: "always", Operator: hooks.OpGE, Value: 0},
		Action:      hooks.ActionReject,
		HandlerData: map[string]any{"reason": "policy forbids this transition"},
	}
	_, err := reg.Register(h)
	require.NoError(t, err)

	exec, _, _ := newTestExecutor(t, reg)
	marking := petri.Marking{"p:start": 1}
	vars := map[string]any{"always": 1}

	next, summary, result, err := exec.Tick(context.Background(), marking, vars)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "policy forbids this transition", result.ErrorMessage)
	require.Equal(t, marking, next, "a rejected transaction must not mutate the marking")
	require.False(t, summary.Converged)
}

func TestTickTracksInFlightTransactionInOperationsManager(t *testing.T) {
	exec, _, _ := newTestExecutor(t, hooks.NewRegistry())
	ops := statemanager.New(statemanager.Config{ServiceName: "workflow-executor"})
	exec.Operations = ops
	marking := petri.Marking{"p:start": 1}

	_, _, result, err := exec.Tick(context.Background(), marking, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	tracked := ops.ListOperations()
	require.Len(t, tracked, 1)
	require.Equal(t, "tick", tracked[0].Operation)
	require.Equal(t, statemanager.StatusCompleted, tracked[0].Status)
}

func TestTickMarksOperationFailedOnRollback(t *testing.T) {
	reg := hooks.NewRegistry()
	h := &hooks.Hook{
		ID: "reject-always", Phase: hooks.PhasePreTransaction, Priority: 1, Enabled: true,
		Condition:   hooks.ThresholdCondition{Variable: "always", Operator: hooks.OpGE, Value: 0},
		Action:      hooks.ActionReject,
		HandlerData: map[string]any{"reason": "policy forbids this transition"},
	}
	_, err := reg.Register(h)
	require.NoError(t, err)

	exec, _, _ := newTestExecutor(t, reg)
	ops := statemanager.New(statemanager.Config{ServiceName: "workflow-executor"})
	exec.Operations = ops

	_, _, result, err := exec.Tick(context.Background(), petri.Marking{"p:start": 1}, map[string]any{"always": 1})
	require.NoError(t, err)
	require.False(t, result.Success)

	tracked := ops.ListOperations()
	require.Len(t, tracked, 1)
	require.Equal(t, statemanager.StatusFailed, tracked[0].Status)
}

func TestCancelResetsMarkingAndFailsInstances(t *testing.T) {
	exec, _, _ := newTestExecutor(t, hooks.NewRegistry())
	region := CancellationRegion{TriggerTask: "t:work", NodeIDs: []string{"p:start"}}
	marking := petri.Marking{"p:start": 1}
	instances := []MIInstance{{ID: "i1", ParentID: "p:start", State: MIRunning}}

	next, remaining, err := exec.Cancel(region, marking, instances)
	require.NoError(t, err)
	require.Equal(t, uint64(0), next.Get("p:start"))
	require.Equal(t, MIFailed, remaining[0].State)
}
