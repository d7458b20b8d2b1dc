package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"kgcp.evalgo.org/optimizer"
)

func TestStructuredLoopWhileRunsUntilConditionFalse(t *testing.T) {
	loop := NewStructuredLoop(LoopWhile, 0)
	initial := LoopState{
		ContinueCondition: "iteration < 3",
		Variables:         map[string]optimizer.Value{},
	}

	var seen []int
	result, err := loop.Execute(initial, func(state LoopState) (map[string]any, error) {
		seen = append(seen, state.Iteration)
		return map[string]any{"iteration": state.Iteration}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, seen)
	require.Equal(t, 3, result.TotalIterations)
}

func TestStructuredLoopForRunsExactlyMaxIterations(t *testing.T) {
	loop := NewStructuredLoop(LoopFor, 5)
	initial := LoopState{MaxIterations: 5}

	count := 0
	result, err := loop.Execute(initial, func(state LoopState) (map[string]any, error) {
		count++
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, 5, count)
	require.Equal(t, 5, result.TotalIterations)
}

func TestStructuredLoopDoWhileRunsBodyAtLeastOnce(t *testing.T) {
	loop := NewStructuredLoop(LoopDoWhile, 0)
	initial := LoopState{ContinueCondition: "false", Variables: map[string]optimizer.Value{}}

	count := 0
	result, err := loop.Execute(initial, func(state LoopState) (map[string]any, error) {
		count++
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, result.TotalIterations)
}

func TestStructuredLoopUntilStopsWhenConditionBecomesTrue(t *testing.T) {
	loop := NewStructuredLoop(LoopUntil, 0)
	initial := LoopState{ContinueCondition: "iteration >= 2", Variables: map[string]optimizer.Value{}}

	var seen []int
	_, err := loop.Execute(initial, func(state LoopState) (map[string]any, error) {
		seen = append(seen, state.Iteration)
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, seen)
}

func TestStructuredLoopWhileRespectsSafetyBoundEvenWithAlwaysTrueCondition(t *testing.T) {
	loop := NewStructuredLoop(LoopWhile, 10)
	initial := LoopState{ContinueCondition: "true", Variables: map[string]optimizer.Value{}}

	count := 0
	result, err := loop.Execute(initial, func(state LoopState) (map[string]any, error) {
		count++
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, 10, count, "the safety bound must stop the loop even though the condition never turns false")
	require.Equal(t, 10, result.TotalIterations)
}

func TestStructuredLoopPropagatesBodyError(t *testing.T) {
	loop := NewStructuredLoop(LoopFor, 3)
	initial := LoopState{MaxIterations: 3}

	_, err := loop.Execute(initial, func(state LoopState) (map[string]any, error) {
		if state.Iteration == 1 {
			return nil, fmt.Errorf("boom")
		}
		return nil, nil
	})
	require.Error(t, err)
}

func TestCheckConditionTerminatesOnUnboundIdentifier(t *testing.T) {
	loop := NewStructuredLoop(LoopWhile, 100)
	state := LoopState{Iteration: 0, MaxIterations: 100, ContinueCondition: "not_a_bound_var", Variables: map[string]optimizer.Value{}}
	require.False(t, loop.CheckCondition(state), "an unevaluable condition must terminate the loop, not panic or loop forever")
}

func TestLoopStateNextIterationErrorsAtMaxIterations(t *testing.T) {
	state := LoopState{Iteration: 2, MaxIterations: 2}
	_, err := state.NextIteration()
	require.Error(t, err)
}
