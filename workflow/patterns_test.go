package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"kgcp.evalgo.org/optimizer"
)

func TestChooseXORSplitPicksFirstMatchingGuard(t *testing.T) {
	branches := []Branch{
		{Place: "p:low", Guard: "amount < 100"},
		{Place: "p:high", Guard: "amount >= 100"},
	}
	vars := map[string]optimizer.Value{"amount": optimizer.NumVar(250)}

	chosen, err := ChooseXORSplit(branches, vars)
	require.NoError(t, err)
	require.Equal(t, "p:high", chosen)
}

func TestChooseXORSplitFallsBackToDefault(t *testing.T) {
	branches := []Branch{
		{Place: "p:special", Guard: "flag"},
		{Place: "p:else", IsDefault: true},
	}
	vars := map[string]optimizer.Value{"flag": optimizer.BoolVar(false)}

	chosen, err := ChooseXORSplit(branches, vars)
	require.NoError(t, err)
	require.Equal(t, "p:else", chosen)
}

func TestChooseXORSplitErrorsWithNoMatch(t *testing.T) {
	branches := []Branch{{Place: "p:a", Guard: "flag"}}
	vars := map[string]optimizer.Value{"flag": optimizer.BoolVar(false)}

	_, err := ChooseXORSplit(branches, vars)
	require.Error(t, err)
}

func TestChooseORSplitSelectsEveryTrueBranch(t *testing.T) {
	branches := []Branch{
		{Place: "p:a", Guard: "x > 0"},
		{Place: "p:b", Guard: "y > 0"},
		{Place: "p:c", Guard: "z > 0"},
	}
	vars := map[string]optimizer.Value{
		"x": optimizer.NumVar(1), "y": optimizer.NumVar(-1), "z": optimizer.NumVar(5),
	}

	chosen, err := ChooseORSplit(branches, vars)
	require.NoError(t, err)
	require.Equal(t, []string{"p:a", "p:c"}, chosen)
}

func TestChooseORSplitErrorsWhenNoBranchTriggers(t *testing.T) {
	branches := []Branch{{Place: "p:a", Guard: "x > 0"}}
	vars := map[string]optimizer.Value{"x": optimizer.NumVar(-1)}

	_, err := ChooseORSplit(branches, vars)
	require.Error(t, err)
}

func TestEmptyGuardAlwaysTriggers(t *testing.T) {
	branches := []Branch{{Place: "p:a", Guard: ""}}
	chosen, err := ChooseXORSplit(branches, nil)
	require.NoError(t, err)
	require.Equal(t, "p:a", chosen)
}
