package petri

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// sequenceNet builds a trivial source -> t1 -> sink workflow net.
func sequenceNet(t *testing.T) *Net {
	t.Helper()
	n := NewNet()
	n.AddPlace(Place{ID: "start", IsSource: true})
	n.AddPlace(Place{ID: "end", IsSink: true})
	n.AddTransition(Transition{ID: "t1"})
	require.NoError(t, n.AddArc(Arc{Source: "start", Target: "t1"}))
	require.NoError(t, n.AddArc(Arc{Source: "t1", Target: "end"}))
	return n
}

// andSplitJoinNet builds start -> split -> (p1, p2) -> join -> end.
func andSplitJoinNet(t *testing.T) *Net {
	t.Helper()
	n := NewNet()
	n.AddPlace(Place{ID: "start", IsSource: true})
	n.AddPlace(Place{ID: "p1"})
	n.AddPlace(Place{ID: "p2"})
	n.AddPlace(Place{ID: "end", IsSink: true})
	n.AddTransition(Transition{ID: "split"})
	n.AddTransition(Transition{ID: "join"})
	require.NoError(t, n.AddArc(Arc{Source: "start", Target: "split"}))
	require.NoError(t, n.AddArc(Arc{Source: "split", Target: "p1"}))
	require.NoError(t, n.AddArc(Arc{Source: "split", Target: "p2"}))
	require.NoError(t, n.AddArc(Arc{Source: "p1", Target: "join"}))
	require.NoError(t, n.AddArc(Arc{Source: "p2", Target: "join"}))
	require.NoError(t, n.AddArc(Arc{Source: "join", Target: "end"}))
	return n
}

func TestMarkingAddRemove(t *testing.T) {
	m := NewMarking().Add("p", 3)
	require.Equal(t, uint64(3), m.Get("p"))

	m2, err := m.Remove("p", 2)
	require.NoError(t, err)
	require.Equal(t, uint64(1), m2.Get("p"))
	// original unchanged
	require.Equal(t, uint64(3), m.Get("p"))

	_, err = m.Remove("p", 10)
	require.Error(t, err)
}

func TestMarkingEqualAndCovers(t *testing.T) {
	a := Marking{"p": 2, "q": 0}
	b := Marking{"p": 2}
	require.True(t, a.Equal(b))

	c := Marking{"p": 3}
	require.True(t, c.Covers(b))
	require.False(t, b.Covers(c))
}

func TestArcRejectsNonBipartite(t *testing.T) {
	n := NewNet()
	n.AddPlace(Place{ID: "p1"})
	n.AddPlace(Place{ID: "p2"})
	err := n.AddArc(Arc{Source: "p1", Target: "p2"})
	require.Error(t, err)
}

func TestEnablementAndFiring(t *testing.T) {
	n := sequenceNet(t)
	initial, err := n.InitialMarking()
	require.NoError(t, err)
	require.Equal(t, uint64(1), initial.Get("start"))

	require.True(t, n.IsEnabled("t1", initial))
	next, err := n.Fire("t1", initial)
	require.NoError(t, err)
	require.Equal(t, uint64(0), next.Get("start"))
	require.Equal(t, uint64(1), next.Get("end"))

	final, err := n.FinalMarking()
	require.NoError(t, err)
	require.True(t, next.Equal(final))
}

func TestFireRejectsDisabledTransition(t *testing.T) {
	n := sequenceNet(t)
	empty := NewMarking()
	_, err := n.Fire("t1", empty)
	require.Error(t, err)
}

func TestIsProperWorkflowNetAcceptsSequence(t *testing.T) {
	n := sequenceNet(t)
	ok, violations := n.IsProperWorkflowNet()
	require.True(t, ok, violations)
}

func TestIsProperWorkflowNetRejectsOrphanNode(t *testing.T) {
	n := sequenceNet(t)
	n.AddPlace(Place{ID: "orphan"})
	ok, violations := n.IsProperWorkflowNet()
	require.False(t, ok)
	require.NotEmpty(t, violations)
}

func TestIsProperWorkflowNetRejectsMultipleSources(t *testing.T) {
	n := sequenceNet(t)
	n.AddPlace(Place{ID: "start2", IsSource: true})
	ok, violations := n.IsProperWorkflowNet()
	require.False(t, ok)
	require.NotEmpty(t, violations)
}

func TestSoundnessOfSimpleSequence(t *testing.T) {
	n := sequenceNet(t)
	result, err := Verify(n, 0)
	require.NoError(t, err)
	require.True(t, result.IsSound, result.Violations)
	require.Empty(t, result.DeadTransitions)
}

func TestSoundnessOfAndSplitJoin(t *testing.T) {
	n := andSplitJoinNet(t)
	result, err := Verify(n, 0)
	require.NoError(t, err)
	require.True(t, result.IsSound, result.Violations)
}

func TestSoundnessDetectsDeadTransition(t *testing.T) {
	n := sequenceNet(t)
	n.AddPlace(Place{ID: "unreachable"})
	n.AddTransition(Transition{ID: "deadT"})
	require.NoError(t, n.AddArc(Arc{Source: "unreachable", Target: "deadT"}))
	require.NoError(t, n.AddArc(Arc{Source: "deadT", Target: "end"}))

	result, err := Verify(n, 0)
	require.NoError(t, err)
	require.False(t, result.IsSound)
	require.Contains(t, result.DeadTransitions, "deadT")
}

func TestFindFiringSequenceToFinal(t *testing.T) {
	n := andSplitJoinNet(t)
	seq, err := FindFiringSequenceToFinal(n, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"split", "join"}, seq)
}

func TestFindFiringSequenceToFinalUnreachable(t *testing.T) {
	n := NewNet()
	n.AddPlace(Place{ID: "start", IsSource: true})
	n.AddPlace(Place{ID: "end", IsSink: true})
	n.AddTransition(Transition{ID: "stuck"})
	// stuck requires a token that never appears
	n.AddPlace(Place{ID: "never"})
	require.NoError(t, n.AddArc(Arc{Source: "never", Target: "stuck"}))
	require.NoError(t, n.AddArc(Arc{Source: "stuck", Target: "end"}))

	seq, err := FindFiringSequenceToFinal(n, 0)
	require.NoError(t, err)
	require.Nil(t, seq)
}

func TestCoverabilityAnalyzerIsBounded(t *testing.T) {
	n := sequenceNet(t)
	analyzer := NewCoverabilityAnalyzer(0)
	bounded, maxTokens, err := analyzer.IsBounded(n)
	require.NoError(t, err)
	require.True(t, bounded)
	require.Equal(t, uint64(1), maxTokens)
}
