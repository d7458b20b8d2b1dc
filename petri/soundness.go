package petri

// DefaultMaxMarkings bounds coverability-graph exploration so soundness
// checking always terminates on nets with unbounded marking spaces.
const DefaultMaxMarkings = 10000

// SoundnessResult reports the outcome of verifying a workflow net:
// option to complete, proper completion, and absence of dead
// transitions.
type SoundnessResult struct {
	IsSound           bool
	Violations        []string
	ReachableMarkings int
	DeadTransitions   []string
	DeadlockMarkings  []Marking
}

// Verify checks soundness of a workflow net by exploring its
// coverability graph up to maxMarkings distinct markings from the
// initial marking:
//
//   - option to complete: the final marking is reachable from every
//     reachable marking that is itself reachable from the initial one
//     (approximated here as: the final marking is reachable at all, and
//     every deadlock marking found equals the final marking);
//   - proper completion: no reachable marking strictly covers the final
//     marking (no leftover tokens once a sink is marked);
//   - no dead transitions: every transition fires at least once during
//     exploration.
//
// maxMarkings <= 0 uses DefaultMaxMarkings.
func Verify(n *Net, maxMarkings int) (SoundnessResult, error) {
	if maxMarkings <= 0 {
		maxMarkings = DefaultMaxMarkings
	}

	initial, err := n.InitialMarking()
	if err != nil {
		return SoundnessResult{}, err
	}
	final, err := n.FinalMarking()
	if err != nil {
		return SoundnessResult{}, err
	}

	markings, fired, deadlocks := n.exploreReachable(initial, maxMarkings)

	var violations []string

	finalReached := false
	for _, m := range markings {
		if m.Equal(final) {
			finalReached = true
			break
		}
	}
	if !finalReached {
		violations = append(violations, "final marking is not reachable from the initial marking")
	}

	for key, m := range deadlocks {
		if !m.Equal(final) {
			violations = append(violations, "deadlock at a marking other than the final marking: "+key)
		}
	}

	for _, m := range markings {
		if m.Covers(final) && !m.Equal(final) {
			violations = append(violations, "a reachable marking strictly covers the final marking (improper completion)")
			break
		}
	}

	var deadTransitions []string
	for id := range n.Transitions {
		if !fired[id] {
			deadTransitions = append(deadTransitions, id)
		}
	}
	if len(deadTransitions) > 0 {
		violations = append(violations, "net contains dead transitions")
	}

	var deadlockList []Marking
	for _, m := range deadlocks {
		deadlockList = append(deadlockList, m)
	}

	return SoundnessResult{
		IsSound:           len(violations) == 0,
		Violations:        violations,
		ReachableMarkings: len(markings),
		DeadTransitions:   deadTransitions,
		DeadlockMarkings:  deadlockList,
	}, nil
}

// FindFiringSequenceToFinal performs a bounded BFS search for a sequence
// of transition ids that carries the net's initial marking to its final
// marking, returning the sequence or nil if none is found within
// maxMarkings distinct markings explored.
func FindFiringSequenceToFinal(n *Net, maxMarkings int) ([]string, error) {
	if maxMarkings <= 0 {
		maxMarkings = DefaultMaxMarkings
	}

	initial, err := n.InitialMarking()
	if err != nil {
		return nil, err
	}
	final, err := n.FinalMarking()
	if err != nil {
		return nil, err
	}

	type node struct {
		m    Marking
		path []string
	}

	visited := map[string]bool{markingKey(initial): true}
	queue := []node{{m: initial}}

	for len(queue) > 0 && len(visited) <= maxMarkings {
		cur := queue[0]
		queue = queue[1:]

		if cur.m.Equal(final) {
			return cur.path, nil
		}

		for _, t := range n.EnabledTransitions(cur.m) {
			next, err := n.Fire(t, cur.m)
			if err != nil {
				continue
			}
			key := markingKey(next)
			if visited[key] {
				continue
			}
			if len(visited) >= maxMarkings {
				continue
			}
			visited[key] = true
			path := make([]string, len(cur.path)+1)
			copy(path, cur.path)
			path[len(cur.path)] = t
			queue = append(queue, node{m: next, path: path})
		}
	}

	return nil, nil
}

// CoverabilityAnalyzer wraps bounded-reachability analysis under the name
// the spec uses for it.
type CoverabilityAnalyzer struct {
	MaxMarkings int
}

// NewCoverabilityAnalyzer returns an analyzer bounded at maxMarkings
// (DefaultMaxMarkings if <= 0).
func NewCoverabilityAnalyzer(maxMarkings int) *CoverabilityAnalyzer {
	if maxMarkings <= 0 {
		maxMarkings = DefaultMaxMarkings
	}
	return &CoverabilityAnalyzer{MaxMarkings: maxMarkings}
}

// IsBounded reports whether n's reachable marking space (from initial)
// stays within the analyzer's exploration bound, and the maximum token
// count observed at any single place.
func (c *CoverabilityAnalyzer) IsBounded(n *Net) (bool, uint64, error) {
	initial, err := n.InitialMarking()
	if err != nil {
		return false, 0, err
	}
	bounded, maxTokens := n.IsBounded(initial, c.MaxMarkings)
	return bounded, maxTokens, nil
}
