package petri

import "fmt"

// Place is a Petri-net place: a token repository.
type Place struct {
	ID       string
	Name     string
	IsSource bool
	IsSink   bool
}

// Transition is a Petri-net transition: a firable step, optionally
// silent (no observable event) and optionally guarded by an expression
// evaluated against the executor's context.
type Transition struct {
	ID       string
	Name     string
	IsSilent bool
	Guard    string
}

// Arc connects a place to a transition or a transition to a place, with
// a positive integer weight (default 1).
type Arc struct {
	Source string
	Target string
	Weight uint64
}

// Net is the tuple (Places, Transitions, Arcs).
type Net struct {
	Places      map[string]Place
	Transitions map[string]Transition
	Arcs        []Arc
}

// NewNet returns an empty net.
func NewNet() *Net {
	return &Net{
		Places:      make(map[string]Place),
		Transitions: make(map[string]Transition),
	}
}

// AddPlace registers a place.
func (n *Net) AddPlace(p Place) { n.Places[p.ID] = p }

// AddTransition registers a transition.
func (n *Net) AddTransition(t Transition) { n.Transitions[t.ID] = t }

// AddArc registers an arc, defaulting weight to 1 if zero.
func (n *Net) AddArc(a Arc) error {
	if a.Weight == 0 {
		a.Weight = 1
	}
	if !n.isBipartiteArc(a) {
		return fmt.Errorf("arc %s->%s does not connect a place and a transition", a.Source, a.Target)
	}
	n.Arcs = append(n.Arcs, a)
	return nil
}

func (n *Net) isBipartiteArc(a Arc) bool {
	_, srcPlace := n.Places[a.Source]
	_, srcTrans := n.Transitions[a.Source]
	_, dstPlace := n.Places[a.Target]
	_, dstTrans := n.Transitions[a.Target]
	return (srcPlace && dstTrans) || (srcTrans && dstPlace)
}

// InputArcs returns arcs whose target is node (place->transition arcs
// when node is a transition).
func (n *Net) InputArcs(node string) []Arc {
	var out []Arc
	for _, a := range n.Arcs {
		if a.Target == node {
			out = append(out, a)
		}
	}
	return out
}

// OutputArcs returns arcs whose source is node.
func (n *Net) OutputArcs(node string) []Arc {
	var out []Arc
	for _, a := range n.Arcs {
		if a.Source == node {
			out = append(out, a)
		}
	}
	return out
}

// Preset returns the set of node ids with an arc into node.
func (n *Net) Preset(node string) []string {
	var out []string
	for _, a := range n.InputArcs(node) {
		out = append(out, a.Source)
	}
	return out
}

// Postset returns the set of node ids reached by an arc out of node.
func (n *Net) Postset(node string) []string {
	var out []string
	for _, a := range n.OutputArcs(node) {
		out = append(out, a.Target)
	}
	return out
}

// IsEnabled reports whether t is enabled under m: every input arc
// (p->t) with weight w requires m(p) >= w.
func (n *Net) IsEnabled(transitionID string, m Marking) bool {
	for _, a := range n.InputArcs(transitionID) {
		if m.Get(a.Source) < a.Weight {
			return false
		}
	}
	return true
}

// EnabledTransitions returns the set of transition ids enabled under m.
func (n *Net) EnabledTransitions(m Marking) []string {
	var out []string
	for id := range n.Transitions {
		if n.IsEnabled(id, m) {
			out = append(out, id)
		}
	}
	return out
}

// sourcePlaces returns every place with IsSource set.
func (n *Net) sourcePlaces() []Place {
	var out []Place
	for _, p := range n.Places {
		if p.IsSource {
			out = append(out, p)
		}
	}
	return out
}

// sinkPlaces returns every place with IsSink set.
func (n *Net) sinkPlaces() []Place {
	var out []Place
	for _, p := range n.Places {
		if p.IsSink {
			out = append(out, p)
		}
	}
	return out
}

// InitialMarking places exactly one token in the unique source place.
func (n *Net) InitialMarking() (Marking, error) {
	sources := n.sourcePlaces()
	if len(sources) != 1 {
		return nil, fmt.Errorf("expected exactly one source place, found %d", len(sources))
	}
	return Marking{sources[0].ID: 1}, nil
}

// FinalMarking places one token in each sink place.
func (n *Net) FinalMarking() (Marking, error) {
	sinks := n.sinkPlaces()
	if len(sinks) == 0 {
		return nil, fmt.Errorf("expected at least one sink place, found 0")
	}
	m := NewMarking()
	for _, s := range sinks {
		m[s.ID] = 1
	}
	return m, nil
}

// IsProperWorkflowNet validates: exactly one source, >=1 sink, and every
// node lies on some source->sink path (connectedness). It returns the
// full list of named violations rather than failing on the first one.
func (n *Net) IsProperWorkflowNet() (bool, []string) {
	var violations []string

	sources := n.sourcePlaces()
	if len(sources) != 1 {
		violations = append(violations, fmt.Sprintf("expected exactly one source place, found %d", len(sources)))
	}
	sinks := n.sinkPlaces()
	if len(sinks) == 0 {
		violations = append(violations, "expected at least one sink place, found 0")
	}

	if len(sources) == 1 {
		reachableForward := n.reachableNodes(sources[0].ID, n.forwardNeighbors)
		for id := range n.allNodeIDs() {
			if !reachableForward[id] {
				violations = append(violations, fmt.Sprintf("node %q is not reachable from the source", id))
			}
		}
	}
	if len(sinks) > 0 {
		reachableBackward := make(map[string]bool)
		for _, sink := range sinks {
			for id := range n.reachableNodes(sink.ID, n.backwardNeighbors) {
				reachableBackward[id] = true
			}
		}
		for id := range n.allNodeIDs() {
			if !reachableBackward[id] {
				violations = append(violations, fmt.Sprintf("node %q cannot reach any sink", id))
			}
		}
	}

	return len(violations) == 0, violations
}

func (n *Net) allNodeIDs() map[string]bool {
	out := make(map[string]bool, len(n.Places)+len(n.Transitions))
	for id := range n.Places {
		out[id] = true
	}
	for id := range n.Transitions {
		out[id] = true
	}
	return out
}

func (n *Net) forwardNeighbors(node string) []string { return n.Postset(node) }
func (n *Net) backwardNeighbors(node string) []string { return n.Preset(node) }

func (n *Net) reachableNodes(start string, neighbors func(string) []string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range neighbors(cur) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}
