package petri

import (
	"fmt"

	"kgcp.evalgo.org/common"
)

// Fire transitions marking m by firing transitionID: every input arc
// (p->t) with weight w consumes w tokens from p; every output arc
// (t->q) with weight w produces w tokens at q. All other places are
// unchanged. Firing a disabled transition fails with "not enabled" and
// returns m unchanged.
func (n *Net) Fire(transitionID string, m Marking) (Marking, error) {
	if !n.IsEnabled(transitionID, m) {
		return m, common.NewKGError(common.ErrNotEnabled,
			fmt.Sprintf("transition %q is not enabled under the current marking", transitionID), nil)
	}

	next := m
	for _, a := range n.InputArcs(transitionID) {
		var err error
		next, err = next.Remove(a.Source, a.Weight)
		if err != nil {
			// Cannot happen: IsEnabled already checked sufficiency, but
			// guard against a torn state regardless.
			return m, common.Wrapf(common.ErrNotEnabled, err, "not enabled")
		}
	}
	for _, a := range n.OutputArcs(transitionID) {
		next = next.Add(a.Target, a.Weight)
	}
	return next, nil
}
