package workflow

import "kgcp.evalgo.org/petri"

// CancellationRegion declares the set of node ids reset when
// TriggerTask is cancelled: tokens are removed from every listed place.
// This is the reset-net extension of Petri semantics; the pattern
// library this was modeled on represents cancellation only as a bare
// string condition, so this type is new code rather than a direct port.
type CancellationRegion struct {
	TriggerTask string
	NodeIDs     []string
}

// Cancel returns a new marking with every place in r.NodeIDs cleared to
// zero tokens, leaving every other place untouched.
func (r CancellationRegion) Cancel(m petri.Marking) petri.Marking {
	next := m.Copy()
	for _, id := range r.NodeIDs {
		if count := next.Get(id); count > 0 {
			next, _ = next.Remove(id, count)
		}
	}
	return next
}

// CancelInstances returns the subset of instances whose ParentID or ID
// matches a node in r.NodeIDs, marked MIFailed — used to terminate
// in-flight multiple-instance work caught inside a cancelled region.
func (r CancellationRegion) CancelInstances(instances []MIInstance) []MIInstance {
	inRegion := make(map[string]bool, len(r.NodeIDs))
	for _, id := range r.NodeIDs {
		inRegion[id] = true
	}
	out := make([]MIInstance, len(instances))
	for i, inst := range instances {
		if inRegion[inst.ParentID] || inRegion[inst.ID] {
			inst.State = MIFailed
		}
		out[i] = inst
	}
	return out
}
