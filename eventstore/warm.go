package eventstore

import "sort"

// warmTier holds events evicted from hot, indexed by event_id (O(1)
// amortized) and kept in a sequence-sorted slice (O(log N) by binary
// search) for range queries.
type warmTier struct {
	byID      map[string]Event
	sorted    []Event // ascending by SequenceNum
	byWorkflow map[string][]string // workflow_id -> event_ids, insertion order
}

func newWarmTier() *warmTier {
	return &warmTier{
		byID:       make(map[string]Event),
		byWorkflow: make(map[string][]string),
	}
}

func (w *warmTier) add(e Event) {
	w.byID[e.EventID] = e
	idx := sort.Search(len(w.sorted), func(i int) bool { return w.sorted[i].SequenceNum >= e.SequenceNum })
	w.sorted = append(w.sorted, Event{})
	copy(w.sorted[idx+1:], w.sorted[idx:])
	w.sorted[idx] = e
	w.byWorkflow[e.WorkflowID] = append(w.byWorkflow[e.WorkflowID], e.EventID)
}

func (w *warmTier) bySequence(n uint64) (Event, bool) {
	i := sort.Search(len(w.sorted), func(i int) bool { return w.sorted[i].SequenceNum >= n })
	if i < len(w.sorted) && w.sorted[i].SequenceNum == n {
		return w.sorted[i], true
	}
	return Event{}, false
}

func (w *warmTier) byIDLookup(id string) (Event, bool) {
	e, ok := w.byID[id]
	return e, ok
}

func (w *warmTier) byWorkflowID(workflowID string) []Event {
	ids := w.byWorkflow[workflowID]
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := w.byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// removeOldest evicts the n earliest-by-sequence events and returns
// them.
func (w *warmTier) removeOldest(n int) []Event {
	if n > len(w.sorted) {
		n = len(w.sorted)
	}
	evicted := append([]Event(nil), w.sorted[:n]...)
	w.sorted = w.sorted[n:]
	for _, e := range evicted {
		delete(w.byID, e.EventID)
		ids := w.byWorkflow[e.WorkflowID]
		for i, id := range ids {
			if id == e.EventID {
				w.byWorkflow[e.WorkflowID] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
	return evicted
}

func (w *warmTier) len() int { return len(w.sorted) }
