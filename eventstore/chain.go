package eventstore

import (
	"fmt"

	"kgcp.evalgo.org/common"
)

// Chain is the ordered, hash-linked sequence of events for one workflow.
type Chain struct {
	WorkflowID string
	Genesis    string
	Events     []Event
}

// NewChain returns an empty chain for workflowID, rooted at GenesisHash.
func NewChain(workflowID string) *Chain {
	return &Chain{WorkflowID: workflowID, Genesis: GenesisHash}
}

func (c *Chain) tailHash() string {
	if len(c.Events) == 0 {
		return c.Genesis
	}
	return c.Events[len(c.Events)-1].EventHash
}

// Append validates event against the chain's tail and, on success,
// returns a new Chain with event appended (structural sharing of the
// predecessor slice is permitted — Append never mutates c).
func (c *Chain) Append(event Event) (*Chain, error) {
	if event.WorkflowID != c.WorkflowID {
		return nil, common.NewKGError(common.ErrChainIntegrity,
			fmt.Sprintf("workflow mismatch: chain is %q, event is %q", c.WorkflowID, event.WorkflowID), nil)
	}
	if event.PreviousHash != c.tailHash() {
		return nil, common.NewKGError(common.ErrChainIntegrity,
			fmt.Sprintf("broken link: expected previous_hash %q, got %q", c.tailHash(), event.PreviousHash), nil)
	}
	next := &Chain{
		WorkflowID: c.WorkflowID,
		Genesis:    c.Genesis,
		Events:     append(append([]Event(nil), c.Events...), event),
	}
	return next, nil
}

// Verify reproduces every event_hash and confirms every link. It returns
// (true, "") on success, or (false, reason) identifying the first
// offending event.
func (c *Chain) Verify() (bool, string) {
	prev := c.Genesis
	for i, e := range c.Events {
		if e.PreviousHash != prev {
			return false, fmt.Sprintf("broken link at event %d (%s): expected previous_hash %q, got %q", i, e.EventID, prev, e.PreviousHash)
		}
		if got := ComputeHash(e); got != e.EventHash {
			return false, fmt.Sprintf("hash mismatch at event %d (%s): computed %q, stored %q", i, e.EventID, got, e.EventHash)
		}
		prev = e.EventHash
	}
	return true, ""
}

// GetCausalChain walks caused_by[0] pointers starting at eventID, oldest
// first, bounded by maxDepth.
func (c *Chain) GetCausalChain(eventID string, maxDepth int) []Event {
	byID := make(map[string]Event, len(c.Events))
	for _, e := range c.Events {
		byID[e.EventID] = e
	}

	var reverse []Event
	cur, ok := byID[eventID]
	for ok && len(reverse) < maxDepth {
		reverse = append(reverse, cur)
		if len(cur.CausedBy) == 0 {
			break
		}
		cur, ok = byID[cur.CausedBy[0]]
	}

	out := make([]Event, len(reverse))
	for i, e := range reverse {
		out[len(reverse)-1-i] = e
	}
	return out
}
