// Package eventstore implements the append-only, hash-chained, tiered
// (hot/warm/cold) temporal event log described in the knowledge-graph
// control plane specification.
package eventstore

import (
	"time"

	"kgcp.evalgo.org/vectorclock"
)

// EventType enumerates the kinds of events the control plane emits.
type EventType string

const (
	EventStatusChange EventType = "STATUS_CHANGE"
	EventTokenMove     EventType = "TOKEN_MOVE"
	EventSplit         EventType = "SPLIT"
	EventJoin          EventType = "JOIN"
	EventCancellation  EventType = "CANCELLATION"
	EventMISpawn       EventType = "MI_SPAWN"
	EventMIComplete    EventType = "MI_COMPLETE"
	EventHookExecution EventType = "HOOK_EXECUTION"
	EventValidation    EventType = "VALIDATION"
	EventTickStart     EventType = "TICK_START"
	EventTickEnd       EventType = "TICK_END"
)

// GenesisHash is the sentinel previous_hash for the first event of a
// workflow's chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Event is an immutable record of one state change in the control plane.
// Once appended, no field is ever mutated.
type Event struct {
	EventID       string             `json:"event_id"`
	EventType     EventType          `json:"event_type"`
	Timestamp     time.Time          `json:"timestamp"`
	TickNumber    uint64             `json:"tick_number"`
	WorkflowID    string             `json:"workflow_id"`
	SequenceNum   uint64             `json:"sequence_number"`
	Payload       map[string]any     `json:"payload"`
	CausedBy      []string           `json:"caused_by"`
	VectorClock   vectorclock.Clock  `json:"vector_clock"`
	PreviousHash  string             `json:"previous_hash"`
	EventHash     string             `json:"event_hash"`
}

// Clone returns a deep-enough copy of e for safe structural sharing in a
// new chain (maps and slices are copied; Payload values are assumed
// immutable once stored, matching the event's own immutability contract).
func (e Event) Clone() Event {
	out := e
	out.Payload = make(map[string]any, len(e.Payload))
	for k, v := range e.Payload {
		out.Payload[k] = v
	}
	out.CausedBy = append([]string(nil), e.CausedBy...)
	out.VectorClock = e.VectorClock.Copy()
	return out
}
