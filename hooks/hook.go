package hooks

import (
	"fmt"
	"time"
)

// Phase names a lifecycle moment at which hooks may fire.
type Phase string

const (
	PhasePreTick        Phase = "PRE_TICK"
	PhaseOnChange        Phase = "ON_CHANGE"
	PhasePostTick        Phase = "POST_TICK"
	PhasePreValidation   Phase = "PRE_VALIDATION"
	PhasePostValidation  Phase = "POST_VALIDATION"
	PhasePreTransaction  Phase = "PRE_TRANSACTION"
	PhasePostTransaction Phase = "POST_TRANSACTION"
	PhasePostCommit      Phase = "POST_COMMIT"
	PhasePreQuery        Phase = "PRE_QUERY"
	PhasePostQuery       Phase = "POST_QUERY"
)

var validPhases = map[Phase]bool{
	PhasePreTick: true, PhaseOnChange: true, PhasePostTick: true,
	PhasePreValidation: true, PhasePostValidation: true,
	PhasePreTransaction: true, PhasePostTransaction: true, PhasePostCommit: true,
	PhasePreQuery: true, PhasePostQuery: true,
}

// IsValidPhase reports whether p is one of the recognized phase names.
func IsValidPhase(p Phase) bool { return validPhases[p] }

// ActionKind is the action a triggered hook applies.
type ActionKind string

const (
	ActionAssert    ActionKind = "ASSERT"
	ActionReject    ActionKind = "REJECT"
	ActionNotify    ActionKind = "NOTIFY"
	ActionTransform ActionKind = "TRANSFORM"
)

var validActions = map[ActionKind]bool{
	ActionAssert: true, ActionReject: true, ActionNotify: true, ActionTransform: true,
}

// Hook is a registered condition->action rule bound to a phase.
type Hook struct {
	ID           string
	Name         string
	Phase        Phase
	Priority     int
	Enabled      bool
	Condition    Condition
	Action       ActionKind
	HandlerData  map[string]any
	ChainTo      string // optional hook_id
	insertionSeq int    // set by Registry.Register for stable tie-breaking
}

// Validate checks the shape invariants a Hook must satisfy, returning
// every violation found rather than stopping at the first (mirrors
// petri.Net.IsProperWorkflowNet's collect-all-violations style).
func (h *Hook) Validate() []string {
	var violations []string
	if h.Condition == nil {
		violations = append(violations, "condition tree is empty")
	}
	if !IsValidPhase(h.Phase) {
		violations = append(violations, fmt.Sprintf("unknown phase %q", h.Phase))
	}
	if !validActions[h.Action] {
		violations = append(violations, fmt.Sprintf("unknown action %q", h.Action))
	}
	if (h.Action == ActionReject || h.Action == ActionNotify) && len(h.HandlerData) == 0 {
		violations = append(violations, fmt.Sprintf("action %q requires non-empty handler_data", h.Action))
	}
	if !h.Enabled && h.ChainTo != "" {
		violations = append(violations, "disabled hook declares a chain target")
	}
	return violations
}

// HookReceipt records the outcome of evaluating one hook during one
// phase of one transaction.
type HookReceipt struct {
	HookID          string
	Phase           Phase
	Timestamp       time.Time
	ConditionMatched bool
	ActionTaken     ActionKind // zero value "" means none
	DurationMS      float64
	TriplesAffected int
	Error           string
}
