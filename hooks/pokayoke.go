package hooks

import (
	"fmt"
	"strings"
)

// Severity is a poka-yoke rule's enforcement strength.
type Severity string

const (
	SeverityShutdown   Severity = "SHUTDOWN"   // refuse the operation
	SeverityControl    Severity = "CONTROL"    // gate until resolved
	SeverityValidation Severity = "VALIDATION" // pre-execution check, report
	SeverityWarning    Severity = "WARNING"    // log, do not block
)

// blocks reports whether a violation at this severity must prevent the
// triggering operation from taking effect.
func (s Severity) blocks() bool {
	return s == SeverityShutdown || s == SeverityControl || s == SeverityValidation
}

// PokaYokeViolation names one triggered rule.
type PokaYokeViolation struct {
	RuleID   string
	Severity Severity
	Message  string
}

// milestoneKey marks a hook as a milestone node for PY-HOOK-010
// purposes: a milestone is any hook whose handler_data carries
// "milestone": true. The spec names the concept but does not define
// its representation; this is the generalization this module adopts.
const milestoneKey = "milestone"

func isMilestone(h *Hook) bool {
	v, ok := h.HandlerData[milestoneKey]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// unselectiveAskPatterns are condition query texts PY-HOOK-009 flags as
// effectively unfiltered.
var unselectiveAskPatterns = []string{
	"ASK { ?s ?p ?o }",
	"ASK {?s ?p ?o}",
}

// CheckRegistration runs every poka-yoke rule that applies at
// registration time against candidate hook h, given the registry state
// it would join. It returns every triggered violation; the caller
// should refuse registration iff any returned violation blocks().
func CheckRegistration(h *Hook, existing map[string]*Hook, phaseHooks []string) []PokaYokeViolation {
	var violations []PokaYokeViolation

	// PY-HOOK-001: empty condition query.
	if h.Condition == nil {
		violations = append(violations, PokaYokeViolation{"PY-HOOK-001", SeverityShutdown, "hook has an empty condition"})
	}

	// PY-HOOK-004: unknown phase string.
	if !IsValidPhase(h.Phase) {
		violations = append(violations, PokaYokeViolation{"PY-HOOK-004", SeverityValidation, fmt.Sprintf("unknown phase %q", h.Phase)})
	}

	// PY-HOOK-003: priority collision within the same phase.
	for _, id := range phaseHooks {
		other := existing[id]
		if other != nil && other.Enabled && other.Priority == h.Priority {
			violations = append(violations, PokaYokeViolation{"PY-HOOK-003", SeverityControl, fmt.Sprintf("priority %d collides with hook %q in phase %q", h.Priority, other.ID, h.Phase)})
			break
		}
	}

	// PY-HOOK-005: disabled hook declares a chain target.
	if !h.Enabled && h.ChainTo != "" {
		violations = append(violations, PokaYokeViolation{"PY-HOOK-005", SeverityShutdown, "disabled hook declares a chain target"})
	}

	// PY-HOOK-007: unknown action type.
	if !validActions[h.Action] {
		violations = append(violations, PokaYokeViolation{"PY-HOOK-007", SeverityControl, fmt.Sprintf("unknown action %q", h.Action)})
	}

	// PY-HOOK-008: REJECT/NOTIFY with empty handler_data.
	if (h.Action == ActionReject || h.Action == ActionNotify) && len(h.HandlerData) == 0 {
		violations = append(violations, PokaYokeViolation{"PY-HOOK-008", SeverityValidation, fmt.Sprintf("action %q requires non-empty handler_data", h.Action)})
	}

	// PY-HOOK-002 / PY-HOOK-010: chain cycle detection. Walk forward
	// from h through ChainTo pointers (using the candidate hook itself
	// as the starting point, since it is not yet in `existing`).
	if cyclePath, hasMilestone := detectChainCycle(h, existing); cyclePath != nil {
		if hasMilestone {
			violations = append(violations, PokaYokeViolation{"PY-HOOK-010", SeverityShutdown, fmt.Sprintf("recursive milestone triggering: %s", strings.Join(cyclePath, " -> "))})
		} else {
			violations = append(violations, PokaYokeViolation{"PY-HOOK-002", SeverityWarning, fmt.Sprintf("hook chain has a cycle: %s", strings.Join(cyclePath, " -> "))})
		}
	}

	// PY-HOOK-006: chain target not registered.
	if h.ChainTo != "" {
		if _, ok := existing[h.ChainTo]; !ok {
			violations = append(violations, PokaYokeViolation{"PY-HOOK-006", SeverityWarning, fmt.Sprintf("chain target %q is not registered", h.ChainTo)})
		}
	}

	// PY-HOOK-009: unselective condition.
	if ask, ok := h.Condition.(SparqlAskCondition); ok {
		trimmed := strings.TrimSpace(ask.Query)
		for _, pattern := range unselectiveAskPatterns {
			if trimmed == pattern {
				violations = append(violations, PokaYokeViolation{"PY-HOOK-009", SeverityWarning, "condition query is unselective: " + trimmed})
				break
			}
		}
	}

	return violations
}

// detectChainCycle walks h.ChainTo -> existing[...].ChainTo -> ... and
// reports the cycle path if h is revisited, along with whether any node
// on the cycle is a milestone hook.
func detectChainCycle(h *Hook, existing map[string]*Hook) ([]string, bool) {
	path := []string{h.ID}
	seen := map[string]bool{h.ID: true}
	hasMilestone := isMilestone(h)

	cur := h.ChainTo
	for cur != "" {
		if cur == h.ID {
			path = append(path, cur)
			return path, hasMilestone
		}
		if seen[cur] {
			// cycle not involving h itself; not this rule's concern.
			return nil, false
		}
		next, ok := existing[cur]
		if !ok {
			return nil, false
		}
		seen[cur] = true
		path = append(path, cur)
		if isMilestone(next) {
			hasMilestone = true
		}
		cur = next.ChainTo
	}
	return nil, false
}

// Blocking reports whether any violation in vs must refuse the
// operation.
func Blocking(vs []PokaYokeViolation) bool {
	for _, v := range vs {
		if v.Severity.blocks() {
			return true
		}
	}
	return false
}
