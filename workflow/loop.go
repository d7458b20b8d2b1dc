package workflow

import (
	"fmt"

	"kgcp.evalgo.org/optimizer"
)

// LoopKind is a structured-loop iteration strategy.
type LoopKind string

const (
	LoopWhile   LoopKind = "while"    // test condition first, then execute
	LoopFor     LoopKind = "for"      // iterate N times with a counter
	LoopDoWhile LoopKind = "do-while" // execute first, then test condition
	LoopUntil   LoopKind = "until"    // execute until condition becomes true
)

// LoopState is immutable loop-execution state: iteration count, bound,
// continuation condition, and loop-scoped variables.
type LoopState struct {
	Iteration         int
	MaxIterations     int
	ContinueCondition string
	Variables         map[string]optimizer.Value
	Completed         bool
}

// NextIteration returns the state for the following iteration, failing
// once MaxIterations has been reached — a contract violation, not a
// panic.
func (s LoopState) NextIteration() (LoopState, error) {
	if s.Iteration >= s.MaxIterations {
		return s, fmt.Errorf("max iterations %d exceeded", s.MaxIterations)
	}
	return LoopState{
		Iteration: s.Iteration + 1, MaxIterations: s.MaxIterations,
		ContinueCondition: s.ContinueCondition, Variables: s.Variables,
	}, nil
}

// WithVariables returns a copy of s with vars merged into Variables.
func (s LoopState) WithVariables(vars map[string]optimizer.Value) LoopState {
	merged := make(map[string]optimizer.Value, len(s.Variables)+len(vars))
	for k, v := range s.Variables {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	s.Variables = merged
	return s
}

// MarkCompleted returns a copy of s with Completed set.
func (s LoopState) MarkCompleted() LoopState {
	s.Completed = true
	return s
}

// IterationRecord is one entry of a loop's execution trace.
type IterationRecord struct {
	Iteration int
	Output    map[string]any
}

// LoopResult is the outcome of StructuredLoop.Execute.
type LoopResult struct {
	Iterations     []IterationRecord
	FinalState     LoopState
	TotalIterations int
}

// IterationBody executes one loop iteration's task body and returns the
// output to fold into the next state's variables, or an error to abort
// the loop. The actual task execution is delegated to the caller
// (typically the tick Executor), matching how the pattern never owned
// task execution in the first place.
type IterationBody func(state LoopState) (map[string]any, error)

// StructuredLoop is Pattern 22: structured loop execution.
type StructuredLoop struct {
	Kind          LoopKind
	MaxIterations int
}

// NewStructuredLoop defaults MaxIterations to 1000, matching the
// grounding source's default.
func NewStructuredLoop(kind LoopKind, maxIterations int) StructuredLoop {
	if maxIterations <= 0 {
		maxIterations = 1000
	}
	return StructuredLoop{Kind: kind, MaxIterations: maxIterations}
}

// CheckCondition evaluates state.ContinueCondition against state's loop
// variables plus the current iteration count, using the restricted
// evaluator (optimizer.EvalWithVars) rather than a general-purpose eval
// — this is the one place the grounding source used Python's eval()
// directly on RDF-sourced text; here the condition can only ever read
// the exact variables the caller hands it.
func (l StructuredLoop) CheckCondition(state LoopState) bool {
	if state.Iteration >= state.MaxIterations {
		return false
	}
	vars := make(map[string]optimizer.Value, len(state.Variables)+1)
	for k, v := range state.Variables {
		vars[k] = v
	}
	vars["iteration"] = optimizer.NumVar(float64(state.Iteration))

	v, err := optimizer.EvalWithVars(state.ContinueCondition, vars)
	if err != nil {
		return false // an invalid or unevaluable condition terminates the loop
	}
	b, err := v.AsBool()
	if err != nil {
		return false
	}
	return b
}

// Execute runs the loop to completion under l.Kind's strategy, invoking
// body once per iteration.
func (l StructuredLoop) Execute(initial LoopState, body IterationBody) (LoopResult, error) {
	state := initial
	if state.MaxIterations == 0 {
		state.MaxIterations = l.MaxIterations
	}
	var iterations []IterationRecord

	runOnce := func() (bool, error) {
		output, err := body(state)
		if err != nil {
			return false, err
		}
		iterations = append(iterations, IterationRecord{Iteration: state.Iteration, Output: output})
		next, err := state.NextIteration()
		if err != nil {
			return false, nil // max iterations reached: stop, not an error
		}
		state = next
		return true, nil
	}

	switch l.Kind {
	case LoopWhile:
		for l.CheckCondition(state) && !state.Completed {
			ok, err := runOnce()
			if err != nil {
				return LoopResult{}, err
			}
			if !ok {
				break
			}
		}
	case LoopFor:
		for i := 0; i < state.MaxIterations; i++ {
			if state.Completed {
				break
			}
			ok, err := runOnce()
			if err != nil {
				return LoopResult{}, err
			}
			if !ok {
				break
			}
		}
	case LoopDoWhile:
		ok, err := runOnce()
		if err != nil {
			return LoopResult{}, err
		}
		for ok && l.CheckCondition(state) && !state.Completed {
			ok, err = runOnce()
			if err != nil {
				return LoopResult{}, err
			}
		}
	case LoopUntil:
		for !l.CheckCondition(state) && !state.Completed {
			ok, err := runOnce()
			if err != nil {
				return LoopResult{}, err
			}
			if !ok {
				break
			}
		}
	default:
		return LoopResult{}, fmt.Errorf("unknown loop kind %q", l.Kind)
	}

	return LoopResult{Iterations: iterations, FinalState: state, TotalIterations: len(iterations)}, nil
}
