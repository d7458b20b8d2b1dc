package workflow

import "fmt"

// RecursionFrame is an immutable recursion stack frame.
type RecursionFrame struct {
	Depth         int
	ParentContext map[string]any
	ReturnPoint   string
	WorkflowID    string
}

// Push returns a new frame one level deeper than f, snapshotting
// context as the new frame's parent context.
func (f RecursionFrame) Push(workflowID, returnPoint string, context map[string]any) RecursionFrame {
	return RecursionFrame{Depth: f.Depth + 1, ParentContext: context, ReturnPoint: returnPoint, WorkflowID: workflowID}
}

// Recursion is Pattern 23: bounded workflow self-invocation.
type Recursion struct {
	MaxDepth int
}

// NewRecursion defaults MaxDepth to 100, matching the grounding
// source's default.
func NewRecursion(maxDepth int) Recursion {
	if maxDepth <= 0 {
		maxDepth = 100
	}
	return Recursion{MaxDepth: maxDepth}
}

// PushFrame pushes a new frame onto the recursion stack. current is nil
// for the root invocation. Returns "max recursion exceeded" once
// MaxDepth is reached.
func (r Recursion) PushFrame(current *RecursionFrame, workflowID, returnPoint string, context map[string]any) (RecursionFrame, error) {
	depth := 0
	if current != nil {
		depth = current.Depth + 1
	}
	if depth >= r.MaxDepth {
		return RecursionFrame{}, fmt.Errorf("max recursion depth %d exceeded", r.MaxDepth)
	}
	snapshot := make(map[string]any, len(context))
	for k, v := range context {
		snapshot[k] = v
	}
	return RecursionFrame{Depth: depth, ParentContext: snapshot, ReturnPoint: returnPoint, WorkflowID: workflowID}, nil
}

// PopFrame returns the parent context to restore after a recursive
// invocation returns.
func (r Recursion) PopFrame(frame RecursionFrame) map[string]any {
	out := make(map[string]any, len(frame.ParentContext))
	for k, v := range frame.ParentContext {
		out[k] = v
	}
	return out
}

// RecursiveInvoke executes one recursive workflow invocation. The
// actual workflow execution is delegated to invoke, matching how
// recursion never owned task execution in the grounding source either
// ("delegates to the YAWL engine's workflow executor").
type RecursiveInvoke func(frame RecursionFrame) (ExecutionResult, error)

// ExecuteRecursive orchestrates one recursive call: pushes the root
// frame, delegates execution to invoke, and annotates the result with
// recursion metadata.
func (r Recursion) ExecuteRecursive(workflowID string, context map[string]any, initialDepth int, invoke RecursiveInvoke) (ExecutionResult, error) {
	if initialDepth >= r.MaxDepth {
		return ExecutionResult{}, fmt.Errorf("max recursion depth %d exceeded", r.MaxDepth)
	}
	root := RecursionFrame{Depth: initialDepth, ParentContext: map[string]any{}, ReturnPoint: "root", WorkflowID: workflowID}

	result, err := invoke(root)
	if err != nil {
		return ExecutionResult{}, err
	}

	output := make(map[string]any, len(result.OutputData)+2)
	for k, v := range result.OutputData {
		output[k] = v
	}
	output["recursion_depth"] = root.Depth
	output["max_depth_reached"] = root.Depth

	return ExecutionResult{TaskID: result.TaskID, Success: result.Success, OutputData: output, ErrorMessage: result.ErrorMessage}, nil
}
