package workflow

import (
	"fmt"

	"github.com/google/uuid"
)

// MIState is a multiple-instance execution state.
type MIState string

const (
	MIPending   MIState = "pending"
	MISpawning  MIState = "spawning"
	MIRunning   MIState = "running"
	MICompleted MIState = "completed"
	MIFailed    MIState = "failed"
)

// MIInstance is one spawned instance of a multiple-instance task.
type MIInstance struct {
	ID             string
	Task           string
	ParentID       string
	InstanceNumber int
	TriggerEvent   any
	State          MIState
}

// MIParent tracks the synchronization barrier for a multiple-instance
// spawn: how many instances are required (if known) and how many have
// completed so far.
type MIParent struct {
	ID                    string
	Task                  string
	RequiredInstances     int  // -1 when unbounded (MI-Dynamic)
	CompletedInstances    int
	SpawnedInstances      int
	DynamicSpawning       bool
	SpawnCondition        string
	TerminationCondition  string
}

// MIResult mirrors the Python source's ExecutionResult for MI patterns:
// success and error are mutually exclusive, enforced by NewMIResult
// instead of letting a zero-value MIResult claim both or neither.
type MIResult struct {
	Success     bool
	InstanceIDs []string
	State       MIState
	Metadata    map[string]any
	Error       string
}

func newMIResult(success bool, ids []string, state MIState, metadata map[string]any, errMsg string) (MIResult, error) {
	if !success && errMsg == "" {
		return MIResult{}, fmt.Errorf("a failed MI execution must carry an error message")
	}
	if success && errMsg != "" {
		return MIResult{}, fmt.Errorf("a successful MI execution cannot carry an error message")
	}
	return MIResult{Success: success, InstanceIDs: ids, State: state, Metadata: metadata, Error: errMsg}, nil
}

// MIWithoutSync is Pattern 12: fire-and-forget spawning, no completion
// tracking.
type MIWithoutSync struct{}

// SpawnInstances spawns count instances of task with no synchronization
// barrier.
func (MIWithoutSync) SpawnInstances(task string, count int) ([]MIInstance, error) {
	if count <= 0 {
		return nil, fmt.Errorf("instance count must be positive, got %d", count)
	}
	instances := make([]MIInstance, count)
	for i := 0; i < count; i++ {
		instances[i] = MIInstance{
			ID: task + "#instance-" + uuid.New().String(), Task: task,
			InstanceNumber: i, State: MIRunning,
		}
	}
	return instances, nil
}

// Execute runs Pattern 12 end to end.
func (p MIWithoutSync) Execute(task string, count int) (MIResult, []MIInstance, error) {
	instances, err := p.SpawnInstances(task, count)
	if err != nil {
		res, _ := newMIResult(false, nil, MIFailed, nil, err.Error())
		return res, nil, err
	}
	ids := make([]string, len(instances))
	for i, inst := range instances {
		ids[i] = inst.ID
	}
	res, err := newMIResult(true, ids, MIRunning, map[string]any{"pattern": 12, "sync": false}, "")
	return res, instances, err
}

// MIDesignTime is Pattern 13: instance count fixed at design time, all
// instances must complete before the workflow continues.
type MIDesignTime struct {
	InstanceCount int
}

// Execute spawns InstanceCount instances under a synchronization
// barrier tracked by the returned MIParent.
func (p MIDesignTime) Execute(task string) (MIResult, []MIInstance, MIParent, error) {
	if p.InstanceCount <= 0 {
		err := fmt.Errorf("instance count must be positive, got %d", p.InstanceCount)
		res, _ := newMIResult(false, nil, MIFailed, nil, err.Error())
		return res, nil, MIParent{}, err
	}
	parentID := task + "#mi-parent-" + uuid.New().String()
	instances := make([]MIInstance, p.InstanceCount)
	ids := make([]string, p.InstanceCount)
	for i := 0; i < p.InstanceCount; i++ {
		instances[i] = MIInstance{
			ID: task + "#instance-" + uuid.New().String(), Task: task,
			ParentID: parentID, InstanceNumber: i, State: MIRunning,
		}
		ids[i] = instances[i].ID
	}
	parent := MIParent{ID: parentID, Task: task, RequiredInstances: p.InstanceCount}
	res, err := newMIResult(true, ids, MIRunning, map[string]any{
		"pattern": 13, "requires_sync": true, "parent_id": parentID, "instance_count": p.InstanceCount,
	}, "")
	return res, instances, parent, err
}

// MIRunTimeKnown is Pattern 14: instance count read from a context
// variable at spawn time, same synchronization as MIDesignTime.
type MIRunTimeKnown struct {
	InstanceCountVariable string
}

// Execute reads m.InstanceCountVariable out of context and spawns that
// many instances.
func (p MIRunTimeKnown) Execute(task string, context map[string]any) (MIResult, []MIInstance, MIParent, error) {
	raw, ok := context[p.InstanceCountVariable]
	if !ok {
		err := fmt.Errorf("instance count variable %q not found in context", p.InstanceCountVariable)
		res, _ := newMIResult(false, nil, MIFailed, nil, err.Error())
		return res, nil, MIParent{}, err
	}
	count, ok := raw.(int)
	if !ok || count <= 0 {
		err := fmt.Errorf("instance count must be a positive integer, got %v", raw)
		res, _ := newMIResult(false, nil, MIFailed, nil, err.Error())
		return res, nil, MIParent{}, err
	}

	parentID := task + "#mi-parent-" + uuid.New().String()
	instances := make([]MIInstance, count)
	ids := make([]string, count)
	for i := 0; i < count; i++ {
		instances[i] = MIInstance{
			ID: task + "#instance-" + uuid.New().String(), Task: task,
			ParentID: parentID, InstanceNumber: i, State: MIRunning,
		}
		ids[i] = instances[i].ID
	}
	parent := MIParent{ID: parentID, Task: task, RequiredInstances: count}
	res, err := newMIResult(true, ids, MIRunning, map[string]any{
		"pattern": 14, "requires_sync": true, "parent_id": parentID,
		"instance_count": count, "count_variable": p.InstanceCountVariable,
	}, "")
	return res, instances, parent, err
}

// MIDynamic is Pattern 15: instance count unknown at start; instances
// spawn dynamically, one per event in the driving event stream.
type MIDynamic struct {
	SpawnCondition       string
	TerminationCondition string
}

// Execute spawns one instance per element of events.
func (p MIDynamic) Execute(task string, events []any) (MIResult, []MIInstance, MIParent, error) {
	parentID := task + "#mi-parent-" + uuid.New().String()
	instances := make([]MIInstance, len(events))
	ids := make([]string, len(events))
	for i, ev := range events {
		instances[i] = MIInstance{
			ID: task + "#instance-" + uuid.New().String(), Task: task,
			ParentID: parentID, InstanceNumber: i, TriggerEvent: ev, State: MIRunning,
		}
		ids[i] = instances[i].ID
	}
	parent := MIParent{
		ID: parentID, Task: task, RequiredInstances: -1, SpawnedInstances: len(events),
		DynamicSpawning: true, SpawnCondition: p.SpawnCondition, TerminationCondition: p.TerminationCondition,
	}
	res, err := newMIResult(true, ids, MIRunning, map[string]any{
		"pattern": 15, "requires_sync": false, "parent_id": parentID,
		"initial_instance_count": len(events), "spawn_condition": p.SpawnCondition,
		"termination_condition": p.TerminationCondition,
	}, "")
	return res, instances, parent, err
}

// CheckCompletion reports whether every required instance of parent has
// completed. A dynamic parent (RequiredInstances == -1) is complete
// only once an explicit TerminationCondition has been externally
// satisfied — this function alone can never decide that, so it returns
// false for dynamic parents.
func CheckCompletion(parent MIParent) bool {
	if parent.RequiredInstances < 0 {
		return false
	}
	return parent.CompletedInstances >= parent.RequiredInstances
}

// MarkInstanceComplete marks instance completed and increments parent's
// completed counter. Returns the updated instance and parent (both
// value types; callers persist the results themselves).
func MarkInstanceComplete(instance MIInstance, parent MIParent) (MIInstance, MIParent) {
	instance.State = MICompleted
	parent.CompletedInstances++
	return instance, parent
}
