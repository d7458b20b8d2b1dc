package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"kgcp.evalgo.org/petri"
)

func TestCancelClearsOnlyRegionPlaces(t *testing.T) {
	region := CancellationRegion{TriggerTask: "t:cancel", NodeIDs: []string{"p:a", "p:b"}}
	marking := petri.Marking{"p:a": 2, "p:b": 1, "p:c": 5}

	next := region.Cancel(marking)
	require.Equal(t, uint64(0), next.Get("p:a"))
	require.Equal(t, uint64(0), next.Get("p:b"))
	require.Equal(t, uint64(5), next.Get("p:c"), "places outside the region must be untouched")
}

func TestCancelLeavesOriginalMarkingUntouched(t *testing.T) {
	region := CancellationRegion{NodeIDs: []string{"p:a"}}
	marking := petri.Marking{"p:a": 3}

	_ = region.Cancel(marking)
	require.Equal(t, uint64(3), marking.Get("p:a"), "Cancel must not mutate the marking it was given")
}

func TestCancelInstancesMarksOnlyInRegionInstancesFailed(t *testing.T) {
	region := CancellationRegion{NodeIDs: []string{"parent-1"}}
	instances := []MIInstance{
		{ID: "i1", ParentID: "parent-1", State: MIRunning},
		{ID: "i2", ParentID: "parent-2", State: MIRunning},
	}

	out := region.CancelInstances(instances)
	require.Equal(t, MIFailed, out[0].State)
	require.Equal(t, MIRunning, out[1].State)
}

func TestCancelInstancesMatchesByInstanceIDToo(t *testing.T) {
	region := CancellationRegion{NodeIDs: []string{"i1"}}
	instances := []MIInstance{{ID: "i1", ParentID: "parent-1", State: MIRunning}}

	out := region.CancelInstances(instances)
	require.Equal(t, MIFailed, out[0].State)
}
