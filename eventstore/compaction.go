package eventstore

import "time"

// CompactionPolicy governs when the store promotes hot events to warm
// and when it snapshots warm events to cold.
type CompactionPolicy struct {
	SnapshotIntervalEvents  int
	SnapshotIntervalSeconds time.Duration
	MaxHotEvents            int
	MaxWarmEvents           int
	CompressionLevel        int

	// RetainAfterCompaction, if true, reproduces the original Python
	// source's _compact_warm_to_cold behavior: events are snapshotted to
	// cold but never evicted from warm. Default false: events are
	// evicted from warm once safely captured in a cold snapshot. See
	// DESIGN.md "Open Question decisions" #3.
	RetainAfterCompaction bool
}

// DefaultCompactionPolicy returns sensible default thresholds for the
// hot/warm/cold tiers.
func DefaultCompactionPolicy() CompactionPolicy {
	return CompactionPolicy{
		SnapshotIntervalEvents:  1000,
		SnapshotIntervalSeconds: 5 * time.Minute,
		MaxHotEvents:            256,
		MaxWarmEvents:           10000,
		CompressionLevel:        6,
		RetainAfterCompaction:   false,
	}
}

// ShouldSnapshot reports whether either threshold has been reached.
func (p CompactionPolicy) ShouldSnapshot(eventsSince int, timeSince time.Duration) bool {
	return eventsSince >= p.SnapshotIntervalEvents || timeSince >= p.SnapshotIntervalSeconds
}
