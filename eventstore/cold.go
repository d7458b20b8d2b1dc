package eventstore

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Snapshot is a compressed, self-describing, sequence-numbered batch of
// historical events belonging to one workflow.
type Snapshot struct {
	SnapshotID      string    `json:"snapshot_id"`
	WorkflowID      string    `json:"workflow_id"`
	MaxSequenceNum  uint64    `json:"max_sequence_number"`
	Timestamp       time.Time `json:"timestamp"`
	EventCount      int       `json:"event_count"`
	CompressedBytes []byte    `json:"-"`
}

// compressEvents serializes events as JSON and zlib-compresses the
// result into a cold-tier blob.
func compressEvents(events []Event, level int) ([]byte, error) {
	raw, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressEvents reverses compressEvents.
func decompressEvents(compressed []byte) ([]Event, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib read: %w", err)
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	return events, nil
}

// coldTier holds per-workflow lists of snapshots, sorted ascending by
// MaxSequenceNum, to support O(log k) binary search lookup by sequence.
type coldTier struct {
	byWorkflow map[string][]Snapshot
}

func newColdTier() *coldTier {
	return &coldTier{byWorkflow: make(map[string][]Snapshot)}
}

func (c *coldTier) add(s Snapshot) {
	list := c.byWorkflow[s.WorkflowID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].MaxSequenceNum >= s.MaxSequenceNum })
	list = append(list, Snapshot{})
	copy(list[idx+1:], list[idx:])
	list[idx] = s
	c.byWorkflow[s.WorkflowID] = list
}

// bySequence performs the O(log k) binary search over snapshot
// MaxSequenceNum, then decompresses only the matching snapshot to find
// event n.
func (c *coldTier) bySequence(workflowID string, n uint64) (Event, bool, error) {
	list := c.byWorkflow[workflowID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].MaxSequenceNum >= n })
	if idx >= len(list) {
		return Event{}, false, nil
	}
	events, err := decompressEvents(list[idx].CompressedBytes)
	if err != nil {
		return Event{}, false, err
	}
	for _, e := range events {
		if e.SequenceNum == n {
			return e, true, nil
		}
	}
	return Event{}, false, nil
}

// byID performs a LINEAR scan over snapshots in reverse chronological
// order, fully decompressing each, mirroring the original Python
// implementation's get_by_id behavior: the spec only mandates O(log k)
// for sequence lookup, not for event_id lookup, so this asymmetry is
// intentional (see DESIGN.md).
func (c *coldTier) byID(workflowID string, id string) (Event, bool, error) {
	list := c.byWorkflow[workflowID]
	for i := len(list) - 1; i >= 0; i-- {
		events, err := decompressEvents(list[i].CompressedBytes)
		if err != nil {
			return Event{}, false, err
		}
		for _, e := range events {
			if e.EventID == id {
				return e, true, nil
			}
		}
	}
	return Event{}, false, nil
}

func (c *coldTier) allWorkflows() []string {
	out := make([]string, 0, len(c.byWorkflow))
	for k := range c.byWorkflow {
		out = append(out, k)
	}
	return out
}

func (c *coldTier) snapshotsFor(workflowID string) []Snapshot {
	return append([]Snapshot(nil), c.byWorkflow[workflowID]...)
}
