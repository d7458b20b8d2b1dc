package eventstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the tiered (hot/warm/cold) event store façade. A single
// mutex serializes every mutating operation; readers take the same
// lock, trading away read concurrency for a store whose invariants are
// trivial to reason about.
type Store struct {
	mu sync.Mutex

	policy CompactionPolicy

	hot  *hotTier
	warm *warmTier
	cold *coldTier

	chains map[string]*Chain // workflow_id -> chain

	nextSeq          uint64
	eventsSinceSnap  map[string]int       // workflow_id -> count since last snapshot
	lastSnapAt       map[string]time.Time // workflow_id -> last snapshot time
}

// NewStore constructs an empty store governed by policy.
func NewStore(policy CompactionPolicy) *Store {
	return &Store{
		policy:          policy,
		hot:             newHotTier(policy.MaxHotEvents),
		warm:            newWarmTier(),
		cold:            newColdTier(),
		chains:          make(map[string]*Chain),
		eventsSinceSnap: make(map[string]int),
		lastSnapAt:      make(map[string]time.Time),
	}
}

// AppendResult reports the assigned identity of an appended event.
type AppendResult struct {
	EventID     string
	SequenceNum uint64
}

// Append assigns the next sequence number when e.SequenceNum is zero (a
// non-zero SequenceNum is kept as given), validates the hash chain,
// updates indices, and evaluates the compaction policy. On chain
// validation failure the store is left unchanged.
func (s *Store) Append(e Event) (AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(e)
}

// AppendBatch appends events atomically in order; if any event fails
// chain validation the whole batch is rejected and the store is left
// unchanged, even for the common case of sequential same-workflow
// batches.
func (s *Store) AppendBatch(events []Event) ([]AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch against a scratch copy of affected chains
	// before committing any of it, so a mid-batch failure never leaves a
	// partially-appended workflow.
	scratchChains := make(map[string]*Chain, len(s.chains))
	for id, c := range s.chains {
		scratchChains[id] = c
	}
	scratchSeq := s.nextSeq

	type planned struct {
		event Event
		res   AppendResult
	}
	plan := make([]planned, 0, len(events))

	for _, e := range events {
		e.SequenceNum = scratchSeq
		chain, ok := scratchChains[e.WorkflowID]
		if !ok {
			chain = NewChain(e.WorkflowID)
		}
		next, err := chain.Append(e)
		if err != nil {
			return nil, fmt.Errorf("append_batch rejected: %w", err)
		}
		scratchChains[e.WorkflowID] = next
		plan = append(plan, planned{event: e, res: AppendResult{EventID: e.EventID, SequenceNum: e.SequenceNum}})
		scratchSeq++
	}

	results := make([]AppendResult, 0, len(plan))
	for _, p := range plan {
		if _, err := s.appendLocked(p.event); err != nil {
			// Should not happen given pre-validation above, but never
			// leave the store torn if it does.
			return nil, fmt.Errorf("append_batch inconsistent at event %s: %w", p.event.EventID, err)
		}
		results = append(results, p.res)
	}
	return results, nil
}

func (s *Store) appendLocked(e Event) (AppendResult, error) {
	chain, ok := s.chains[e.WorkflowID]
	if !ok {
		chain = NewChain(e.WorkflowID)
	}
	if e.SequenceNum == 0 {
		e.SequenceNum = s.nextSeq
	}
	next, err := chain.Append(e)
	if err != nil {
		return AppendResult{}, err
	}
	s.chains[e.WorkflowID] = next
	if e.SequenceNum >= s.nextSeq {
		s.nextSeq = e.SequenceNum + 1
	}

	if evicted, did := s.hot.push(e); did {
		s.warm.add(evicted)
	}

	s.eventsSinceSnap[e.WorkflowID]++
	s.evaluateCompaction(e.WorkflowID)

	return AppendResult{EventID: e.EventID, SequenceNum: e.SequenceNum}, nil
}

// evaluateCompaction runs the compaction policy check after each append
// (including each event of an AppendBatch): snapshot if thresholds crossed, then compact warm to cold if
// warm exceeds its bound. Never blocks the append path for more than
// this one evaluation.
func (s *Store) evaluateCompaction(workflowID string) {
	since := s.eventsSinceSnap[workflowID]
	elapsed := time.Since(s.lastSnapAt[workflowID])
	if s.policy.ShouldSnapshot(since, elapsed) {
		_, _ = s.createSnapshotLocked(workflowID)
	}
	if s.warm.len() > s.policy.MaxWarmEvents {
		s.compactWarmToColdLocked(workflowID)
	}
}

func (s *Store) createSnapshotLocked(workflowID string) (Snapshot, error) {
	events := s.warm.byWorkflowID(workflowID)
	for _, e := range s.hot.buf {
		if e.WorkflowID == workflowID {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return Snapshot{}, nil
	}
	compressed, err := compressEvents(events, s.policy.CompressionLevel)
	if err != nil {
		// Compression failure is reported but does not roll back
		// in-memory state; the next snapshot attempt retries.
		return Snapshot{}, err
	}
	var maxSeq uint64
	for _, e := range events {
		if e.SequenceNum > maxSeq {
			maxSeq = e.SequenceNum
		}
	}
	snap := Snapshot{
		SnapshotID:      uuid.New().String(),
		WorkflowID:      workflowID,
		MaxSequenceNum:  maxSeq,
		Timestamp:       time.Now(),
		EventCount:      len(events),
		CompressedBytes: compressed,
	}
	s.cold.add(snap)
	s.eventsSinceSnap[workflowID] = 0
	s.lastSnapAt[workflowID] = time.Now()
	return snap, nil
}

// compactWarmToColdLocked moves every warm event of workflowID into one
// cold snapshot. Unlike the original Python source (see
// DESIGN.md), events ARE evicted from warm after a successful snapshot
// unless policy.RetainAfterCompaction is set.
func (s *Store) compactWarmToColdLocked(workflowID string) {
	events := s.warm.byWorkflowID(workflowID)
	if len(events) == 0 {
		return
	}
	compressed, err := compressEvents(events, s.policy.CompressionLevel)
	if err != nil {
		return
	}
	var maxSeq uint64
	for _, e := range events {
		if e.SequenceNum > maxSeq {
			maxSeq = e.SequenceNum
		}
	}
	s.cold.add(Snapshot{
		SnapshotID:      uuid.New().String(),
		WorkflowID:      workflowID,
		MaxSequenceNum:  maxSeq,
		Timestamp:       time.Now(),
		EventCount:      len(events),
		CompressedBytes: compressed,
	})

	if !s.policy.RetainAfterCompaction {
		ids := make(map[string]bool, len(events))
		for _, e := range events {
			ids[e.EventID] = true
		}
		remaining := s.warm.sorted[:0:0]
		for _, e := range s.warm.sorted {
			if e.WorkflowID == workflowID && ids[e.EventID] {
				continue
			}
			remaining = append(remaining, e)
		}
		s.warm.sorted = remaining
		for id := range ids {
			delete(s.warm.byID, id)
		}
		kept := s.warm.byWorkflow[workflowID][:0]
		for _, id := range s.warm.byWorkflow[workflowID] {
			if !ids[id] {
				kept = append(kept, id)
			}
		}
		s.warm.byWorkflow[workflowID] = kept
	}
}

// CreateSnapshot manually materializes a cold-tier snapshot of
// workflowID's warm and hot events. It covers one workflow only: an
// empty workflowID selects events whose WorkflowID is empty, and when
// no event matches it returns a zero Snapshot and a nil error.
func (s *Store) CreateSnapshot(workflowID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSnapshotLocked(workflowID)
}

// GetByID searches hot -> warm -> cold and returns the event, or
// (Event{}, false) if not found.
func (s *Store) GetByID(eventID string) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.hot.byID(eventID); ok {
		return e, true, nil
	}
	if e, ok := s.warm.byIDLookup(eventID); ok {
		return e, true, nil
	}
	for _, wf := range s.cold.allWorkflows() {
		if e, ok, err := s.cold.byID(wf, eventID); err != nil {
			return Event{}, false, err
		} else if ok {
			return e, true, nil
		}
	}
	return Event{}, false, nil
}

// GetBySequence searches hot -> warm -> cold by sequence number.
// workflowID must be supplied for the cold-tier lookup since cold
// snapshots are partitioned per workflow.
func (s *Store) GetBySequence(workflowID string, n uint64) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.hot.bySequence(n); ok {
		return e, true, nil
	}
	if e, ok := s.warm.bySequence(n); ok {
		return e, true, nil
	}
	return s.cold.bySequence(workflowID, n)
}

// QueryResult is the paginated result of QueryRange.
type QueryResult struct {
	Events     []Event
	TotalCount int
	HasMore    bool
}

// QueryRange applies a time-window + type filter + pagination across
// warm and cold tiers (hot is a strict subset of the live window already
// represented in warm once evicted; while still in hot it is included
// too).
func (s *Store) QueryRange(start, end time.Time, workflowID string, eventTypes []EventType, limit, offset int) QueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	typeSet := make(map[EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		typeSet[t] = true
	}

	var all []Event
	seen := make(map[string]bool)
	collect := func(e Event) {
		if seen[e.EventID] {
			return
		}
		if workflowID != "" && e.WorkflowID != workflowID {
			return
		}
		if !start.IsZero() && e.Timestamp.Before(start) {
			return
		}
		if !end.IsZero() && e.Timestamp.After(end) {
			return
		}
		if len(typeSet) > 0 && !typeSet[e.EventType] {
			return
		}
		seen[e.EventID] = true
		all = append(all, e)
	}

	for _, e := range s.hot.buf {
		collect(e)
	}
	for _, e := range s.warm.sorted {
		collect(e)
	}
	workflows := []string{workflowID}
	if workflowID == "" {
		workflows = s.cold.allWorkflows()
	}
	for _, wf := range workflows {
		for _, snap := range s.cold.snapshotsFor(wf) {
			events, err := decompressEvents(snap.CompressedBytes)
			if err != nil {
				continue
			}
			for _, e := range events {
				collect(e)
			}
		}
	}

	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	end2 := offset + limit
	if limit <= 0 || end2 > len(all) {
		end2 = len(all)
	}
	page := all[offset:end2]
	return QueryResult{Events: page, TotalCount: total, HasMore: end2 < total}
}

// Replay yields events for workflowID (or all workflows if empty) in
// sequence order, from fromSequence up to and including toSequence (or
// unbounded if toSequence is nil). It is a pull-based iterator realized
// here as a materialized slice for simplicity; callers wanting lazy
// pull semantics should range over the returned slice incrementally.
func (s *Store) Replay(fromSequence uint64, toSequence *uint64, workflowID string) []Event {
	res := s.QueryRange(time.Time{}, time.Time{}, workflowID, nil, 0, 0)
	var out []Event
	for _, e := range res.Events {
		if e.SequenceNum < fromSequence {
			continue
		}
		if toSequence != nil && e.SequenceNum > *toSequence {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNum < out[j].SequenceNum })
	return out
}

// Count returns the total event count, optionally scoped to workflowID,
// including the cold tier.
func (s *Store) Count(workflowID string) int {
	res := s.QueryRange(time.Time{}, time.Time{}, workflowID, nil, 0, 0)
	return res.TotalCount
}

// TailHash returns the event_hash of workflowID's most recent event, or
// GenesisHash if the workflow has no events yet. Callers building the
// next Event in sequence (e.g. the workflow tick executor) use this to
// populate PreviousHash before computing EventHash and calling Append.
func (s *Store) TailHash(workflowID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain, ok := s.chains[workflowID]
	if !ok {
		return GenesisHash
	}
	if len(chain.Events) == 0 {
		return chain.Genesis
	}
	return chain.Events[len(chain.Events)-1].EventHash
}

// VerifyChainIntegrity checks every persisted link for workflowID.
func (s *Store) VerifyChainIntegrity(workflowID string) (bool, string) {
	s.mu.Lock()
	chain, ok := s.chains[workflowID]
	s.mu.Unlock()
	if !ok {
		return true, ""
	}
	return chain.Verify()
}

// RestoreFromSnapshot repopulates in-memory indices from snap, advancing
// the global sequence counter past the snapshot's max sequence number.
func (s *Store) RestoreFromSnapshot(snap Snapshot) error {
	events, err := decompressEvents(snap.CompressedBytes)
	if err != nil {
		return fmt.Errorf("restore_from_snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cold.add(snap)
	for _, e := range events {
		s.warm.add(e)
		if e.SequenceNum >= s.nextSeq {
			s.nextSeq = e.SequenceNum + 1
		}
		chain, ok := s.chains[e.WorkflowID]
		if !ok {
			chain = NewChain(e.WorkflowID)
		}
		if next, err := chain.Append(e); err == nil {
			s.chains[e.WorkflowID] = next
		}
	}
	return nil
}
