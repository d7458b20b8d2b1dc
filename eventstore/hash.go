package eventstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ComputeHash returns the deterministic 64-hex-char (32-byte) digest of
// every field of e except EventHash itself, using a canonical
// serialization: lexicographically ordered map keys and a fixed ISO 8601
// timestamp form with an explicit UTC offset.
func ComputeHash(e Event) string {
	h := sha256.New()
	h.Write([]byte(canonicalize(e)))
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalize(e Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "event_id=%s\n", e.EventID)
	fmt.Fprintf(&b, "event_type=%s\n", e.EventType)
	fmt.Fprintf(&b, "timestamp=%s\n", e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
	fmt.Fprintf(&b, "tick_number=%d\n", e.TickNumber)
	fmt.Fprintf(&b, "workflow_id=%s\n", e.WorkflowID)
	fmt.Fprintf(&b, "sequence_number=%d\n", e.SequenceNum)

	fmt.Fprintf(&b, "payload={")
	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, e.Payload[k])
	}
	fmt.Fprintf(&b, "}\n")

	fmt.Fprintf(&b, "caused_by=%s\n", strings.Join(e.CausedBy, ","))

	fmt.Fprintf(&b, "vector_clock={")
	for _, actor := range e.VectorClock.Actors() {
		fmt.Fprintf(&b, "%s=%s;", actor, strconv.FormatUint(e.VectorClock[actor], 10))
	}
	fmt.Fprintf(&b, "}\n")

	fmt.Fprintf(&b, "previous_hash=%s\n", e.PreviousHash)

	return b.String()
}
