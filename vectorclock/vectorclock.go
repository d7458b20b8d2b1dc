// Package vectorclock implements partial-order timestamps for events
// produced by independent actors across workflows.
package vectorclock

import "sort"

// Clock maps an actor identifier to a monotonically increasing counter.
// Values are treated as immutable; every operation returns a new Clock.
type Clock map[string]uint64

// Zero returns a clock with a single actor at counter zero.
func Zero(actor string) Clock {
	return Clock{actor: 0}
}

// New returns an empty clock.
func New() Clock {
	return Clock{}
}

// Copy returns an independent copy of c.
func (c Clock) Copy() Clock {
	out := make(Clock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Increment returns a new clock with actor's component strictly greater
// than in c; every other component is unchanged.
func (c Clock) Increment(actor string) Clock {
	out := c.Copy()
	out[actor] = out[actor] + 1
	return out
}

// Merge returns the component-wise maximum of c and other. Merge is
// commutative, associative, and idempotent.
func (c Clock) Merge(other Clock) Clock {
	out := make(Clock, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

// HappensBefore reports whether c strictly precedes other: every
// component of c is <= the corresponding component of other, and at
// least one component is strictly less. Irreflexive, antisymmetric,
// transitive by construction.
func (c Clock) HappensBefore(other Clock) bool {
	strictlyLess := false
	for k, v := range c {
		ov := other[k]
		if v > ov {
			return false
		}
		if v < ov {
			strictlyLess = true
		}
	}
	for k, ov := range other {
		if _, ok := c[k]; !ok && ov > 0 {
			strictlyLess = true
		}
	}
	return strictlyLess
}

// ConcurrentWith reports whether neither c nor other happens before the
// other.
func (c Clock) ConcurrentWith(other Clock) bool {
	return !c.HappensBefore(other) && !other.HappensBefore(c)
}

// Equal reports whether c and other have identical components (missing
// keys treated as zero).
func (c Clock) Equal(other Clock) bool {
	for k, v := range c {
		if other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if c[k] != v {
			return false
		}
	}
	return true
}

// Actors returns the sorted list of actor ids with non-zero or present
// components, for deterministic iteration (canonical serialization).
func (c Clock) Actors() []string {
	actors := make([]string, 0, len(c))
	for k := range c {
		actors = append(actors, k)
	}
	sort.Strings(actors)
	return actors
}
