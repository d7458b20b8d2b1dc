// Package workflow implements the Workflow Pattern Executor: split/join
// control-flow patterns, multiple-instance spawning, structured loops,
// bounded recursion, cancellation regions, and the per-tick executor
// that drives a petri.Net marking forward under hook supervision.
package workflow

import (
	"fmt"

	"kgcp.evalgo.org/optimizer"
)

// PatternKind names one of the control-flow patterns a transition
// implements, for tagging SPLIT/JOIN events. It is informational only —
// enablement and firing are always governed by petri.Net's arc weights;
// PatternKind never changes how a transition fires.
type PatternKind string

const (
	PatternSequence        PatternKind = "sequence"
	PatternANDSplit        PatternKind = "and_split"
	PatternANDJoin         PatternKind = "and_join"
	PatternXORSplit        PatternKind = "xor_split"
	PatternXORJoin         PatternKind = "xor_join"
	PatternORSplit         PatternKind = "or_split"
	PatternDeferredChoice  PatternKind = "deferred_choice"
)

// Branch is one declared output of an XOR-split or OR-split: a target
// place, an optional guard expression evaluated against the tick
// context, and whether this branch is the XOR-split's fallback.
// Guards aren't part of petri.Arc — a bare Petri net has no notion of a
// conditional arc — so split selection lives here, one layer above the
// net, and resolves to a concrete place id that the caller then feeds
// to a single-output Fire.
type Branch struct {
	Place     string
	Guard     string // restricted expression (optimizer.EvalWithVars); empty means "always true"
	IsDefault bool
}

// evalGuard evaluates branch.Guard against vars, treating an empty
// guard as unconditionally true.
func evalGuard(guard string, vars map[string]optimizer.Value) (bool, error) {
	if guard == "" {
		return true, nil
	}
	v, err := optimizer.EvalWithVars(guard, vars)
	if err != nil {
		return false, fmt.Errorf("evaluating guard %q: %w", guard, err)
	}
	return v.AsBool()
}

// ChooseXORSplit evaluates branches in declared order and returns the
// place of the first branch whose guard is true. If no guard matches,
// the declared default branch (IsDefault) fires instead. If neither a
// matching guard nor a default branch exists, it returns a "no-branch"
// error.
func ChooseXORSplit(branches []Branch, vars map[string]optimizer.Value) (string, error) {
	var defaultPlace string
	haveDefault := false

	for _, b := range branches {
		if b.IsDefault {
			defaultPlace = b.Place
			haveDefault = true
			continue
		}
		ok, err := evalGuard(b.Guard, vars)
		if err != nil {
			return "", err
		}
		if ok {
			return b.Place, nil
		}
	}
	if haveDefault {
		return defaultPlace, nil
	}
	return "", fmt.Errorf("no-branch: no XOR-split guard matched and no default branch was declared")
}

// ChooseORSplit evaluates every branch's guard independently and
// returns the places of every branch whose guard is true. At least one
// guard must be true; otherwise it is an error (the OR-split pattern
// requires at least one selected branch).
func ChooseORSplit(branches []Branch, vars map[string]optimizer.Value) ([]string, error) {
	var chosen []string
	for _, b := range branches {
		ok, err := evalGuard(b.Guard, vars)
		if err != nil {
			return nil, err
		}
		if ok {
			chosen = append(chosen, b.Place)
		}
	}
	if len(chosen) == 0 {
		return nil, fmt.Errorf("or-split requires at least one true guard, none matched")
	}
	return chosen, nil
}
