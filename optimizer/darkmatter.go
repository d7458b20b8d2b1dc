package optimizer

import "sort"

// OptimizationRule names a rewrite rule. Six rules are named here
// because the source this was ported from declares six, but only five
// are ever registered as callables — SUBQUERY_FLATTENING is declared
// and never wired. That gap is preserved rather than silently closed:
// see DESIGN.md's C9 entry.
type OptimizationRule string

const (
	RuleFilterPushdown       OptimizationRule = "filter_pushdown"
	RuleJoinReordering       OptimizationRule = "join_reordering"
	RulePredicateElimination OptimizationRule = "predicate_elimination"
	RuleConstantFolding      OptimizationRule = "constant_folding"
	RuleProjectionPushdown   OptimizationRule = "projection_pushdown"
	RuleSubqueryFlattening   OptimizationRule = "subquery_flattening" // never registered; see DESIGN.md
)

// registeredRules is the fixed order rules run in, matching the
// grounding source's registration order.
var registeredRules = []OptimizationRule{
	RuleFilterPushdown,
	RuleJoinReordering,
	RulePredicateElimination,
	RuleConstantFolding,
	RuleProjectionPushdown,
}

// OptimizeQueryPlan runs every registered rewrite rule over p in order,
// then reports cost, parallelization and critical-path analysis for the
// rewritten plan.
func OptimizeQueryPlan(p Plan) OptimizedPlan {
	original := calculatePlanCost(p)

	current := p.clone()
	var applied []string
	for _, rule := range registeredRules {
		next, changed := applyRule(rule, current)
		if changed {
			current = next
			applied = append(applied, string(rule))
		}
	}

	optimizedCost := calculatePlanCost(current)
	improvement := 0.0
	if original > 0 {
		improvement = (original - optimizedCost) / original * 100
	}

	return OptimizedPlan{
		Plan:                        current,
		OriginalCost:                original,
		OptimizedCost:               optimizedCost,
		RulesApplied:                applied,
		ParallelizableSteps:         findParallelizableSteps(current),
		EstimatedImprovementPercent: improvement,
		CriticalPath:                AnalyzeCriticalPath(current),
		Metadata:                    map[string]any{"step_count": len(current.Steps)},
	}
}

func applyRule(rule OptimizationRule, p Plan) (Plan, bool) {
	switch rule {
	case RuleFilterPushdown:
		return filterPushdown(p)
	case RuleJoinReordering:
		return joinReordering(p)
	case RulePredicateElimination:
		return predicateElimination(p)
	case RuleConstantFolding:
		return constantFolding(p)
	case RuleProjectionPushdown:
		return projectionPushdown(p)
	default:
		return p, false
	}
}

// dependsOnAll reports whether step.Dependencies is a subset of
// satisfied.
func dependsOnAll(deps []int, satisfied map[int]bool) bool {
	for _, d := range deps {
		if !satisfied[d] {
			return false
		}
	}
	return true
}

// pushEarlier moves the step at index idx as far toward the front of
// p.Steps as its Dependencies allow, without reordering past any step
// it (transitively, via direct deps only) requires. Returns the new
// plan and whether the step actually moved.
func pushEarlier(p Plan, idx int) (Plan, bool) {
	step := p.Steps[idx]
	// find the earliest index whose prefix already satisfies step's deps
	earliest := 0
	seen := make(map[int]bool)
	for i := 0; i < idx; i++ {
		seen[p.Steps[i].StepID] = true
		if dependsOnAll(step.Dependencies, seen) {
			earliest = i + 1
			break
		}
	}
	if earliest >= idx {
		return p, false
	}
	newSteps := make([]Step, 0, len(p.Steps))
	newSteps = append(newSteps, p.Steps[:earliest]...)
	newSteps = append(newSteps, step)
	newSteps = append(newSteps, p.Steps[earliest:idx]...)
	newSteps = append(newSteps, p.Steps[idx+1:]...)
	return Plan{Steps: newSteps}, true
}

// filterPushdown moves each filter step as close as possible to the
// step(s) it depends on, ahead of unrelated joins/aggregates/sorts
// standing between it and its dependencies.
func filterPushdown(p Plan) (Plan, bool) {
	changed := false
	for {
		moved := false
		for i, s := range p.Steps {
			if s.Operation != "filter" {
				continue
			}
			next, did := pushEarlier(p, i)
			if did {
				p = next
				moved = true
				changed = true
				break
			}
		}
		if !moved {
			break
		}
	}
	return p, changed
}

// projectionPushdown applies the same earliest-legal-position move to
// project steps, shrinking the row width flowing into later operators.
func projectionPushdown(p Plan) (Plan, bool) {
	changed := false
	for {
		moved := false
		for i, s := range p.Steps {
			if s.Operation != "project" {
				continue
			}
			next, did := pushEarlier(p, i)
			if did {
				p = next
				moved = true
				changed = true
				break
			}
		}
		if !moved {
			break
		}
	}
	return p, changed
}

// joinReordering reorders any maximal run of consecutive, mutually
// independent join steps by ascending cardinality, so the cheapest
// joins execute first.
func joinReordering(p Plan) (Plan, bool) {
	changed := false
	steps := append([]Step(nil), p.Steps...)

	dependsOnRun := func(s Step, run []Step) bool {
		for _, d := range s.Dependencies {
			for _, r := range run {
				if r.StepID == d {
					return true
				}
			}
		}
		return false
	}

	i := 0
	for i < len(steps) {
		if steps[i].Operation != "join" {
			i++
			continue
		}
		j := i
		for j < len(steps) && steps[j].Operation == "join" && !dependsOnRun(steps[j], steps[i:j]) {
			j++
		}
		run := steps[i:j]
		if len(run) > 1 {
			sorted := append([]Step(nil), run...)
			sort.SliceStable(sorted, func(a, b int) bool {
				return sorted[a].Cardinality < sorted[b].Cardinality
			})
			for k, s := range sorted {
				if steps[i+k].StepID != s.StepID {
					changed = true
				}
				steps[i+k] = s
			}
		}
		i = j
	}
	return Plan{Steps: steps}, changed
}

// predicateElimination drops filter steps whose predicate or
// expression is a constant that always evaluates true, splicing their
// dependencies onto whatever depended on them.
func predicateElimination(p Plan) (Plan, bool) {
	changed := false
	var kept []Step
	removedDeps := make(map[int][]int) // removed step id -> its own dependencies

	for _, s := range p.Steps {
		if s.Operation == "filter" && isTautology(s) {
			removedDeps[s.StepID] = s.Dependencies
			changed = true
			continue
		}
		kept = append(kept, s)
	}
	if !changed {
		return p, false
	}
	for i, s := range kept {
		kept[i].Dependencies = rewriteDeps(s.Dependencies, removedDeps)
	}
	return Plan{Steps: kept}, true
}

func isTautology(s Step) bool {
	expr := s.Expression
	if expr == "" {
		expr = s.Predicate
	}
	if !IsConstantExpr(expr) {
		return false
	}
	v, err := Eval(expr)
	if err != nil {
		return false
	}
	b, err := v.asBool()
	return err == nil && b
}

func rewriteDeps(deps []int, removed map[int][]int) []int {
	var out []int
	for _, d := range deps {
		if repl, ok := removed[d]; ok {
			out = append(out, rewriteDeps(repl, removed)...)
			continue
		}
		out = append(out, d)
	}
	return out
}

// constantFolding resolves any step whose Expression is built purely
// from literals and whitelisted operators down to its literal value,
// so the plan no longer recomputes it at execution time.
func constantFolding(p Plan) (Plan, bool) {
	changed := false
	steps := append([]Step(nil), p.Steps...)
	for i, s := range steps {
		if s.Expression == "" || !IsConstantExpr(s.Expression) {
			continue
		}
		v, err := Eval(s.Expression)
		if err != nil {
			continue
		}
		folded := v.String()
		if folded == s.Expression {
			continue
		}
		steps[i].Expression = folded
		if steps[i].Metadata == nil {
			steps[i].Metadata = map[string]any{}
		}
		steps[i].Metadata["folded"] = true
		changed = true
	}
	return Plan{Steps: steps}, changed
}

// findParallelizableSteps is the internal, incremental grouping used
// by OptimizeQueryPlan: it walks steps in order and greedily grows the
// current group, admitting a step only if its dependencies are already
// satisfied by steps OUTSIDE the current group (i.e. it doesn't depend
// on anything just admitted to this group). This is deliberately a
// different, cheaper algorithm than SuggestParallelization.
func findParallelizableSteps(p Plan) [][]int {
	var groups [][]int
	satisfiedOutside := make(map[int]bool)
	var current []int
	currentSet := make(map[int]bool)

	flush := func() {
		if len(current) > 1 {
			groups = append(groups, append([]int(nil), current...))
		}
		for _, id := range current {
			satisfiedOutside[id] = true
		}
		current = nil
		currentSet = make(map[int]bool)
	}

	for _, s := range p.Steps {
		dependsOnCurrentGroup := false
		for _, d := range s.Dependencies {
			if currentSet[d] {
				dependsOnCurrentGroup = true
				break
			}
		}
		if dependsOnCurrentGroup {
			flush()
		}
		if !dependsOnAll(s.Dependencies, satisfiedOutside) && len(current) == 0 {
			// this step's deps aren't satisfied yet by anything
			// finished; it can't join or start a group until a flush
			// makes them satisfied, so treat it as its own completed
			// unit of work.
			satisfiedOutside[s.StepID] = true
			continue
		}
		current = append(current, s.StepID)
		currentSet[s.StepID] = true
	}
	flush()
	return groups
}

// SuggestParallelization is the public, exhaustive counterpart to
// findParallelizableSteps: it checks every pair of steps (O(n^2)) and
// groups any set of steps that are pairwise independent — neither one
// depends, even transitively, on another member of the same group —
// regardless of how far apart they sit in the plan. Intended as an
// offline "how much more could this plan exploit" advisory, not as
// part of the hot optimize path.
func SuggestParallelization(p Plan) [][]int {
	n := len(p.Steps)
	reachable := make([]map[int]bool, n)
	for i, s := range p.Steps {
		reachable[i] = make(map[int]bool)
		for _, d := range s.Dependencies {
			reachable[i][d] = true
			if di := p.indexOf(d); di >= 0 {
				for anc := range reachable[di] {
					reachable[i][anc] = true
				}
			}
		}
	}

	independent := func(i, j int) bool {
		return !reachable[i][p.Steps[j].StepID] && !reachable[j][p.Steps[i].StepID]
	}

	visited := make([]bool, n)
	var groups [][]int
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		group := []int{p.Steps[i].StepID}
		visited[i] = true
		for j := i + 1; j < n; j++ {
			if visited[j] {
				continue
			}
			allIndependent := true
			for _, gi := range group {
				gidx := p.indexOf(gi)
				if !independent(gidx, j) {
					allIndependent = false
					break
				}
			}
			if allIndependent {
				group = append(group, p.Steps[j].StepID)
				visited[j] = true
			}
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}

// AnalyzeCriticalPath returns the sequence of step ids forming the
// longest cost-weighted dependency chain in p, via a memoized
// longest-path search over every step as a candidate endpoint.
func AnalyzeCriticalPath(p Plan) []int {
	memo := make(map[int][]int)
	var longestFrom func(id int) []int
	longestFrom = func(id int) []int {
		if cached, ok := memo[id]; ok {
			return cached
		}
		s, ok := p.stepByID(id)
		if !ok {
			return nil
		}
		var best []int
		for _, d := range s.Dependencies {
			path := longestFrom(d)
			if pathCost(p, path) > pathCost(p, best) {
				best = path
			}
		}
		result := append(append([]int(nil), best...), id)
		memo[id] = result
		return result
	}

	var overallBest []int
	for _, s := range p.Steps {
		path := longestFrom(s.StepID)
		if pathCost(p, path) > pathCost(p, overallBest) {
			overallBest = path
		}
	}
	return overallBest
}

func pathCost(p Plan, path []int) float64 {
	total := 0.0
	for _, id := range path {
		if s, ok := p.stepByID(id); ok {
			total += stepCost(s)
		}
	}
	return total
}

// EstimateSpeedup applies Amdahl's law to the plan's parallelizable
// fraction (by cost) assuming workers parallel workers are available
// per group.
func EstimateSpeedup(p Plan, groups [][]int, workers int) float64 {
	if workers < 1 {
		workers = 1
	}
	total := calculatePlanCost(p)
	if total == 0 {
		return 1
	}
	parallelCost := 0.0
	for _, g := range groups {
		for _, id := range g {
			if s, ok := p.stepByID(id); ok {
				parallelCost += stepCost(s)
			}
		}
	}
	fraction := parallelCost / total
	if fraction <= 0 {
		return 1
	}
	if fraction > 1 {
		fraction = 1
	}
	serial := 1 - fraction
	denom := serial + fraction/float64(workers)
	if denom <= 0 {
		return 1
	}
	return 1 / denom
}
