package hooks

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"kgcp.evalgo.org/triplestore"
)

// EvalContext carries everything a Condition needs to evaluate: the
// triple store to query, guard/loop/MI variables, delta counts, and
// time-series points for window aggregation. The condition evaluator
// and the pattern executor consult the same kind of variable bag, so
// this type is shared between them.
type EvalContext struct {
	Store         triplestore.Store
	Variables     map[string]any
	CurrentCount  int
	PreviousCount int
	Series        map[string][]TimePoint
	Metadata      map[string]any
}

// TimePoint is one sample of a named time series, consulted by
// WindowCondition.
type TimePoint struct {
	Timestamp time.Time
	Value     float64
}

// ConditionResult is the outcome of evaluating a Condition.
type ConditionResult struct {
	Triggered bool
	Metadata  map[string]any
}

func errResult(err error) ConditionResult {
	return ConditionResult{Triggered: false, Metadata: map[string]any{"error": err.Error()}}
}

// Condition is one node of the tagged condition tree.
// conditionTag is a private marker method, following Go's standard
// tagged-interface idiom in place of the `@type`-keyed dispatch
// semantic/graphdb.go uses for JSON-LD actions (conditions here are
// constructed in code, not deserialized from a `@type` field).
type Condition interface {
	conditionTag()
	// Evaluate runs the condition against ec, issuing a real query
	// against ec.Store for SPARQL-backed variants — never a
	// context-supplied test shim.
	Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error)
}

// EvaluateWithTimeout enforces deadline on c.Evaluate, returning a
// failed ConditionResult with metadata["error"]="timeout" if it
// expires first.
func EvaluateWithTimeout(ctx context.Context, c Condition, ec *EvalContext, deadline time.Duration) (ConditionResult, error) {
	cctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type out struct {
		res ConditionResult
		err error
	}
	ch := make(chan out, 1)
	go func() {
		res, err := c.Evaluate(cctx, ec)
		ch <- out{res, err}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-cctx.Done():
		return ConditionResult{Triggered: false, Metadata: map[string]any{"error": "timeout"}}, nil
	}
}

// EvaluateWithCache memoizes c's result in cache under key for ttl.
func EvaluateWithCache(ctx context.Context, c Condition, ec *EvalContext, cache *QueryCache, key string, ttl time.Duration) (ConditionResult, error) {
	if cached, ok := cache.Get(key); ok {
		if res, ok := cached.(ConditionResult); ok {
			return res, nil
		}
	}
	res, err := c.Evaluate(ctx, ec)
	if err != nil {
		return res, err
	}
	cache.Set(key, res, ttl)
	return res, nil
}

// ---------------------------------------------------------------------
// SparqlAsk
// ---------------------------------------------------------------------

// SparqlAskCondition triggers iff the backing SPARQL ASK query returns
// true. Either Query or FileRef must be set (FileRef takes priority,
// resolved via Resolver).
type SparqlAskCondition struct {
	Query    string
	FileRef  *FileRef
	Resolver *FileResolver
	Bindings map[string]string
	UseCache bool
}

func (SparqlAskCondition) conditionTag() {}

func (c SparqlAskCondition) resolveQuery() (string, error) {
	if c.FileRef != nil {
		resolver := c.Resolver
		if resolver == nil {
			resolver = NewFileResolver()
		}
		data, err := resolver.Resolve(*c.FileRef)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if c.Query == "" {
		return "", fmt.Errorf("empty condition query")
	}
	return c.Query, nil
}

func (c SparqlAskCondition) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	query, err := c.resolveQuery()
	if err != nil {
		return errResult(err), nil
	}
	ok, err := ec.Store.Ask(ctx, query, c.Bindings)
	if err != nil {
		return errResult(err), nil
	}
	return ConditionResult{Triggered: ok}, nil
}

// ---------------------------------------------------------------------
// SparqlSelect
// ---------------------------------------------------------------------

// SparqlSelectCondition triggers iff the SELECT query returns at least
// one row.
type SparqlSelectCondition struct {
	Query    string
	FileRef  *FileRef
	Resolver *FileResolver
	Bindings map[string]string
	UseCache bool
}

func (SparqlSelectCondition) conditionTag() {}

func (c SparqlSelectCondition) resolveQuery() (string, error) {
	if c.FileRef != nil {
		resolver := c.Resolver
		if resolver == nil {
			resolver = NewFileResolver()
		}
		data, err := resolver.Resolve(*c.FileRef)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if c.Query == "" {
		return "", fmt.Errorf("empty condition query")
	}
	return c.Query, nil
}

func (c SparqlSelectCondition) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	query, err := c.resolveQuery()
	if err != nil {
		return errResult(err), nil
	}
	rows, err := ec.Store.Select(ctx, query, c.Bindings)
	if err != nil {
		return errResult(err), nil
	}
	return ConditionResult{Triggered: len(rows) > 0, Metadata: map[string]any{"row_count": len(rows)}}, nil
}

// ---------------------------------------------------------------------
// Shacl
// ---------------------------------------------------------------------

// ShaclValidator is the external SHACL-conformance collaborator; SHACL
// shape parsing itself is delegated to it rather than implemented here.
type ShaclValidator interface {
	Conforms(shapesDoc string) (bool, error)
}

// ShaclCondition triggers iff the data graph conforms to ShapesDoc.
type ShaclCondition struct {
	ShapesDoc string
	Validator ShaclValidator
}

func (ShaclCondition) conditionTag() {}

func (c ShaclCondition) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	if c.Validator == nil {
		return errResult(fmt.Errorf("no SHACL validator configured")), nil
	}
	ok, err := c.Validator.Conforms(c.ShapesDoc)
	if err != nil {
		return errResult(err), nil
	}
	return ConditionResult{Triggered: ok}, nil
}

// ---------------------------------------------------------------------
// Delta
// ---------------------------------------------------------------------

// DeltaKind selects how current_count is compared to previous_count.
type DeltaKind string

const (
	DeltaAny      DeltaKind = "ANY"
	DeltaIncrease DeltaKind = "INCREASE"
	DeltaDecrease DeltaKind = "DECREASE"
)

// DeltaCondition compares ec.CurrentCount to ec.PreviousCount. Query
// documents where the counts came from but is not re-executed here;
// the counts are expected to already be populated on ec by the caller
// (e.g. a prior SparqlSelect row count).
type DeltaCondition struct {
	Kind  DeltaKind
	Query string
}

func (DeltaCondition) conditionTag() {}

func (c DeltaCondition) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	cur, prev := ec.CurrentCount, ec.PreviousCount
	var triggered bool
	switch c.Kind {
	case DeltaAny:
		triggered = cur != prev
	case DeltaIncrease:
		triggered = cur > prev
	case DeltaDecrease:
		triggered = cur < prev
	default:
		return errResult(fmt.Errorf("unknown delta kind %q", c.Kind)), nil
	}
	return ConditionResult{Triggered: triggered, Metadata: map[string]any{"current_count": cur, "previous_count": prev}}, nil
}

// ---------------------------------------------------------------------
// Threshold
// ---------------------------------------------------------------------

// ThresholdOp is a comparison operator.
type ThresholdOp string

const (
	OpLT ThresholdOp = "<"
	OpLE ThresholdOp = "<="
	OpEQ ThresholdOp = "="
	OpNE ThresholdOp = "!="
	OpGE ThresholdOp = ">="
	OpGT ThresholdOp = ">"
)

func compare(v float64, op ThresholdOp, threshold float64) (bool, error) {
	switch op {
	case OpLT:
		return v < threshold, nil
	case OpLE:
		return v <= threshold, nil
	case OpEQ:
		return v == threshold, nil
	case OpNE:
		return v != threshold, nil
	case OpGE:
		return v >= threshold, nil
	case OpGT:
		return v > threshold, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

// ThresholdCondition compares a context variable to Value.
type ThresholdCondition struct {
	Variable string
	Operator ThresholdOp
	Value    float64
}

func (ThresholdCondition) conditionTag() {}

func (c ThresholdCondition) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	raw, ok := ec.Variables[c.Variable]
	if !ok {
		return errResult(fmt.Errorf("variable %q not present in context", c.Variable)), nil
	}
	v, ok := toFloat(raw)
	if !ok {
		return errResult(fmt.Errorf("variable %q is not numeric", c.Variable)), nil
	}
	triggered, err := compare(v, c.Operator, c.Value)
	if err != nil {
		return errResult(err), nil
	}
	return ConditionResult{Triggered: triggered}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ---------------------------------------------------------------------
// Window
// ---------------------------------------------------------------------

// AggKind is a time-window aggregation function.
type AggKind string

const (
	AggSum   AggKind = "SUM"
	AggAvg   AggKind = "AVG"
	AggMin   AggKind = "MIN"
	AggMax   AggKind = "MAX"
	AggCount AggKind = "COUNT"
)

// WindowCondition aggregates the points of Variable's time series
// within the trailing WindowSeconds and compares the aggregate to
// Threshold via Operator.
type WindowCondition struct {
	Variable      string
	WindowSeconds float64
	Aggregation   AggKind
	Operator      ThresholdOp
	Threshold     float64
	Now           time.Time // zero means time.Now() at evaluation time
}

func (WindowCondition) conditionTag() {}

func (c WindowCondition) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	points := ec.Series[c.Variable]
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.Add(-time.Duration(c.WindowSeconds * float64(time.Second)))

	var in []float64
	for _, p := range points {
		if !p.Timestamp.Before(cutoff) && !p.Timestamp.After(now) {
			in = append(in, p.Value)
		}
	}

	agg, err := aggregate(c.Aggregation, in)
	if err != nil {
		return errResult(err), nil
	}
	triggered, err := compare(agg, c.Operator, c.Threshold)
	if err != nil {
		return errResult(err), nil
	}
	return ConditionResult{Triggered: triggered, Metadata: map[string]any{"aggregate": agg, "sample_count": len(in)}}, nil
}

func aggregate(kind AggKind, values []float64) (float64, error) {
	if kind == AggCount {
		return float64(len(values)), nil
	}
	if len(values) == 0 {
		return 0, nil
	}
	switch kind {
	case AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case AggAvg:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case AggMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case AggMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", kind)
	}
}

// ---------------------------------------------------------------------
// Composite
// ---------------------------------------------------------------------

// CompositeOp combines child condition results.
type CompositeOp string

const (
	CompositeAnd CompositeOp = "AND"
	CompositeOr  CompositeOp = "OR"
	CompositeNot CompositeOp = "NOT"
)

// CompositeCondition evaluates Children in parallel (no short-circuit)
// then combines their results via Operator. NOT requires exactly one
// child, checked at construction.
type CompositeCondition struct {
	Operator CompositeOp
	Children []Condition
}

func (CompositeCondition) conditionTag() {}

// NewCompositeCondition validates NOT's single-child invariant at
// construction.
func NewCompositeCondition(op CompositeOp, children ...Condition) (*CompositeCondition, error) {
	if op == CompositeNot && len(children) != 1 {
		return nil, fmt.Errorf("NOT composite condition requires exactly one child, got %d", len(children))
	}
	return &CompositeCondition{Operator: op, Children: children}, nil
}

func (c CompositeCondition) Evaluate(ctx context.Context, ec *EvalContext) (ConditionResult, error) {
	results := make([]ConditionResult, len(c.Children))
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range c.Children {
		i, child := i, child
		g.Go(func() error {
			res, err := child.Evaluate(gctx, ec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errResult(err), nil
	}

	switch c.Operator {
	case CompositeAnd:
		for _, r := range results {
			if !r.Triggered {
				return ConditionResult{Triggered: false}, nil
			}
		}
		return ConditionResult{Triggered: true}, nil
	case CompositeOr:
		for _, r := range results {
			if r.Triggered {
				return ConditionResult{Triggered: true}, nil
			}
		}
		return ConditionResult{Triggered: false}, nil
	case CompositeNot:
		return ConditionResult{Triggered: !results[0].Triggered}, nil
	default:
		return errResult(fmt.Errorf("unknown composite operator %q", c.Operator)), nil
	}
}
