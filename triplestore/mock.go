package triplestore

import (
	"context"
	"fmt"
)

// Mock is an in-memory, dependency-free Store used only by tests. It is
// never referenced from production code: SparqlAsk/SparqlSelect
// conditions always issue a real query against an injected Store, never
// a context-supplied test shim.
type Mock struct {
	triples  []Triple
	AskFunc  func(sparql string, bindings map[string]string) (bool, error)
	SelFunc  func(sparql string, bindings map[string]string) ([]ResultRow, error)
}

// NewMock returns an empty mock store.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Ask(ctx context.Context, sparql string, bindings map[string]string) (bool, error) {
	if m.AskFunc != nil {
		return m.AskFunc(sparql, bindings)
	}
	p, err := parsePattern(sparql)
	if err != nil {
		return false, err
	}
	for _, t := range m.triples {
		if m.tripleMatches(p, t) && !m.negationMatches(p, t) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mock) Select(ctx context.Context, sparql string, bindings map[string]string) ([]ResultRow, error) {
	if m.SelFunc != nil {
		return m.SelFunc(sparql, bindings)
	}
	p, err := parsePattern(sparql)
	if err != nil {
		return nil, err
	}
	var rows []ResultRow
	for _, t := range m.triples {
		if m.tripleMatches(p, t) && !m.negationMatches(p, t) {
			rows = append(rows, ResultRow{"s": t.Subject, "o": t.Object})
		}
	}
	return rows, nil
}

// negationMatches reports whether p's FILTER NOT EXISTS clause (if any)
// has a match for the subject bound by t, which would disqualify t.
func (m *Mock) negationMatches(p *pattern, t Triple) bool {
	if p.notExists == nil {
		return false
	}
	for _, other := range m.triples {
		if !p.notExists.subject.isVar && p.notExists.subject.value != other.Subject {
			continue
		}
		if p.notExists.subject.isVar && other.Subject != t.Subject {
			continue
		}
		if !p.notExists.predicate.isVar && p.notExists.predicate.value != other.Predicate {
			continue
		}
		if !p.notExists.object.isVar && p.notExists.object.value != other.Object {
			continue
		}
		return true
	}
	return false
}

func (m *Mock) tripleMatches(p *pattern, t Triple) bool {
	if !p.predicate.isVar && p.predicate.value != t.Predicate {
		return false
	}
	if !p.subject.isVar && p.subject.value != t.Subject {
		return false
	}
	if !p.object.isVar && p.object.value != t.Object {
		return false
	}
	return true
}

func (m *Mock) Add(ctx context.Context, t Triple, txn *Txn) error {
	if txn != nil {
		txn.Added = append(txn.Added, t)
		return nil
	}
	m.triples = append(m.triples, t)
	return nil
}

func (m *Mock) Remove(ctx context.Context, t Triple, txn *Txn) error {
	if txn != nil {
		txn.Removed = append(txn.Removed, t)
		return nil
	}
	out := m.triples[:0]
	for _, existing := range m.triples {
		if existing != t {
			out = append(out, existing)
		}
	}
	m.triples = out
	return nil
}

func (m *Mock) Commit(ctx context.Context, txn *Txn) error {
	for _, t := range txn.Added {
		m.triples = append(m.triples, t)
	}
	removed := make(map[Triple]bool, len(txn.Removed))
	for _, t := range txn.Removed {
		removed[t] = true
	}
	if len(removed) > 0 {
		out := m.triples[:0]
		for _, existing := range m.triples {
			if !removed[existing] {
				out = append(out, existing)
			}
		}
		m.triples = out
	}
	txn.Added, txn.Removed = nil, nil
	return nil
}

func (m *Mock) Rollback(ctx context.Context, txn *Txn) error {
	txn.Added, txn.Removed = nil, nil
	return nil
}

func (m *Mock) Serialize(format string) ([]byte, error) {
	return nil, fmt.Errorf("Mock does not implement serialize")
}

func (m *Mock) Parse(data []byte, format string) error {
	return fmt.Errorf("Mock does not implement parse")
}
