// Package triplestore defines the external-collaborator interface the
// rest of the control plane depends on for RDF storage and SPARQL
// querying, plus a Cayley/BoltDB-backed implementation of it. Full
// SPARQL/SHACL parsing is explicitly out of scope (spec treats the
// triple store as a peripheral collaborator); the query path here
// supports the restricted ASK/SELECT-with-FILTER subset the condition
// evaluator actually issues.
package triplestore

import "context"

// Triple is (subject IRI, predicate IRI, object IRI or literal).
type Triple struct {
	Subject   string
	Predicate string
	Object    string
	// ObjectIsLiteral distinguishes an IRI object from a literal value;
	// literals are stored as plain strings, not quad.IRI.
	ObjectIsLiteral bool
}

// Txn scopes a batch of add/remove operations staged against the store
// but not yet visible to other readers until committed.
type Txn struct {
	ID      string
	Added   []Triple
	Removed []Triple
}

// ResultRow is one row of a SELECT result: variable name -> bound term.
type ResultRow map[string]string

// Store is the interface the rest of the control plane depends on. It
// is deliberately narrow: query, add, remove, serialize, parse.
type Store interface {
	// Ask evaluates a SPARQL ASK query and reports whether it matches.
	Ask(ctx context.Context, sparql string, bindings map[string]string) (bool, error)
	// Select evaluates a SPARQL SELECT query and returns matching rows.
	Select(ctx context.Context, sparql string, bindings map[string]string) ([]ResultRow, error)
	// Add stages or immediately applies a triple; txn == nil commits
	// immediately, non-nil stages it for later Commit/Rollback.
	Add(ctx context.Context, t Triple, txn *Txn) error
	// Remove stages or immediately applies a triple removal.
	Remove(ctx context.Context, t Triple, txn *Txn) error
	// Commit applies every staged Add/Remove in txn atomically.
	Commit(ctx context.Context, txn *Txn) error
	// Rollback discards every staged Add/Remove in txn.
	Rollback(ctx context.Context, txn *Txn) error
	// Serialize renders the entire store (format e.g. "nquads", "turtle").
	// CayleyStore and Mock support no format: both return an error.
	Serialize(format string) ([]byte, error)
	// Parse loads triples from data encoded in format into the store.
	// CayleyStore and Mock support no format: both return an error and
	// load nothing.
	Parse(data []byte, format string) error
}

// BeginTxn returns a fresh, empty transaction.
func BeginTxn(id string) *Txn {
	return &Txn{ID: id}
}
