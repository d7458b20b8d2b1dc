package triplestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cayleygraph/cayley"
	"github.com/cayleygraph/cayley/graph"
	_ "github.com/cayleygraph/cayley/graph/kv/bolt"
	"github.com/cayleygraph/quad"
)

// CayleyStore implements Store on top of a Cayley quad store, grounded
// on semantic/workflowgraph.go's bolt-backed cayley.Handle usage.
type CayleyStore struct {
	mu    sync.Mutex
	store *cayley.Handle
	txns  map[string]*Txn
}

// OpenBolt opens (creating if absent) a BoltDB-backed Cayley store at
// path.
func OpenBolt(path string) (*CayleyStore, error) {
	if err := graph.InitQuadStore("bolt", path, nil); err != nil && err != graph.ErrDatabaseExists {
		return nil, fmt.Errorf("failed to initialize graph store: %w", err)
	}
	store, err := cayley.NewGraph("bolt", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph store: %w", err)
	}
	return &CayleyStore{store: store, txns: make(map[string]*Txn)}, nil
}

// OpenMemory opens an ephemeral in-memory Cayley store, used by tests
// that want a real triple store without touching disk.
func OpenMemory() (*CayleyStore, error) {
	store, err := cayley.NewMemoryGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory graph store: %w", err)
	}
	return &CayleyStore{store: store, txns: make(map[string]*Txn)}, nil
}

func (c *CayleyStore) Close() error {
	return c.store.Close()
}

func quadObject(t Triple) quad.Value {
	if t.ObjectIsLiteral {
		return quad.String(t.Object)
	}
	return quad.IRI(t.Object)
}

func (c *CayleyStore) Add(ctx context.Context, t Triple, txn *Txn) error {
	if txn != nil {
		txn.Added = append(txn.Added, t)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.AddQuad(quad.Make(quad.IRI(t.Subject), quad.IRI(t.Predicate), quadObject(t), nil))
}

func (c *CayleyStore) Remove(ctx context.Context, t Triple, txn *Txn) error {
	if txn != nil {
		txn.Removed = append(txn.Removed, t)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.RemoveQuad(quad.Make(quad.IRI(t.Subject), quad.IRI(t.Predicate), quadObject(t), nil))
}

func (c *CayleyStore) Commit(ctx context.Context, txn *Txn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Hand all staged deltas to the quad store as one graph.Transaction,
	// so a failing delta does not leave earlier ones applied.
	tx := graph.NewTransaction()
	for _, t := range txn.Added {
		tx.AddQuad(quad.Make(quad.IRI(t.Subject), quad.IRI(t.Predicate), quadObject(t), nil))
	}
	for _, t := range txn.Removed {
		tx.RemoveQuad(quad.Make(quad.IRI(t.Subject), quad.IRI(t.Predicate), quadObject(t), nil))
	}
	if err := c.store.ApplyTransaction(tx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	txn.Added = nil
	txn.Removed = nil
	return nil
}

// Rollback discards staged mutations; nothing was ever applied to the
// store, so this just clears the txn's buffers.
func (c *CayleyStore) Rollback(ctx context.Context, txn *Txn) error {
	txn.Added = nil
	txn.Removed = nil
	return nil
}

// matchRows finds the quads satisfying pattern p, with bindings
// substituted into its variable terms. It returns one row of variable
// bindings per match (all matches, not only the first); no match gives
// an empty result.
func (c *CayleyStore) matchRows(ctx context.Context, p *pattern, bindings map[string]string) ([]ResultRow, error) {
	path := cayley.StartPath(c.store)

	resolve := func(t term) (quad.Value, bool) {
		if t.isVar {
			if v, ok := bindings[t.value]; ok {
				return quad.IRI(v), true
			}
			return nil, false
		}
		if t.isIRI {
			return quad.IRI(t.value), true
		}
		return quad.String(t.value), true
	}

	subjFixed, subjOK := resolve(p.subject)
	predFixed, predOK := resolve(p.predicate)
	objFixed, objOK := resolve(p.object)

	if subjOK {
		path = cayley.StartPath(c.store, subjFixed)
	} else {
		path = cayley.StartPath(c.store)
	}
	if predOK {
		if objOK {
			path = path.Has(predFixed, objFixed)
		} else {
			path = path.Out(predFixed)
		}
	}

	it := path.BuildIterator()
	defer it.Close()

	var rows []ResultRow
	for it.Next(ctx) {
		val := c.store.NameOf(it.Result())
		row := ResultRow{}
		if p.subject.isVar {
			if subjOK {
				row[p.subject.value] = subjFixed.String()
			} else {
				row[p.subject.value] = val.String()
			}
		}
		if p.object.isVar && !objOK {
			row[p.object.value] = val.String()
		}
		rows = append(rows, row)
	}
	return rows, it.Err()
}

func (c *CayleyStore) Ask(ctx context.Context, sparql string, bindings map[string]string) (bool, error) {
	p, err := parsePattern(sparql)
	if err != nil {
		return false, err
	}
	rows, err := c.matchRows(ctx, p, bindings)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	if p.notExists != nil {
		negRows, err := c.matchRows(ctx, p.notExists, bindings)
		if err != nil {
			return false, err
		}
		if len(negRows) > 0 {
			return false, nil
		}
	}
	return true, nil
}

func (c *CayleyStore) Select(ctx context.Context, sparql string, bindings map[string]string) ([]ResultRow, error) {
	p, err := parsePattern(sparql)
	if err != nil {
		return nil, err
	}
	rows, err := c.matchRows(ctx, p, bindings)
	if err != nil {
		return nil, err
	}
	if p.notExists == nil {
		return rows, nil
	}
	var filtered []ResultRow
	for _, row := range rows {
		merged := make(map[string]string, len(bindings)+len(row))
		for k, v := range bindings {
			merged[k] = v
		}
		for k, v := range row {
			merged[k] = v
		}
		negRows, err := c.matchRows(ctx, p.notExists, merged)
		if err != nil {
			return nil, err
		}
		if len(negRows) == 0 {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

func (c *CayleyStore) Serialize(format string) ([]byte, error) {
	return nil, fmt.Errorf("serialize format %q not implemented by the Cayley adapter", format)
}

func (c *CayleyStore) Parse(data []byte, format string) error {
	return fmt.Errorf("parse format %q not implemented by the Cayley adapter", format)
}
