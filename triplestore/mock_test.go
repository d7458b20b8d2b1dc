package triplestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockAskMatchesExistingTriple(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, Triple{Subject: "ex:p1", Predicate: "rdf:type", Object: "ex:Person"}, nil))

	ok, err := m.Ask(ctx, "ASK { ?s <rdf:type> <ex:Person> }", nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Ask(ctx, "ASK { ?s <rdf:type> <ex:Robot> }", nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMockSelectReturnsRows(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, Triple{Subject: "ex:p1", Predicate: "rdf:type", Object: "ex:Person"}, nil))
	require.NoError(t, m.Add(ctx, Triple{Subject: "ex:p2", Predicate: "rdf:type", Object: "ex:Person"}, nil))

	rows, err := m.Select(ctx, "SELECT ?s WHERE { ?s <rdf:type> <ex:Person> }", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestMockTransactionCommitAndRollback(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	txn := BeginTxn("t1")
	require.NoError(t, m.Add(ctx, Triple{Subject: "ex:p1", Predicate: "rdf:type", Object: "ex:Person"}, txn))

	ok, _ := m.Ask(ctx, "ASK { ?s <rdf:type> <ex:Person> }", nil)
	require.False(t, ok, "uncommitted add must not be visible")

	require.NoError(t, m.Commit(ctx, txn))
	ok, _ = m.Ask(ctx, "ASK { ?s <rdf:type> <ex:Person> }", nil)
	require.True(t, ok)

	txn2 := BeginTxn("t2")
	require.NoError(t, m.Remove(ctx, Triple{Subject: "ex:p1", Predicate: "rdf:type", Object: "ex:Person"}, txn2))
	require.NoError(t, m.Rollback(ctx, txn2))

	ok, _ = m.Ask(ctx, "ASK { ?s <rdf:type> <ex:Person> }", nil)
	require.True(t, ok, "rolled-back remove must not take effect")
}

func TestParsePatternWithFilterNotExists(t *testing.T) {
	p, err := parsePattern("ASK { ?p <rdf:type> <ex:Person> FILTER NOT EXISTS { ?p <ex:name> ?n } }")
	require.NoError(t, err)
	require.NotNil(t, p.notExists)
	require.Equal(t, "p", p.subject.value)
	require.True(t, p.notExists.object.isVar)
}

func TestMockFilterNotExists(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, Triple{Subject: "ex:p1", Predicate: "rdf:type", Object: "ex:Person"}, nil))

	ok, err := m.Ask(ctx, "ASK { ?p <rdf:type> <ex:Person> FILTER NOT EXISTS { ?p <ex:name> ?n } }", nil)
	require.NoError(t, err)
	require.True(t, ok, "no name triple exists, so NOT EXISTS holds")

	require.NoError(t, m.Add(ctx, Triple{Subject: "ex:p1", Predicate: "ex:name", Object: "Ada", ObjectIsLiteral: true}, nil))
}
