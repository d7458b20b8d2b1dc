package triplestore

import (
	"fmt"
	"regexp"
	"strings"
)

// term is one slot of a parsed triple pattern: either a variable
// (leading '?'), an IRI (wrapped in <...>), or a literal.
type term struct {
	isVar   bool
	isIRI   bool
	value   string // variable name without '?', or raw IRI/literal text
}

func parseTerm(raw string) term {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "?") {
		return term{isVar: true, value: strings.TrimPrefix(raw, "?")}
	}
	if strings.HasPrefix(raw, "<") && strings.HasSuffix(raw, ">") {
		return term{isIRI: true, value: strings.TrimSuffix(strings.TrimPrefix(raw, "<"), ">")}
	}
	return term{value: strings.Trim(raw, `"`)}
}

// pattern is a single parsed triple pattern, the restricted subset of
// SPARQL this adapter understands: `ASK { s p o }` or
// `SELECT ?v1 ... WHERE { s p o }`, optionally followed by one
// `FILTER NOT EXISTS { s2 p2 o2 }` clause.
type pattern struct {
	subject, predicate, object term
	notExists                  *pattern
}

var triplePatternRe = regexp.MustCompile(`(?s)\{\s*(\S+)\s+(\S+)\s+([^\s.}]+)\s*\.?\s*(?:FILTER\s+NOT\s+EXISTS\s*\{\s*(\S+)\s+(\S+)\s+([^\s.}]+)\s*\.?\s*\})?\s*\}`)

func parsePattern(sparql string) (*pattern, error) {
	m := triplePatternRe.FindStringSubmatch(sparql)
	if m == nil {
		return nil, fmt.Errorf("unsupported SPARQL form: %q", sparql)
	}
	p := &pattern{
		subject:   parseTerm(m[1]),
		predicate: parseTerm(m[2]),
		object:    parseTerm(m[3]),
	}
	if m[4] != "" {
		p.notExists = &pattern{
			subject:   parseTerm(m[4]),
			predicate: parseTerm(m[5]),
			object:    parseTerm(m[6]),
		}
	}
	return p, nil
}

var selectVarsRe = regexp.MustCompile(`(?i)SELECT\s+(.+?)\s+WHERE`)

func parseSelectVars(sparql string) []string {
	m := selectVarsRe.FindStringSubmatch(sparql)
	if m == nil {
		return nil
	}
	var vars []string
	for _, v := range strings.Fields(m[1]) {
		v = strings.TrimPrefix(v, "?")
		if v != "" && v != "*" {
			vars = append(vars, v)
		}
	}
	return vars
}
