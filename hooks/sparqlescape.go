package hooks

import (
	"fmt"
	"strings"
)

// EscapeURI formats uri as a SPARQL IRI term (wrapped in angle
// brackets), rejecting control characters and angle brackets that would
// let a caller break out of the wrapping and inject SPARQL syntax.
// Grounded on semantic/sparql.go's SPARQLEndpoint query templating,
// generalized here into the escaping helper the spec requires but the
// teacher's own file never implements.
func EscapeURI(uri string) (string, error) {
	for _, r := range uri {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("invalid URI %q: contains control character", uri)
		}
		if r == '<' || r == '>' {
			return "", fmt.Errorf("invalid URI %q: contains angle bracket", uri)
		}
	}
	return "<" + uri + ">", nil
}

// InterpolateURI substitutes placeholder in template with uri escaped
// via EscapeURI, returning an error instead of a partially-built query
// if uri fails escaping.
func InterpolateURI(template, placeholder, uri string) (string, error) {
	escaped, err := EscapeURI(uri)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(template, placeholder, escaped), nil
}
