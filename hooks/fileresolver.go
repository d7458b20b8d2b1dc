package hooks

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
)

// FileRef is an external file reference: a URI plus the expected
// SHA-256 digest of its contents.
type FileRef struct {
	URI    string `json:"uri"`
	SHA256 string `json:"sha256"`
}

// FileResolver loads external file references (e.g. SPARQL/SHACL
// documents) and verifies their SHA-256 integrity before use.
type FileResolver struct{}

// NewFileResolver returns a resolver for file:// and local-path URIs.
func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

// Resolve loads ref's contents and verifies the digest matches. A
// mismatch fails with an "integrity" error.
func (r *FileResolver) Resolve(ref FileRef) ([]byte, error) {
	path, err := r.pathOf(ref.URI)
	if err != nil {
		return nil, fmt.Errorf("file resolution failed for %q: %w", ref.URI, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file resolution failed for %q: %w", ref.URI, err)
	}
	defer f.Close()

	h := sha256.New()
	var buf []byte
	buf, err = io.ReadAll(io.TeeReader(f, h))
	if err != nil {
		return nil, fmt.Errorf("file resolution failed for %q: %w", ref.URI, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if got != ref.SHA256 {
		return nil, fmt.Errorf("integrity: file %q has digest %s, expected %s", ref.URI, got, ref.SHA256)
	}
	return buf, nil
}

func (r *FileResolver) pathOf(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Scheme == "file" {
		if u.Path != "" {
			return u.Path, nil
		}
		return u.Opaque, nil
	}
	return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
}
