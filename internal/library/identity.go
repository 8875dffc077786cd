// Package library maps files under a photo library root to stable identities
// and provides the I/O around them: scanning, decoding and deletion.
package library

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Identity is the stable key of an image: its slash-separated, NFC-normalized
// path relative to the library root.
type Identity string

// NewIdentity normalizes a relative path into an Identity. macOS file systems
// hand out NFD names, so the same file would otherwise get two keys.
func NewIdentity(rel string) Identity {
	p := filepath.ToSlash(rel)
	p = norm.NFC.String(p)
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	return Identity(p)
}

// Rel returns the identity of an absolute path under root.
func Rel(root, abs string) (Identity, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("path %s is not under %s: %w", abs, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside library root %s", abs, root)
	}
	return NewIdentity(rel), nil
}

// String returns the identity as a plain string.
func (id Identity) String() string {
	return string(id)
}

// Name returns the final path element.
func (id Identity) Name() string {
	return path.Base(string(id))
}

// IdentitySet builds a set from a slice of identities.
func IdentitySet(ids []Identity) map[Identity]struct{} {
	set := make(map[Identity]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
