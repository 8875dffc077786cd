// Package index narrows the fingerprints that must be compared exactly.
//
// An Index returns candidates, not matches: callers still check the exact
// Hamming distance. The default MinHash backend can miss a true near
// duplicate when the two fingerprints land in no shared bucket. That is the
// accepted recall trade-off for sub-linear queries; use the Exhaustive
// backend when every pair must be considered.
package index

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/library"
)

// ErrDuplicateIdentity is returned when an identity is inserted twice. It
// indicates a programming error in the caller.
var ErrDuplicateIdentity = errors.New("identity already indexed")

// Index is an in-memory candidate store for fingerprints. Implementations
// are not safe for concurrent Insert.
type Index interface {
	// Insert adds an identity. Inserting an identity twice fails with
	// ErrDuplicateIdentity.
	Insert(id library.Identity, fp fingerprint.Fingerprint) error

	// Query returns the identities likely to be similar to fp, in insertion
	// order and without duplicates.
	Query(fp fingerprint.Fingerprint) []library.Identity

	// Len returns the number of indexed identities.
	Len() int
}

// Kind names an Index backend.
type Kind string

const (
	KindMinHash    Kind = "minhash"
	KindHNSW       Kind = "hnsw"
	KindExhaustive Kind = "exhaustive"
)

// Options configures New.
type Options struct {
	Kind Kind

	// MinHash
	Permutations int
	Bands        int
	Seed         uint64

	// HNSW
	Neighbors int
}

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindMinHash, nil
	case KindMinHash, KindHNSW, KindExhaustive:
		return k, nil
	}
	return "", fmt.Errorf("unknown index kind %q (want minhash, hnsw or exhaustive)", s)
}

// New builds the backend selected by opts.Kind.
func New(opts Options) (Index, error) {
	switch opts.Kind {
	case "", KindMinHash:
		return NewMinHash(opts.Permutations, opts.Bands, opts.Seed)
	case KindHNSW:
		return NewHNSW(opts.Neighbors), nil
	case KindExhaustive:
		return NewExhaustive(), nil
	}
	return nil, fmt.Errorf("unknown index kind %q", opts.Kind)
}

func duplicateError(id library.Identity) error {
	return fmt.Errorf("%w: %s", ErrDuplicateIdentity, id)
}
