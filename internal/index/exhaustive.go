package index

import (
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/library"
)

// Exhaustive returns every indexed identity as a candidate. Grouping with it
// is quadratic but has no false negatives.
type Exhaustive struct {
	ids  []library.Identity
	seen map[library.Identity]struct{}
}

// NewExhaustive creates an empty Exhaustive index.
func NewExhaustive() *Exhaustive {
	return &Exhaustive{seen: make(map[library.Identity]struct{})}
}

func (e *Exhaustive) Insert(id library.Identity, _ fingerprint.Fingerprint) error {
	if _, ok := e.seen[id]; ok {
		return duplicateError(id)
	}
	e.ids = append(e.ids, id)
	e.seen[id] = struct{}{}
	return nil
}

func (e *Exhaustive) Query(fingerprint.Fingerprint) []library.Identity {
	out := make([]library.Identity, len(e.ids))
	copy(out, e.ids)
	return out
}

func (e *Exhaustive) Len() int {
	return len(e.ids)
}
