// Package review hands duplicate clusters to a human and applies the
// deletions they choose.
package review

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-dedupe/internal/fpcache"
	"github.com/kozaktomas/photo-dedupe/internal/grouper"
	"github.com/kozaktomas/photo-dedupe/internal/library"
)

// ErrNotMember is returned when a decision names an identity outside the
// cluster under review.
var ErrNotMember = errors.New("identity is not a member of the cluster")

// ClusterView is what a Reviewer is shown.
type ClusterView struct {
	Index   int
	Total   int
	Cluster grouper.Cluster
	Paths   []string // absolute path per member
}

// Decision is a reviewer's verdict on one cluster. An empty Delete keeps
// every member.
type Decision struct {
	Delete []library.Identity
	Quit   bool
}

// Reviewer decides which members of a cluster to delete.
type Reviewer interface {
	Review(ctx context.Context, view ClusterView) (Decision, error)
}

// ValidateDecision checks that every identity to delete belongs to c.
func ValidateDecision(c grouper.Cluster, ids []library.Identity) error {
	for _, id := range ids {
		if !c.Contains(id) {
			return fmt.Errorf("%w: %s", ErrNotMember, id)
		}
	}
	return nil
}

// Applier deletes images from the library and forgets their fingerprints.
type Applier struct {
	lib   *library.Library
	cache *fpcache.Cache
}

// Outcome lists what an Apply call removed.
type Outcome struct {
	Deleted []library.Identity `json:"deleted"`
	Files   []string           `json:"files"`
}

func NewApplier(lib *library.Library, cache *fpcache.Cache) *Applier {
	return &Applier{lib: lib, cache: cache}
}

// Paths resolves the member paths of a cluster.
func (a *Applier) Paths(c grouper.Cluster) []string {
	paths := make([]string, len(c.Members))
	for i, m := range c.Members {
		if p, err := a.lib.Path(m.ID); err == nil {
			paths[i] = p
		}
	}
	return paths
}

// Apply deletes each image with its sidecars and drops it from the cache.
// An image that is already gone is still dropped from the cache. Apply stops
// at the first other failure and returns what was removed so far.
func (a *Applier) Apply(ids []library.Identity) (*Outcome, error) {
	out := &Outcome{}
	for _, id := range ids {
		files, err := a.lib.Delete(id)
		out.Files = append(out.Files, files...)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return out, err
		}
		a.cache.Remove(id)
		out.Deleted = append(out.Deleted, id)
	}
	return out, nil
}

// Flush persists cache removals.
func (a *Applier) Flush() error {
	return a.cache.Flush()
}

// Summary describes a finished review session.
type Summary struct {
	SessionID string             `json:"session_id"`
	Reviewed  int                `json:"reviewed"`
	Kept      int                `json:"kept"`
	Deleted   []library.Identity `json:"deleted"`
	Files     []string           `json:"files"`
	Stopped   bool               `json:"stopped"`
}

// Session walks a reviewer through clusters in order.
type Session struct {
	ID       string
	reviewer Reviewer
	applier  *Applier
}

func NewSession(reviewer Reviewer, applier *Applier) *Session {
	return &Session{
		ID:       uuid.NewString(),
		reviewer: reviewer,
		applier:  applier,
	}
}

// Run reviews each cluster and applies the decisions. The cache is flushed
// before returning, also when the session ends with an error.
func (s *Session) Run(ctx context.Context, clusters []grouper.Cluster) (sum *Summary, err error) {
	sum = &Summary{SessionID: s.ID}
	defer func() {
		if flushErr := s.applier.Flush(); flushErr != nil {
			err = errors.Join(err, flushErr)
		}
	}()

	for i, c := range clusters {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		d, err := s.reviewer.Review(ctx, ClusterView{
			Index:   i,
			Total:   len(clusters),
			Cluster: c,
			Paths:   s.applier.Paths(c),
		})
		if err != nil {
			return sum, fmt.Errorf("reviewing cluster %d: %w", i+1, err)
		}
		if d.Quit {
			sum.Stopped = true
			break
		}
		if err := ValidateDecision(c, d.Delete); err != nil {
			return sum, err
		}

		sum.Reviewed++
		if len(d.Delete) == 0 {
			sum.Kept++
			continue
		}

		out, err := s.applier.Apply(d.Delete)
		sum.Deleted = append(sum.Deleted, out.Deleted...)
		sum.Files = append(sum.Files, out.Files...)
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}
