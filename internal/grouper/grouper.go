// Package grouper partitions images into near-duplicate clusters.
//
// Grouping is greedy and order dependent, not a transitive closure. Images
// are visited in traversal order; an unvisited image becomes the
// representative of a new cluster and claims every unvisited candidate within
// the threshold of its own fingerprint. If A~B and B~C but not A~C, and A is
// visited first, the cluster is [A, B] and C is never compared against B.
package grouper

import (
	"fmt"
	"sort"

	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/index"
	"github.com/kozaktomas/photo-dedupe/internal/library"
)

// Fingerprints resolves an identity to its fingerprint. *fpcache.Cache
// satisfies it.
type Fingerprints interface {
	Get(id library.Identity) (fingerprint.Fingerprint, bool)
}

// Member is one image of a cluster with its distance to the representative.
type Member struct {
	ID       library.Identity `json:"id"`
	Distance int              `json:"distance"`
}

// Cluster is a representative (first member, distance 0) followed by its
// near duplicates in traversal order.
type Cluster struct {
	Members []Member `json:"members"`
}

// Representative returns the first member.
func (c Cluster) Representative() library.Identity {
	return c.Members[0].ID
}

// IDs returns the member identities in order.
func (c Cluster) IDs() []library.Identity {
	ids := make([]library.Identity, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	return ids
}

// Contains reports whether id is a member.
func (c Cluster) Contains(id library.Identity) bool {
	for _, m := range c.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Grouper combines an index with exact distance checks.
type Grouper struct {
	index  index.Index
	prints Fingerprints
}

// New creates a Grouper. The index must already contain every image that is
// passed to Group.
func New(idx index.Index, prints Fingerprints) *Grouper {
	return &Grouper{index: idx, prints: prints}
}

// Group partitions images into clusters. A candidate is kept when its
// Hamming distance to the representative is <= threshold. Images with no
// known fingerprint are skipped. Singletons are not returned.
func (g *Grouper) Group(images []library.Identity, threshold int) ([]Cluster, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("distance threshold must be >= 0, got %d", threshold)
	}

	position := make(map[library.Identity]int, len(images))
	for i, id := range images {
		if _, dup := position[id]; !dup {
			position[id] = i
		}
	}

	visited := make(map[library.Identity]struct{}, len(images))
	var clusters []Cluster

	for _, id := range images {
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}

		root, ok := g.prints.Get(id)
		if !ok {
			continue
		}

		candidates := g.index.Query(root)
		// Candidates come back in index order; compare in traversal order so
		// the output does not depend on the backend.
		sort.SliceStable(candidates, func(i, j int) bool {
			return rank(position, candidates[i]) < rank(position, candidates[j])
		})

		cluster := Cluster{Members: []Member{{ID: id, Distance: 0}}}
		for _, cand := range candidates {
			if _, ok := visited[cand]; ok {
				continue
			}
			if _, inRun := position[cand]; !inRun {
				continue
			}
			fp, ok := g.prints.Get(cand)
			if !ok {
				continue
			}
			d := fingerprint.HammingDistance(root, fp)
			if d > threshold {
				continue
			}
			visited[cand] = struct{}{}
			cluster.Members = append(cluster.Members, Member{ID: cand, Distance: d})
		}

		if len(cluster.Members) > 1 {
			clusters = append(clusters, cluster)
		}
	}
	return clusters, nil
}

func rank(position map[library.Identity]int, id library.Identity) int {
	if p, ok := position[id]; ok {
		return p
	}
	return len(position)
}
