package index

import (
	"sort"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/library"
)

const (
	// DefaultHNSWNeighbors is the number of nearest neighbours returned per query.
	DefaultHNSWNeighbors = 32

	// HNSWMaxNeighbors is the maximum number of neighbours per graph node.
	HNSWMaxNeighbors = 16
)

// HNSW indexes fingerprints as 64-dimensional 0/1 vectors in a navigable
// small-world graph. For such vectors the squared Euclidean distance equals
// the Hamming distance, so nearest neighbours in the graph are nearest in
// Hamming space. Query returns the k approximate nearest neighbours.
type HNSW struct {
	graph *hnsw.Graph[int]
	k     int
	ids   []library.Identity
	seen  map[library.Identity]struct{}
}

// NewHNSW creates an empty graph index returning k neighbours per query
// (DefaultHNSWNeighbors when k <= 0).
func NewHNSW(k int) *HNSW {
	if k <= 0 {
		k = DefaultHNSWNeighbors
	}
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	g.EfSearch = max(k, g.EfSearch)

	return &HNSW{
		graph: g,
		k:     k,
		seen:  make(map[library.Identity]struct{}),
	}
}

// Insert adds a fingerprint to the graph.
func (h *HNSW) Insert(id library.Identity, fp fingerprint.Fingerprint) error {
	if _, ok := h.seen[id]; ok {
		return duplicateError(id)
	}
	seq := len(h.ids)
	h.ids = append(h.ids, id)
	h.seen[id] = struct{}{}

	h.graph.Add(hnsw.MakeNode(seq, toVector(fp)))
	return nil
}

// Query returns the approximate k nearest fingerprints.
func (h *HNSW) Query(fp fingerprint.Fingerprint) []library.Identity {
	if len(h.ids) == 0 {
		return nil
	}
	neighbors := h.graph.Search(toVector(fp), h.k)

	seqs := make([]int, 0, len(neighbors))
	for _, n := range neighbors {
		seqs = append(seqs, n.Key)
	}
	sort.Ints(seqs)

	out := make([]library.Identity, 0, len(seqs))
	for i, seq := range seqs {
		if i > 0 && seqs[i-1] == seq {
			continue
		}
		out = append(out, h.ids[seq])
	}
	return out
}

// Len returns the number of indexed identities.
func (h *HNSW) Len() int {
	return len(h.ids)
}

func toVector(fp fingerprint.Fingerprint) []float32 {
	vec := make([]float32, fingerprintBits)
	for _, b := range fp.Bits() {
		vec[b] = 1
	}
	return vec
}
