package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/library"
	"github.com/twmb/murmur3"
)

const (
	DefaultPermutations = 128
	DefaultBands        = 16

	fingerprintBits = 64
)

// MinHash is a locality-sensitive index over the set of bit positions that
// are 1 in a fingerprint. Near duplicates differ in a few bits, so their
// token sets have high Jaccard similarity and agree on most signature rows.
// The signature is split into bands; two items are candidates when at least
// one band matches exactly.
type MinHash struct {
	permutations int
	bands        int
	rows         int

	// table[p][b] is the hash of token b under permutation p.
	table [][fingerprintBits]uint64

	buckets []map[uint64][]int // per band: band key -> insertion sequence numbers
	ids     []library.Identity
	seen    map[library.Identity]struct{}
}

// NewMinHash creates a MinHash index. Zero values select the defaults
// (128 permutations in 16 bands of 8 rows). Permutations must be divisible
// by bands.
func NewMinHash(permutations, bands int, seed uint64) (*MinHash, error) {
	if permutations == 0 {
		permutations = DefaultPermutations
	}
	if bands == 0 {
		bands = DefaultBands
	}
	if permutations < 0 || bands < 0 || bands > permutations || permutations%bands != 0 {
		return nil, fmt.Errorf("minhash: %d permutations cannot be split into %d equal bands", permutations, bands)
	}

	table := make([][fingerprintBits]uint64, permutations)
	var token [8]byte
	for p := range permutations {
		for b := range fingerprintBits {
			binary.LittleEndian.PutUint64(token[:], uint64(b))
			table[p][b] = murmur3.SeedSum64(seed+uint64(p), token[:])
		}
	}

	buckets := make([]map[uint64][]int, bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]int)
	}

	return &MinHash{
		permutations: permutations,
		bands:        bands,
		rows:         permutations / bands,
		table:        table,
		buckets:      buckets,
		seen:         make(map[library.Identity]struct{}),
	}, nil
}

// Signature returns the min-hash signature of the fingerprint's token set.
// A fingerprint with no bits set has every row at math.MaxUint64.
func (m *MinHash) Signature(fp fingerprint.Fingerprint) []uint64 {
	tokens := fp.Bits()
	sig := make([]uint64, m.permutations)
	for p := range sig {
		low := uint64(math.MaxUint64)
		for _, b := range tokens {
			if h := m.table[p][b]; h < low {
				low = h
			}
		}
		sig[p] = low
	}
	return sig
}

// bandKeys hashes each band of the signature to a bucket key.
func (m *MinHash) bandKeys(fp fingerprint.Fingerprint) []uint64 {
	sig := m.Signature(fp)
	keys := make([]uint64, m.bands)
	buf := make([]byte, 8*m.rows)
	for band := range m.bands {
		for r := range m.rows {
			binary.LittleEndian.PutUint64(buf[8*r:], sig[band*m.rows+r])
		}
		keys[band] = murmur3.SeedSum64(uint64(band), buf)
	}
	return keys
}

// Insert adds id to every band bucket of its signature.
func (m *MinHash) Insert(id library.Identity, fp fingerprint.Fingerprint) error {
	if _, ok := m.seen[id]; ok {
		return duplicateError(id)
	}
	seq := len(m.ids)
	m.ids = append(m.ids, id)
	m.seen[id] = struct{}{}

	for band, key := range m.bandKeys(fp) {
		m.buckets[band][key] = append(m.buckets[band][key], seq)
	}
	return nil
}

// Query returns every indexed identity sharing at least one bucket with fp.
func (m *MinHash) Query(fp fingerprint.Fingerprint) []library.Identity {
	found := make(map[int]struct{})
	for band, key := range m.bandKeys(fp) {
		for _, seq := range m.buckets[band][key] {
			found[seq] = struct{}{}
		}
	}
	return m.resolve(found)
}

func (m *MinHash) resolve(found map[int]struct{}) []library.Identity {
	seqs := make([]int, 0, len(found))
	for seq := range found {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	out := make([]library.Identity, len(seqs))
	for i, seq := range seqs {
		out[i] = m.ids[seq]
	}
	return out
}

// Len returns the number of indexed identities.
func (m *MinHash) Len() int {
	return len(m.ids)
}

// Bands returns the number of bands and rows per band.
func (m *MinHash) Bands() (bands, rows int) {
	return m.bands, m.rows
}
