// Package fpcache persists image fingerprints between runs so unchanged
// images are not decoded again.
//
// The on-disk form is a YAML document mapping library-relative paths to
// 16-character hex fingerprints. Unknown fields are ignored so older builds
// can read files written by newer ones. A missing file loads as an empty
// cache; a file that exists but cannot be parsed is a *LoadError and is never
// overwritten implicitly.
//
// GetOrCompute serves single lookups. The detection engine splits it into Get
// and Put so misses can be fingerprinted in parallel while writes stay on one
// goroutine.
package fpcache

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/library"
	"gopkg.in/yaml.v3"
)

const documentVersion = 1

// document is the persisted form.
type document struct {
	Version      int               `yaml:"version"`
	Algorithm    string            `yaml:"algorithm"`
	UpdatedAt    time.Time         `yaml:"updated_at,omitempty"`
	Fingerprints map[string]string `yaml:"fingerprints"`
}

// LoadError reports a persisted cache that exists but cannot be used.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("fingerprint cache %s is unreadable (resolve manually, it will not be overwritten): %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PersistError reports a flush that failed after its retry.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("writing fingerprint cache %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ErrAlgorithmMismatch is wrapped by LoadError when the file was written for
// a different fingerprint algorithm.
var ErrAlgorithmMismatch = errors.New("cache was written for a different algorithm")

// Cache maps image identities to fingerprints.
type Cache struct {
	mu        sync.RWMutex
	path      string
	algorithm fingerprint.Algorithm
	entries   map[library.Identity]fingerprint.Fingerprint
	dirty     bool

	// writeFile is swapped in tests to simulate transient write failures.
	writeFile func(path string, data []byte, perm os.FileMode) error
}

// New creates an empty cache that will persist to path.
func New(path string, alg fingerprint.Algorithm) *Cache {
	return &Cache{
		path:      path,
		algorithm: alg,
		entries:   make(map[library.Identity]fingerprint.Fingerprint),
		writeFile: renameio.WriteFile,
	}
}

// Load reads the cache at path. A missing file yields an empty cache.
func Load(path string, alg fingerprint.Algorithm) (*Cache, error) {
	c := New(path, alg)

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if doc.Algorithm != "" && doc.Algorithm != string(alg) {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: file has %q, run uses %q", ErrAlgorithmMismatch, doc.Algorithm, alg)}
	}

	for key, hexValue := range doc.Fingerprints {
		fp, err := fingerprint.Parse(hexValue)
		if err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("entry %q: %w", key, err)}
		}
		c.entries[library.NewIdentity(key)] = fp
	}
	return c, nil
}

// Path returns the file the cache persists to.
func (c *Cache) Path() string {
	return c.path
}

// Algorithm returns the fingerprint algorithm the cache holds values for.
func (c *Cache) Algorithm() fingerprint.Algorithm {
	return c.algorithm
}

// Get returns the cached fingerprint for id.
func (c *Cache) Get(id library.Identity) (fingerprint.Fingerprint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fp, ok := c.entries[id]
	return fp, ok
}

// Put stores a fingerprint and marks the cache dirty.
func (c *Cache) Put(id library.Identity, fp fingerprint.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[id]; ok && old == fp {
		return
	}
	c.entries[id] = fp
	c.dirty = true
}

// GetOrCompute returns the cached fingerprint for id, or calls compute on a
// miss and stores its result. The boolean reports a cache hit.
func (c *Cache) GetOrCompute(id library.Identity, compute func() (fingerprint.Fingerprint, error)) (fingerprint.Fingerprint, bool, error) {
	if fp, ok := c.Get(id); ok {
		return fp, true, nil
	}
	fp, err := compute()
	if err != nil {
		return 0, false, err
	}
	c.Put(id, fp)
	return fp, false, nil
}

// Remove deletes entries and returns how many existed.
func (c *Cache) Remove(ids ...library.Identity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if _, ok := c.entries[id]; ok {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed
}

// Prune removes every entry whose identity is not in live and returns the
// number removed.
func (c *Cache) Prune(live []library.Identity) int {
	keep := library.IdentitySet(live)

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id := range c.entries {
		if _, ok := keep[id]; !ok {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed
}

// Len returns the number of cached fingerprints.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Dirty reports whether there are changes not yet flushed.
func (c *Cache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// Identities returns all cached identities in lexical order.
func (c *Cache) Identities() []library.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]library.Identity, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Flush writes the full map if it changed since the last flush. The file is
// replaced atomically, so a failed flush leaves the previous version intact.
// A failed write is retried once before a *PersistError is returned.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := c.marshal()
	if err != nil {
		return &PersistError{Path: c.path, Err: err}
	}

	if err := c.write(data); err != nil {
		log.Printf("fingerprint cache: write failed, retrying once: %v", err)
		if err := c.write(data); err != nil {
			return &PersistError{Path: c.path, Err: err}
		}
	}

	c.dirty = false
	return nil
}

func (c *Cache) write(data []byte) error {
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
	}
	return c.writeFile(c.path, data, 0o644)
}

func (c *Cache) marshal() ([]byte, error) {
	doc := document{
		Version:      documentVersion,
		Algorithm:    string(c.algorithm),
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
		Fingerprints: make(map[string]string, len(c.entries)),
	}
	for id, fp := range c.entries {
		doc.Fingerprints[id.String()] = fp.String()
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encoding cache document: %w", err)
	}
	return data, nil
}
