// Package dedupe runs a near-duplicate detection pass over a list of images.
//
// Decoding and fingerprinting run on a bounded worker pool. Every mutation of
// the fingerprint cache and the index happens on the goroutine that called
// Run, one batch at a time and in traversal order, so neither needs to be
// safe for concurrent writers. Grouping starts once every batch has been
// inserted.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-dedupe/internal/constants"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/fpcache"
	"github.com/kozaktomas/photo-dedupe/internal/grouper"
	"github.com/kozaktomas/photo-dedupe/internal/index"
	"github.com/kozaktomas/photo-dedupe/internal/library"
	"golang.org/x/sync/errgroup"
)

// Decoder turns an identity into pixels. Failures that only concern the one
// image must be reported as *fingerprint.DecodeError; any other error aborts
// the run. *library.Library satisfies it.
type Decoder interface {
	Decode(ctx context.Context, id library.Identity) (image.Image, error)
}

// Progress is reported after each batch.
type Progress struct {
	Batch  int
	Done   int
	Total  int
	Failed int
}

// Failure is an image that could not be fingerprinted.
type Failure struct {
	ID  library.Identity
	Err error
}

// Options tunes a run. Zero values select the defaults from constants.
type Options struct {
	// Threshold is the maximum Hamming distance for two images to be grouped.
	Threshold int

	Workers    int
	BatchSize  int
	FlushEvery int

	// Prune drops cache entries for identities not in the run's image list.
	Prune bool

	OnProgress func(Progress)
	OnFailure  func(Failure)
}

// Result summarises a run.
type Result struct {
	RunID     string
	Clusters  []grouper.Cluster
	Failures  []Failure
	Processed int
	CacheHits int
	Computed  int
	Pruned    int
	Batches   int
	Duration  time.Duration
}

// Engine ties a cache, an index and a decoder together.
type Engine struct {
	cache   *fpcache.Cache
	index   index.Index
	decoder Decoder
	opts    Options
}

// New creates an Engine. Fingerprints are computed with the cache's
// algorithm. The index should be empty.
func New(cache *fpcache.Cache, idx index.Index, dec Decoder, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = constants.WorkerPoolSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = constants.DefaultBatchSize
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = constants.DefaultFlushEvery
	}
	return &Engine{cache: cache, index: idx, decoder: dec, opts: opts}
}

// Run fingerprints images, indexes them and groups near duplicates.
//
// Per-image decode failures are collected in Result.Failures. Any other
// error flushes the cache and ends the run, so fingerprints computed so far
// are kept for the next attempt.
func (e *Engine) Run(ctx context.Context, images []library.Identity) (result *Result, err error) {
	if e.opts.Threshold < 0 {
		return nil, fmt.Errorf("distance threshold must be >= 0, got %d", e.opts.Threshold)
	}

	start := time.Now()
	res := &Result{RunID: uuid.NewString()}

	defer func() {
		if err == nil {
			return
		}
		if flushErr := e.cache.Flush(); flushErr != nil {
			err = errors.Join(err, flushErr)
		}
	}()

	if e.opts.Prune {
		res.Pruned = e.cache.Prune(images)
	}

	indexed := make([]library.Identity, 0, len(images))
	for from := 0; from < len(images); from += e.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := images[from:min(from+e.opts.BatchSize, len(images))]

		added, err := e.processBatch(ctx, batch, res)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", res.Batches+1, err)
		}
		indexed = append(indexed, added...)
		res.Batches++

		if res.Batches%e.opts.FlushEvery == 0 {
			if err := e.cache.Flush(); err != nil {
				return nil, err
			}
		}

		if e.opts.OnProgress != nil {
			e.opts.OnProgress(Progress{
				Batch:  res.Batches,
				Done:   res.Processed + len(res.Failures),
				Total:  len(images),
				Failed: len(res.Failures),
			})
		}
	}

	if err := e.cache.Flush(); err != nil {
		return nil, err
	}

	clusters, err := grouper.New(e.index, e.cache).Group(indexed, e.opts.Threshold)
	if err != nil {
		return nil, err
	}
	res.Clusters = clusters
	res.Duration = time.Since(start)
	return res, nil
}

type slot struct {
	fp  fingerprint.Fingerprint
	hit bool
	err error
}

// processBatch fingerprints a batch in parallel, then applies the results to
// the cache and index in batch order. It returns the identities inserted.
func (e *Engine) processBatch(ctx context.Context, batch []library.Identity, res *Result) ([]library.Identity, error) {
	alg := e.cache.Algorithm()
	slots := make([]slot, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, id := range batch {
		if fp, ok := e.cache.Get(id); ok {
			slots[i] = slot{fp: fp, hit: true}
			continue
		}
		g.Go(func() error {
			img, err := e.decoder.Decode(gctx, id)
			if err != nil {
				var decodeErr *fingerprint.DecodeError
				if errors.As(err, &decodeErr) {
					slots[i].err = err
					return nil
				}
				return err
			}
			slots[i].fp = fingerprint.FromImage(img, alg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	added := make([]library.Identity, 0, len(batch))
	for i, id := range batch {
		s := slots[i]
		if s.err != nil {
			e.fail(res, Failure{ID: id, Err: s.err})
			continue
		}
		if s.hit {
			res.CacheHits++
		} else {
			e.cache.Put(id, s.fp)
			res.Computed++
		}
		if err := e.index.Insert(id, s.fp); err != nil {
			return nil, err
		}
		added = append(added, id)
		res.Processed++
	}
	return added, nil
}

func (e *Engine) fail(res *Result, f Failure) {
	res.Failures = append(res.Failures, f)
	if e.opts.OnFailure != nil {
		e.opts.OnFailure(f)
		return
	}
	log.Printf("skipping %s: %v", f.ID, f.Err)
}
