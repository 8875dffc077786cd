package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/photo-dedupe/internal/config"
	"github.com/kozaktomas/photo-dedupe/internal/dedupe"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/fpcache"
	"github.com/kozaktomas/photo-dedupe/internal/grouper"
	"github.com/kozaktomas/photo-dedupe/internal/index"
	"github.com/kozaktomas/photo-dedupe/internal/library"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// addDetectFlags registers the flags shared by every command that runs a
// detection pass. Unset flags fall back to the environment configuration.
func addDetectFlags(cmd *cobra.Command) {
	cmd.Flags().String("algorithm", "", "Fingerprint algorithm: frequency or gradient (default from DEDUPE_ALGORITHM)")
	cmd.Flags().Int("threshold", -1, "Max Hamming distance between duplicates (default depends on algorithm)")
	cmd.Flags().String("index", "", "Candidate index: minhash, hnsw or exhaustive")
	cmd.Flags().Int("workers", 0, "Number of parallel fingerprint workers")
	cmd.Flags().Int("batch-size", 0, "Images per batch")
	cmd.Flags().Int("flush-every", 0, "Batches between cache flushes")
	cmd.Flags().Bool("prune", false, "Drop cache entries for files no longer in the library")
	cmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// detection is a finished detection pass and everything needed to act on it.
type detection struct {
	cfg       *config.Config
	lib       *library.Library
	cache     *fpcache.Cache
	images    []library.Identity
	algorithm fingerprint.Algorithm
	threshold int
	indexKind index.Kind
	result    *dedupe.Result
}

// FailureResult is an image that could not be read
type FailureResult struct {
	ID    library.Identity `json:"id"`
	Error string           `json:"error"`
}

// ScanResult represents the result of a detection pass
type ScanResult struct {
	Success       bool              `json:"success"`
	RunID         string            `json:"run_id"`
	Root          string            `json:"root"`
	Cache         string            `json:"cache"`
	Algorithm     string            `json:"algorithm"`
	Index         string            `json:"index"`
	Threshold     int               `json:"threshold"`
	Images        int               `json:"images"`
	Processed     int               `json:"processed"`
	CacheHits     int               `json:"cache_hits"`
	Computed      int               `json:"computed"`
	Pruned        int               `json:"pruned"`
	Failures      []FailureResult   `json:"failures"`
	Clusters      []grouper.Cluster `json:"clusters"`
	DurationMs    int64             `json:"duration_ms"`
	DurationHuman string            `json:"duration_human,omitempty"`
}

// openLibrary resolves the library root from args or config and loads the
// fingerprint cache that belongs to it.
func openLibrary(cfg *config.Config, args []string, alg fingerprint.Algorithm) (*library.Library, *fpcache.Cache, error) {
	root := cfg.Library.Root
	if len(args) > 0 {
		root = args[0]
	}
	lib, err := library.New(root, cfg.Library.Extensions)
	if err != nil {
		return nil, nil, err
	}

	path := cachePath
	if path == "" {
		path = cfg.Cache.CachePath(lib.Root())
	}
	lib.Skip(path)

	cache, err := fpcache.Load(path, alg)
	if err != nil {
		var loadErr *fpcache.LoadError
		if errors.As(err, &loadErr) {
			return nil, nil, fmt.Errorf("%w\nmove or repair the file, or pass --cache to use another one", err)
		}
		return nil, nil, err
	}
	return lib, cache, nil
}

// resolveAlgorithm returns the --algorithm flag, or the configured algorithm.
func resolveAlgorithm(cmd *cobra.Command, cfg *config.Config) (fingerprint.Algorithm, error) {
	name := cfg.Detection.Algorithm
	if cmd.Flags().Changed("algorithm") {
		name = mustGetString(cmd, "algorithm")
	}
	return fingerprint.ParseAlgorithm(name)
}

// overrideInt returns the flag value when the flag was set, otherwise def.
func overrideInt(cmd *cobra.Command, name string, def int) int {
	if cmd.Flags().Changed(name) {
		return mustGetInt(cmd, name)
	}
	return def
}

func runDetection(ctx context.Context, cmd *cobra.Command, args []string) (*detection, error) {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")

	alg, err := resolveAlgorithm(cmd, cfg)
	if err != nil {
		return nil, err
	}

	kindName := cfg.Index.Kind
	if cmd.Flags().Changed("index") {
		kindName = mustGetString(cmd, "index")
	}
	kind, err := index.ParseKind(kindName)
	if err != nil {
		return nil, err
	}

	threshold := overrideInt(cmd, "threshold", cfg.Detection.ThresholdFor(alg))
	if threshold < 0 {
		threshold = config.DefaultThreshold(alg)
	}

	lib, cache, err := openLibrary(cfg, args, alg)
	if err != nil {
		return nil, err
	}

	if !jsonOutput {
		fmt.Printf("Scanning %s...\n", lib.Root())
	}
	images, err := lib.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if !jsonOutput {
		fmt.Printf("Found %d images (%d fingerprints cached)\n\n", len(images), cache.Len())
	}

	idx, err := index.New(index.Options{
		Kind:         kind,
		Permutations: cfg.Index.Permutations,
		Bands:        cfg.Index.Bands,
		Neighbors:    cfg.Index.Neighbors,
	})
	if err != nil {
		return nil, err
	}

	// Create progress bar (only for non-JSON output)
	var bar *progressbar.ProgressBar
	if !jsonOutput && len(images) > 0 {
		bar = progressbar.NewOptions(len(images),
			progressbar.OptionSetDescription("Fingerprinting"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	engine := dedupe.New(cache, idx, lib, dedupe.Options{
		Threshold:  threshold,
		Workers:    overrideInt(cmd, "workers", cfg.Detection.Workers),
		BatchSize:  overrideInt(cmd, "batch-size", cfg.Detection.BatchSize),
		FlushEvery: overrideInt(cmd, "flush-every", cfg.Cache.FlushEvery),
		Prune:      mustGetBool(cmd, "prune"),
		OnProgress: func(p dedupe.Progress) {
			if bar != nil {
				bar.Set(p.Done)
			}
		},
		// Failures are listed in the summary.
		OnFailure: func(dedupe.Failure) {},
	})

	res, err := engine.Run(ctx, images)
	if bar != nil {
		fmt.Println()
	}
	if err != nil {
		return nil, err
	}

	return &detection{
		cfg:       cfg,
		lib:       lib,
		cache:     cache,
		images:    images,
		algorithm: alg,
		threshold: threshold,
		indexKind: kind,
		result:    res,
	}, nil
}

func (d *detection) scanResult() ScanResult {
	failures := make([]FailureResult, len(d.result.Failures))
	for i, f := range d.result.Failures {
		failures[i] = FailureResult{ID: f.ID, Error: f.Err.Error()}
	}
	clusters := d.result.Clusters
	if clusters == nil {
		clusters = []grouper.Cluster{}
	}
	return ScanResult{
		Success:       true,
		RunID:         d.result.RunID,
		Root:          d.lib.Root(),
		Cache:         d.cache.Path(),
		Algorithm:     string(d.algorithm),
		Index:         string(d.indexKind),
		Threshold:     d.threshold,
		Images:        len(d.images),
		Processed:     d.result.Processed,
		CacheHits:     d.result.CacheHits,
		Computed:      d.result.Computed,
		Pruned:        d.result.Pruned,
		Failures:      failures,
		Clusters:      clusters,
		DurationMs:    d.result.Duration.Milliseconds(),
		DurationHuman: formatDuration(d.result.Duration),
	}
}

// printSummary prints the counters of a detection pass.
func printSummary(result ScanResult) {
	fmt.Println("Scan complete!")
	fmt.Printf("  Images:      %d\n", result.Images)
	fmt.Printf("  Cache hits:  %d\n", result.CacheHits)
	fmt.Printf("  Computed:    %d\n", result.Computed)
	if result.Pruned > 0 {
		fmt.Printf("  Pruned:      %d\n", result.Pruned)
	}
	if len(result.Failures) > 0 {
		fmt.Printf("  Unreadable:  %d\n", len(result.Failures))
		for _, f := range result.Failures {
			fmt.Fprintf(os.Stderr, "    %s: %s\n", f.ID, f.Error)
		}
	}
	fmt.Printf("  Clusters:    %d (threshold %d, %s)\n", len(result.Clusters), result.Threshold, result.Algorithm)
	fmt.Printf("  Duration:    %s\n", result.DurationHuman)
}

// formatDuration formats a duration as a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
