package cmd

import (
	"fmt"
	"time"

	"github.com/kozaktomas/photo-dedupe/internal/config"
	"github.com/kozaktomas/photo-dedupe/internal/library"
	"github.com/spf13/cobra"
)

var cachePruneCmd = &cobra.Command{
	Use:   "prune [root]",
	Short: "Remove cache entries for images that no longer exist",
	Long: `Scan the library and drop every cached fingerprint whose file is gone,
for example after files were deleted or renamed outside of photo-dedupe.

Examples:
  photo-dedupe cache prune ~/Pictures

  # Only report what would be removed
  photo-dedupe cache prune ~/Pictures --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCachePrune,
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)

	cachePruneCmd.Flags().String("algorithm", "", "Fingerprint algorithm the cache was written for")
	cachePruneCmd.Flags().Bool("dry-run", false, "Report stale entries without removing them")
	cachePruneCmd.Flags().Bool("json", false, "Output as JSON")
}

// PruneCacheResult represents the result of a cache prune operation
type PruneCacheResult struct {
	Success       bool   `json:"success"`
	DryRun        bool   `json:"dry_run"`
	Images        int    `json:"images"`
	Cached        int    `json:"cached"`
	Removed       int    `json:"removed"`
	DurationMs    int64  `json:"duration_ms"`
	DurationHuman string `json:"duration_human,omitempty"`
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	dryRun := mustGetBool(cmd, "dry-run")
	startTime := time.Now()

	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.Load()
	alg, err := resolveAlgorithm(cmd, cfg)
	if err != nil {
		return err
	}
	lib, cache, err := openLibrary(cfg, args, alg)
	if err != nil {
		return err
	}

	images, err := lib.Scan(ctx)
	if err != nil {
		return err
	}

	result := PruneCacheResult{
		Success: true,
		DryRun:  dryRun,
		Images:  len(images),
		Cached:  cache.Len(),
	}

	if dryRun {
		live := library.IdentitySet(images)
		for _, id := range cache.Identities() {
			if _, ok := live[id]; !ok {
				result.Removed++
				if !jsonOutput {
					fmt.Printf("  stale: %s\n", id)
				}
			}
		}
	} else {
		result.Removed = cache.Prune(images)
		if err := cache.Flush(); err != nil {
			return err
		}
	}

	duration := time.Since(startTime)
	result.DurationMs = duration.Milliseconds()

	if jsonOutput {
		return outputJSON(result)
	}

	result.DurationHuman = formatDuration(duration)
	if dryRun {
		fmt.Println("\nDry run, nothing removed.")
	} else {
		fmt.Println("Prune complete!")
	}
	fmt.Printf("  Images in library: %d\n", result.Images)
	fmt.Printf("  Cached before:     %d\n", result.Cached)
	fmt.Printf("  Stale entries:     %d\n", result.Removed)
	fmt.Printf("  Duration:          %s\n", result.DurationHuman)
	return nil
}
