package cmd

import (
	"fmt"
	"os"

	"github.com/kozaktomas/photo-dedupe/internal/config"
	"github.com/spf13/cobra"
)

var cacheInfoCmd = &cobra.Command{
	Use:   "info [root]",
	Short: "Show fingerprint cache statistics",
	Long: `Show where the fingerprint cache of a library lives and how many
fingerprints it holds. A cache that cannot be parsed is reported as an error
and left untouched.

Examples:
  photo-dedupe cache info ~/Pictures
  photo-dedupe cache info --cache /tmp/fp.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheInfo,
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)

	cacheInfoCmd.Flags().String("algorithm", "", "Fingerprint algorithm the cache was written for")
	cacheInfoCmd.Flags().Bool("json", false, "Output as JSON")
}

// CacheInfoResult describes a fingerprint cache file
type CacheInfoResult struct {
	Path         string `json:"path"`
	Exists       bool   `json:"exists"`
	SizeBytes    int64  `json:"size_bytes"`
	Algorithm    string `json:"algorithm"`
	Fingerprints int    `json:"fingerprints"`
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()

	alg, err := resolveAlgorithm(cmd, cfg)
	if err != nil {
		return err
	}
	_, cache, err := openLibrary(cfg, args, alg)
	if err != nil {
		return err
	}

	result := CacheInfoResult{
		Path:         cache.Path(),
		Algorithm:    string(cache.Algorithm()),
		Fingerprints: cache.Len(),
	}
	if info, err := os.Stat(cache.Path()); err == nil {
		result.Exists = true
		result.SizeBytes = info.Size()
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("Cache:        %s\n", result.Path)
	if !result.Exists {
		fmt.Println("Status:       not created yet")
		return nil
	}
	fmt.Printf("Algorithm:    %s\n", result.Algorithm)
	fmt.Printf("Fingerprints: %d\n", result.Fingerprints)
	fmt.Printf("Size:         %d bytes\n", result.SizeBytes)
	return nil
}
