package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/photo-dedupe/internal/review"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Find near-duplicate images in a library",
	Long: `Fingerprint every image under root and print groups of near duplicates.

The root defaults to DEDUPE_LIBRARY_ROOT or the current directory. Fingerprints
are cached in <root>/.photo-dedupe.yaml so later scans only decode new images.

Examples:
  # Scan the current directory
  photo-dedupe scan

  # Scan a library with the gradient algorithm and a looser threshold
  photo-dedupe scan ~/Pictures --algorithm gradient --threshold 3

  # Compare every pair instead of using the min-hash index
  photo-dedupe scan ~/Pictures --index exhaustive

  # JSON output for scripting, dropping cache entries for removed files
  photo-dedupe scan ~/Pictures --prune --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addDetectFlags(scanCmd)
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runScan(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx, cancel := signalContext()
	defer cancel()

	det, err := runDetection(ctx, cmd, args)
	if err != nil {
		return err
	}
	result := det.scanResult()

	if jsonOutput {
		// Remove human-readable duration for JSON output
		result.DurationHuman = ""
		return outputJSON(result)
	}

	printSummary(result)
	printClusters(det)
	return nil
}

// printClusters lists every cluster with its members and distances.
func printClusters(det *detection) {
	for i, c := range det.result.Clusters {
		fmt.Printf("\nCluster %d (%d images)\n", i+1, len(c.Members))
		for _, m := range c.Members {
			name := m.ID.String()
			if p, err := det.lib.Path(m.ID); err == nil && isTerminal(os.Stdout) {
				name = review.FileLink(p, name)
			}
			fmt.Printf("  %-3d %s\n", m.Distance, name)
		}
	}
}
