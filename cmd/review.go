package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/photo-dedupe/internal/review"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review [root]",
	Short: "Scan a library and interactively delete duplicates",
	Long: `Scan a library, then walk through each group of near duplicates.

For every group the members are listed with their index and distance to the
first image. Answer the "remove list" prompt with the indices to delete
(separated by spaces), "n" or an empty line to keep all, or "q" to stop.
Deleting an image also removes sidecar files that start with its name, such
as IMG_0001.JPG.xmp.

Examples:
  photo-dedupe review ~/Pictures
  photo-dedupe review ~/Pictures --algorithm gradient`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	addDetectFlags(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	if mustGetBool(cmd, "json") {
		return errors.New("--json is not supported for interactive review, use scan --json")
	}

	ctx, cancel := signalContext()
	defer cancel()

	det, err := runDetection(ctx, cmd, args)
	if err != nil {
		return err
	}
	printSummary(det.scanResult())

	if len(det.result.Clusters) == 0 {
		fmt.Println("\nNo duplicates found.")
		return nil
	}

	prompt := review.NewPrompt(os.Stdin, os.Stdout)
	prompt.Hyperlinks = isTerminal(os.Stdout)

	session := review.NewSession(prompt, review.NewApplier(det.lib, det.cache))
	summary, err := session.Run(ctx, det.result.Clusters)
	if summary != nil {
		fmt.Println("\nReview complete!")
		fmt.Printf("  Groups reviewed: %d of %d\n", summary.Reviewed, len(det.result.Clusters))
		fmt.Printf("  Images deleted:  %d\n", len(summary.Deleted))
		fmt.Printf("  Files removed:   %d\n", len(summary.Files))
	}
	return err
}
