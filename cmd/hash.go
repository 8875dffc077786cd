package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file>...",
	Short: "Print the fingerprints of image files",
	Long: `Print both fingerprints (frequency and gradient) of each file, and the
Hamming distances between consecutive files. Useful for choosing a threshold.

Examples:
  photo-dedupe hash a.jpg b.jpg
  photo-dedupe hash --json *.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)

	hashCmd.Flags().Bool("json", false, "Output as JSON")
}

// HashOutput is the JSON form of a single file's fingerprints
type HashOutput struct {
	File      string `json:"file"`
	Frequency string `json:"frequency,omitempty"`
	Gradient  string `json:"gradient,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runHash(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	outputs := make([]HashOutput, len(args))
	results := make([]*fingerprint.HashResult, len(args))
	failed := 0
	for i, file := range args {
		outputs[i].File = file
		data, err := os.ReadFile(file) //nolint:gosec // path is given by the user
		if err == nil {
			results[i], err = fingerprint.ComputeHashes(data)
		}
		if err != nil {
			outputs[i].Error = err.Error()
			failed++
			continue
		}
		outputs[i].Frequency = results[i].Frequency.String()
		outputs[i].Gradient = results[i].Gradient.String()
		outputs[i].Width = results[i].Width
		outputs[i].Height = results[i].Height
	}

	if jsonOutput {
		if err := outputJSON(outputs); err != nil {
			return err
		}
	} else {
		printHashes(outputs, results)
	}

	if failed == len(args) {
		return errors.New("no readable images")
	}
	return nil
}

func printHashes(outputs []HashOutput, results []*fingerprint.HashResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIZE\tFREQUENCY\tGRADIENT\tΔFREQ\tΔGRAD")
	var prev *fingerprint.HashResult
	for i, out := range outputs {
		if out.Error != "" {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", out.File)
			fmt.Fprintf(os.Stderr, "%s: %s\n", out.File, out.Error)
			continue
		}
		dFreq, dGrad := "-", "-"
		if prev != nil {
			dFreq = fmt.Sprint(fingerprint.HammingDistance(prev.Frequency, results[i].Frequency))
			dGrad = fmt.Sprint(fingerprint.HammingDistance(prev.Gradient, results[i].Gradient))
		}
		fmt.Fprintf(w, "%s\t%dx%d\t%s\t%s\t%s\t%s\n", out.File, out.Width, out.Height, out.Frequency, out.Gradient, dFreq, dGrad)
		prev = results[i]
	}
	w.Flush()
}
