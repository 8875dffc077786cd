package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cachePath string

var rootCmd = &cobra.Command{
	Use:   "photo-dedupe",
	Short: "Find near-duplicate photos in a local library",
	Long: `Photo Dedupe scans a directory of photos, computes a perceptual
fingerprint for every image and groups images that look the same, even
after resizing, recompression or small edits. Fingerprints are cached so
repeated scans only process new files. Duplicate groups can be reviewed in
the terminal or through a local HTTP API.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "Fingerprint cache file (default <root>/.photo-dedupe.yaml)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
