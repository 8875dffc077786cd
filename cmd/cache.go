package cmd

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Fingerprint cache commands",
	Long:  `Commands for inspecting and maintaining the fingerprint cache file.`,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}
