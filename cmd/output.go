package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/term"
)

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal, which decides
// whether hyperlinks are emitted.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
