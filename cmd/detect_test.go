package cmd

import (
	"testing"
	"time"

	"github.com/kozaktomas/photo-dedupe/internal/config"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/spf13/cobra"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1s"},
		{75 * time.Second, "1m15s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tc := range tests {
		if got := formatDuration(tc.d); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func newDetectCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addDetectFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	return cmd
}

func TestResolveAlgorithm(t *testing.T) {
	cfg := &config.Config{Detection: config.DetectionConfig{Algorithm: "gradient"}}

	alg, err := resolveAlgorithm(newDetectCommand(t), cfg)
	if err != nil || alg != fingerprint.Gradient {
		t.Errorf("expected configured gradient, got %q (%v)", alg, err)
	}

	alg, err = resolveAlgorithm(newDetectCommand(t, "--algorithm", "phash"), cfg)
	if err != nil || alg != fingerprint.Frequency {
		t.Errorf("expected flag override to frequency, got %q (%v)", alg, err)
	}

	if _, err := resolveAlgorithm(newDetectCommand(t, "--algorithm", "ahash"), cfg); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestOverrideInt(t *testing.T) {
	cmd := newDetectCommand(t, "--threshold", "0")

	if got := overrideInt(cmd, "threshold", 4); got != 0 {
		t.Errorf("expected explicit zero threshold, got %d", got)
	}
	if got := overrideInt(cmd, "workers", 6); got != 6 {
		t.Errorf("expected default workers 6, got %d", got)
	}
}
