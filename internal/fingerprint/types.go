package fingerprint

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Fingerprint is a 64-bit perceptual hash of an image's intensity plane.
type Fingerprint uint64

// HexLen is the length of a fingerprint rendered as hexadecimal.
const HexLen = 16

// String returns the fingerprint as 16 lowercase hex characters.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Bits returns the positions (0 = least significant) of the bits set to 1.
func (f Fingerprint) Bits() []int {
	out := make([]int, 0, bits.OnesCount64(uint64(f)))
	for v := uint64(f); v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(v))
	}
	return out
}

// Parse decodes a fingerprint from its fixed-length hex form.
func Parse(s string) (Fingerprint, error) {
	if len(s) != HexLen {
		return 0, fmt.Errorf("fingerprint %q: expected %d hex characters, got %d", s, HexLen, len(s))
	}
	raw, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return 0, fmt.Errorf("fingerprint %q: %w", s, err)
	}
	var v uint64
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	return Fingerprint(v), nil
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// HammingDistance returns the number of differing bits between two fingerprints.
func HammingDistance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// Similar returns true if two fingerprints are within the given threshold.
func Similar(a, b Fingerprint, threshold int) bool {
	return HammingDistance(a, b) <= threshold
}

// Algorithm selects the fingerprint family.
type Algorithm string

const (
	// Frequency is the DCT based hash (pHash). Default.
	Frequency Algorithm = "frequency"
	// Gradient is the horizontal difference hash (dHash).
	Gradient Algorithm = "gradient"
)

// ErrUnknownAlgorithm is returned by ParseAlgorithm for unsupported names.
var ErrUnknownAlgorithm = errors.New("unknown fingerprint algorithm")

// ParseAlgorithm accepts the canonical names plus the phash/dhash aliases.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "frequency", "phash":
		return Frequency, nil
	case "gradient", "dhash":
		return Gradient, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// DecodeError reports an image that could not be read or decoded.
// Callers skip the image and continue with the rest of the batch.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode image: %v", e.Err)
	}
	return fmt.Sprintf("decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
