package fingerprint

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// gradient grid: 9 columns give 8 horizontal comparisons per row.
	gradientWidth  = 9
	gradientHeight = 8

	// frequency grid and the size of the low-frequency block kept from the DCT.
	frequencySize = 32
	lowFreqSize   = 8
)

// ErrEmptyImage is returned when an image has no pixels.
var ErrEmptyImage = errors.New("image has zero width or height")

// HashResult contains both fingerprint variants for a single image.
type HashResult struct {
	Frequency Fingerprint `json:"frequency"`
	Gradient  Fingerprint `json:"gradient"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
}

// ComputeHashes decodes encoded image bytes, applying EXIF orientation, and
// computes both fingerprints.
func ComputeHashes(imageData []byte) (*HashResult, error) {
	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, &DecodeError{Err: ErrEmptyImage}
	}

	plane := Intensity(img)
	return &HashResult{
		Frequency: FrequencyHash(plane),
		Gradient:  GradientHash(plane),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// Compute fingerprints an intensity plane with the given algorithm.
func (a Algorithm) Compute(plane *image.Gray) Fingerprint {
	if a == Gradient {
		return GradientHash(plane)
	}
	return FrequencyHash(plane)
}

// FromImage converts img to its intensity plane and fingerprints it.
func FromImage(img image.Image, alg Algorithm) Fingerprint {
	return alg.Compute(Intensity(img))
}

// Intensity converts an image to a single-channel 8-bit luma plane
// (ITU-R BT.601 weights via color.GrayModel).
func Intensity(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// GradientHash computes the 64-bit difference hash: the plane is shrunk to
// 9x8 and each pixel is compared with its right neighbour.
func GradientHash(plane *image.Gray) Fingerprint {
	grid := downsample(plane, gradientWidth, gradientHeight)

	var hash uint64
	bit := 63
	for y := range gradientHeight {
		for x := range gradientWidth - 1 {
			if grid[y][x+1] > grid[y][x] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return Fingerprint(hash)
}

// FrequencyHash computes the 64-bit perceptual hash: the plane is shrunk to
// 32x32, transformed with a DCT-II, and the top-left 8x8 coefficients are
// thresholded against their median.
func FrequencyHash(plane *image.Gray) Fingerprint {
	grid := downsample(plane, frequencySize, frequencySize)
	dct := lowFrequencyDCT(grid, lowFreqSize)

	lowFreq := make([]float64, 0, lowFreqSize*lowFreqSize)
	for v := range lowFreqSize {
		lowFreq = append(lowFreq, dct[v]...)
	}
	median := computeMedian(lowFreq)

	var hash uint64
	for i, c := range lowFreq {
		if c > median {
			hash |= 1 << (63 - i)
		}
	}
	return Fingerprint(hash)
}

// downsample scales the plane to width x height and returns it row-major.
func downsample(plane *image.Gray, width, height int) [][]float64 {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	if !plane.Bounds().Empty() {
		draw.CatmullRom.Scale(dst, dst.Bounds(), plane, plane.Bounds(), draw.Src, nil)
	}

	grid := make([][]float64, height)
	for y := range height {
		grid[y] = make([]float64, width)
		for x := range width {
			grid[y][x] = float64(dst.GrayAt(x, y).Y)
		}
	}
	return grid
}

// lowFrequencyDCT returns the first n x n coefficients of the separable
// DCT-II of a square grid, indexed [vertical][horizontal].
func lowFrequencyDCT(grid [][]float64, n int) [][]float64 {
	size := len(grid)

	cosTable := make([][]float64, n)
	for k := range n {
		cosTable[k] = make([]float64, size)
		for j := range size {
			cosTable[k][j] = math.Cos(math.Pi * float64(k) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	// Rows first: rowCoeff[y][u].
	rowCoeff := make([][]float64, size)
	for y := range size {
		rowCoeff[y] = make([]float64, n)
		for u := range n {
			var sum float64
			for x := range size {
				sum += grid[y][x] * cosTable[u][x]
			}
			rowCoeff[y][u] = sum
		}
	}

	dct := make([][]float64, n)
	for v := range n {
		dct[v] = make([]float64, n)
		for u := range n {
			var sum float64
			for y := range size {
				sum += rowCoeff[y][u] * cosTable[v][y]
			}
			dct[v][u] = sum
		}
	}
	return dct
}

// computeMedian returns the median value from a slice.
func computeMedian(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
