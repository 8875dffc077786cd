// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel fingerprint workers
	WorkerPoolSize = 8

	// DefaultBatchSize is the number of images fingerprinted per batch
	DefaultBatchSize = 64

	// DefaultFlushEvery is the number of batches processed between cache flushes
	DefaultFlushEvery = 4
)

// Similarity constants
const (
	// DefaultGradientThreshold is the default max Hamming distance for gradient fingerprints.
	// Gradient fingerprints flip bits more easily, so the default is stricter.
	DefaultGradientThreshold = 1

	// DefaultFrequencyThreshold is the default max Hamming distance for frequency fingerprints
	DefaultFrequencyThreshold = 2
)

// Cache constants
const (
	// DefaultCacheFileName is the cache file created in the library root when no path is configured
	DefaultCacheFileName = ".photo-dedupe.yaml"
)

// Server constants
const (
	// DefaultServerHost is the default listen address for the review API
	DefaultServerHost = "127.0.0.1"

	// DefaultServerPort is the default port for the review API
	DefaultServerPort = 8085

	// DefaultThumbnailSize is the default bounding box for thumbnails served to reviewers
	DefaultThumbnailSize = 512

	// MaxThumbnailSize is the largest thumbnail bounding box a client may request
	MaxThumbnailSize = 2048
)
