package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-dedupe/internal/constants"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"gopkg.in/yaml.v3"
)

//go:embed extensions.yaml
var extensionsYAML []byte

type Config struct {
	Library   LibraryConfig
	Cache     CacheConfig
	Detection DetectionConfig
	Index     IndexConfig
	Server    ServerConfig
}

type LibraryConfig struct {
	Root       string   // defaults to the current directory
	Extensions []string // from the embedded extensions.yaml
}

type CacheConfig struct {
	Path       string // defaults to <root>/.photo-dedupe.yaml
	FlushEvery int    // batches between flushes
}

// CachePath returns the configured cache path, or the default file inside root.
func (c *CacheConfig) CachePath(root string) string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(root, constants.DefaultCacheFileName)
}

type DetectionConfig struct {
	Algorithm string // frequency or gradient
	Threshold int    // -1 when unset
	Workers   int
	BatchSize int
}

// ThresholdFor returns the configured threshold, or the default for alg when
// none was set.
func (c *DetectionConfig) ThresholdFor(alg fingerprint.Algorithm) int {
	if c.Threshold >= 0 {
		return c.Threshold
	}
	return DefaultThreshold(alg)
}

// DefaultThreshold returns the default max Hamming distance for alg.
func DefaultThreshold(alg fingerprint.Algorithm) int {
	if alg == fingerprint.Gradient {
		return constants.DefaultGradientThreshold
	}
	return constants.DefaultFrequencyThreshold
}

type IndexConfig struct {
	Kind         string // minhash, hnsw or exhaustive
	Permutations int
	Bands        int
	Neighbors    int // hnsw only
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins besides localhost
}

type extensionsFile struct {
	Extensions []string `yaml:"extensions"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegative is envInt that also accepts zero.
func envNonNegative(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var exts extensionsFile
	if err := yaml.Unmarshal(extensionsYAML, &exts); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded extensions.yaml: " + err.Error())
	}

	return &Config{
		Library: LibraryConfig{
			Root:       envString("DEDUPE_LIBRARY_ROOT", "."),
			Extensions: exts.Extensions,
		},
		Cache: CacheConfig{
			Path:       os.Getenv("DEDUPE_CACHE_PATH"),
			FlushEvery: envInt("DEDUPE_FLUSH_EVERY", constants.DefaultFlushEvery),
		},
		Detection: DetectionConfig{
			Algorithm: envString("DEDUPE_ALGORITHM", string(fingerprint.Frequency)),
			Threshold: envNonNegative("DEDUPE_THRESHOLD", -1),
			Workers:   envInt("DEDUPE_WORKERS", constants.WorkerPoolSize),
			BatchSize: envInt("DEDUPE_BATCH_SIZE", constants.DefaultBatchSize),
		},
		Index: IndexConfig{
			Kind:         envString("DEDUPE_INDEX", "minhash"),
			Permutations: envInt("DEDUPE_MINHASH_PERMUTATIONS", 0),
			Bands:        envInt("DEDUPE_MINHASH_BANDS", 0),
			Neighbors:    envInt("DEDUPE_HNSW_NEIGHBORS", 0),
		},
		Server: ServerConfig{
			Host:           envString("DEDUPE_SERVER_HOST", constants.DefaultServerHost),
			Port:           envInt("DEDUPE_SERVER_PORT", constants.DefaultServerPort),
			AllowedOrigins: envList("DEDUPE_ALLOWED_ORIGINS"),
		},
	}
}
