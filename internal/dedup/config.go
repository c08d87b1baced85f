package dedup

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"

	"github.com/corpuslab/neardup/internal/similarity"
)

// SurvivorPolicy selects which member of a duplicate cluster is kept.
type SurvivorPolicy string

const (
	// SurvivorEarliestIngestion keeps the cluster member that appeared
	// first in the input batch.
	SurvivorEarliestIngestion SurvivorPolicy = "earliest-ingestion"

	// SurvivorHighestQualityScore keeps the member with the highest
	// quality_score metadata value, falling back to ingestion order when
	// scores tie or are missing.
	SurvivorHighestQualityScore SurvivorPolicy = "highest-quality-score"
)

// DefaultSeed is the MinHash seed used when none is configured. Fixed so
// that repeated runs over the same corpus agree with each other.
const DefaultSeed int64 = 1

// Config holds configuration for the near-duplicate detection engine
type Config struct {
	// ShingleSize is the word n-gram window width for shingling
	// Smaller windows match looser rewrites, larger windows require longer
	// exact runs of text to count as overlap
	// Default: 5 words
	ShingleSize int `json:"shingle_size" yaml:"shingle_size"`

	// SignatureSize is the number of MinHash functions (k)
	// Larger signatures reduce estimator variance at linear cost in
	// signing time and memory
	// Default: 128
	SignatureSize int `json:"signature_size" yaml:"signature_size"`

	// Bands is the number of LSH bands. Leave both Bands and RowsPerBand
	// at zero to derive a split from SignatureSize and SimilarityThreshold.
	// When set explicitly, Bands*RowsPerBand must equal SignatureSize
	// Default: 0 (derived, 16 for the default configuration)
	Bands int `json:"bands" yaml:"bands"`

	// RowsPerBand is the number of signature rows hashed into each band key
	// Default: 0 (derived, 8 for the default configuration)
	RowsPerBand int `json:"rows_per_band" yaml:"rows_per_band"`

	// SimilarityThreshold is the Jaccard similarity (0.0-1.0) at or above
	// which a verified candidate pair becomes a duplicate edge
	// Higher values = conservative (only close copies merge)
	// Lower values = aggressive (paraphrases start to merge)
	// Default: 0.85
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// ExactVerification recomputes true Jaccard similarity from retained
	// shingle sets instead of reusing the signature estimate when
	// confirming candidates. Removes estimator noise near the threshold at
	// the cost of holding every shingle set in memory for the whole run
	// Default: false
	ExactVerification bool `json:"exact_verification" yaml:"exact_verification"`

	// SurvivorPolicy picks which cluster member survives
	// Default: earliest-ingestion
	SurvivorPolicy SurvivorPolicy `json:"survivor_policy" yaml:"survivor_policy"`

	// Seed parameterizes the MinHash hash family. Runs with the same seed,
	// configuration, and input produce identical output
	// Default: 1
	Seed int64 `json:"seed" yaml:"seed"`

	// Workers bounds the goroutines used for parallel shingling, signing,
	// and verification
	// Default: runtime.NumCPU()
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns the default engine configuration
//
// These defaults are tuned for corpus curation:
// - Word five-grams and a 0.85 threshold catch boilerplate variants and
//   lightly edited copies while leaving genuine paraphrases alone
// - 128 hash functions keep the estimate within a few points of the truth
// - The derived 16x8 banding has its S-curve crossover near 0.71, so recall
//   at the threshold stays high and verification restores precision
func DefaultConfig() Config {
	return Config{
		ShingleSize:         similarity.DefaultShingleSize,   // Word five-grams
		SignatureSize:       similarity.DefaultSignatureSize, // 128 hash functions
		Bands:               0,                               // Derived from size and threshold
		RowsPerBand:         0,                               // Derived from size and threshold
		SimilarityThreshold: 0.85,                            // Near-duplicates only
		ExactVerification:   false,                           // Estimate is enough at 0.85
		SurvivorPolicy:      SurvivorEarliestIngestion,       // First occurrence wins
		Seed:                DefaultSeed,                     // Reproducible hash family
		Workers:             runtime.NumCPU(),                // One worker per core
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.ShingleSize < 1 {
		return fmt.Errorf("shingle_size must be at least 1 (got %d)", c.ShingleSize)
	}
	if c.ShingleSize > 64 {
		return fmt.Errorf("shingle_size too large (got %d, max 64)", c.ShingleSize)
	}
	if c.SignatureSize < 1 {
		return fmt.Errorf("signature_size must be at least 1 (got %d)", c.SignatureSize)
	}
	if c.SignatureSize > 4096 {
		return fmt.Errorf("signature_size too large (got %d, max 4096)", c.SignatureSize)
	}
	if c.SimilarityThreshold < 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.SimilarityThreshold)
	}
	if (c.Bands == 0) != (c.RowsPerBand == 0) {
		return fmt.Errorf("bands and rows_per_band must be set together (got %d and %d)",
			c.Bands, c.RowsPerBand)
	}
	if c.Bands < 0 || c.RowsPerBand < 0 {
		return fmt.Errorf("bands and rows_per_band cannot be negative (got %d and %d)",
			c.Bands, c.RowsPerBand)
	}
	if c.Bands > 0 && c.Bands*c.RowsPerBand != c.SignatureSize {
		return fmt.Errorf("bands*rows_per_band must equal signature_size (got %d*%d != %d)",
			c.Bands, c.RowsPerBand, c.SignatureSize)
	}
	switch c.SurvivorPolicy {
	case SurvivorEarliestIngestion, SurvivorHighestQualityScore:
	default:
		return fmt.Errorf("unknown survivor_policy %q", c.SurvivorPolicy)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 (got %d)", c.Workers)
	}
	if c.Workers > 1024 {
		return fmt.Errorf("workers too large (got %d, max 1024)", c.Workers)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	bands, rows := c.Banding()
	return fmt.Sprintf(
		"Config{Shingle: %d, Signature: %d, Banding: %dx%d, Threshold: %.2f, "+
			"Exact: %t, Survivor: %s, Seed: %d, Workers: %d}",
		c.ShingleSize, c.SignatureSize, bands, rows, c.SimilarityThreshold,
		c.ExactVerification, c.SurvivorPolicy, c.Seed, c.Workers,
	)
}

// Banding returns the effective banding split: the configured one when set,
// otherwise the split derived from SignatureSize and SimilarityThreshold.
func (c Config) Banding() (bands, rowsPerBand int) {
	if c.Bands > 0 {
		return c.Bands, c.RowsPerBand
	}
	return DeriveBanding(c.SignatureSize, c.SimilarityThreshold)
}

// DeriveBanding picks a banding split for a signature of size k and a
// confirmation threshold. It returns the split with the most rows per band
// whose S-curve crossover (1/bands)^(1/rows) stays at or below the
// threshold. Erring toward more bands inflates candidate recall rather than
// losing true pairs; the verification phase discards the excess.
//
// For k=128: threshold 0.85 gives 16x8, 0.99 gives 2x64, 0.50 gives 32x4.
func DeriveBanding(k int, threshold float64) (bands, rowsPerBand int) {
	bands, rowsPerBand = k, 1
	for rows := 1; rows <= k; rows++ {
		if k%rows != 0 {
			continue
		}
		b := k / rows
		crossover := math.Pow(1.0/float64(b), 1.0/float64(rows))
		if crossover <= threshold {
			bands, rowsPerBand = b, rows
		}
	}
	return bands, rowsPerBand
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - NEARDUP_SHINGLE_SIZE: Word n-gram window width (default: 5)
//   - NEARDUP_SIGNATURE_SIZE: Number of MinHash functions (default: 128)
//   - NEARDUP_BANDS: LSH band count, 0 to derive (default: 0)
//   - NEARDUP_ROWS_PER_BAND: Rows hashed per band, 0 to derive (default: 0)
//   - NEARDUP_SIMILARITY_THRESHOLD: Jaccard threshold 0.0-1.0 (default: 0.85)
//   - NEARDUP_EXACT_VERIFICATION: Verify with exact Jaccard (default: false)
//   - NEARDUP_SURVIVOR_POLICY: earliest-ingestion or highest-quality-score
//   - NEARDUP_SEED: MinHash seed (default: 1)
//   - NEARDUP_WORKERS: Worker pool size (default: number of CPUs)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvInt("NEARDUP_SHINGLE_SIZE", &cfg.ShingleSize); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("NEARDUP_SIGNATURE_SIZE", &cfg.SignatureSize); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("NEARDUP_BANDS", &cfg.Bands); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("NEARDUP_ROWS_PER_BAND", &cfg.RowsPerBand); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("NEARDUP_SIMILARITY_THRESHOLD", &cfg.SimilarityThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("NEARDUP_EXACT_VERIFICATION", &cfg.ExactVerification); err != nil {
		return cfg, err
	}
	if value := os.Getenv("NEARDUP_SURVIVOR_POLICY"); value != "" {
		cfg.SurvivorPolicy = SurvivorPolicy(value)
	}
	if err := parseEnvInt64("NEARDUP_SEED", &cfg.Seed); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("NEARDUP_WORKERS", &cfg.Workers); err != nil {
		return cfg, err
	}

	// Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return cfg, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt64 parses an int64 from an environment variable
func parseEnvInt64(key string, dest *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
