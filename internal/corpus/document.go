// Package corpus defines the document model and the JSONL corpus format
// shared by the dedup engine, the storage layer, and the CLI.
package corpus

import (
	"errors"
	"fmt"
	"strconv"
)

// Validation errors for document batches. Callers distinguish them with
// errors.Is.
var (
	ErrEmptyID     = errors.New("document has an empty id")
	ErrDuplicateID = errors.New("duplicate document id")
)

// Document is one unit of text under deduplication.
//
// The engine treats Metadata as opaque: it passes through to the output
// unchanged, except that the highest-quality-score survivor policy consults
// the quality_score key.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QualityScoreKey is the metadata key consulted by the
// highest-quality-score survivor policy.
const QualityScoreKey = "quality_score"

// QualityScore returns the document's upstream quality score. Documents
// without the key, or with a value that is neither a number nor a numeric
// string, score 0.
func (d Document) QualityScore() float64 {
	raw, ok := d.Metadata[QualityScoreKey]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return score
	default:
		return 0
	}
}

// ValidateIDs checks that every document carries a unique, non-empty ID.
// Unique IDs are a precondition for the kept/removed mapping, so a violation
// fails the batch before any processing starts.
func ValidateIDs(docs []Document) error {
	seen := make(map[string]int, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w (position %d)", ErrEmptyID, i)
		}
		if prev, ok := seen[d.ID]; ok {
			return fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateID, d.ID, prev, i)
		}
		seen[d.ID] = i
	}
	return nil
}
