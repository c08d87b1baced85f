// scripts/gen-corpus.go - Synthetic corpus generator for deduplication trials
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/corpuslab/neardup/internal/corpus"
)

func main() {
	out := "corpus.jsonl"
	if len(os.Args) > 1 {
		out = os.Args[1]
	}

	// Allow overrides via environment variables
	count := 1000
	if v := os.Getenv("NEARDUP_GEN_COUNT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid NEARDUP_GEN_COUNT: %v\n", err)
			os.Exit(1)
		}
		count = parsed
	}

	dupRate := 0.3
	if v := os.Getenv("NEARDUP_GEN_DUP_RATE"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid NEARDUP_GEN_DUP_RATE: %v\n", err)
			os.Exit(1)
		}
		dupRate = parsed
	}

	fmt.Printf("Generating %d documents (duplicate rate %.0f%%)...\n", count, dupRate*100)

	rng := rand.New(rand.NewSource(1))
	docs := make([]corpus.Document, 0, count)
	for i := 0; i < count; i++ {
		var text string
		if i > 0 && rng.Float64() < dupRate {
			// Near-copy of an earlier document with a few words swapped
			text = mutate(rng, docs[rng.Intn(len(docs))].Text)
		} else {
			text = randomText(rng, 120)
		}
		docs = append(docs, corpus.Document{
			ID:   fmt.Sprintf("doc-%06d", i),
			Text: text,
			Metadata: map[string]any{
				"quality_score": float64(rng.Intn(100)) / 100.0,
			},
		})
	}

	if err := corpus.WriteJSONL(out, docs); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing corpus: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Wrote %d documents to %s\n", len(docs), out)
}

// randomText draws n words from a fixed synthetic vocabulary.
func randomText(rng *rand.Rand, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", rng.Intn(2000))
	}
	return strings.Join(words, " ")
}

// mutate swaps roughly three percent of the words for fresh ones, leaving
// the pair similar enough to cluster at common thresholds.
func mutate(rng *rand.Rand, text string) string {
	words := strings.Fields(text)
	for i := range words {
		if rng.Float64() < 0.03 {
			words[i] = fmt.Sprintf("edit%04d", rng.Intn(2000))
		}
	}
	return strings.Join(words, " ")
}
