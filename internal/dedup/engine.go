package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/corpuslab/neardup/internal/corpus"
	"github.com/corpuslab/neardup/internal/similarity"
)

// ErrInvalidConfig wraps every configuration error returned by NewEngine so
// callers can distinguish bad settings from bad input batches.
var ErrInvalidConfig = errors.New("invalid configuration")

// Engine runs near-duplicate detection over document batches. An Engine is
// immutable after construction and safe for concurrent use; the seeded hash
// family is shared across runs so signatures stay comparable.
type Engine struct {
	cfg      Config
	shingler *similarity.Shingler
	signer   *similarity.Signer
}

// NewEngine validates the configuration and prepares the hash family.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Engine{
		cfg:      cfg,
		shingler: similarity.NewShingler(cfg.ShingleSize),
		signer:   similarity.NewSigner(cfg.SignatureSize, cfg.Seed),
	}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run partitions docs into kept documents and removed near-duplicates.
//
// Document order is ingestion order: batch position drives the
// earliest-ingestion survivor policy and all output ordering. The batch
// must carry unique, non-empty IDs. An empty batch yields an empty result.
//
// Cancelling ctx stops the run between unit-of-work boundaries; work
// already handed to the pool drains before Run returns the context error.
func (e *Engine) Run(ctx context.Context, docs []corpus.Document) (*Result, error) {
	start := time.Now()

	if err := corpus.ValidateIDs(docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &Result{
			Removed: make(map[string]string),
			Report:  summarize(0, nil, 0, 0, time.Since(start)),
		}, nil
	}

	bands, rows := e.cfg.Banding()

	// Phase 1: shingle and sign every document.
	signatures, shingleSets, err := e.sign(ctx, docs)
	if err != nil {
		return nil, err
	}
	slog.Debug("signed documents",
		"documents", len(docs),
		"signature_size", e.cfg.SignatureSize)

	// Phase 2: band signatures and collect candidate pairs.
	index := similarity.NewBandingIndex(bands, rows)
	index.Index(signatures)
	candidates := index.CandidatePairs()
	slog.Debug("banded signatures",
		"bands", bands,
		"rows_per_band", rows,
		"buckets", index.BucketCount(),
		"candidate_pairs", len(candidates))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("deduplication interrupted: %w", err)
	}

	// Phase 3: verify candidates against the threshold.
	edges, err := e.verify(ctx, candidates, signatures, shingleSets)
	if err != nil {
		return nil, err
	}
	slog.Debug("verified candidates",
		"candidate_pairs", len(candidates),
		"confirmed_edges", len(edges))

	// Phase 4: cluster confirmed edges and elect survivors.
	clusters, removed := buildClusters(docs, edges, e.cfg.SurvivorPolicy)

	// Phase 5: assemble the partition and the report.
	kept := make([]string, 0, len(docs)-len(removed))
	for _, d := range docs {
		if _, dup := removed[d.ID]; !dup {
			kept = append(kept, d.ID)
		}
	}

	return &Result{
		Kept:     kept,
		Removed:  removed,
		Clusters: clusters,
		Report:   summarize(len(docs), clusters, len(candidates), len(edges), time.Since(start)),
	}, nil
}

// sign shingles and signs every document through the worker pool. Results
// land in slots indexed by batch position, so output never depends on
// completion order. Shingle sets are only retained when exact verification
// needs them later.
func (e *Engine) sign(ctx context.Context, docs []corpus.Document) ([]similarity.Signature, [][]uint64, error) {
	signatures := make([]similarity.Signature, len(docs))
	var shingleSets [][]uint64
	if e.cfg.ExactVerification {
		shingleSets = make([][]uint64, len(docs))
	}

	sem := semaphore.NewWeighted(int64(e.cfg.Workers))
	var wg sync.WaitGroup
	for i := range docs {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, nil, fmt.Errorf("failed to acquire worker slot for signing: %w", err)
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			set := e.shingler.Shingle(docs[i].Text)
			signatures[i] = e.signer.Sign(set)
			if shingleSets != nil {
				shingleSets[i] = set
			}
		}(i)
	}
	wg.Wait()
	return signatures, shingleSets, nil
}

// verify checks every candidate pair against the similarity threshold and
// returns the confirmed edges in candidate order. With exact verification
// the true Jaccard similarity is recomputed from the retained shingle sets;
// otherwise the signature estimate is reused.
func (e *Engine) verify(ctx context.Context, candidates []similarity.Pair, signatures []similarity.Signature, shingleSets [][]uint64) ([]similarity.Pair, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	confirmed := make([]bool, len(candidates))
	sem := semaphore.NewWeighted(int64(e.cfg.Workers))
	var wg sync.WaitGroup
	for i := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, fmt.Errorf("failed to acquire worker slot for verification: %w", err)
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			pair := candidates[i]
			var sim float64
			if shingleSets != nil {
				sim = similarity.Jaccard(shingleSets[pair.A], shingleSets[pair.B])
			} else {
				sim = similarity.EstimateSimilarity(signatures[pair.A], signatures[pair.B])
			}
			confirmed[i] = sim >= e.cfg.SimilarityThreshold
		}(i)
	}
	wg.Wait()

	edges := make([]similarity.Pair, 0, len(candidates))
	for i, ok := range confirmed {
		if ok {
			edges = append(edges, candidates[i])
		}
	}
	return edges, nil
}
