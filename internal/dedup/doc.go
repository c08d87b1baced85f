// Package dedup provides near-duplicate detection over document batches
// using MinHash signatures and locality-sensitive hashing.
//
// # Overview
//
// The dedup engine partitions a corpus into kept documents and removed
// near-duplicates. It targets training-corpus curation, where the goal is to
// drop boilerplate variants, mirrored pages, and lightly edited copies
// without comparing every document to every other document.
//
// # Pipeline
//
// One call to Engine.Run executes five phases:
//
//  1. Shingle: normalize each document and extract word n-gram shingles.
//  2. Sign: compress each shingle set into a fixed-length MinHash signature.
//  3. Band: bucket signatures by LSH band so only colliding documents
//     become candidate pairs.
//  4. Verify: confirm each candidate pair against the similarity threshold,
//     either from the signature estimate or from exact shingle sets.
//  5. Cluster: connect confirmed pairs with a union-find, elect one
//     survivor per cluster, and mark the rest as duplicates.
//
// Shingling, signing, and verification fan out across a bounded worker
// pool; banding runs one goroutine per band. Clustering is sequential,
// which is where the deterministic output order comes from.
//
// # Configuration
//
// DefaultConfig returns the settings used for production corpus runs:
//
//   - ShingleSize: 5 (word five-grams)
//   - SignatureSize: 128 hash functions
//   - SimilarityThreshold: 0.85
//   - Banding: derived from size and threshold (16 bands x 8 rows)
//   - SurvivorPolicy: earliest-ingestion
//
// Lower the threshold to catch looser paraphrases; raise it toward 1.0 to
// keep everything but boilerplate clones. When Bands and RowsPerBand are
// left zero the engine derives a split whose S-curve crossover sits at or
// below the threshold, preferring recall since verification restores
// precision afterwards.
//
// # Determinism
//
// Runs are reproducible: the hash family is seeded (Config.Seed), workers
// write results into indexed slots, candidate pairs are sorted before
// verification, and clusters are ordered by the ingestion position of their
// earliest member. Two runs over the same input with the same configuration
// produce byte-identical results regardless of worker count.
//
// # Errors
//
// NewEngine rejects invalid configurations (threshold outside [0,1], a
// banding split that does not multiply out to the signature size, and so
// on). Run rejects batches containing duplicate or empty document IDs
// before any processing starts. An empty batch is not an error: Run returns
// an empty result with zeroed counters.
package dedup
