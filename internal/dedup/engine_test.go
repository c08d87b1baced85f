package dedup

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuslab/neardup/internal/corpus"
)

// soup builds a document of n unique tokens under the given tag. Documents
// built from different tags share no tokens at all, so their true Jaccard
// similarity is exactly zero.
func soup(tag string, n int) string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%s%03d", tag, i)
	}
	return strings.Join(tokens, " ")
}

// substitute replaces the tokens at the given positions with markers no
// other document contains.
func substitute(text string, positions ...int) string {
	tokens := strings.Fields(text)
	for _, p := range positions {
		tokens[p] = fmt.Sprintf("sub%03d", p)
	}
	return strings.Join(tokens, " ")
}

func doc(id, text string) corpus.Document {
	return corpus.Document{ID: id, Text: text}
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return engine
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 2.0

	_, err := NewEngine(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngineEmptyBatch(t *testing.T) {
	engine := mustEngine(t, DefaultConfig())

	res, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, res.Validate())

	assert.Empty(t, res.Kept)
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Clusters)
	assert.Equal(t, 0, res.Report.TotalDocuments)
	assert.Equal(t, 0.0, res.Report.NearDuplicateRate)
}

func TestEngineRejectsBadIDs(t *testing.T) {
	engine := mustEngine(t, DefaultConfig())
	ctx := context.Background()

	_, err := engine.Run(ctx, []corpus.Document{doc("a", "x"), doc("a", "y")})
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrDuplicateID)

	_, err = engine.Run(ctx, []corpus.Document{doc("a", "x"), doc("", "y")})
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrEmptyID)
}

func TestEngineExactClones(t *testing.T) {
	clone := soup("clone", 80)
	docs := []corpus.Document{
		doc("c1", clone),
		doc("u1", soup("first", 80)),
		doc("c2", clone),
		doc("u2", soup("second", 80)),
		doc("c3", clone),
	}

	engine := mustEngine(t, DefaultConfig())
	res, err := engine.Run(context.Background(), docs)
	require.NoError(t, err)
	require.NoError(t, res.Validate())

	assert.Equal(t, []string{"c1", "u1", "u2"}, res.Kept)
	assert.Equal(t, map[string]string{"c2": "c1", "c3": "c1"}, res.Removed)

	require.Len(t, res.Clusters, 1)
	assert.Equal(t, "c1", res.Clusters[0].Survivor)
	assert.Equal(t, 3, res.Clusters[0].Size)
	assert.Equal(t, []string{"c2", "c3"}, res.Clusters[0].Removed)

	assert.Equal(t, 5, res.Report.TotalDocuments)
	assert.Equal(t, 3, res.Report.KeptCount)
	assert.Equal(t, 2, res.Report.RemovedCount)
	assert.Equal(t, 1, res.Report.DuplicateClusters)
	assert.Equal(t, map[int]int{3: 1, 1: 2}, res.Report.ClusterSizes)
	assert.InDelta(t, 0.4, res.Report.NearDuplicateRate, 1e-9)
}

func TestEngineNearDuplicatePair(t *testing.T) {
	// One substitution in a 200-token document leaves 191 of 201 distinct
	// five-gram windows shared, a true Jaccard similarity of 0.95.
	base := soup("base", 200)
	variant := substitute(base, 100)

	cfg := DefaultConfig()
	cfg.ExactVerification = true
	engine := mustEngine(t, cfg)

	res, err := engine.Run(context.Background(), []corpus.Document{
		doc("original", base),
		doc("variant", variant),
		doc("filler", soup("filler", 200)),
	})
	require.NoError(t, err)
	require.NoError(t, res.Validate())

	assert.Equal(t, []string{"original", "filler"}, res.Kept)
	assert.Equal(t, map[string]string{"variant": "original"}, res.Removed)
	require.Len(t, res.Clusters, 1)
	assert.Equal(t, 2, res.Clusters[0].Size)
}

func TestEngineLooseThresholdMergesSentenceEdit(t *testing.T) {
	// Changing one word of a nine-word sentence leaves 4 of 10 trigram
	// windows shared, so the pair sits exactly at similarity 0.4. It merges
	// at threshold 0.40 and survives untouched at the default 0.85.
	a := "The quick brown fox jumps over the lazy dog"
	b := "The quick brown fox jumped over the lazy dog"
	c := "Entirely unrelated text about corpus curation pipelines"

	loose := DefaultConfig()
	loose.ShingleSize = 3
	loose.SimilarityThreshold = 0.4
	loose.ExactVerification = true
	loose.Bands, loose.RowsPerBand = 128, 1

	engine := mustEngine(t, loose)
	res, err := engine.Run(context.Background(), []corpus.Document{
		doc("a", a), doc("b", b), doc("c", c),
	})
	require.NoError(t, err)
	require.NoError(t, res.Validate())
	assert.Equal(t, []string{"a", "c"}, res.Kept)
	assert.Equal(t, map[string]string{"b": "a"}, res.Removed)

	strict := DefaultConfig()
	strict.ShingleSize = 3
	strict.ExactVerification = true

	engine = mustEngine(t, strict)
	res, err = engine.Run(context.Background(), []corpus.Document{
		doc("a", a), doc("b", b), doc("c", c),
	})
	require.NoError(t, err)
	require.NoError(t, res.Validate())
	assert.Equal(t, []string{"a", "b", "c"}, res.Kept)
	assert.Empty(t, res.Removed)
}

func TestEngineMixedCorpusReport(t *testing.T) {
	clone := soup("clone", 80)
	near := soup("near", 200)
	docs := []corpus.Document{
		doc("c1", clone),
		doc("n1", near),
		doc("u1", soup("u1x", 150)),
		doc("c2", clone),
		doc("u2", soup("u2x", 150)),
		doc("c3", clone),
		doc("n2", substitute(near, 100)),
		doc("u3", soup("u3x", 150)),
	}

	cfg := DefaultConfig()
	cfg.ExactVerification = true
	engine := mustEngine(t, cfg)

	res, err := engine.Run(context.Background(), docs)
	require.NoError(t, err)
	require.NoError(t, res.Validate())

	assert.Equal(t, []string{"c1", "n1", "u1", "u2", "u3"}, res.Kept)
	assert.Equal(t, map[string]string{
		"c2": "c1",
		"c3": "c1",
		"n2": "n1",
	}, res.Removed)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, "c1", res.Clusters[0].Survivor)
	assert.Equal(t, "n1", res.Clusters[1].Survivor)

	report := res.Report
	assert.Equal(t, 8, report.TotalDocuments)
	assert.Equal(t, 5, report.KeptCount)
	assert.Equal(t, 3, report.RemovedCount)
	assert.Equal(t, 2, report.DuplicateClusters)
	assert.Equal(t, map[int]int{3: 1, 2: 1, 1: 3}, report.ClusterSizes)
	assert.InDelta(t, 0.375, report.NearDuplicateRate, 1e-9)
	assert.Equal(t, 4, report.CandidatePairs)
	assert.Equal(t, 4, report.ConfirmedEdges)
}

func TestEngineQualityScorePolicy(t *testing.T) {
	clone := soup("clone", 80)
	withScore := func(id string, score float64) corpus.Document {
		return corpus.Document{
			ID:       id,
			Text:     clone,
			Metadata: map[string]any{corpus.QualityScoreKey: score},
		}
	}

	cfg := DefaultConfig()
	cfg.SurvivorPolicy = SurvivorHighestQualityScore
	engine := mustEngine(t, cfg)

	res, err := engine.Run(context.Background(), []corpus.Document{
		withScore("low", 0.2),
		withScore("high", 0.9),
		withScore("mid", 0.5),
	})
	require.NoError(t, err)
	require.NoError(t, res.Validate())

	assert.Equal(t, []string{"high"}, res.Kept)
	assert.Equal(t, map[string]string{"low": "high", "mid": "high"}, res.Removed)
}

func TestEngineDeterministicAcrossWorkerCounts(t *testing.T) {
	clone := soup("clone", 80)
	near := soup("near", 200)
	docs := []corpus.Document{
		doc("c1", clone),
		doc("n1", near),
		doc("u1", soup("u1x", 150)),
		doc("c2", clone),
		doc("n2", substitute(near, 100)),
		doc("u2", soup("u2x", 150)),
	}

	results := make([]*Result, 0, 2)
	for _, workers := range []int{1, 8} {
		cfg := DefaultConfig()
		cfg.ExactVerification = true
		cfg.Workers = workers

		res, err := mustEngine(t, cfg).Run(context.Background(), docs)
		require.NoError(t, err)
		results = append(results, res)
	}

	assert.Equal(t, results[0].Kept, results[1].Kept)
	assert.Equal(t, results[0].Removed, results[1].Removed)
	assert.Equal(t, results[0].Clusters, results[1].Clusters)
	assert.Equal(t, results[0].Report.ClusterSizes, results[1].Report.ClusterSizes)
	assert.Equal(t, results[0].Report.CandidatePairs, results[1].Report.CandidatePairs)
	assert.Equal(t, results[0].Report.ConfirmedEdges, results[1].Report.ConfirmedEdges)
}

func TestEngineThresholdMonotonicity(t *testing.T) {
	// Two pairs at true similarities 0.95 and about 0.59, plus noise.
	// Raising the threshold must never remove more documents, and with the
	// earliest-ingestion policy the strict removal set is a subset of the
	// loose one.
	closeBase := soup("close", 200)
	farBase := soup("far", 200)
	docs := []corpus.Document{
		doc("close1", closeBase),
		doc("close2", substitute(closeBase, 100)),
		doc("far1", farBase),
		doc("far2", substitute(farBase, 15, 35, 55, 75, 95, 115, 135, 155, 175, 195)),
		doc("noise", soup("noise", 200)),
	}

	run := func(threshold float64) *Result {
		cfg := DefaultConfig()
		cfg.SimilarityThreshold = threshold
		cfg.ExactVerification = true
		// The same explicit banding for both runs keeps the candidate sets
		// identical, isolating the threshold's effect.
		cfg.Bands, cfg.RowsPerBand = 64, 2

		res, err := mustEngine(t, cfg).Run(context.Background(), docs)
		require.NoError(t, err)
		require.NoError(t, res.Validate())
		return res
	}

	loose := run(0.55)
	strict := run(0.90)

	assert.Equal(t, 2, loose.Report.RemovedCount)
	assert.Equal(t, 1, strict.Report.RemovedCount)
	for id := range strict.Removed {
		_, ok := loose.Removed[id]
		assert.True(t, ok, "document %s removed at 0.90 but kept at 0.55", id)
	}
}

func TestEngineIdempotence(t *testing.T) {
	clone := soup("clone", 80)
	docs := []corpus.Document{
		doc("c1", clone),
		doc("u1", soup("u1x", 150)),
		doc("c2", clone),
		doc("u2", soup("u2x", 150)),
		doc("c3", clone),
	}

	engine := mustEngine(t, DefaultConfig())
	first, err := engine.Run(context.Background(), docs)
	require.NoError(t, err)
	require.NotEmpty(t, first.Removed)

	byID := make(map[string]corpus.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	survivors := make([]corpus.Document, 0, len(first.Kept))
	for _, id := range first.Kept {
		survivors = append(survivors, byID[id])
	}

	second, err := engine.Run(context.Background(), survivors)
	require.NoError(t, err)
	require.NoError(t, second.Validate())
	assert.Empty(t, second.Removed, "rerunning over survivors removed documents")
	assert.Equal(t, first.Kept, second.Kept)
}

func TestEngineContextCancellation(t *testing.T) {
	docs := make([]corpus.Document, 100)
	for i := range docs {
		docs[i] = doc(fmt.Sprintf("d%03d", i), soup(fmt.Sprintf("t%d", i), 50))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mustEngine(t, DefaultConfig()).Run(ctx, docs)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkEngineRun(b *testing.B) {
	benchmarks := []struct {
		name   string
		docs   int
		tokens int
	}{
		{"100docs_100tokens", 100, 100},
		{"500docs_200tokens", 500, 200},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			docs := make([]corpus.Document, bm.docs)
			for i := range docs {
				// Every fifth document clones its predecessor so the run
				// does real cluster work.
				if i%5 == 1 {
					docs[i] = doc(fmt.Sprintf("d%04d", i), docs[i-1].Text)
					continue
				}
				docs[i] = doc(fmt.Sprintf("d%04d", i), soup(fmt.Sprintf("t%d", i), bm.tokens))
			}

			engine, err := NewEngine(DefaultConfig())
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Run(context.Background(), docs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
