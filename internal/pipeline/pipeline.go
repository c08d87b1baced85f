// Package pipeline wires corpus loading, the dedup engine, and artifact
// persistence into one runnable curation stage.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/corpuslab/neardup/internal/corpus"
	"github.com/corpuslab/neardup/internal/dedup"
	"github.com/corpuslab/neardup/internal/storage"
)

// Artifact filenames written into the output directory.
const (
	KeptFile     = "kept.jsonl"
	RemovedFile  = "removed.jsonl"
	ClustersFile = "clusters.json"
	ReportFile   = "report.json"
)

// Options configure one pipeline stage run.
type Options struct {
	// Input is the corpus to deduplicate: a .jsonl file, or a SQLite corpus
	// database (.db/.sqlite) produced by the ingest command.
	Input string `json:"input" yaml:"input"`

	// Output is the directory receiving kept.jsonl, removed.jsonl,
	// clusters.json, and report.json.
	Output string `json:"output" yaml:"output"`

	// Persist optionally names a SQLite database recording the run, so
	// results stay queryable after the output directory is consumed.
	Persist string `json:"persist" yaml:"persist"`

	// Dedup configures the detection engine.
	Dedup dedup.Config `json:"dedup" yaml:"dedup"`
}

// DefaultOptions returns stage options with engine defaults and no paths.
func DefaultOptions() Options {
	return Options{
		Output: "out",
		Dedup:  dedup.DefaultConfig(),
	}
}

// Validate checks the stage options.
func (o Options) Validate() error {
	if o.Input == "" {
		return fmt.Errorf("input is required")
	}
	if o.Output == "" {
		return fmt.Errorf("output directory is required")
	}
	return o.Dedup.Validate()
}

// LoadOptionsFile overlays YAML settings from path onto opts. Keys absent
// from the file keep their current values, so defaults and flag overrides
// survive partial files.
func LoadOptionsFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// RunReport is the report.json envelope: the engine report plus enough
// context to reproduce the run.
type RunReport struct {
	RunID     string       `json:"run_id"`
	CreatedAt time.Time    `json:"created_at"`
	Input     string       `json:"input"`
	Config    dedup.Config `json:"config"`
	Report    dedup.Report `json:"report"`
}

// RemovedRecord is one line of removed.jsonl.
type RemovedRecord struct {
	ID       string `json:"id"`
	Survivor string `json:"survivor"`
}

// Outcome points at the artifacts of a finished stage run.
type Outcome struct {
	RunID        string
	Result       *dedup.Result
	KeptPath     string
	RemovedPath  string
	ClustersPath string
	ReportPath   string
}

// Stage is a configured, runnable dedup pipeline stage.
type Stage struct {
	opts Options
}

// New validates opts and returns a Stage.
func New(opts Options) (*Stage, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline options: %w", err)
	}
	return &Stage{opts: opts}, nil
}

// Run loads the corpus, deduplicates it, and writes the artifacts. Each run
// gets a fresh run ID; rerunning the same options overwrites the output
// files but never mutates the input.
func (s *Stage) Run(ctx context.Context) (*Outcome, error) {
	runID := uuid.New().String()
	log := slog.With("run_id", runID)
	started := time.Now()

	log.Info("loading corpus", "input", s.opts.Input)
	docs, err := s.loadDocuments(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("corpus loaded", "documents", len(docs))

	engine, err := dedup.NewEngine(s.opts.Dedup)
	if err != nil {
		return nil, err
	}
	log.Info("deduplicating", "config", s.opts.Dedup.String())

	res, err := engine.Run(ctx, docs)
	if err != nil {
		return nil, err
	}
	log.Info("deduplication finished",
		"kept", res.Report.KeptCount,
		"removed", res.Report.RemovedCount,
		"clusters", res.Report.DuplicateClusters,
		"candidate_pairs", res.Report.CandidatePairs,
		"elapsed_ms", res.Report.ProcessingTimeMs)

	outcome, err := s.writeArtifacts(runID, docs, res)
	if err != nil {
		return nil, err
	}

	if s.opts.Persist != "" {
		if err := s.persistRun(ctx, runID, res); err != nil {
			return nil, err
		}
		log.Info("run persisted", "store", s.opts.Persist)
	}

	log.Info("stage complete",
		"output", s.opts.Output,
		"elapsed", time.Since(started).Round(time.Millisecond).String())
	return outcome, nil
}

// loadDocuments reads the corpus from JSONL or from a SQLite corpus store,
// chosen by file extension.
func (s *Stage) loadDocuments(ctx context.Context) ([]corpus.Document, error) {
	switch strings.ToLower(filepath.Ext(s.opts.Input)) {
	case ".db", ".sqlite", ".sqlite3":
		store, err := storage.Open(s.opts.Input)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		return store.LoadDocuments(ctx)
	default:
		return corpus.ReadJSONL(s.opts.Input)
	}
}

func (s *Stage) writeArtifacts(runID string, docs []corpus.Document, res *dedup.Result) (*Outcome, error) {
	if err := os.MkdirAll(s.opts.Output, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	outcome := &Outcome{
		RunID:        runID,
		Result:       res,
		KeptPath:     filepath.Join(s.opts.Output, KeptFile),
		RemovedPath:  filepath.Join(s.opts.Output, RemovedFile),
		ClustersPath: filepath.Join(s.opts.Output, ClustersFile),
		ReportPath:   filepath.Join(s.opts.Output, ReportFile),
	}

	// kept.jsonl carries the surviving documents unchanged, ready for the
	// next stage of the pipeline.
	keptSet := make(map[string]struct{}, len(res.Kept))
	for _, id := range res.Kept {
		keptSet[id] = struct{}{}
	}
	kept := make([]corpus.Document, 0, len(res.Kept))
	var removed []RemovedRecord
	for _, d := range docs {
		if _, ok := keptSet[d.ID]; ok {
			kept = append(kept, d)
			continue
		}
		removed = append(removed, RemovedRecord{ID: d.ID, Survivor: res.Removed[d.ID]})
	}

	if err := corpus.WriteJSONL(outcome.KeptPath, kept); err != nil {
		return nil, err
	}
	if err := writeRemoved(outcome.RemovedPath, removed); err != nil {
		return nil, err
	}
	if err := writeJSON(outcome.ClustersPath, res.Clusters); err != nil {
		return nil, err
	}

	report := RunReport{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Input:     s.opts.Input,
		Config:    s.opts.Dedup,
		Report:    res.Report,
	}
	if err := writeJSON(outcome.ReportPath, report); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Stage) persistRun(ctx context.Context, runID string, res *dedup.Result) error {
	store, err := storage.Open(s.opts.Persist)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return store.SaveRun(ctx, storage.Run{
		ID:        runID,
		CreatedAt: time.Now().UTC(),
		Input:     s.opts.Input,
		Config:    s.opts.Dedup,
		Result:    res,
	})
}

func writeRemoved(path string, records []RemovedRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
