// Package storage persists corpora and deduplication runs in SQLite.
//
// Corpus tables feed batches into the engine; run tables record each
// partition so past runs stay auditable after the JSONL outputs move on.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/corpuslab/neardup/internal/corpus"
	"github.com/corpuslab/neardup/internal/dedup"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	position INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	text TEXT NOT NULL,
	metadata TEXT
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	input TEXT NOT NULL,
	config TEXT NOT NULL,
	report TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_kept (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	doc_id TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS run_removed (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	doc_id TEXT NOT NULL,
	survivor_id TEXT NOT NULL,
	PRIMARY KEY (run_id, doc_id)
);

CREATE TABLE IF NOT EXISTS run_clusters (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	ordinal INTEGER NOT NULL,
	survivor_id TEXT NOT NULL,
	size INTEGER NOT NULL,
	removed_ids TEXT NOT NULL,
	PRIMARY KEY (run_id, ordinal)
);
`

// Store is a SQLite-backed store for corpora and run results.
type Store struct {
	db *sql.DB
}

// Open opens the store at path, creating the file and schema as needed.
func Open(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertDocuments appends documents to the corpus in batch order.
func (s *Store) InsertDocuments(ctx context.Context, docs []corpus.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (id, text, metadata) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range docs {
		metadata, err := marshalMetadata(d.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %q: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Text, metadata); err != nil {
			return fmt.Errorf("failed to insert document %q: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// LoadDocuments returns the stored corpus in insertion order.
func (s *Store) LoadDocuments(ctx context.Context) ([]corpus.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, metadata FROM documents ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []corpus.Document
	for rows.Next() {
		var d corpus.Document
		var metadata sql.NullString
		if err := rows.Scan(&d.ID, &d.Text, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &d.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %q: %w", d.ID, err)
			}
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// Run is one persisted deduplication run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Input     string
	Config    dedup.Config
	Result    *dedup.Result
}

// SaveRun persists a finished run in a single transaction.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	reportJSON, err := json.Marshal(run.Result.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, created_at, input, config, report) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.CreatedAt.UTC(), run.Input, string(configJSON), string(reportJSON)); err != nil {
		return fmt.Errorf("failed to insert run %q: %w", run.ID, err)
	}

	keptStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO run_kept (run_id, position, doc_id) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare kept insert: %w", err)
	}
	defer func() { _ = keptStmt.Close() }()
	for i, id := range run.Result.Kept {
		if _, err := keptStmt.ExecContext(ctx, run.ID, i, id); err != nil {
			return fmt.Errorf("failed to insert kept id %q: %w", id, err)
		}
	}

	removedStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO run_removed (run_id, doc_id, survivor_id) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare removed insert: %w", err)
	}
	defer func() { _ = removedStmt.Close() }()
	for id, survivor := range run.Result.Removed {
		if _, err := removedStmt.ExecContext(ctx, run.ID, id, survivor); err != nil {
			return fmt.Errorf("failed to insert removed id %q: %w", id, err)
		}
	}

	clusterStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO run_clusters (run_id, ordinal, survivor_id, size, removed_ids) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare cluster insert: %w", err)
	}
	defer func() { _ = clusterStmt.Close() }()
	for i, c := range run.Result.Clusters {
		removedIDs, err := json.Marshal(c.Removed)
		if err != nil {
			return fmt.Errorf("failed to marshal cluster %d: %w", i, err)
		}
		if _, err := clusterStmt.ExecContext(ctx, run.ID, i, c.Survivor, c.Size, string(removedIDs)); err != nil {
			return fmt.Errorf("failed to insert cluster %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadRun fetches a persisted run by ID.
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, error) {
	run := Run{ID: id, Result: &dedup.Result{Removed: make(map[string]string)}}

	var configJSON, reportJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at, input, config, report FROM runs WHERE id = ?", id).
		Scan(&run.CreatedAt, &run.Input, &configJSON, &reportJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config for run %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(reportJSON), &run.Result.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report for run %q: %w", id, err)
	}

	kept, err := s.db.QueryContext(ctx,
		"SELECT doc_id FROM run_kept WHERE run_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query kept ids: %w", err)
	}
	defer func() { _ = kept.Close() }()
	for kept.Next() {
		var docID string
		if err := kept.Scan(&docID); err != nil {
			return nil, fmt.Errorf("failed to scan kept id: %w", err)
		}
		run.Result.Kept = append(run.Result.Kept, docID)
	}
	if err := kept.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kept ids: %w", err)
	}

	removed, err := s.db.QueryContext(ctx,
		"SELECT doc_id, survivor_id FROM run_removed WHERE run_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query removed ids: %w", err)
	}
	defer func() { _ = removed.Close() }()
	for removed.Next() {
		var docID, survivorID string
		if err := removed.Scan(&docID, &survivorID); err != nil {
			return nil, fmt.Errorf("failed to scan removed id: %w", err)
		}
		run.Result.Removed[docID] = survivorID
	}
	if err := removed.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate removed ids: %w", err)
	}

	clusters, err := s.db.QueryContext(ctx,
		"SELECT survivor_id, size, removed_ids FROM run_clusters WHERE run_id = ? ORDER BY ordinal", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer func() { _ = clusters.Close() }()
	for clusters.Next() {
		var c dedup.Cluster
		var removedIDs string
		if err := clusters.Scan(&c.Survivor, &c.Size, &removedIDs); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		if err := json.Unmarshal([]byte(removedIDs), &c.Removed); err != nil {
			return nil, fmt.Errorf("failed to decode cluster members: %w", err)
		}
		run.Result.Clusters = append(run.Result.Clusters, c)
	}
	if err := clusters.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clusters: %w", err)
	}

	return &run, nil
}

// RunSummary is a row in the run listing.
type RunSummary struct {
	ID        string
	CreatedAt time.Time
	Input     string
	Report    dedup.Report
}

// ListRuns returns summaries of persisted runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, input, report FROM runs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var reportJSON string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Input, &reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(reportJSON), &r.Report); err != nil {
			return nil, fmt.Errorf("failed to decode report for run %q: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func marshalMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
