package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// maxLineBytes bounds a single corpus line. Web-scraped documents run long,
// but anything past this is almost certainly a malformed file.
const maxLineBytes = 64 * 1024 * 1024

// ReadJSONL loads documents from a JSONL file, one JSON object per line.
func ReadJSONL(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	docs, err := DecodeJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	return docs, nil
}

// DecodeJSONL reads documents from r in input order. Blank lines are
// skipped; a line that is not a JSON document object fails the whole load,
// since silently dropping corpus records would skew downstream statistics.
func DecodeJSONL(r io.Reader) ([]Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	progress := rate.Sometimes{Interval: 2 * time.Second}
	var docs []Document
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var d Document
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", line, err)
		}
		docs = append(docs, d)

		progress.Do(func() {
			slog.Debug("loading corpus", "documents", len(docs))
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning line %d: %w", line+1, err)
	}
	return docs, nil
}

// WriteJSONL writes documents to path as JSONL, one object per line.
func WriteJSONL(path string, docs []Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if err := EncodeJSONL(w, docs); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// EncodeJSONL writes documents to w, one JSON object per line.
func EncodeJSONL(w io.Writer, docs []Document) error {
	for _, d := range docs {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshaling document %q: %w", d.ID, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}
