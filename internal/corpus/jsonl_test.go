package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeJSONL(t *testing.T) {
	input := `{"id": "doc-1", "text": "first document"}

{"id": "doc-2", "text": "second document", "metadata": {"source": "crawl", "quality_score": 0.9}}
`
	docs, err := DecodeJSONL(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeJSONL() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "doc-1" || docs[0].Text != "first document" {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[1].Metadata["source"] != "crawl" {
		t.Errorf("metadata = %v, want source=crawl", docs[1].Metadata)
	}
	if docs[1].QualityScore() != 0.9 {
		t.Errorf("QualityScore() = %v, want 0.9", docs[1].QualityScore())
	}
}

func TestDecodeJSONLBadLine(t *testing.T) {
	input := "{\"id\": \"ok\", \"text\": \"fine\"}\nnot json at all\n"
	_, err := DecodeJSONL(strings.NewReader(input))
	if err == nil {
		t.Fatal("DecodeJSONL() = nil, want parse error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %q, want it to name line 2", err.Error())
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.jsonl")

	in := []Document{
		{ID: "a", Text: "alpha text"},
		{ID: "b", Text: "beta text", Metadata: map[string]any{"quality_score": 0.7, "lang": "en"}},
	}
	if err := WriteJSONL(path, in); err != nil {
		t.Fatalf("WriteJSONL() error = %v", err)
	}

	out, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d documents, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].Text != in[i].Text {
			t.Errorf("document %d = %+v, want %+v", i, out[i], in[i])
		}
	}
	if out[1].QualityScore() != 0.7 {
		t.Errorf("QualityScore() = %v, want 0.7", out[1].QualityScore())
	}
}

func TestReadJSONLMissingFile(t *testing.T) {
	_, err := ReadJSONL(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err == nil {
		t.Fatal("ReadJSONL() = nil, want error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want a not-exist error", err)
	}
}
