// Package ingest loads knowledge-base documents from files and writes them,
// embedded, into the vector store.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/cactux/cactux/internal/retrieval"
)

// record is one JSONL line.
type record struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Summary  string         `json:"summary"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// ReadJSONL parses one document per non-blank line. Lines without content
// are rejected with their line number.
func ReadJSONL(r io.Reader) ([]retrieval.Document, error) {
	var docs []retrieval.Document
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.Content) == "" {
			return nil, fmt.Errorf("line %d: content is required", line)
		}
		docs = append(docs, retrieval.Document{
			ID:       rec.ID,
			Title:    rec.Title,
			Summary:  rec.Summary,
			Content:  rec.Content,
			Metadata: rec.Metadata,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading jsonl: %w", err)
	}
	return docs, nil
}

// LoadJSONL reads a JSONL file.
func LoadJSONL(path string) ([]retrieval.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSONL(f)
}

// LoadPDF extracts one document per non-empty page. Every page carries a
// copy of meta plus its page number, and ids are derived from the file name
// so re-importing the same guidebook replaces its pages.
func LoadPDF(path string, meta map[string]any) ([]retrieval.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var docs []retrieval.Document
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		m := make(map[string]any, len(meta)+1)
		for k, v := range meta {
			m[k] = v
		}
		m["page"] = i
		docs = append(docs, retrieval.Document{
			ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(base+"#"+strconv.Itoa(i))).String(),
			Title:    base + " p." + strconv.Itoa(i),
			Content:  text,
			Metadata: m,
		})
	}
	return docs, nil
}
