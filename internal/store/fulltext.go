package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

const fullTextDocType = "chunk"

// FullText mirrors chunk text into a bleve index next to the vectors.
type FullText struct {
	mu     sync.Mutex
	index  bleve.Index
	path   string
	closed bool
}

// fullTextDoc is the indexed document shape.
type fullTextDoc struct {
	Body  string `json:"body"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Type lets bleve pick the chunk document mapping.
func (fullTextDoc) Type() string { return fullTextDocType }

// validateIndexIntegrity checks an existing bleve directory before opening.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func fullTextMapping() *mapping.IndexMappingImpl {
	body := bleve.NewTextFieldMapping()
	body.Analyzer = standard.Name

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("body", body)
	doc.AddFieldMappingsAt("title", body)
	doc.AddFieldMappingsAt("url", exact)
	doc.AddFieldMappingsAt("path", exact)

	m := bleve.NewIndexMapping()
	m.AddDocumentMapping(fullTextDocType, doc)
	m.DefaultAnalyzer = standard.Name
	return m
}

// OpenFullText opens or creates the bleve index at path. An empty path
// creates an in-memory index.
func OpenFullText(path string) (*FullText, error) {
	var (
		idx bleve.Index
		err error
	)

	if path == "" {
		idx, err = bleve.NewMemOnly(fullTextMapping())
	} else {
		if err := validateIndexIntegrity(path); err != nil {
			return nil, ierrors.New(ierrors.ErrCodeCorruptIndex,
				fmt.Sprintf("full-text index at %s: %v", path, err), err).
				WithSuggestion("remove the collection directory and ingest again")
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, fullTextMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open full-text index: %w", err)
	}

	return &FullText{index: idx, path: path}, nil
}

// Index adds records in one bleve batch.
func (f *FullText) Index(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	batch := f.index.NewBatch()
	for _, r := range records {
		doc := fullTextDoc{
			Body:  r.Text,
			URL:   r.Attributes["url"],
			Title: r.Attributes["title"],
			Path:  r.Attributes["path"],
		}
		if err := batch.Index(r.ID, doc); err != nil {
			return fmt.Errorf("failed to index document %s: %w", r.ID, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (f *FullText) Count() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}
	n, err := f.index.DocCount()
	return int(n), err
}

// Close closes the index. Safe to call twice.
func (f *FullText) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.index.Close()
}
