// Package search maintains a Bleve full-text index over the book catalog.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// mappingVersion changes whenever buildMapping does; a mismatch on open rebuilds the index.
const mappingVersion = "1"

// Index is safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	logger *slog.Logger
}

// Open opens the index under dir, recreating it when missing, unreadable or built
// from an older mapping. A recreated index is empty; callers reindex from the catalog.
func Open(dir string, logger *slog.Logger) (idx *Index, rebuilt bool, err error) {
	indexPath := filepath.Join(dir, "books.bleve")
	versionPath := filepath.Join(dir, "books.version")

	var index bleve.Index
	if v, readErr := os.ReadFile(versionPath); readErr == nil && string(v) == mappingVersion {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open search index, recreating", "path", indexPath, "error", err)
			index = nil
		}
	}

	if index == nil {
		rebuilt = true
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, false, fmt.Errorf("remove old index: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, false, fmt.Errorf("create index dir: %w", err)
		}
		index, err = bleve.New(indexPath, buildMapping())
		if err != nil {
			return nil, false, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", indexPath, "mapping_version", mappingVersion)
	}

	return &Index{index: index, logger: logger}, rebuilt, nil
}

// NewInMemory returns an index that is never persisted. Used by tests.
func NewInMemory(logger *slog.Logger) (*Index, error) {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create in-memory index: %w", err)
	}
	return &Index{index: index, logger: logger}, nil
}

// Close closes the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// IndexBook adds or replaces a book document.
func (i *Index) IndexBook(_ context.Context, doc *BookDocument) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Index(doc.ID, doc.toMap())
}

// DeleteBook removes a book document. Deleting an unknown id is not an error.
func (i *Index) DeleteBook(_ context.Context, id string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Delete(id)
}

// IndexBooks indexes docs in batches.
func (i *Index) IndexBooks(_ context.Context, docs []*BookDocument) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	const batchSize = 500
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := i.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.toMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Count returns the number of indexed books.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

func buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName

	book := bleve.NewDocumentMapping()

	text := func(store bool) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = en.AnalyzerName
		fm.Store = store
		return fm
	}
	book.AddFieldMappingsAt("title", text(true))
	book.AddFieldMappingsAt("author", text(true))
	book.AddFieldMappingsAt("description", text(false))
	book.AddFieldMappingsAt("genre", text(true))

	slug := bleve.NewTextFieldMapping()
	slug.Analyzer = keyword.Name
	book.AddFieldMappingsAt("genre_slug", slug)

	year := bleve.NewNumericFieldMapping()
	year.Store = true
	book.AddFieldMappingsAt("year", year)

	im.DefaultMapping = book
	return im
}
