package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/library-server/internal/config"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/search"
	"github.com/listenupapp/library-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
	// Rebuilt is set when the on-disk index was missing or unreadable.
	Rebuilt bool
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// Ping reports whether the index answers queries.
func (h *SearchIndexHandle) Ping(_ context.Context) error {
	_, err := h.Count()
	return err
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, rebuilt, err := search.Open(cfg.Storage.SearchPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	docCount, _ := index.Count()
	log.Info("Search index initialized", "documents", docCount, "recreated", rebuilt)

	return &SearchIndexHandle{Index: index, Rebuilt: rebuilt}, nil
}

// TriggerSearchReindexIfNeeded rebuilds the index in the background when it
// was recreated, or is empty while the catalog holds books.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx := context.Background()

	if !indexHandle.Rebuilt {
		docCount, _ := indexHandle.Count()
		if docCount > 0 {
			return
		}
		books, err := storeHandle.ListBooks(ctx)
		if err != nil || len(books) == 0 {
			return
		}
		log.Info("Search index is empty but books exist, triggering reindex", "book_count", len(books))
	}

	go func() {
		n, err := catalog.RebuildIndex(context.Background())
		if err != nil {
			log.Error("Search reindex failed", "error", err)
			return
		}
		log.Info("Search reindex completed", "documents", n)
	}()
}
