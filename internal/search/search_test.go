package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/logger"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewInMemory(logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	docs := []*BookDocument{
		{ID: "book-1", Title: "The Left Hand of Darkness", Description: "An envoy on a frozen planet", Genre: "Science Fiction", GenreSlug: "science-fiction", Author: "Ursula Le Guin", Year: 1969},
		{ID: "book-2", Title: "A Wizard of Earthsea", Description: "A young mage learns the price of power", Genre: "Fantasy", GenreSlug: "fantasy", Author: "Ursula Le Guin", Year: 1968},
		{ID: "book-3", Title: "Dune", Description: "Spice and sandworms on a desert planet", Genre: "Science Fiction", GenreSlug: "science-fiction", Author: "Frank Herbert", Year: 1965},
	}
	require.NoError(t, idx.IndexBooks(context.Background(), docs))
	return idx
}

func hitIDs(r *Result) []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.ID
	}
	return out
}

func TestSearch_ByTitle(t *testing.T) {
	idx := setupTestIndex(t)

	res, err := idx.Search(context.Background(), Query{Text: "wizard"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "book-2", res.Hits[0].ID)
	assert.Equal(t, "A Wizard of Earthsea", res.Hits[0].Title)
	assert.Equal(t, 1968, res.Hits[0].Year)
}

func TestSearch_ByAuthor(t *testing.T) {
	idx := setupTestIndex(t)

	res, err := idx.Search(context.Background(), Query{Text: "guin"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"book-1", "book-2"}, hitIDs(res))
}

func TestSearch_Filters(t *testing.T) {
	idx := setupTestIndex(t)

	res, err := idx.Search(context.Background(), Query{Genre: "Science Fiction"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"book-1", "book-3"}, hitIDs(res))

	res, err = idx.Search(context.Background(), Query{Text: "planet", MinYear: 1966})
	require.NoError(t, err)
	assert.Equal(t, []string{"book-1"}, hitIDs(res))
}

func TestSearch_MatchAllSortedByTitle(t *testing.T) {
	idx := setupTestIndex(t)

	res, err := idx.Search(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.Len(t, res.Hits, 3)
}

func TestIndex_DeleteBook(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.DeleteBook(ctx, "book-3"))
	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	res, err := idx.Search(ctx, Query{Text: "dune"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestOpen_RebuildsOnVersionChange(t *testing.T) {
	dir := t.TempDir()

	idx, rebuilt, err := Open(dir, logger.Discard())
	require.NoError(t, err)
	assert.True(t, rebuilt)
	require.NoError(t, idx.IndexBook(context.Background(), &BookDocument{ID: "book-1", Title: "Dune"}))
	require.NoError(t, idx.Close())

	idx, rebuilt, err = Open(dir, logger.Discard())
	require.NoError(t, err)
	assert.False(t, rebuilt)
	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	require.NoError(t, idx.Close())
}

func TestNewBookDocument(t *testing.T) {
	book := &domain.Book{Record: domain.Record{ID: "book-1"}, Title: "Solaris", Genre: "Ciencia Ficción", Year: 1961}
	author := &domain.Author{FirstName: "Stanisław", LastName: "Lem"}

	doc := NewBookDocument(book, author)
	assert.Equal(t, "ciencia-ficcion", doc.GenreSlug)
	assert.Equal(t, "Stanisław Lem", doc.Author)

	assert.Empty(t, NewBookDocument(book, nil).Author)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "science-fiction", Slugify("Science Fiction"))
	assert.Equal(t, "sci-fi-fantasy", Slugify("Sci-Fi/Fantasy"))
	assert.Equal(t, "", Slugify("  "))
}
