package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/library-server/internal/search"
)

func TestAuthors_WritesRequireAdmin(t *testing.T) {
	ts := setupTestServer(t)
	adminToken, _ := ts.register(t, "admin@example.com")
	memberToken, _ := ts.register(t, "reader@example.com")

	body := map[string]any{"first_name": "Octavia", "last_name": "Butler", "age": 58}

	resp := ts.api.Post("/api/v1/authors", body)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Post("/api/v1/authors", bearer(memberToken), body)
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "Admin access required", decode[any](t, resp).Error)

	resp = ts.api.Post("/api/v1/authors", bearer(adminToken), body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	author := decode[AuthorResponse](t, resp).Data
	assert.Equal(t, "Butler", author.LastName)

	// Reads are public.
	resp = ts.api.Get("/api/v1/authors/" + author.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 58, decode[AuthorResponse](t, resp).Data.Age)

	resp = ts.api.Get("/api/v1/authors")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[ListAuthorsResponse](t, resp).Data.Authors, 1)
}

func TestAuthors_UpdateAndDelete(t *testing.T) {
	ts := setupTestServer(t)
	adminToken, _ := ts.register(t, "admin@example.com")
	author := ts.createAuthor(t, adminToken, "Ursula", "Le Guin")
	ts.createBook(t, adminToken, author.ID, "Earthsea")

	resp := ts.api.Patch("/api/v1/authors/"+author.ID, bearer(adminToken), map[string]any{"age": 17})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "age must be greater than or equal to 18", decode[any](t, resp).Error)

	resp = ts.api.Patch("/api/v1/authors/"+author.ID, bearer(adminToken), map[string]any{"age": 88})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 88, decode[AuthorResponse](t, resp).Data.Age)

	resp = ts.api.Delete("/api/v1/authors/"+author.ID, bearer(adminToken))
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "author still has books in the catalog", decode[any](t, resp).Error)

	resp = ts.api.Get("/api/v1/authors/author-ghost")
	require.Equal(t, http.StatusNotFound, resp.Code)
	env := decode[any](t, resp)
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.Equal(t, "author not found with id: author-ghost", env.Error)
}

func TestBooks_CreateAndGet(t *testing.T) {
	ts := setupTestServer(t)
	adminToken, _ := ts.register(t, "admin@example.com")
	author := ts.createAuthor(t, adminToken, "Ursula", "Le Guin")

	book := ts.createBook(t, adminToken, author.ID, "Earthsea")
	assert.True(t, book.Available)
	assert.Nil(t, book.Status)

	resp := ts.api.Get("/api/v1/books/" + book.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Earthsea", decode[BookResponse](t, resp).Data.Title)

	resp = ts.api.Post("/api/v1/books", bearer(adminToken), map[string]any{
		"title":       "It",
		"description": "Clowns",
		"genre":       "Horror",
		"year":        1986,
		"author_id":   author.ID,
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	env := decode[any](t, resp)
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Equal(t, "title must be at least 3 characters", env.Error)

	resp = ts.api.Post("/api/v1/books", bearer(adminToken), map[string]any{
		"title":       "Earthsea",
		"description": "Again",
		"genre":       "Fantasy",
		"year":        1968,
		"author_id":   author.ID,
	})
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "book already exists with title: Earthsea", decode[any](t, resp).Error)

	resp = ts.api.Get("/api/v1/books")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[ListBooksResponse](t, resp).Data.Books, 1)
}

func TestBooks_UpdateAndDelete(t *testing.T) {
	ts := setupTestServer(t)
	adminToken, _ := ts.register(t, "admin@example.com")
	author := ts.createAuthor(t, adminToken, "Ursula", "Le Guin")
	book := ts.createBook(t, adminToken, author.ID, "Earthsea")

	resp := ts.api.Patch("/api/v1/books/"+book.ID, bearer(adminToken), map[string]any{"genre": "Young Adult"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Young Adult", decode[BookResponse](t, resp).Data.Genre)

	resp = ts.api.Delete("/api/v1/books/"+book.ID, bearer(adminToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Book deleted", decode[MessageResponse](t, resp).Data.Message)

	resp = ts.api.Get("/api/v1/books/" + book.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestBooks_Search(t *testing.T) {
	ts := setupTestServer(t)
	adminToken, _ := ts.register(t, "admin@example.com")
	leGuin := ts.createAuthor(t, adminToken, "Ursula", "Le Guin")
	butler := ts.createAuthor(t, adminToken, "Octavia", "Butler")
	earthsea := ts.createBook(t, adminToken, leGuin.ID, "Earthsea")
	kindred := ts.createBook(t, adminToken, butler.ID, "Kindred")

	resp := ts.api.Get("/api/v1/books/search?q=earthsea")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decode[search.Result](t, resp).Data
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, earthsea.ID, res.Hits[0].ID)

	resp = ts.api.Get("/api/v1/books/search?q=butler")
	require.Equal(t, http.StatusOK, resp.Code)
	res = decode[search.Result](t, resp).Data
	require.Len(t, res.Hits, 1)
	assert.Equal(t, kindred.ID, res.Hits[0].ID)

	resp = ts.api.Get("/api/v1/books/search?genre=fantasy&limit=10")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, uint64(2), decode[search.Result](t, resp).Data.Total)

	resp = ts.api.Get("/api/v1/books/search?limit=0")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp).Code)
}
