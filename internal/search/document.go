package search

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/listenupapp/library-server/internal/domain"
)

// BookDocument is the indexed form of a book.
type BookDocument struct {
	ID          string
	Title       string
	Description string
	Genre       string
	GenreSlug   string
	Author      string
	Year        int
}

// NewBookDocument builds the document for book. author may be nil.
func NewBookDocument(book *domain.Book, author *domain.Author) *BookDocument {
	doc := &BookDocument{
		ID:          book.ID,
		Title:       book.Title,
		Description: book.Description,
		Genre:       book.Genre,
		GenreSlug:   Slugify(book.Genre),
		Year:        book.Year,
	}
	if author != nil {
		doc.Author = author.FullName()
	}
	return doc
}

// toMap uses the lowercase field names the mapping declares.
func (d *BookDocument) toMap() map[string]any {
	return map[string]any{
		"title":       d.Title,
		"description": d.Description,
		"genre":       d.Genre,
		"genre_slug":  d.GenreSlug,
		"author":      d.Author,
		"year":        float64(d.Year),
	}
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify folds s to a lowercase ASCII slug: "Ciencia Ficción" -> "ciencia-ficcion".
func Slugify(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}
