package domain

import "strings"

// Age and publication-year bounds enforced by the catalog.
const (
	MinAuthorAge = 18
	MaxAuthorAge = 100
	MinBookYear  = 1800
	MaxBookYear  = 2025
)

// Author wrote one or more books. The (FirstName, LastName) pair is unique.
type Author struct {
	Record
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       int    `json:"age"`
}

// FullName joins the author's names.
func (a *Author) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Book is a single circulating unit. Titles are unique.
type Book struct {
	Record
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	Year        int    `json:"year"`
	AuthorID    string `json:"author_id"`

	// Status mirrors the status of the most recent loan for this book.
	// Nil when the book has never been lent or that loan was deleted.
	Status *LoanStatus `json:"status,omitempty"`
}

// OnLoan reports whether the mirror says the book is currently borrowed.
func (b *Book) OnLoan() bool {
	return b.Status != nil && *b.Status == LoanActive
}
