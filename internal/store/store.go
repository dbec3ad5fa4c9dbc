// Package store defines the persistence interfaces of the library server.
//
// Accounts and the catalog always live in SQLite (package sqlite). The loan
// ledger is pluggable: the same SQLite database, or a Badger key-value store
// (package kv). Either way the ledger alone enforces that a book has at most
// one active loan.
package store

import (
	"context"

	"github.com/listenupapp/library-server/internal/domain"
)

// AccountStore persists user accounts.
type AccountStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UserExists(ctx context.Context, id string) (bool, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	CountUsers(ctx context.Context) (int, error)
}

// CatalogStore persists authors and books, including each book's loan status mirror.
type CatalogStore interface {
	CreateAuthor(ctx context.Context, author *domain.Author) error
	GetAuthor(ctx context.Context, id string) (*domain.Author, error)
	GetAuthorByName(ctx context.Context, firstName, lastName string) (*domain.Author, error)
	UpdateAuthor(ctx context.Context, author *domain.Author) error
	DeleteAuthor(ctx context.Context, id string) error
	ListAuthors(ctx context.Context) ([]*domain.Author, error)

	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	GetBookByTitle(ctx context.Context, title string) (*domain.Book, error)
	BookExists(ctx context.Context, id string) (bool, error)
	// UpdateBook writes the descriptive fields only; the status mirror is untouched.
	UpdateBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, id string) error
	ListBooks(ctx context.Context) ([]*domain.Book, error)

	// SetBookStatus writes the loan status mirror. A nil status clears it.
	SetBookStatus(ctx context.Context, bookID string, status *domain.LoanStatus) error
}

// LoanLedger is the authoritative record of loans.
//
// Listings are ordered most recent first by BorrowedAt, ties broken by
// insertion order (later insert first).
type LoanLedger interface {
	// CreateLoan inserts loan, assigning Seq when it is zero. It returns
	// ErrActiveLoanExists if loan is active and its book already has an active loan.
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	// UpdateLoan replaces the stored loan provided its stored status is still
	// expected, else ErrLoanStateChanged.
	UpdateLoan(ctx context.Context, loan *domain.Loan, expected domain.LoanStatus) error
	DeleteLoan(ctx context.Context, id string) error
	ListLoans(ctx context.Context) ([]*domain.Loan, error)
	ListLoansByUser(ctx context.Context, userID string) ([]*domain.Loan, error)
	HasActiveLoan(ctx context.Context, bookID string) (bool, error)
	// LatestLoanForBook returns the most recent loan for a book, or ErrLoanNotFound.
	LatestLoanForBook(ctx context.Context, bookID string) (*domain.Loan, error)
}

// Pinger reports whether a backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
