package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/listenupapp/library-server/internal/domain"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
	"github.com/listenupapp/library-server/internal/store"
)

// UserSummary is the borrower as shown next to a loan.
type UserSummary struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// AuthorSummary is a book's author as shown next to a loan.
type AuthorSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// BookSummary is the borrowed book as shown next to a loan.
type BookSummary struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Genre  string         `json:"genre"`
	Year   int            `json:"year"`
	Author *AuthorSummary `json:"author,omitempty"`
}

// LoanView is a loan with its user and book resolved. User or Book is nil
// when the reference no longer resolves.
type LoanView struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	BorrowedAt time.Time         `json:"borrowed_at"`
	ReturnedAt *time.Time        `json:"returned_at,omitempty"`
	Status     domain.LoanStatus `json:"status"`
	UserID     string            `json:"user_id"`
	BookID     string            `json:"book_id"`
	User       *UserSummary      `json:"user"`
	Book       *BookSummary      `json:"book"`
}

// LoanQueryService lists loans newest first.
type LoanQueryService struct {
	accounts store.AccountStore
	catalog  store.CatalogStore
	ledger   store.LoanLedger
	logger   *slog.Logger
}

// NewLoanQueryService creates a loan query service.
func NewLoanQueryService(accounts store.AccountStore, catalog store.CatalogStore, ledger store.LoanLedger, logger *slog.Logger) *LoanQueryService {
	return &LoanQueryService{
		accounts: accounts,
		catalog:  catalog,
		ledger:   ledger,
		logger:   logger,
	}
}

// ListAll returns every loan.
func (s *LoanQueryService) ListAll(ctx context.Context) ([]*LoanView, error) {
	loans, err := s.ledger.ListLoans(ctx)
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to list orders")
	}
	return s.resolve(ctx, loans)
}

// ListByUser returns the loans of one user.
func (s *LoanQueryService) ListByUser(ctx context.Context, userID string) ([]*LoanView, error) {
	if ok, err := s.accounts.UserExists(ctx, userID); err != nil {
		return nil, domainerrors.Persistence(err, "failed to list orders")
	} else if !ok {
		return nil, domainerrors.NotFoundf("user not found with id: %s", userID)
	}

	loans, err := s.ledger.ListLoansByUser(ctx, userID)
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to list orders")
	}
	return s.resolve(ctx, loans)
}

// resolve looks each distinct user and book up once per call.
func (s *LoanQueryService) resolve(ctx context.Context, loans []*domain.Loan) ([]*LoanView, error) {
	users := make(map[string]*UserSummary)
	books := make(map[string]*BookSummary)
	authors := make(map[string]*AuthorSummary)

	views := make([]*LoanView, 0, len(loans))
	for _, l := range loans {
		user, ok := users[l.UserID]
		if !ok {
			var err error
			if user, err = s.userSummary(ctx, l); err != nil {
				return nil, err
			}
			users[l.UserID] = user
		}

		book, ok := books[l.BookID]
		if !ok {
			var err error
			if book, err = s.bookSummary(ctx, l, authors); err != nil {
				return nil, err
			}
			books[l.BookID] = book
		}

		views = append(views, &LoanView{
			ID:         l.ID,
			Label:      l.Label,
			BorrowedAt: l.BorrowedAt,
			ReturnedAt: l.ReturnedAt,
			Status:     l.Status,
			UserID:     l.UserID,
			BookID:     l.BookID,
			User:       user,
			Book:       book,
		})
	}
	return views, nil
}

func (s *LoanQueryService) userSummary(ctx context.Context, l *domain.Loan) (*UserSummary, error) {
	u, err := s.accounts.GetUser(ctx, l.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		s.logger.Warn("loan references missing user", "loan_id", l.ID, "user_id", l.UserID)
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to list orders")
	}
	return &UserSummary{ID: u.ID, Email: u.Email, Role: u.Role}, nil
}

func (s *LoanQueryService) bookSummary(ctx context.Context, l *domain.Loan, authors map[string]*AuthorSummary) (*BookSummary, error) {
	b, err := s.catalog.GetBook(ctx, l.BookID)
	if errors.Is(err, store.ErrBookNotFound) {
		s.logger.Warn("loan references missing book", "loan_id", l.ID, "book_id", l.BookID)
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to list orders")
	}

	summary := &BookSummary{ID: b.ID, Title: b.Title, Genre: b.Genre, Year: b.Year}

	author, ok := authors[b.AuthorID]
	if !ok {
		a, err := s.catalog.GetAuthor(ctx, b.AuthorID)
		switch {
		case errors.Is(err, store.ErrAuthorNotFound):
			s.logger.Warn("book references missing author", "book_id", b.ID, "author_id", b.AuthorID)
		case err != nil:
			return nil, domainerrors.Persistence(err, "failed to list orders")
		default:
			author = &AuthorSummary{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName}
		}
		authors[b.AuthorID] = author
	}
	summary.Author = author
	return summary, nil
}
