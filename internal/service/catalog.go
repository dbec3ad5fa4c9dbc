package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
	"github.com/listenupapp/library-server/internal/id"
	"github.com/listenupapp/library-server/internal/lock"
	"github.com/listenupapp/library-server/internal/search"
	"github.com/listenupapp/library-server/internal/store"
	"github.com/listenupapp/library-server/internal/validation"
)

// CreateAuthorRequest is the input for a new author.
type CreateAuthorRequest struct {
	FirstName string `json:"first_name" validate:"notblank,max=50"`
	LastName  string `json:"last_name" validate:"notblank,max=50"`
	Age       int    `json:"age" validate:"gte=18,lte=100"`
}

// UpdateAuthorRequest changes the fields that are set.
type UpdateAuthorRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,notblank,max=50"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,notblank,max=50"`
	Age       *int    `json:"age,omitempty" validate:"omitempty,gte=18,lte=100"`
}

// CreateBookRequest is the input for a new book.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"min=3,max=20"`
	Description string `json:"description" validate:"min=3,max=100"`
	Genre       string `json:"genre" validate:"min=3,max=20"`
	Year        int    `json:"year" validate:"gte=1800,lte=2025"`
	AuthorID    string `json:"author_id" validate:"required"`
}

// UpdateBookRequest changes the fields that are set. The status mirror is
// owned by the lending service and cannot be set here.
type UpdateBookRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=3,max=20"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=3,max=100"`
	Genre       *string `json:"genre,omitempty" validate:"omitempty,min=3,max=20"`
	Year        *int    `json:"year,omitempty" validate:"omitempty,gte=1800,lte=2025"`
	AuthorID    *string `json:"author_id,omitempty" validate:"omitempty,notblank"`
}

// CatalogService manages authors and books and keeps the search index current.
// Index failures are logged and never fail a catalog write.
type CatalogService struct {
	catalog   store.CatalogStore
	ledger    store.LoanLedger
	locker    lock.Locker
	index     *search.Index
	validator *validation.Validator
	clock     clock.Clock
	logger    *slog.Logger
}

// NewCatalogService creates a catalog service. index may be nil to disable search.
func NewCatalogService(
	catalog store.CatalogStore,
	ledger store.LoanLedger,
	locker lock.Locker,
	index *search.Index,
	validator *validation.Validator,
	clk clock.Clock,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		catalog:   catalog,
		ledger:    ledger,
		locker:    locker,
		index:     index,
		validator: validator,
		clock:     clk,
		logger:    logger,
	}
}

// CreateAuthor adds an author. The first/last name pair must be new.
func (s *CatalogService) CreateAuthor(ctx context.Context, req CreateAuthorRequest) (*domain.Author, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := s.ensureAuthorNameFree(ctx, req.FirstName, req.LastName, ""); err != nil {
		return nil, err
	}

	authorID, err := id.Generate(id.PrefixAuthor)
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to create author")
	}
	author := &domain.Author{
		Record:    domain.Record{ID: authorID},
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
	}
	author.Stamp(s.clock.Now())

	if err := s.catalog.CreateAuthor(ctx, author); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, authorExists(req.FirstName, req.LastName)
		}
		return nil, domainerrors.Persistence(err, "failed to create author")
	}

	s.logger.Info("author created", "author_id", author.ID, "name", author.FullName())
	return author, nil
}

// GetAuthor returns an author by id.
func (s *CatalogService) GetAuthor(ctx context.Context, authorID string) (*domain.Author, error) {
	a, err := s.catalog.GetAuthor(ctx, authorID)
	if errors.Is(err, store.ErrAuthorNotFound) {
		return nil, domainerrors.NotFoundf("author not found with id: %s", authorID)
	}
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to get author")
	}
	return a, nil
}

// ListAuthors returns all authors.
func (s *CatalogService) ListAuthors(ctx context.Context) ([]*domain.Author, error) {
	authors, err := s.catalog.ListAuthors(ctx)
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to list authors")
	}
	if authors == nil {
		authors = []*domain.Author{}
	}
	return authors, nil
}

// UpdateAuthor applies req. A renamed author's books are reindexed.
func (s *CatalogService) UpdateAuthor(ctx context.Context, authorID string, req UpdateAuthorRequest) (*domain.Author, error) {
	trimPtr(req.FirstName)
	trimPtr(req.LastName)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	author, err := s.GetAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	renamed := false
	if req.FirstName != nil && *req.FirstName != author.FirstName {
		author.FirstName = *req.FirstName
		renamed = true
	}
	if req.LastName != nil && *req.LastName != author.LastName {
		author.LastName = *req.LastName
		renamed = true
	}
	if req.Age != nil {
		author.Age = *req.Age
	}

	if renamed {
		if err := s.ensureAuthorNameFree(ctx, author.FirstName, author.LastName, author.ID); err != nil {
			return nil, err
		}
	}

	author.Touch(s.clock.Now())
	if err := s.catalog.UpdateAuthor(ctx, author); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			return nil, authorExists(author.FirstName, author.LastName)
		case errors.Is(err, store.ErrAuthorNotFound):
			return nil, domainerrors.NotFoundf("author not found with id: %s", authorID)
		}
		return nil, domainerrors.Persistence(err, "failed to update author")
	}

	if renamed {
		s.reindexAuthorBooks(ctx, author)
	}
	return author, nil
}

// DeleteAuthor removes an author that no book references.
func (s *CatalogService) DeleteAuthor(ctx context.Context, authorID string) error {
	err := s.catalog.DeleteAuthor(ctx, authorID)
	switch {
	case err == nil:
		s.logger.Info("author deleted", "author_id", authorID)
		return nil
	case errors.Is(err, store.ErrAuthorNotFound):
		return domainerrors.NotFoundf("author not found with id: %s", authorID)
	case errors.Is(err, store.ErrReferenced):
		return domainerrors.Conflict("author still has books in the catalog")
	default:
		return domainerrors.Persistence(err, "failed to delete author")
	}
}

// CreateBook adds a book. Titles are unique and the author must exist.
func (s *CatalogService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Genre = strings.TrimSpace(req.Genre)
	req.AuthorID = strings.TrimSpace(req.AuthorID)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	author, err := s.GetAuthor(ctx, req.AuthorID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTitleFree(ctx, req.Title, ""); err != nil {
		return nil, err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to create book")
	}
	book := &domain.Book{
		Record:      domain.Record{ID: bookID},
		Title:       req.Title,
		Description: req.Description,
		Genre:       req.Genre,
		Year:        req.Year,
		AuthorID:    author.ID,
	}
	book.Stamp(s.clock.Now())

	if err := s.catalog.CreateBook(ctx, book); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			return nil, bookExists(req.Title)
		case errors.Is(err, store.ErrAuthorNotFound):
			return nil, domainerrors.NotFoundf("author not found with id: %s", req.AuthorID)
		}
		return nil, domainerrors.Persistence(err, "failed to create book")
	}

	s.logger.Info("book created", "book_id", book.ID, "title", book.Title)
	s.indexBook(ctx, book, author)
	return book, nil
}

// GetBook returns a book by id.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	b, err := s.catalog.GetBook(ctx, bookID)
	if errors.Is(err, store.ErrBookNotFound) {
		return nil, domainerrors.NotFoundf("book not found with id: %s", bookID)
	}
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to get book")
	}
	return b, nil
}

// ListBooks returns all books ordered by title.
func (s *CatalogService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.catalog.ListBooks(ctx)
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to list books")
	}
	if books == nil {
		books = []*domain.Book{}
	}
	return books, nil
}

// UpdateBook applies req to the descriptive fields.
func (s *CatalogService) UpdateBook(ctx context.Context, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	trimPtr(req.Title)
	trimPtr(req.Description)
	trimPtr(req.Genre)
	trimPtr(req.AuthorID)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil && *req.Title != book.Title {
		if err := s.ensureTitleFree(ctx, *req.Title, book.ID); err != nil {
			return nil, err
		}
		book.Title = *req.Title
	}
	if req.Description != nil {
		book.Description = *req.Description
	}
	if req.Genre != nil {
		book.Genre = *req.Genre
	}
	if req.Year != nil {
		book.Year = *req.Year
	}
	if req.AuthorID != nil {
		book.AuthorID = *req.AuthorID
	}

	author, err := s.GetAuthor(ctx, book.AuthorID)
	if err != nil {
		return nil, err
	}

	book.Touch(s.clock.Now())
	if err := s.catalog.UpdateBook(ctx, book); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			return nil, bookExists(book.Title)
		case errors.Is(err, store.ErrAuthorNotFound):
			return nil, domainerrors.NotFoundf("author not found with id: %s", book.AuthorID)
		case errors.Is(err, store.ErrBookNotFound):
			return nil, domainerrors.NotFoundf("book not found with id: %s", bookID)
		}
		return nil, domainerrors.Persistence(err, "failed to update book")
	}

	s.indexBook(ctx, book, author)
	return book, nil
}

// DeleteBook removes a book that is not on loan. Its past loans stay in the ledger.
// The book's lease is held across the loan check and the delete so no borrow
// can commit in between.
func (s *CatalogService) DeleteBook(ctx context.Context, bookID string) error {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, lock.BookKey(bookID))
	if err != nil {
		return domainerrors.Persistence(err, "failed to delete book")
	}
	defer unlock()

	active, err := s.ledger.HasActiveLoan(ctx, bookID)
	if err != nil {
		return domainerrors.Persistence(err, "failed to delete book")
	}
	if active {
		return domainerrors.Conflict("book is currently on loan")
	}

	if err := s.catalog.DeleteBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return domainerrors.NotFoundf("book not found with id: %s", bookID)
		}
		return domainerrors.Persistence(err, "failed to delete book")
	}

	s.logger.Info("book deleted", "book_id", bookID)
	if s.index != nil {
		if err := s.index.DeleteBook(ctx, bookID); err != nil {
			s.logger.Warn("failed to remove book from search index", "book_id", bookID, "error", err)
		}
	}
	return nil
}

// SearchBooks queries the search index.
func (s *CatalogService) SearchBooks(ctx context.Context, q search.Query) (*search.Result, error) {
	if s.index == nil {
		return &search.Result{Hits: []search.Hit{}}, nil
	}
	res, err := s.index.Search(ctx, q)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	return res, nil
}

// RebuildIndex reindexes every book. Used when the index was recreated.
func (s *CatalogService) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}

	books, err := s.catalog.ListBooks(ctx)
	if err != nil {
		return 0, err
	}
	authors, err := s.catalog.ListAuthors(ctx)
	if err != nil {
		return 0, err
	}
	byID := make(map[string]*domain.Author, len(authors))
	for _, a := range authors {
		byID[a.ID] = a
	}

	docs := make([]*search.BookDocument, 0, len(books))
	for _, b := range books {
		docs = append(docs, search.NewBookDocument(b, byID[b.AuthorID]))
	}
	if err := s.index.IndexBooks(ctx, docs); err != nil {
		return 0, err
	}

	s.logger.Info("search index rebuilt", "books", len(docs))
	return len(docs), nil
}

func (s *CatalogService) ensureAuthorNameFree(ctx context.Context, first, last, selfID string) error {
	existing, err := s.catalog.GetAuthorByName(ctx, first, last)
	switch {
	case errors.Is(err, store.ErrAuthorNotFound):
		return nil
	case err != nil:
		return domainerrors.Persistence(err, "failed to check author name")
	case existing.ID != selfID:
		return authorExists(first, last)
	}
	return nil
}

func (s *CatalogService) ensureTitleFree(ctx context.Context, title, selfID string) error {
	existing, err := s.catalog.GetBookByTitle(ctx, title)
	switch {
	case errors.Is(err, store.ErrBookNotFound):
		return nil
	case err != nil:
		return domainerrors.Persistence(err, "failed to check book title")
	case existing.ID != selfID:
		return bookExists(title)
	}
	return nil
}

func (s *CatalogService) indexBook(ctx context.Context, book *domain.Book, author *domain.Author) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexBook(ctx, search.NewBookDocument(book, author)); err != nil {
		s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
	}
}

func (s *CatalogService) reindexAuthorBooks(ctx context.Context, author *domain.Author) {
	if s.index == nil {
		return
	}
	books, err := s.catalog.ListBooks(ctx)
	if err != nil {
		s.logger.Warn("failed to list books for reindex", "author_id", author.ID, "error", err)
		return
	}
	for _, b := range books {
		if b.AuthorID == author.ID {
			s.indexBook(ctx, b, author)
		}
	}
}

func authorExists(first, last string) error {
	return domainerrors.AlreadyExists("author already exists: " + strings.TrimSpace(first+" "+last))
}

func bookExists(title string) error {
	return domainerrors.AlreadyExists("book already exists with title: " + title)
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
