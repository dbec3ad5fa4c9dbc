package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/search"
	"github.com/listenupapp/library-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns all books ordered by title",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Full-text search over titles, authors and descriptions with genre and year filters",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "createBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books",
		Summary:     "Create book",
		Description: "Adds a book to the catalog (admin only)",
		Tags:        []string{"Books"},
		Security:    bearerSecurity,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID, including its loan status",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Updates the provided fields of a book (admin only)",
		Tags:        []string{"Books"},
		Security:    bearerSecurity,
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Removes a book that is not on loan (admin only)",
		Tags:        []string{"Books"},
		Security:    bearerSecurity,
	}, s.handleDeleteBook)
}

// === DTOs ===

// BookResponse contains book data in API responses.
type BookResponse struct {
	ID          string             `json:"id" doc:"Book ID"`
	Title       string             `json:"title" doc:"Title"`
	Description string             `json:"description" doc:"Description"`
	Genre       string             `json:"genre" doc:"Genre"`
	Year        int                `json:"year" doc:"Publication year"`
	AuthorID    string             `json:"author_id" doc:"Author ID"`
	Status      *domain.LoanStatus `json:"status,omitempty" doc:"Status of the most recent loan"`
	Available   bool               `json:"available" doc:"Whether the book can be borrowed"`
	CreatedAt   time.Time          `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time          `json:"updated_at" doc:"Last update time"`
}

// BookOutput wraps a book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// ListBooksResponse contains a list of books.
type ListBooksResponse struct {
	Books []BookResponse `json:"books" doc:"List of books"`
}

// ListBooksOutput wraps the list books response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// CreateBookRequest is the request body for creating a book.
type CreateBookRequest struct {
	Title       string `json:"title" doc:"Title (3-20 characters)"`
	Description string `json:"description" doc:"Description (3-100 characters)"`
	Genre       string `json:"genre" doc:"Genre (3-20 characters)"`
	Year        int    `json:"year" doc:"Publication year (1800-2025)"`
	AuthorID    string `json:"author_id" doc:"Author ID"`
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateBookRequest
}

// GetBookInput contains parameters for getting a book.
type GetBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// UpdateBookRequest is the request body for updating a book.
type UpdateBookRequest struct {
	Title       *string `json:"title,omitempty" doc:"Title"`
	Description *string `json:"description,omitempty" doc:"Description"`
	Genre       *string `json:"genre,omitempty" doc:"Genre"`
	Year        *int    `json:"year,omitempty" doc:"Publication year"`
	AuthorID    *string `json:"author_id,omitempty" doc:"Author ID"`
}

// UpdateBookInput wraps the update book request for Huma.
type UpdateBookInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Book ID"`
	Body          UpdateBookRequest
}

// DeleteBookInput contains parameters for deleting a book.
type DeleteBookInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Book ID"`
}

// SearchBooksInput contains search parameters.
type SearchBooksInput struct {
	Query   string `query:"q" doc:"Text matched against title, author and description"`
	Genre   string `query:"genre" doc:"Only books in this genre"`
	MinYear int    `query:"min_year" minimum:"0" doc:"Earliest publication year"`
	MaxYear int    `query:"max_year" minimum:"0" doc:"Latest publication year"`
	Limit   int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum results"`
	Offset  int    `query:"offset" default:"0" minimum:"0" doc:"Results to skip"`
}

// SearchBooksOutput wraps search results for Huma.
type SearchBooksOutput struct {
	Body search.Result
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, _ *struct{}) (*ListBooksOutput, error) {
	books, err := s.services.Catalog.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]BookResponse, len(books))
	for i, b := range books {
		resp[i] = mapBookResponse(b)
	}
	return &ListBooksOutput{Body: ListBooksResponse{Books: resp}}, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	res, err := s.services.Catalog.SearchBooks(ctx, search.Query{
		Text:    input.Query,
		Genre:   input.Genre,
		MinYear: input.MinYear,
		MaxYear: input.MaxYear,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &SearchBooksOutput{Body: *res}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	if _, err := s.authenticateAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	book, err := s.services.Catalog.CreateBook(ctx, service.CreateBookRequest{
		Title:       input.Body.Title,
		Description: input.Body.Description,
		Genre:       input.Body.Genre,
		Year:        input.Body.Year,
		AuthorID:    input.Body.AuthorID,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Catalog.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	if _, err := s.authenticateAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	book, err := s.services.Catalog.UpdateBook(ctx, input.ID, service.UpdateBookRequest{
		Title:       input.Body.Title,
		Description: input.Body.Description,
		Genre:       input.Body.Genre,
		Year:        input.Body.Year,
		AuthorID:    input.Body.AuthorID,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *DeleteBookInput) (*MessageOutput, error) {
	if _, err := s.authenticateAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Catalog.DeleteBook(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Book deleted"}}, nil
}

func mapBookResponse(b *domain.Book) BookResponse {
	return BookResponse{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Genre:       b.Genre,
		Year:        b.Year,
		AuthorID:    b.AuthorID,
		Status:      b.Status,
		Available:   !b.OnLoan(),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}
