package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/service"
)

func (s *Server) registerAuthorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAuthors",
		Method:      http.MethodGet,
		Path:        "/api/v1/authors",
		Summary:     "List authors",
		Description: "Returns all authors ordered by name",
		Tags:        []string{"Authors"},
	}, s.handleListAuthors)

	huma.Register(s.api, huma.Operation{
		OperationID: "createAuthor",
		Method:      http.MethodPost,
		Path:        "/api/v1/authors",
		Summary:     "Create author",
		Description: "Creates an author (admin only)",
		Tags:        []string{"Authors"},
		Security:    bearerSecurity,
	}, s.handleCreateAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAuthor",
		Method:      http.MethodGet,
		Path:        "/api/v1/authors/{id}",
		Summary:     "Get author",
		Description: "Returns an author by ID",
		Tags:        []string{"Authors"},
	}, s.handleGetAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateAuthor",
		Method:      http.MethodPatch,
		Path:        "/api/v1/authors/{id}",
		Summary:     "Update author",
		Description: "Updates the provided fields of an author (admin only)",
		Tags:        []string{"Authors"},
		Security:    bearerSecurity,
	}, s.handleUpdateAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteAuthor",
		Method:      http.MethodDelete,
		Path:        "/api/v1/authors/{id}",
		Summary:     "Delete author",
		Description: "Deletes an author without books (admin only)",
		Tags:        []string{"Authors"},
		Security:    bearerSecurity,
	}, s.handleDeleteAuthor)
}

// === DTOs ===

// AuthorResponse contains author data in API responses.
type AuthorResponse struct {
	ID        string    `json:"id" doc:"Author ID"`
	FirstName string    `json:"first_name" doc:"First name"`
	LastName  string    `json:"last_name" doc:"Last name"`
	Age       int       `json:"age" doc:"Age"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

// AuthorOutput wraps an author response for Huma.
type AuthorOutput struct {
	Body AuthorResponse
}

// ListAuthorsResponse contains a list of authors.
type ListAuthorsResponse struct {
	Authors []AuthorResponse `json:"authors" doc:"List of authors"`
}

// ListAuthorsOutput wraps the list authors response for Huma.
type ListAuthorsOutput struct {
	Body ListAuthorsResponse
}

// CreateAuthorRequest is the request body for creating an author.
type CreateAuthorRequest struct {
	FirstName string `json:"first_name" doc:"First name"`
	LastName  string `json:"last_name" doc:"Last name"`
	Age       int    `json:"age" doc:"Age (18-100)"`
}

// CreateAuthorInput wraps the create author request for Huma.
type CreateAuthorInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateAuthorRequest
}

// GetAuthorInput contains parameters for getting an author.
type GetAuthorInput struct {
	ID string `path:"id" doc:"Author ID"`
}

// UpdateAuthorRequest is the request body for updating an author.
type UpdateAuthorRequest struct {
	FirstName *string `json:"first_name,omitempty" doc:"First name"`
	LastName  *string `json:"last_name,omitempty" doc:"Last name"`
	Age       *int    `json:"age,omitempty" doc:"Age (18-100)"`
}

// UpdateAuthorInput wraps the update author request for Huma.
type UpdateAuthorInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Author ID"`
	Body          UpdateAuthorRequest
}

// DeleteAuthorInput contains parameters for deleting an author.
type DeleteAuthorInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Author ID"`
}

// MessageResponse contains a simple message.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleListAuthors(ctx context.Context, _ *struct{}) (*ListAuthorsOutput, error) {
	authors, err := s.services.Catalog.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]AuthorResponse, len(authors))
	for i, a := range authors {
		resp[i] = mapAuthorResponse(a)
	}
	return &ListAuthorsOutput{Body: ListAuthorsResponse{Authors: resp}}, nil
}

func (s *Server) handleCreateAuthor(ctx context.Context, input *CreateAuthorInput) (*AuthorOutput, error) {
	if _, err := s.authenticateAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	author, err := s.services.Catalog.CreateAuthor(ctx, service.CreateAuthorRequest{
		FirstName: input.Body.FirstName,
		LastName:  input.Body.LastName,
		Age:       input.Body.Age,
	})
	if err != nil {
		return nil, err
	}
	return &AuthorOutput{Body: mapAuthorResponse(author)}, nil
}

func (s *Server) handleGetAuthor(ctx context.Context, input *GetAuthorInput) (*AuthorOutput, error) {
	author, err := s.services.Catalog.GetAuthor(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &AuthorOutput{Body: mapAuthorResponse(author)}, nil
}

func (s *Server) handleUpdateAuthor(ctx context.Context, input *UpdateAuthorInput) (*AuthorOutput, error) {
	if _, err := s.authenticateAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	author, err := s.services.Catalog.UpdateAuthor(ctx, input.ID, service.UpdateAuthorRequest{
		FirstName: input.Body.FirstName,
		LastName:  input.Body.LastName,
		Age:       input.Body.Age,
	})
	if err != nil {
		return nil, err
	}
	return &AuthorOutput{Body: mapAuthorResponse(author)}, nil
}

func (s *Server) handleDeleteAuthor(ctx context.Context, input *DeleteAuthorInput) (*MessageOutput, error) {
	if _, err := s.authenticateAdmin(ctx, input.Authorization); err != nil {
		return nil, err
	}

	if err := s.services.Catalog.DeleteAuthor(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Author deleted"}}, nil
}

func mapAuthorResponse(a *domain.Author) AuthorResponse {
	return AuthorResponse{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Age:       a.Age,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
