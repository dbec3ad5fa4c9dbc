package api

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/library-server/internal/domain"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
)

// bearerSecurity marks an operation as requiring a bearer token in the OpenAPI document.
var bearerSecurity = []map[string][]string{{"bearer": {}}}

// authenticate validates the Authorization header and returns the caller.
func (s *Server) authenticate(ctx context.Context, authHeader string) (*domain.User, error) {
	if authHeader == "" {
		return nil, huma.Error401Unauthorized("Missing authorization header")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return nil, huma.Error401Unauthorized("Invalid authorization header format")
	}

	return s.services.Auth.Authenticate(ctx, token)
}

// authenticateAdmin validates the token and requires the admin role.
func (s *Server) authenticateAdmin(ctx context.Context, authHeader string) (*domain.User, error) {
	user, err := s.authenticate(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	if !user.IsAdmin() {
		return nil, domainerrors.Forbidden("Admin access required")
	}

	return user, nil
}
