package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/library-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's profile",
		Tags:        []string{"Users"},
		Security:    bearerSecurity,
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCurrentUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/me",
		Summary:     "Update current user",
		Description: "Changes the email and/or password. A new password requires the current one.",
		Tags:        []string{"Users"},
		Security:    bearerSecurity,
	}, s.handleUpdateCurrentUser)
}

// GetCurrentUserInput contains parameters for getting the current user.
type GetCurrentUserInput struct {
	Authorization string `header:"Authorization"`
}

// UpdateProfileRequest is the request body for a profile update.
type UpdateProfileRequest struct {
	Email           *string `json:"email,omitempty" doc:"New email address"`
	Password        *string `json:"password,omitempty" doc:"New password"`
	CurrentPassword string  `json:"current_password,omitempty" doc:"Current password, required with password"`
}

// UpdateProfileInput wraps the profile update for Huma.
type UpdateProfileInput struct {
	Authorization string `header:"Authorization"`
	Body          UpdateProfileRequest
}

// UserOutput wraps a user response for Huma.
type UserOutput struct {
	Body UserResponse
}

func (s *Server) handleGetCurrentUser(ctx context.Context, input *GetCurrentUserInput) (*UserOutput, error) {
	user, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	profile, err := s.services.Accounts.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUserResponse(profile)}, nil
}

func (s *Server) handleUpdateCurrentUser(ctx context.Context, input *UpdateProfileInput) (*UserOutput, error) {
	user, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	updated, err := s.services.Accounts.UpdateProfile(ctx, user.ID, service.UpdateProfileRequest{
		Email:           input.Body.Email,
		Password:        input.Body.Password,
		CurrentPassword: input.Body.CurrentPassword,
	})
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUserResponse(updated)}, nil
}
