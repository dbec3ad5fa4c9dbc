package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/listenupapp/library-server/internal/auth"
	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
	"github.com/listenupapp/library-server/internal/store"
	"github.com/listenupapp/library-server/internal/validation"
)

// UpdateProfileRequest changes the fields that are set. Changing the password
// requires the current one.
type UpdateProfileRequest struct {
	Email           *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Password        *string `json:"password,omitempty" validate:"omitempty,min=6,max=1024"`
	CurrentPassword string  `json:"current_password,omitempty" validate:"required_with=Password"`
}

// AccountService reads and updates a user's own account.
type AccountService struct {
	accounts  store.AccountStore
	validator *validation.Validator
	clock     clock.Clock
	logger    *slog.Logger
}

// NewAccountService creates an account service.
func NewAccountService(accounts store.AccountStore, validator *validation.Validator, clk clock.Clock, logger *slog.Logger) *AccountService {
	return &AccountService{
		accounts:  accounts,
		validator: validator,
		clock:     clk,
		logger:    logger,
	}
}

// GetProfile returns the user.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.accounts.GetUser(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, domainerrors.NotFoundf("user not found with id: %s", userID)
	}
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to get user")
	}
	return u, nil
}

// UpdateProfile changes the user's email and/or password.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.User, error) {
	trimPtr(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && domain.NormalizeEmail(*req.Email) != domain.NormalizeEmail(user.Email) {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Password != nil {
		if !auth.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
			return nil, domainerrors.InvalidCredentials("Invalid credentials")
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update user")
		}
		user.PasswordHash = hash
	}

	user.Touch(s.clock.Now())
	if err := s.accounts.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, domainerrors.Persistence(err, "failed to update user")
	}

	s.logger.Info("profile updated", "user_id", user.ID, "password_changed", req.Password != nil)
	return user, nil
}
