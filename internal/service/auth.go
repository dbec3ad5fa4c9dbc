package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/listenupapp/library-server/internal/auth"
	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
	"github.com/listenupapp/library-server/internal/id"
	"github.com/listenupapp/library-server/internal/store"
	"github.com/listenupapp/library-server/internal/validation"
)

// RegisterRequest contains the credentials for a new account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=1024"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries an access token and the authenticated user.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *domain.User `json:"user"`
}

// AuthService registers and logs in users and resolves bearer tokens.
type AuthService struct {
	accounts  store.AccountStore
	tokens    *auth.TokenService
	validator *validation.Validator
	clock     clock.Clock
	logger    *slog.Logger

	// Serializes registration so exactly one account becomes the first admin.
	registerMu sync.Mutex
}

// NewAuthService creates an authentication service.
func NewAuthService(
	accounts store.AccountStore,
	tokens *auth.TokenService,
	validator *validation.Validator,
	clk clock.Clock,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:  accounts,
		tokens:    tokens,
		validator: validator,
		clock:     clk,
		logger:    logger,
	}
}

// Register creates an account and logs it in. The first account ever
// registered is an admin; every later one is a member.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to register user")
	}
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to register user")
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	count, err := s.accounts.CountUsers(ctx)
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to register user")
	}
	role := domain.RoleMember
	if count == 0 {
		role = domain.RoleAdmin
	}

	user := &domain.User{
		Record:       domain.Record{ID: userID},
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}
	user.Stamp(s.clock.Now())

	if err := s.accounts.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, domainerrors.Persistence(err, "failed to register user")
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

// Login checks credentials and returns a fresh token. Unknown email and wrong
// password fail identically.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.accounts.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrUserNotFound) {
		// Burn the same time as a real check.
		auth.VerifyPassword(dummyHash(), req.Password)
		return nil, domainerrors.InvalidCredentials("Invalid credentials")
	}
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to log in")
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.logger.Warn("failed login", "user_id", user.ID)
		return nil, domainerrors.InvalidCredentials("Invalid credentials")
	}

	return s.issue(user)
}

// Authenticate resolves a bearer token to its current user. The role comes
// from the store, so a demoted user loses admin rights immediately.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token")
	}

	user, err := s.accounts.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, domainerrors.Unauthorized("user no longer exists")
	}
	if err != nil {
		return nil, domainerrors.Persistence(err, "failed to authenticate")
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResponse, error) {
	token, expires, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to issue token")
	}
	return &AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		User:        user,
	}, nil
}

// dummyHash is a valid Argon2id hash of a random string.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword(id.MustGenerate("dummy"))
	return h
})
