package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/library-server/internal/auth"
	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
	domainerrors "github.com/listenupapp/library-server/internal/errors"
	"github.com/listenupapp/library-server/internal/logger"
	"github.com/listenupapp/library-server/internal/store/sqlite"
	"github.com/listenupapp/library-server/internal/validation"
)

func setupAuthTest(t *testing.T) (*AuthService, *AccountService, *clock.Manual) {
	t.Helper()
	log := logger.Discard()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "library.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clk := clock.NewManual(testEpoch)
	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour, clk)
	require.NoError(t, err)

	v := validation.New()
	return NewAuthService(s, tokens, v, clk, log), NewAccountService(s, v, clk, log), clk
}

func TestAuthService_Register(t *testing.T) {
	authService, _, _ := setupAuthTest(t)
	ctx := context.Background()

	first, err := authService.Register(ctx, RegisterRequest{Email: "Admin@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, first.User.Role)
	assert.Equal(t, "Bearer", first.TokenType)
	assert.True(t, strings.HasPrefix(first.AccessToken, "v4.local."))
	assert.True(t, first.ExpiresAt.Equal(testEpoch.Add(time.Hour)))

	second, err := authService.Register(ctx, RegisterRequest{Email: "reader@example.com", Password: "secret2"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, second.User.Role)

	_, err = authService.Register(ctx, RegisterRequest{Email: "admin@example.com", Password: "secret3"})
	requireCode(t, err, domainerrors.CodeAlreadyExists, "email already in use")

	_, err = authService.Register(ctx, RegisterRequest{Email: "short@example.com", Password: "12345"})
	requireCode(t, err, domainerrors.CodeValidation, "password must be at least 6 characters")

	_, err = authService.Register(ctx, RegisterRequest{Email: "nope", Password: "secret1"})
	requireCode(t, err, domainerrors.CodeValidation, "email must be a valid email address")
}

func TestAuthService_RegisterConcurrentSingleAdmin(t *testing.T) {
	authService, _, _ := setupAuthTest(t)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		admins int
	)
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := authService.Register(ctx, RegisterRequest{
				Email:    "user" + string(rune('a'+i)) + "@example.com",
				Password: "secret1",
			})
			if !assert.NoError(t, err) {
				return
			}
			if resp.User.IsAdmin() {
				mu.Lock()
				admins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admins)
}

func TestAuthService_Login(t *testing.T) {
	authService, _, _ := setupAuthTest(t)
	ctx := context.Background()

	registered, err := authService.Register(ctx, RegisterRequest{Email: "reader@example.com", Password: "secret1"})
	require.NoError(t, err)

	resp, err := authService.Login(ctx, LoginRequest{Email: "READER@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resp.User.ID)

	_, err = authService.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "wrong-password"})
	requireCode(t, err, domainerrors.CodeInvalidCredentials, "Invalid credentials")

	_, err = authService.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	requireCode(t, err, domainerrors.CodeInvalidCredentials, "Invalid credentials")
}

func TestAuthService_Authenticate(t *testing.T) {
	authService, _, clk := setupAuthTest(t)
	ctx := context.Background()

	resp, err := authService.Register(ctx, RegisterRequest{Email: "reader@example.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := authService.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.NotEmpty(t, user.PasswordHash)

	_, err = authService.Authenticate(ctx, "v4.local.garbage")
	requireCode(t, err, domainerrors.CodeUnauthorized, "invalid or expired token")

	clk.Advance(2 * time.Hour)
	_, err = authService.Authenticate(ctx, resp.AccessToken)
	requireCode(t, err, domainerrors.CodeUnauthorized, "invalid or expired token")
}

func TestAccountService_UpdateProfile(t *testing.T) {
	authService, accounts, _ := setupAuthTest(t)
	ctx := context.Background()

	resp, err := authService.Register(ctx, RegisterRequest{Email: "reader@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = authService.Register(ctx, RegisterRequest{Email: "taken@example.com", Password: "secret1"})
	require.NoError(t, err)
	userID := resp.User.ID

	updated, err := accounts.UpdateProfile(ctx, userID, UpdateProfileRequest{Email: ptr("new@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)

	_, err = accounts.UpdateProfile(ctx, userID, UpdateProfileRequest{Email: ptr("taken@example.com")})
	requireCode(t, err, domainerrors.CodeAlreadyExists, "email already in use")

	_, err = accounts.UpdateProfile(ctx, userID, UpdateProfileRequest{Password: ptr("newsecret")})
	requireCode(t, err, domainerrors.CodeValidation, "current_password is required")

	_, err = accounts.UpdateProfile(ctx, userID, UpdateProfileRequest{Password: ptr("newsecret"), CurrentPassword: "wrong"})
	requireCode(t, err, domainerrors.CodeInvalidCredentials, "Invalid credentials")

	_, err = accounts.UpdateProfile(ctx, userID, UpdateProfileRequest{Password: ptr("newsecret"), CurrentPassword: "secret1"})
	require.NoError(t, err)

	_, err = authService.Login(ctx, LoginRequest{Email: "new@example.com", Password: "newsecret"})
	require.NoError(t, err)

	_, err = accounts.GetProfile(ctx, "user-ghost")
	requireCode(t, err, domainerrors.CodeNotFound, "user not found with id: user-ghost")
}
