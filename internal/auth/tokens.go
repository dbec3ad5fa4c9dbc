package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/listenupapp/library-server/internal/clock"
	"github.com/listenupapp/library-server/internal/domain"
	"github.com/listenupapp/library-server/internal/id"
)

const (
	tokenIssuer   = "library-server"
	tokenAudience = "library-client"
)

// AccessClaims are the claims carried in an access token.
// v4.local tokens are encrypted, so clients cannot read them.
type AccessClaims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`

	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// IsAdmin reports whether the token was issued to an administrator.
func (c *AccessClaims) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}

// TokenService issues and verifies PASETO v4.local access tokens.
type TokenService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
	clock    clock.Clock
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, duration time.Duration, clk clock.Clock) (*TokenService, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", KeySize, len(key))
	}
	sk, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}
	return &TokenService{key: sk, duration: duration, clock: clk}, nil
}

// GenerateAccessToken returns an encrypted token for user and its expiry.
func (s *TokenService) GenerateAccessToken(user *domain.User) (string, time.Time, error) {
	now := s.clock.Now()
	expires := now.Add(s.duration)

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(user.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expires)

	jti, err := id.Generate(id.PrefixToken)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(jti)

	//nolint:errcheck // Set only fails for unmarshalable values
	_ = token.Set("user_id", user.ID)
	//nolint:errcheck // Set only fails for unmarshalable values
	_ = token.Set("email", user.Email)
	//nolint:errcheck // Set only fails for unmarshalable values
	_ = token.Set("role", string(user.Role))

	return token.V4Encrypt(s.key, nil), expires, nil
}

// VerifyAccessToken decrypts tokenString and checks audience, issuer and validity window.
func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	now := s.clock.Now()

	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(now))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return &claims, nil
}

// Duration returns the configured access token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}
