// Package jwt implements the identity Authenticator with signed JWT access
// tokens and database-backed rotating refresh tokens.
package jwt

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/identity"
	"github.com/golang-jwt/jwt/v5"
)

// Settings configures token generation.
type Settings struct {
	SecretKey       string
	Issuer          string
	AccessDuration  time.Duration
	RefreshDuration time.Duration
}

// Authenticator issues HS256 access tokens and opaque refresh tokens whose
// hashes are stored through the identity repository.
type Authenticator struct {
	repo    identity.Repository
	secret  []byte
	issuer  string
	access  time.Duration
	refresh time.Duration
	now     func() time.Time
}

// New creates a new JWT authenticator.
func New(repo identity.Repository, settings Settings) *Authenticator {
	return &Authenticator{
		repo:    repo,
		secret:  []byte(settings.SecretKey),
		issuer:  settings.Issuer,
		access:  settings.AccessDuration,
		refresh: settings.RefreshDuration,
		now:     time.Now,
	}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateTokens issues a new access/refresh pair for the customer.
func (a *Authenticator) GenerateTokens(ctx context.Context, customer *domain.Customer) (*identity.TokenPair, error) {
	now := a.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(customer.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customer.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.access)),
		},
	})

	accessToken, err := token.SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := a.issueRefreshToken(ctx, customer.ID, now)
	if err != nil {
		return nil, err
	}

	return &identity.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (a *Authenticator) issueRefreshToken(ctx context.Context, customerID string, now time.Time) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	token := hex.EncodeToString(raw)

	err := a.repo.SaveRefreshToken(ctx, &domain.RefreshToken{
		CustomerID: customerID,
		TokenHash:  hashToken(token),
		ExpiresAt:  now.Add(a.refresh),
	})
	if err != nil {
		return "", fmt.Errorf("save refresh token: %w", err)
	}
	return token, nil
}

// ValidateAccessToken parses and verifies an access token.
func (a *Authenticator) ValidateAccessToken(_ context.Context, tokenString string) (string, domain.Role, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", identity.ErrInvalidToken
	}

	return c.Subject, domain.Role(c.Role), nil
}

// RefreshTokens rotates a refresh token: the old one is deleted and a new
// pair is issued. An unknown or expired token maps to ErrInvalidToken.
func (a *Authenticator) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	hash := hashToken(refreshToken)

	stored, err := a.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrCustomerNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if a.now().After(stored.ExpiresAt) {
		_ = a.repo.DeleteRefreshToken(ctx, hash)
		return nil, identity.ErrInvalidToken
	}

	customer, err := a.repo.GetCustomerByID(ctx, stored.CustomerID)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}
	if !customer.IsActive {
		return nil, identity.ErrAccountDisabled
	}

	if err := a.repo.DeleteRefreshToken(ctx, hash); err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return a.GenerateTokens(ctx, customer)
}

// RevokeRefreshToken deletes a refresh token. Unknown tokens are not an error.
func (a *Authenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	err := a.repo.DeleteRefreshToken(ctx, hashToken(refreshToken))
	if err != nil && !errors.Is(err, identity.ErrInvalidToken) {
		return err
	}
	return nil
}

// Type returns the authenticator type name.
func (a *Authenticator) Type() string {
	return "jwt"
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
