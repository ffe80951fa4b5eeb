package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType separates the two token classes inside the claims, so a
// refresh token never passes as an access token even under equal secrets.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT payload: the identity plus registered claims.
// ID (jti) is set on refresh tokens so they can be revoked.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"uid"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"typ"`
}

// RevocationStore remembers revoked refresh token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenService issues and verifies HS256 access and refresh tokens signed
// with two independent secrets. Apart from the optional revocation store
// it holds no mutable state.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	revocations   RevocationStore
	now           func() time.Time
}

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, revocations RevocationStore) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		revocations:   revocations,
		now:           time.Now,
	}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) IssueAccess(id Identity) (string, error) {
	return s.issue(id, TokenTypeAccess, s.accessSecret, s.accessTTL, "")
}

func (s *TokenService) IssueRefresh(id Identity) (string, error) {
	return s.issue(id, TokenTypeRefresh, s.refreshSecret, s.refreshTTL, uuid.NewString())
}

func (s *TokenService) issue(id Identity, typ TokenType, secret []byte, ttl time.Duration, jti string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    id.UserID,
		Role:      string(id.Role),
		TokenType: typ,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// VerifyAccess returns the identity inside a valid access token.
// Every failure is reported as common.ErrInvalidToken.
func (s *TokenService) VerifyAccess(token string) (Identity, error) {
	claims, err := s.parse(token, TokenTypeAccess, s.accessSecret)
	if err != nil {
		return Identity{}, err
	}
	return claims.identity(), nil
}

// VerifyRefresh is VerifyAccess for refresh tokens, additionally rejecting
// tokens that were revoked. Revocation store failures are returned as is.
func (s *TokenService) VerifyRefresh(ctx context.Context, token string) (Identity, error) {
	claims, err := s.parse(token, TokenTypeRefresh, s.refreshSecret)
	if err != nil {
		return Identity{}, err
	}

	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Identity{}, common.ErrInvalidToken
		}
	}

	return claims.identity(), nil
}

// Revoke denylists a refresh token until its natural expiry. Tokens that
// are already invalid need no revocation and yield common.ErrInvalidToken.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token, TokenTypeRefresh, s.refreshSecret)
	if err != nil {
		return err
	}
	if s.revocations == nil || claims.ID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *TokenService) parse(token string, typ TokenType, secret []byte) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.TokenType != typ || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func (c *Claims) identity() Identity {
	return Identity{UserID: c.UserID, Role: models.Role(c.Role)}
}
