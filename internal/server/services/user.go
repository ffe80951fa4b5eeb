// Package services contains server-side business logic. Each service owns
// one aggregate, reaches storage through a repomanager.RepositoryManager and
// reports failures as the sentinels in internal/common.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is what register and login hand back to the client.
type Session struct {
	User   *models.User
	Tokens TokenPair
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserService provides identity operations:
//   - Register and Login: create or check credentials and mint tokens
//   - Refresh: trade a refresh token for a new access token
//   - Logout: revoke a refresh token
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenService
	timeout     time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.PasswordHasher, tokens *auth.TokenService, timeout time.Duration) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		timeout:     timeout,
	}
}

// Register creates a user with role "user". A taken email yields
// common.ErrConflict.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("email and password are required: %w", common.ErrValidation)
	}

	user := &models.User{
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      models.RoleUser,
	}
	user.SetPassword(in.Password)

	if err := s.Save(ctx, user); err != nil {
		return nil, err
	}
	return s.newSession(user)
}

// Save persists user, hashing a password staged with SetPassword first.
// Users without a staged password keep their stored digest. A user with
// an empty ID is created, otherwise updated.
func (s *UserService) Save(ctx context.Context, user *models.User) error {
	if pw, ok := user.PendingPassword(); ok {
		digest, err := s.hasher.Hash(pw)
		if err != nil {
			return err
		}
		user.ApplyPasswordHash(digest)
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !user.Role.Valid() {
		return fmt.Errorf("role %q: %w", user.Role, common.ErrValidation)
	}

	return withTimeout(ctx, s.timeout, "save user", func(ctx context.Context) error {
		repo := s.repomanager.Users(s.db)
		if user.ID != "" {
			return repo.Update(ctx, user)
		}
		created, err := repo.Create(ctx, user)
		if err != nil {
			return err
		}
		user.ID = created.ID
		user.CreatedAt = created.CreatedAt
		user.UpdatedAt = created.UpdatedAt
		return nil
	})
}

// Login checks credentials. An unknown email and a wrong password are
// indistinguishable to the caller, in result and in timing.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	var user *models.User
	err := withTimeout(ctx, s.timeout, "find user", func(ctx context.Context) error {
		var err error
		user, err = s.repomanager.Users(s.db).FindByEmail(ctx, models.NormalizeEmail(email))
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	return s.newSession(user)
}

// Refresh verifies a refresh token and issues a new access token for the
// identity inside it. The refresh token itself is not rotated.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var id auth.Identity
	err := withTimeout(ctx, s.timeout, "verify refresh token", func(ctx context.Context) error {
		var err error
		id, err = s.tokens.VerifyRefresh(ctx, refreshToken)
		return err
	})
	if err != nil {
		return "", err
	}

	access, err := s.tokens.IssueAccess(id)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}

// Logout revokes refreshToken. An empty or already invalid token is not
// an error: there is nothing left to revoke.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := withTimeout(ctx, s.timeout, "revoke refresh token", func(ctx context.Context) error {
		return s.tokens.Revoke(ctx, refreshToken)
	})
	if errors.Is(err, common.ErrInvalidToken) {
		return nil
	}
	return err
}

// Me returns the stored user behind an authenticated identity.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := withTimeout(ctx, s.timeout, "find user", func(ctx context.Context) error {
		var err error
		user, err = s.repomanager.Users(s.db).FindByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) newSession(user *models.User) (*Session, error) {
	id := auth.Identity{UserID: user.ID, Role: user.Role}

	access, err := s.tokens.IssueAccess(id)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(id)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Session{User: user, Tokens: TokenPair{AccessToken: access, RefreshToken: refresh}}, nil
}
