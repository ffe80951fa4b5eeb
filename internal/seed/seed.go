// Package seed fills an empty storefront with demo products and makes sure
// an admin account exists.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/shared"
	"golang.org/x/term"
)

// readPassword and isTerminal are test seams for golang.org/x/term.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

type Catalog interface {
	List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error)
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
}

type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type UserSaver interface {
	Save(ctx context.Context, user *models.User) error
}

// DemoProducts is the catalog a fresh installation starts with.
func DemoProducts() []models.Product {
	return []models.Product{
		{
			Title:       `Pro Laptop 14"`,
			Description: "High performance laptop for professionals.",
			PriceCents:  199900,
			Images:      []string{},
			Category:    "electronics",
			Brand:       "TechBrand",
			Attributes:  map[string][]string{"color": {"Silver", "Space Gray"}, "storage": {"512GB", "1TB"}},
			Stock:       25,
			Rating:      4.7,
		},
		{
			Title:       "Wireless Headphones",
			Description: "Noise-cancelling over-ear headphones.",
			PriceCents:  29900,
			Images:      []string{},
			Category:    "electronics",
			Brand:       "SoundMax",
			Attributes:  map[string][]string{"color": {"Black", "White"}},
			Stock:       100,
			Rating:      4.5,
		},
	}
}

type Seeder struct {
	catalog Catalog
	lookup  UserLookup
	users   UserSaver
	logger  logging.Logger
}

func NewSeeder(c Catalog, lookup UserLookup, users UserSaver, l logging.Logger) *Seeder {
	return &Seeder{catalog: c, lookup: lookup, users: users, logger: l.With("module", "seed")}
}

// SeedProducts inserts DemoProducts unless the catalog already has
// entries, and reports how many were created.
func (s *Seeder) SeedProducts(ctx context.Context) (int, error) {
	page, err := s.catalog.List(ctx, models.ProductFilter{Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	if page.Total > 0 {
		s.logger.Info(ctx, "catalog not empty, skipping products", "total", page.Total)
		return 0, nil
	}

	created := 0
	for _, p := range DemoProducts() {
		if _, err := s.catalog.Create(ctx, &p); err != nil {
			return created, fmt.Errorf("create product %q: %w", p.Title, err)
		}
		created++
	}
	s.logger.Info(ctx, "products seeded", "count", created)
	return created, nil
}

// EnsureAdmin creates the admin account, or promotes an existing user with
// that email. The password is only used for a new account.
func (s *Seeder) EnsureAdmin(ctx context.Context, email string, password []byte) (*models.User, error) {
	email = models.NormalizeEmail(email)

	user, err := s.lookup.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		user = &models.User{Email: email, FirstName: "Admin", LastName: "User", Role: models.RoleAdmin}
		user.SetPassword(string(password))
	case err != nil:
		return nil, fmt.Errorf("find admin: %w", err)
	case user.Role == models.RoleAdmin:
		s.logger.Info(ctx, "admin already exists", "email", email)
		return user, nil
	default:
		user.Role = models.RoleAdmin
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save admin: %w", err)
	}
	s.logger.Info(ctx, "admin ready", "email", email, "id", user.ID)
	return user, nil
}

// AdminPassword returns the password from envVar, or prompts for it on w
// when stdin is a terminal. The caller wipes the result.
func AdminPassword(envVar string, w io.Writer) ([]byte, error) {
	if v := os.Getenv(envVar); v != "" {
		return []byte(v), nil
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return nil, fmt.Errorf("%s is not set and stdin is not a terminal", envVar)
	}

	if _, err := fmt.Fprint(w, "Admin password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	if len(pw) < 8 {
		shared.WipeByteArray(pw)
		return nil, fmt.Errorf("password must be at least 8 characters: %w", common.ErrValidation)
	}
	return pw, nil
}
