package carts

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type Repository interface {
	// GetOrCreate returns the user's cart, creating an empty one if needed.
	GetOrCreate(ctx context.Context, userID string) (*models.Cart, error)
	// Save writes cart.Items if cart.Version is still current and bumps
	// the version, or fails with common.ErrVersionConflict.
	Save(ctx context.Context, cart *models.Cart) error
}
