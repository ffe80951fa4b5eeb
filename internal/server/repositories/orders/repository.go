package orders

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, o *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	// UpdateStatus moves the order from one status to another and fails
	// with common.ErrVersionConflict if it is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error)
}
