package httpapi

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
)

// The handlers depend on these narrow views of the services so tests can
// stand in fakes.

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*models.User, error)
}

type CatalogService interface {
	List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	Update(ctx context.Context, id string, p *models.Product) (*models.Product, error)
}

type CartService interface {
	Get(ctx context.Context, userID string) (*models.HydratedCart, error)
	AddItem(ctx context.Context, userID string, in services.AddItemInput) (*models.HydratedCart, error)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*models.HydratedCart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*models.HydratedCart, error)
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userID string, in services.PlaceOrderInput) (*models.Order, bool, error)
	List(ctx context.Context, userID string) ([]models.Order, error)
	Get(ctx context.Context, userID, orderID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
}

type TokenVerifier interface {
	VerifyAccess(token string) (auth.Identity, error)
}

type Services struct {
	Users   UserService
	Catalog CatalogService
	Carts   CartService
	Orders  OrderService
	Tokens  TokenVerifier
}
