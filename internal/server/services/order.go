package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/storefront/internal/syncx"
)

const maxIdempotencyKeyLen = 255

type PlaceOrderInput struct {
	ShippingAddress models.Address
	PaymentMethod   models.PaymentMethod
	IdempotencyKey  string
}

// OrderService turns carts into orders and moves orders through their
// status lifecycle. It shares the per-user lock set with CartService so
// checkout and cart edits of one user never interleave in this process.
type OrderService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	products    ProductLookup
	locks       *syncx.KeyedMutex
	timeout     time.Duration
	retries     uint64
	recorder    Recorder
	log         logging.Logger
}

func NewOrderService(db *sql.DB, m repomanager.RepositoryManager, products ProductLookup, locks *syncx.KeyedMutex,
	cfg *config.Config, rec Recorder, log logging.Logger) *OrderService {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &OrderService{
		db:          db,
		repomanager: m,
		products:    products,
		locks:       locks,
		timeout:     cfg.StorageTimeout,
		retries:     uint64(max(cfg.CartRetryLimit, 0)),
		recorder:    rec,
		log:         log,
	}
}

// PlaceOrder snapshots the user's cart into a pending order and empties
// the cart in the same transaction. With an idempotency key, a repeated
// call returns the order created by the first one; created is false then.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (order *models.Order, created bool, err error) {
	if !in.PaymentMethod.Valid() {
		return nil, false, fmt.Errorf("payment method %q: %w", in.PaymentMethod, common.ErrValidation)
	}
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if len(in.IdempotencyKey) > maxIdempotencyKeyLen {
		return nil, false, fmt.Errorf("idempotency key too long: %w", common.ErrValidation)
	}

	unlock, err := lockUser(ctx, s.locks, userID, s.timeout)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	if in.IdempotencyKey != "" {
		existing, err := s.findByKey(ctx, userID, in.IdempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, false, err
		}
	}

	err = retryOnConflict(ctx, s.retries, func(ctx context.Context) error {
		var err error
		order, err = s.checkout(ctx, userID, in)
		if errors.Is(err, common.ErrVersionConflict) {
			s.recorder.CartConflict()
			s.log.Debug(ctx, "cart changed during checkout, retrying", "user_id", userID)
		}
		return err
	})
	if err != nil {
		// Another replica won the race for the same idempotency key.
		if in.IdempotencyKey != "" && errors.Is(err, common.ErrConflict) {
			if existing, ferr := s.findByKey(ctx, userID, in.IdempotencyKey); ferr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	s.recorder.OrderPlaced(order.TotalCents)
	s.log.Info(ctx, "order placed", "order_id", order.ID, "user_id", userID, "total_cents", order.TotalCents)
	return order, true, nil
}

// checkout is one attempt: read the cart, price it, then insert the order
// and clear the cart atomically.
func (s *OrderService) checkout(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error) {
	var cart *models.Cart
	err := withTimeout(ctx, s.timeout, "get cart", func(ctx context.Context) error {
		var err error
		cart, err = s.repomanager.Carts(s.db).GetOrCreate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, common.ErrEmptyCart
	}

	products, err := s.products.FindByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, err
	}

	order, err := models.NewOrder(userID, cart.Items, products, in.ShippingAddress, in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	order.IdempotencyKey = in.IdempotencyKey

	var placed *models.Order
	err = withTimeout(ctx, s.timeout, "place order", func(ctx context.Context) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			cart.Clear()
			if err := s.repomanager.Carts(tx).Save(ctx, cart); err != nil {
				return err
			}
			var err error
			placed, err = s.repomanager.Orders(tx).Create(ctx, order)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (s *OrderService) findByKey(ctx context.Context, userID, key string) (*models.Order, error) {
	var o *models.Order
	err := withTimeout(ctx, s.timeout, "find order", func(ctx context.Context) error {
		var err error
		o, err = s.repomanager.Orders(s.db).FindByIdempotencyKey(ctx, userID, key)
		return err
	})
	return o, err
}

// List returns the user's orders, newest first.
func (s *OrderService) List(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := withTimeout(ctx, s.timeout, "list orders", func(ctx context.Context) error {
		var err error
		orders, err = s.repomanager.Orders(s.db).ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// Get returns one of the user's orders. Orders of other users are
// reported as not found.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*models.Order, error) {
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return o, nil
}

// UpdateStatus moves an order along the status lifecycle. Transitions the
// lifecycle does not allow, and losing a race to another update, are
// common.ErrConflict.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, common.ErrValidation)
	}

	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("order %s cannot go from %s to %s: %w", orderID, o.Status, status, common.ErrConflict)
	}

	var updated *models.Order
	err = withTimeout(ctx, s.timeout, "update order status", func(ctx context.Context) error {
		var err error
		updated, err = s.repomanager.Orders(s.db).UpdateStatus(ctx, orderID, o.Status, status)
		return err
	})
	if errors.Is(err, common.ErrVersionConflict) {
		return nil, fmt.Errorf("order %s changed concurrently: %w", orderID, common.ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "order status changed", "order_id", orderID, "from", o.Status, "to", status)
	return updated, nil
}

func (s *OrderService) find(ctx context.Context, orderID string) (*models.Order, error) {
	var o *models.Order
	err := withTimeout(ctx, s.timeout, "find order", func(ctx context.Context) error {
		var err error
		o, err = s.repomanager.Orders(s.db).FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}
