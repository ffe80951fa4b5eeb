package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/storefront/internal/syncx"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	conflictBackoffBase = 5 * time.Millisecond
	conflictBackoffCap  = 250 * time.Millisecond
)

type AddItemInput struct {
	ProductID  string
	Quantity   int
	Attributes map[string]string
}

// CartService owns the per-user cart. Mutations of one user's cart are
// serialised by an in-process lock and written with an optimistic version
// check; a version conflict from another replica restarts the
// read-modify-write cycle with exponential backoff.
type CartService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	products    ProductLookup
	locks       *syncx.KeyedMutex
	timeout     time.Duration
	retries     uint64
	recorder    Recorder
	log         logging.Logger
	newID       func() string
}

func NewCartService(db *sql.DB, m repomanager.RepositoryManager, products ProductLookup, locks *syncx.KeyedMutex,
	cfg *config.Config, rec Recorder, log logging.Logger) *CartService {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &CartService{
		db:          db,
		repomanager: m,
		products:    products,
		locks:       locks,
		timeout:     cfg.StorageTimeout,
		retries:     uint64(max(cfg.CartRetryLimit, 0)),
		recorder:    rec,
		log:         log,
		newID:       uuid.NewString,
	}
}

// Get returns the user's cart, creating an empty one on first use.
func (s *CartService) Get(ctx context.Context, userID string) (*models.HydratedCart, error) {
	var cart *models.Cart
	err := withTimeout(ctx, s.timeout, "get cart", func(ctx context.Context) error {
		var err error
		cart, err = s.repomanager.Carts(s.db).GetOrCreate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, cart)
}

// AddItem adds quantity of a product to the cart, merging into the line
// with the same attribute selection. Quantity 0 means 1.
func (s *CartService) AddItem(ctx context.Context, userID string, in AddItemInput) (*models.HydratedCart, error) {
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", common.ErrValidation)
	}
	if _, err := s.products.Get(ctx, in.ProductID); err != nil {
		return nil, err
	}

	cart, err := s.mutate(ctx, userID, func(c *models.Cart) error {
		c.AddLine(in.ProductID, in.Quantity, in.Attributes, s.newID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, cart)
}

// UpdateItem sets a line's quantity. Zero keeps the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*models.HydratedCart, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative: %w", common.ErrValidation)
	}

	cart, err := s.mutate(ctx, userID, func(c *models.Cart) error {
		return c.SetQuantity(itemID, quantity)
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*models.HydratedCart, error) {
	cart, err := s.mutate(ctx, userID, func(c *models.Cart) error {
		return c.RemoveLine(itemID)
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, cart)
}

// mutate applies fn to a fresh copy of the cart and saves it. fn errors
// abort without writing.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(*models.Cart) error) (*models.Cart, error) {
	unlock, err := lockUser(ctx, s.locks, userID, s.timeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var cart *models.Cart
	err = retryOnConflict(ctx, s.retries, func(ctx context.Context) error {
		err := withTimeout(ctx, s.timeout, "save cart", func(ctx context.Context) error {
			repo := s.repomanager.Carts(s.db)
			c, err := repo.GetOrCreate(ctx, userID)
			if err != nil {
				return err
			}
			if err := fn(c); err != nil {
				return err
			}
			if err := repo.Save(ctx, c); err != nil {
				return err
			}
			cart = c
			return nil
		})
		if errors.Is(err, common.ErrVersionConflict) {
			s.recorder.CartConflict()
			s.log.Debug(ctx, "cart version conflict, retrying", "user_id", userID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) hydrate(ctx context.Context, cart *models.Cart) (*models.HydratedCart, error) {
	products, err := s.products.FindByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, err
	}
	return cart.Hydrate(products), nil
}

// lockUser takes the user's in-process lock, waiting at most timeout.
func lockUser(ctx context.Context, locks *syncx.KeyedMutex, userID string, timeout time.Duration) (func(), error) {
	lockCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	unlock, err := locks.Lock(lockCtx, userID)
	if err != nil {
		return nil, storageError("lock cart", err)
	}
	return unlock, nil
}

// retryOnConflict runs fn until it stops failing with
// common.ErrVersionConflict, at most retries extra times. A conflict that
// outlives the retries surfaces as common.ErrConflict.
func retryOnConflict(ctx context.Context, retries uint64, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(conflictBackoffBase)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithCappedDuration(conflictBackoffCap, backoff)
	backoff = retry.WithMaxRetries(retries, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, common.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, common.ErrVersionConflict) {
		return fmt.Errorf("cart changed concurrently: %w", common.ErrConflict)
	}
	return storageError("retry", err)
}
