package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

// ProductLookup is the part of the catalog the cart and checkout need.
type ProductLookup interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
}

// CatalogService serves and maintains catalog entries. Products leave the
// service with ImageURLs filled in by its ImageSigner.
type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      ImageSigner
	timeout     time.Duration
}

func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager, images ImageSigner, timeout time.Duration) *CatalogService {
	if images == nil {
		images = NopImageSigner{}
	}
	return &CatalogService{
		db:          db,
		repomanager: m,
		images:      images,
		timeout:     timeout,
	}
}

func (s *CatalogService) List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	filter.Normalize()

	var items []models.Product
	var total int
	err := withTimeout(ctx, s.timeout, "list products", func(ctx context.Context) error {
		var err error
		items, total, err = s.repomanager.Products(s.db).List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range items {
		if err := s.sign(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	page := models.NewProductPage(items, filter, total)
	return &page, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Product, error) {
	var p *models.Product
	err := withTimeout(ctx, s.timeout, "find product", func(ctx context.Context) error {
		var err error
		p, err = s.repomanager.Products(s.db).FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.sign(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindByIDs resolves ids in one query. Missing products are absent from
// the map.
func (s *CatalogService) FindByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	result := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var list []models.Product
	err := withTimeout(ctx, s.timeout, "find products", func(ctx context.Context) error {
		var err error
		list, err = s.repomanager.Products(s.db).FindByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range list {
		if err := s.sign(ctx, &list[i]); err != nil {
			return nil, err
		}
		result[list[i].ID] = list[i]
	}
	return result, nil
}

func (s *CatalogService) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	var created *models.Product
	err := withTimeout(ctx, s.timeout, "create product", func(ctx context.Context) error {
		var err error
		created, err = s.repomanager.Products(s.db).Create(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.sign(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces the product with id. Existing orders are unaffected.
func (s *CatalogService) Update(ctx context.Context, id string, p *models.Product) (*models.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.ID = id

	err := withTimeout(ctx, s.timeout, "update product", func(ctx context.Context) error {
		return s.repomanager.Products(s.db).Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *CatalogService) sign(ctx context.Context, p *models.Product) error {
	p.ImageURLs = make([]string, 0, len(p.Images))
	for _, key := range p.Images {
		url, err := s.images.SignURL(ctx, key)
		if err != nil {
			return fmt.Errorf("sign image: %v: %w", err, common.ErrUnavailable)
		}
		if url != "" {
			p.ImageURLs = append(p.ImageURLs, url)
		}
	}
	return nil
}

func validateProduct(p *models.Product) error {
	p.Title = strings.TrimSpace(p.Title)
	switch {
	case p.Title == "":
		return fmt.Errorf("title is required: %w", common.ErrValidation)
	case p.PriceCents < 0:
		return fmt.Errorf("price must not be negative: %w", common.ErrValidation)
	case p.Stock < 0:
		return fmt.Errorf("stock must not be negative: %w", common.ErrValidation)
	case p.Rating < 0 || p.Rating > 5:
		return fmt.Errorf("rating must be between 0 and 5: %w", common.ErrValidation)
	}
	return nil
}
