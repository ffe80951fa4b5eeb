package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
)

// Product is a catalog entry. Images holds object storage keys; ImageURLs
// is filled with presigned links when the product is served.
type Product struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	PriceCents  int64               `json:"price_cents"`
	Images      []string            `json:"images"`
	ImageURLs   []string            `json:"image_urls,omitempty"`
	Category    string              `json:"category"`
	Brand       string              `json:"brand"`
	Attributes  map[string][]string `json:"attributes"`
	Stock       int                 `json:"stock"`
	Rating      float64             `json:"rating"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ProductSort names a sortable column and its direction.
type ProductSort struct {
	Field string
	Desc  bool
}

var sortableProductFields = map[string]string{
	"createdAt": "created_at",
	"price":     "price_cents",
	"title":     "title",
	"rating":    "rating",
}

// ParseProductSort accepts "field" or "-field" for descending order.
// An empty value sorts newest first.
func ParseProductSort(s string) (ProductSort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "-createdAt"
	}
	desc := strings.HasPrefix(s, "-")
	name := strings.TrimPrefix(s, "-")
	col, ok := sortableProductFields[name]
	if !ok {
		return ProductSort{}, fmt.Errorf("unknown sort field %q: %w", name, common.ErrValidation)
	}
	return ProductSort{Field: col, Desc: desc}, nil
}

// ProductFilter selects one page of the catalog.
type ProductFilter struct {
	Page     int
	Limit    int
	Category string
	Search   string
	Sort     ProductSort
}

// Normalize clamps paging to sane bounds. Page is capped so that Offset
// never overflows int.
func (f *ProductFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if maxPage := math.MaxInt / f.Limit; f.Page > maxPage {
		f.Page = maxPage
	}
	if f.Sort.Field == "" {
		f.Sort = ProductSort{Field: "created_at", Desc: true}
	}
}

func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type ProductPage struct {
	Items []Product `json:"items"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Total int       `json:"total"`
	Pages int       `json:"pages"`
}

func NewProductPage(items []Product, f ProductFilter, total int) ProductPage {
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	if items == nil {
		items = []Product{}
	}
	return ProductPage{Items: items, Page: f.Page, Limit: f.Limit, Total: total, Pages: pages}
}
