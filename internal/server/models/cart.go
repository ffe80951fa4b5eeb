package models

import (
	"fmt"
	"maps"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
)

// CartItem is one cart line. SelectedAttributes is part of the line's
// identity: the same product in two colours is two lines.
type CartItem struct {
	ID                 string            `json:"id"`
	ProductID          string            `json:"product_id"`
	Quantity           int               `json:"quantity"`
	SelectedAttributes map[string]string `json:"selected_attributes,omitempty"`
}

// Matches reports whether the line is for productID with exactly attrs.
func (i CartItem) Matches(productID string, attrs map[string]string) bool {
	return i.ProductID == productID && AttributesEqual(i.SelectedAttributes, attrs)
}

// AttributesEqual compares selections key by key. A nil and an empty map
// are the same selection.
func AttributesEqual(a, b map[string]string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return maps.Equal(a, b)
}

// Cart belongs to exactly one user. Version grows by one on every
// successful save and guards against lost updates.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AddLine merges quantity into the matching line or appends a new one
// with an id from newID. It returns the resulting line.
func (c *Cart) AddLine(productID string, quantity int, attrs map[string]string, newID func() string) CartItem {
	for i := range c.Items {
		if c.Items[i].Matches(productID, attrs) {
			c.Items[i].Quantity += quantity
			return c.Items[i]
		}
	}

	item := CartItem{
		ID:        newID(),
		ProductID: productID,
		Quantity:  quantity,
	}
	if len(attrs) > 0 {
		item.SelectedAttributes = maps.Clone(attrs)
	}
	c.Items = append(c.Items, item)
	return item
}

func (c *Cart) indexOf(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// SetQuantity overwrites a line's quantity. Zero is kept as a line with
// quantity zero; removing a line is RemoveLine's job.
func (c *Cart) SetQuantity(itemID string, quantity int) error {
	i := c.indexOf(itemID)
	if i < 0 {
		return fmt.Errorf("cart item %s: %w", itemID, common.ErrorNotFound)
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (c *Cart) RemoveLine(itemID string) error {
	i := c.indexOf(itemID)
	if i < 0 {
		return fmt.Errorf("cart item %s: %w", itemID, common.ErrorNotFound)
	}
	c.Items = append(c.Items[:i:i], c.Items[i+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// ProductIDs lists the distinct products referenced by the cart in line order.
func (c *Cart) ProductIDs() []string {
	seen := make(map[string]struct{}, len(c.Items))
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

// CartLine is a cart item joined with the current catalog entry.
// Product is nil when the entry no longer exists.
type CartLine struct {
	CartItem
	Product *Product `json:"product"`
}

// HydratedCart is the cart as returned to clients.
type HydratedCart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartLine `json:"items"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Hydrate joins the cart with products keyed by id.
func (c *Cart) Hydrate(products map[string]Product) *HydratedCart {
	lines := make([]CartLine, 0, len(c.Items))
	for _, it := range c.Items {
		line := CartLine{CartItem: it}
		if p, ok := products[it.ProductID]; ok {
			line.Product = &p
		}
		lines = append(lines, line)
	}
	return &HydratedCart{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     lines,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
