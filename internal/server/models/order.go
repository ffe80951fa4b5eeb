package models

import (
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
)

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentCOD        PaymentMethod = "cod"
	PaymentWallet     PaymentMethod = "wallet"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCreditCard, PaymentCOD, PaymentWallet:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderCancelled},
	OrderPaid:    {OrderShipped, OrderCancelled},
	OrderShipped: {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order in s may move to next.
// Delivered and cancelled are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// OrderItem is a frozen copy of a cart line: title and price are taken
// from the catalog when the order is placed and never looked up again.
type OrderItem struct {
	ProductID          string            `json:"product_id"`
	Title              string            `json:"title"`
	PriceCents         int64             `json:"price_cents"`
	Quantity           int               `json:"quantity"`
	SelectedAttributes map[string]string `json:"selected_attributes,omitempty"`
}

// Subtotal is price times quantity, or an error if it overflows int64.
func (i OrderItem) Subtotal() (int64, error) {
	if i.Quantity == 0 || i.PriceCents == 0 {
		return 0, nil
	}
	if i.PriceCents < 0 || i.Quantity < 0 || i.PriceCents > math.MaxInt64/int64(i.Quantity) {
		return 0, fmt.Errorf("line %s subtotal out of range: %w", i.ProductID, common.ErrValidation)
	}
	return i.PriceCents * int64(i.Quantity), nil
}

type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Items           []OrderItem   `json:"items"`
	ShippingAddress Address       `json:"shipping_address"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	Status          OrderStatus   `json:"status"`
	TotalCents      int64         `json:"total_cents"`
	IdempotencyKey  string        `json:"-"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewOrder snapshots the cart lines against products (keyed by id) into a
// pending order. Lines with quantity zero are left out. A line whose
// product is missing fails with common.ErrorNotFound; an order with no
// lines left fails with common.ErrEmptyCart.
func NewOrder(userID string, lines []CartItem, products map[string]Product, addr Address, pm PaymentMethod) (*Order, error) {
	o := &Order{
		UserID:          userID,
		Items:           make([]OrderItem, 0, len(lines)),
		ShippingAddress: addr,
		PaymentMethod:   pm,
		Status:          OrderPending,
	}

	for _, line := range lines {
		if line.Quantity == 0 {
			continue
		}
		p, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, common.ErrorNotFound)
		}
		item := OrderItem{
			ProductID:          p.ID,
			Title:              p.Title,
			PriceCents:         p.PriceCents,
			Quantity:           line.Quantity,
			SelectedAttributes: line.SelectedAttributes,
		}
		sub, err := item.Subtotal()
		if err != nil {
			return nil, err
		}
		if o.TotalCents > math.MaxInt64-sub {
			return nil, fmt.Errorf("order total out of range: %w", common.ErrValidation)
		}
		o.TotalCents += sub
		o.Items = append(o.Items, item)
	}

	if len(o.Items) == 0 {
		return nil, common.ErrEmptyCart
	}
	return o, nil
}
