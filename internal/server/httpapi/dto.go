package httpapi

import (
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type authResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

type productRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	PriceCents  int64               `json:"price_cents" validate:"gte=0"`
	Images      []string            `json:"images" validate:"max=20,dive,required,max=1024"`
	Category    string              `json:"category" validate:"max=100"`
	Brand       string              `json:"brand" validate:"max=100"`
	Attributes  map[string][]string `json:"attributes" validate:"max=50"`
	Stock       int                 `json:"stock" validate:"gte=0"`
	Rating      float64             `json:"rating" validate:"gte=0,lte=5"`
}

func (p productRequest) toModel() *models.Product {
	return &models.Product{
		Title:       p.Title,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Images:      p.Images,
		Category:    p.Category,
		Brand:       p.Brand,
		Attributes:  p.Attributes,
		Stock:       p.Stock,
		Rating:      p.Rating,
	}
}

type addItemRequest struct {
	ProductID          string            `json:"product_id" validate:"required"`
	Quantity           int               `json:"quantity" validate:"gte=0,lte=10000"`
	SelectedAttributes map[string]string `json:"selected_attributes" validate:"max=50"`
}

// Quantity is a pointer so that an explicit 0 is told apart from a
// missing field.
type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"omitempty,gte=0,lte=10000"`
}

type addressRequest struct {
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	ZipCode string `json:"zip_code" validate:"required,max=20"`
	Country string `json:"country" validate:"required,max=100"`
}

func (a addressRequest) toModel() models.Address {
	return models.Address{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
		Country: a.Country,
	}
}

type placeOrderRequest struct {
	ShippingAddress addressRequest `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method" validate:"required,oneof=credit_card cod wallet"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid shipped delivered cancelled"`
}
