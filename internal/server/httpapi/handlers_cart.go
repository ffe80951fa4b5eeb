package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/gorilla/mux"
)

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	cart, err := s.svc.Carts.Get(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	cart, err := s.svc.Carts.AddItem(r.Context(), id.UserID, services.AddItemInput{
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Attributes: req.SelectedAttributes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cart)
}

// handleUpdateCartItem sets a line's quantity. Without a quantity the line
// keeps its current one and the cart is returned as is.
func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	itemID := mux.Vars(r)["itemId"]
	if req.Quantity == nil {
		cart, err := s.svc.Carts.Get(r.Context(), id.UserID)
		if err == nil && !hasLine(cart, itemID) {
			err = common.ErrorNotFound
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
		return
	}

	cart, err := s.svc.Carts.UpdateItem(r.Context(), id.UserID, itemID, *req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	cart, err := s.svc.Carts.RemoveItem(r.Context(), id.UserID, mux.Vars(r)["itemId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func hasLine(cart *models.HydratedCart, itemID string) bool {
	for _, line := range cart.Items {
		if line.ID == itemID {
			return true
		}
	}
	return false
}
