package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/gorilla/mux"
)

// handlePlaceOrder answers 201 for a new order and 200 when an
// Idempotency-Key replay returns an existing one.
func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	order, created, err := s.svc.Orders.PlaceOrder(r.Context(), id.UserID, services.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress.toModel(),
		PaymentMethod:   models.PaymentMethod(req.PaymentMethod),
		IdempotencyKey:  r.Header.Get(common.IdempotencyKeyHeaderName),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	orders, err := s.svc.Orders.List(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	order, err := s.svc.Orders.Get(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !s.decode(w, r, &req) {
		return
	}

	order, err := s.svc.Orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], models.OrderStatus(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
