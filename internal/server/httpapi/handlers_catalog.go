package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/gorilla/mux"
)

// queryInt parses a positive integer parameter; anything else falls back
// to zero so the filter defaults apply.
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sort, err := models.ParseProductSort(q.Get("sort"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.svc.Catalog.List(r.Context(), models.ProductFilter{
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     sort,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.svc.Catalog.Create(r.Context(), req.toModel())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.svc.Catalog.Update(r.Context(), mux.Vars(r)["id"], req.toModel())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
