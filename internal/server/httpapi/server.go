// Package httpapi serves the storefront REST API under /api/v1.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/metrics"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const (
	apiPrefix       = "/api/v1"
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

type Options struct {
	Addr           string
	CORSOrigins    []string
	CookieSecure   bool
	RefreshTTL     time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	// HealthCheck, when set, is consulted by the health endpoint.
	HealthCheck func(ctx context.Context) error
}

type Server struct {
	svc      Services
	opts     Options
	logger   logging.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	limiter  *rateLimiter
	now      func() time.Time
}

// NewServer wires the handlers. m may be nil, which disables /metrics.
func NewServer(svc Services, opts Options, l logging.Logger, m *metrics.Metrics) *Server {
	return &Server{
		svc:      svc,
		opts:     opts,
		logger:   l.With("module", "http_server"),
		metrics:  m,
		validate: newValidator(),
		limiter:  newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		now:      time.Now,
	}
}

// Handler returns the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if s.metrics != nil {
		r.Use(s.metrics.InstrumentHandler)
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix(apiPrefix).Subrouter()
	api.Use(s.limiter.middleware)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.Handle("/auth/me", s.authed(s.handleMe)).Methods(http.MethodGet)

	api.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.handleGetProduct).Methods(http.MethodGet)
	api.Handle("/products", s.admin(s.handleCreateProduct)).Methods(http.MethodPost)
	api.Handle("/products/{id}", s.admin(s.handleUpdateProduct)).Methods(http.MethodPut)

	api.Handle("/cart", s.authed(s.handleGetCart)).Methods(http.MethodGet)
	api.Handle("/cart/items", s.authed(s.handleAddCartItem)).Methods(http.MethodPost)
	api.Handle("/cart/items/{itemId}", s.authed(s.handleUpdateCartItem)).Methods(http.MethodPut)
	api.Handle("/cart/items/{itemId}", s.authed(s.handleRemoveCartItem)).Methods(http.MethodDelete)

	api.Handle("/orders", s.authed(s.handlePlaceOrder)).Methods(http.MethodPost)
	api.Handle("/orders", s.authed(s.handleListOrders)).Methods(http.MethodGet)
	api.Handle("/orders/{id}", s.authed(s.handleGetOrder)).Methods(http.MethodGet)
	api.Handle("/orders/{id}/status", s.admin(s.handleUpdateOrderStatus)).Methods(http.MethodPatch)

	var h http.Handler = r
	h = s.accessLog(h)
	h = s.recoverer(h)
	h = s.requestID(h)
	h = cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})(h)
	return h
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.authenticate(h)
}

func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.authenticate(requireRole(models.RoleAdmin)(h))
}

// Run listens on Options.Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String())

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}
	if s.opts.HealthCheck != nil {
		if err := s.opts.HealthCheck(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "health check failed", "error", err)
			body["status"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// SweepIdleClients drops rate limiter state of clients idle for longer
// than idle.
func (s *Server) SweepIdleClients(idle time.Duration) int {
	return s.limiter.Sweep(idle)
}
