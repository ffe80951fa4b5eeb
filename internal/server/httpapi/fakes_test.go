package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/stretchr/testify/require"
)

const (
	testUserID  = "7a1c6f3e-52b1-4b0e-9a7c-1d2e3f405060"
	testAdminID = "0b9d8c7a-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
)

type fakeUsers struct {
	register func(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	login    func(ctx context.Context, email, password string) (*services.Session, error)
	refresh  func(ctx context.Context, token string) (string, error)
	logout   func(ctx context.Context, token string) error
	me       func(ctx context.Context, userID string) (*models.User, error)
}

func (f *fakeUsers) Register(ctx context.Context, in services.RegisterInput) (*services.Session, error) {
	return f.register(ctx, in)
}
func (f *fakeUsers) Login(ctx context.Context, email, password string) (*services.Session, error) {
	return f.login(ctx, email, password)
}
func (f *fakeUsers) Refresh(ctx context.Context, token string) (string, error) {
	return f.refresh(ctx, token)
}
func (f *fakeUsers) Logout(ctx context.Context, token string) error {
	return f.logout(ctx, token)
}
func (f *fakeUsers) Me(ctx context.Context, userID string) (*models.User, error) {
	return f.me(ctx, userID)
}

type fakeCatalog struct {
	list   func(ctx context.Context, f models.ProductFilter) (*models.ProductPage, error)
	get    func(ctx context.Context, id string) (*models.Product, error)
	create func(ctx context.Context, p *models.Product) (*models.Product, error)
	update func(ctx context.Context, id string, p *models.Product) (*models.Product, error)
}

func (f *fakeCatalog) List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	return f.list(ctx, filter)
}
func (f *fakeCatalog) Get(ctx context.Context, id string) (*models.Product, error) {
	return f.get(ctx, id)
}
func (f *fakeCatalog) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	return f.create(ctx, p)
}
func (f *fakeCatalog) Update(ctx context.Context, id string, p *models.Product) (*models.Product, error) {
	return f.update(ctx, id, p)
}

type fakeCarts struct {
	get    func(ctx context.Context, userID string) (*models.HydratedCart, error)
	add    func(ctx context.Context, userID string, in services.AddItemInput) (*models.HydratedCart, error)
	update func(ctx context.Context, userID, itemID string, qty int) (*models.HydratedCart, error)
	remove func(ctx context.Context, userID, itemID string) (*models.HydratedCart, error)
}

func (f *fakeCarts) Get(ctx context.Context, userID string) (*models.HydratedCart, error) {
	return f.get(ctx, userID)
}
func (f *fakeCarts) AddItem(ctx context.Context, userID string, in services.AddItemInput) (*models.HydratedCart, error) {
	return f.add(ctx, userID, in)
}
func (f *fakeCarts) UpdateItem(ctx context.Context, userID, itemID string, qty int) (*models.HydratedCart, error) {
	return f.update(ctx, userID, itemID, qty)
}
func (f *fakeCarts) RemoveItem(ctx context.Context, userID, itemID string) (*models.HydratedCart, error) {
	return f.remove(ctx, userID, itemID)
}

type fakeOrders struct {
	place        func(ctx context.Context, userID string, in services.PlaceOrderInput) (*models.Order, bool, error)
	list         func(ctx context.Context, userID string) ([]models.Order, error)
	get          func(ctx context.Context, userID, orderID string) (*models.Order, error)
	updateStatus func(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, userID string, in services.PlaceOrderInput) (*models.Order, bool, error) {
	return f.place(ctx, userID, in)
}
func (f *fakeOrders) List(ctx context.Context, userID string) ([]models.Order, error) {
	return f.list(ctx, userID)
}
func (f *fakeOrders) Get(ctx context.Context, userID, orderID string) (*models.Order, error) {
	return f.get(ctx, userID, orderID)
}
func (f *fakeOrders) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	return f.updateStatus(ctx, orderID, status)
}

type testEnv struct {
	users   *fakeUsers
	catalog *fakeCatalog
	carts   *fakeCarts
	orders  *fakeOrders
	tokens  *auth.TokenService
	server  *Server
	handler http.Handler
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()

	env := &testEnv{
		users:   &fakeUsers{},
		catalog: &fakeCatalog{},
		carts:   &fakeCarts{},
		orders:  &fakeOrders{},
		tokens:  auth.NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, nil),
	}

	o := Options{RefreshTTL: 7 * 24 * time.Hour, CORSOrigins: []string{"http://localhost:3000"}}
	for _, fn := range opts {
		fn(&o)
	}

	env.server = NewServer(Services{
		Users:   env.users,
		Catalog: env.catalog,
		Carts:   env.carts,
		Orders:  env.orders,
		Tokens:  env.tokens,
	}, o, logging.Nop(), nil)
	env.handler = env.server.Handler()
	return env
}

func (e *testEnv) bearer(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	token, err := e.tokens.IssueAccess(auth.Identity{UserID: userID, Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

type request struct {
	method  string
	path    string
	body    any
	headers map[string]string
	cookies []*http.Cookie
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	switch b := req.body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(req.method, req.path, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
