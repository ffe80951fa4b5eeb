package services

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/carts"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/orders"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/products"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
	"github.com/google/uuid"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// --- users ---

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]models.User
	findErr error
	updates int
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]models.User{}} }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return nil, common.ErrConflict
		}
	}
	out := *u
	out.ID = uuid.NewString()
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	r.byID[out.ID] = out
	return &out, nil
}

func (r *memUsers) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return common.ErrorNotFound
	}
	r.updates++
	r.byID[u.ID] = *u
	return nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

// --- products ---

type memProducts struct {
	mu   sync.Mutex
	byID map[string]models.Product
	err  error
}

func newMemProducts(ps ...models.Product) *memProducts {
	r := &memProducts{byID: map[string]models.Product{}}
	for _, p := range ps {
		r.byID[p.ID] = p
	}
	return r
}

func (r *memProducts) List(_ context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, 0, r.err
	}
	var all []models.Product
	for _, p := range r.byID {
		if f.Category == "" || p.Category == f.Category {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := min(f.Offset(), len(all))
	end := min(start+f.Limit, len(all))
	return all[start:end], len(all), nil
}

func (r *memProducts) FindByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (r *memProducts) FindByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []models.Product
	for _, id := range ids {
		if p, ok := r.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProducts) Create(_ context.Context, p *models.Product) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.NewString()
	r.byID[p.ID] = *p
	return p, nil
}

func (r *memProducts) Update(_ context.Context, p *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return common.ErrorNotFound
	}
	r.byID[p.ID] = *p
	return nil
}

func (r *memProducts) set(p models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
}

func (r *memProducts) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// --- carts ---

// memCarts mimics the optimistic version check of the Postgres repository.
// conflicts makes the next n saves fail as if another writer got there first.
type memCarts struct {
	mu        sync.Mutex
	byUser    map[string]models.Cart
	conflicts int
	saveErr   error
	saves     int
}

func newMemCarts() *memCarts { return &memCarts{byUser: map[string]models.Cart{}} }

func cloneCart(c models.Cart) models.Cart {
	c.Items = slices.Clone(c.Items)
	for i := range c.Items {
		c.Items[i].SelectedAttributes = maps.Clone(c.Items[i].SelectedAttributes)
	}
	return c
}

func (r *memCarts) GetOrCreate(_ context.Context, userID string) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUser[userID]
	if !ok {
		c = models.Cart{ID: uuid.NewString(), UserID: userID, Items: []models.CartItem{}, Version: 1}
		r.byUser[userID] = c
	}
	out := cloneCart(c)
	return &out, nil
}

func (r *memCarts) Save(_ context.Context, c *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	current := r.byUser[c.UserID]
	if r.conflicts > 0 {
		r.conflicts--
		current.Version++
		r.byUser[c.UserID] = current
		return common.ErrVersionConflict
	}
	if current.Version != c.Version {
		return common.ErrVersionConflict
	}
	c.Version++
	c.UpdatedAt = time.Now()
	r.byUser[c.UserID] = cloneCart(*c)
	r.saves++
	return nil
}

func (r *memCarts) get(userID string) models.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneCart(r.byUser[userID])
}

// --- orders ---

type memOrders struct {
	mu        sync.Mutex
	list      []models.Order
	createErr error
	racing    *models.Order
}

func (r *memOrders) Create(_ context.Context, o *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if r.racing != nil {
		r.list = append(r.list, *r.racing)
		r.racing = nil
		return nil, common.ErrConflict
	}
	for _, existing := range r.list {
		if o.IdempotencyKey != "" && existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
			return nil, common.ErrConflict
		}
	}
	out := *o
	out.ID = uuid.NewString()
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	r.list = append(r.list, out)
	return &out, nil
}

func (r *memOrders) FindByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.list {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memOrders) FindByIdempotencyKey(_ context.Context, userID, key string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.list {
		if o.UserID == userID && o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memOrders) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for i := len(r.list) - 1; i >= 0; i-- {
		if r.list[i].UserID == userID {
			out = append(out, r.list[i])
		}
	}
	return out, nil
}

func (r *memOrders) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.list {
		if r.list[i].ID != id {
			continue
		}
		if r.list[i].Status != from {
			return nil, common.ErrVersionConflict
		}
		r.list[i].Status = to
		o := r.list[i]
		return &o, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memOrders) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// --- revocations ---

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newMemRevocations() *memRevocations {
	return &memRevocations{revoked: map[string]time.Time{}}
}

func (r *memRevocations) Revoke(_ context.Context, id string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.revoked[id] = exp
	return nil
}

func (r *memRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[id]
	return ok, nil
}

func (r *memRevocations) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// --- manager ---

type fakeRepoManager struct {
	users       *memUsers
	products    *memProducts
	carts       *memCarts
	orders      *memOrders
	revocations *memRevocations
}

func newFakeRepoManager(ps ...models.Product) *fakeRepoManager {
	return &fakeRepoManager{
		users:       newMemUsers(),
		products:    newMemProducts(ps...),
		carts:       newMemCarts(),
		orders:      &memOrders{},
		revocations: newMemRevocations(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Products(dbx.DBTX) products.Repository        { return m.products }
func (m *fakeRepoManager) Carts(dbx.DBTX) carts.Repository              { return m.carts }
func (m *fakeRepoManager) Orders(dbx.DBTX) orders.Repository            { return m.orders }
func (m *fakeRepoManager) Revocations(dbx.DBTX) revocations.Repository  { return m.revocations }

type countingRecorder struct {
	mu        sync.Mutex
	conflicts int
	orders    int
}

func (r *countingRecorder) CartConflict() {
	r.mu.Lock()
	r.conflicts++
	r.mu.Unlock()
}

func (r *countingRecorder) OrderPlaced(int64) {
	r.mu.Lock()
	r.orders++
	r.mu.Unlock()
}
