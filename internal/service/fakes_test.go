package service

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"toyshop/internal/cache"
	"toyshop/internal/domain"
	"toyshop/internal/infrastructure/events"
	"toyshop/internal/repo"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	findAll  int
	nextID   int64
}

func newFakeProductRepo(products ...domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[int64]domain.Product{}, nextID: 100}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) FindAll(context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findAll++
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeProductRepo) FindById(_ context.Context, id int64) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *fakeProductRepo) FindByIds(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]domain.Product{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *fakeProductRepo) SearchByName(_ context.Context, keyword string) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Product
	for _, p := range r.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(keyword)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Save(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	r.products[p.ID] = *p
	return nil
}

type fakeCartRepo struct {
	mu     sync.Mutex
	carts  map[int64]*domain.Cart
	nextID int64
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: map[int64]*domain.Cart{}}
}

func (r *fakeCartRepo) FindById(_ context.Context, id int64) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCartRepo) FindOpenByUser(_ context.Context, userID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if c.UserID == userID && (c.Status == domain.CartActive || c.Status == domain.CartPendingPayment) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCartRepo) CreateCart(_ context.Context, _ *sql.Tx, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cart.ID = r.nextID
	cp := *cart
	r.carts[cart.ID] = &cp
	return nil
}

func (r *fakeCartRepo) UpdateStatus(_ context.Context, _ *sql.Tx, id int64, from, to domain.CartStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeCartRepo) FindByUserAndStatus(_ context.Context, userID string, status domain.CartStatus) ([]domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Cart
	for _, c := range r.carts {
		if c.UserID == userID && c.Status == status {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCartRepo) FindStuckCarts(_ context.Context, olderThan time.Duration) ([]domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Cart
	for _, c := range r.carts {
		if c.Status == domain.CartPendingPayment && c.UpdatedAt.Before(time.Now().Add(-olderThan)) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCartRepo) status(id int64) domain.CartStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.carts[id].Status
}

func (r *fakeCartRepo) isActive(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[id]
	return ok && c.Status == domain.CartActive
}

// fakeCartItemRepo mirrors the postgres constraints: one line per
// (cart, product) and writes only while the cart is ACTIVE.
type fakeCartItemRepo struct {
	mu     sync.Mutex
	items  map[int64]*domain.CartItem
	nextID int64
	carts  *fakeCartRepo
	// beforeCreate runs ahead of every insert, outside the lock.
	beforeCreate func()
}

func newFakeCartItemRepo(carts *fakeCartRepo) *fakeCartItemRepo {
	return &fakeCartItemRepo{items: map[int64]*domain.CartItem{}, carts: carts}
}

func (r *fakeCartItemRepo) FindByCartId(_ context.Context, cartID int64) ([]domain.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CartItem
	for _, it := range r.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCartItemRepo) FindByCartAndProduct(_ context.Context, cartID, productID int64) (*domain.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it := r.find(cartID, productID); it != nil {
		cp := *it
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeCartItemRepo) find(cartID, productID int64) *domain.CartItem {
	for _, it := range r.items {
		if it.CartID == cartID && it.ProductID == productID {
			return it
		}
	}
	return nil
}

func (r *fakeCartItemRepo) cartActive(cartID int64) bool {
	return r.carts == nil || r.carts.isActive(cartID)
}

func (r *fakeCartItemRepo) cartOf(id int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return 0, false
	}
	return it.CartID, true
}

func (r *fakeCartItemRepo) CreateItem(_ context.Context, item *domain.CartItem) error {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	if !r.cartActive(item.CartID) {
		return repo.ErrCartNotActive
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(item.CartID, item.ProductID) != nil {
		return &pgconn.PgError{Code: "23505", ConstraintName: "cart_item_cart_id_product_id_key"}
	}
	r.nextID++
	item.ID = r.nextID
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *fakeCartItemRepo) UpdateQuantity(_ context.Context, id int64, quantity int) error {
	cartID, ok := r.cartOf(id)
	if !ok || !r.cartActive(cartID) {
		return repo.ErrCartNotActive
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return repo.ErrCartNotActive
	}
	it.Quantity = quantity
	return nil
}

func (r *fakeCartItemRepo) DeleteItem(_ context.Context, id int64) error {
	cartID, ok := r.cartOf(id)
	if !ok || !r.cartActive(cartID) {
		return repo.ErrCartNotActive
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	products    map[int64]domain.Product
	all         []domain.Product
	hasAll      bool
	invalidated []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: map[int64]domain.Product{}}
}

func (c *fakeCache) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &p, nil
}

func (c *fakeCache) SetProduct(_ context.Context, p *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = *p
	return nil
}

func (c *fakeCache) GetAll(context.Context) ([]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasAll {
		return nil, cache.ErrCacheMiss
	}
	return c.all, nil
}

func (c *fakeCache) SetAll(_ context.Context, products []domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all, c.hasAll = products, true
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasAll = false
	for _, id := range ids {
		delete(c.products, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.OrderCompleted
	err    error
}

func (p *fakePublisher) PublishOrderCompleted(_ context.Context, ev events.OrderCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }
