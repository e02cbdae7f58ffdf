// Package repotest provides in-memory implementations of the repository
// interfaces for tests. Writes made through a Tx become visible only after
// Commit.
package repotest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/flicky/food-ordering-api/internal/model"
	"github.com/flicky/food-ordering-api/internal/repository"
)

type Store struct {
	mu    sync.Mutex
	clock time.Time

	users      map[uuid.UUID]*model.User
	categories map[uuid.UUID]*model.Category
	products   map[uuid.UUID]*model.Product
	orders     map[uuid.UUID]*model.Order
	items      map[uuid.UUID][]model.OrderItem
	payments   map[uuid.UUID]*model.PaymentTransaction

	// FailCreateItems, when set, is returned by OrderRepository.CreateItems.
	FailCreateItems error
	// Commits counts successful transaction commits.
	Commits int
}

func New() *Store {
	return &Store{
		clock:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users:      make(map[uuid.UUID]*model.User),
		categories: make(map[uuid.UUID]*model.Category),
		products:   make(map[uuid.UUID]*model.Product),
		orders:     make(map[uuid.UUID]*model.Order),
		items:      make(map[uuid.UUID][]model.OrderItem),
		payments:   make(map[uuid.UUID]*model.PaymentTransaction),
	}
}

// tick returns a strictly increasing timestamp so ordering by creation time is
// deterministic. Callers must hold mu.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Store) Users() repository.UserRepository          { return userRepo{s} }
func (s *Store) Categories() repository.CategoryRepository { return categoryRepo{s} }
func (s *Store) Products() repository.ProductRepository    { return productRepo{s} }
func (s *Store) Orders() repository.OrderRepository        { return orderRepo{s} }
func (s *Store) Payments() repository.PaymentRepository    { return paymentRepo{s} }

// Now reports the store clock, the creation time of the latest row.
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) ItemCount() int { return len(s.allItems()) }

func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *Store) allItems() []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.OrderItem
	for _, items := range s.items {
		all = append(all, items...)
	}
	return all
}

// Tx buffers writes until Commit. Methods of pgx.Tx other than Commit and
// Rollback are not implemented.
type Tx struct {
	pgx.Tx
	store  *Store
	ops    []func()
	closed bool
}

func (t *Tx) Commit(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, op := range t.ops {
		op()
	}
	t.store.Commits++
	return nil
}

func (t *Tx) Rollback(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.ops = nil
	return nil
}

func (t *Tx) queue(op func()) { t.ops = append(t.ops, op) }

func asTx(tx pgx.Tx) *Tx {
	return tx.(*Tx)
}

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = r.s.tick()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r userRepo) EnsureAdmin(ctx context.Context, user *model.User) (bool, error) {
	user.Role = model.RoleAdmin
	if err := r.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// --- categories ---

type categoryRepo struct{ s *Store }

func (r categoryRepo) Create(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = r.s.tick()
	cp := *c
	r.s.categories[c.ID] = &cp
	return nil
}

func (r categoryRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r categoryRepo) List(_ context.Context) ([]model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Category{}
	for _, c := range r.s.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- products ---

type productRepo struct{ s *Store }

func (r productRepo) categoryExists(id *uuid.UUID) bool {
	if id == nil {
		return true
	}
	_, ok := r.s.categories[*id]
	return ok
}

func (r productRepo) Create(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.categoryExists(p.CategoryID) {
		return repository.ErrCategoryNotFound
	}
	p.ID = uuid.New()
	p.CreatedAt = r.s.tick()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.s.products[p.ID] = &cp
	return nil
}

func (r productRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r productRepo) List(_ context.Context, filter model.ProductFilter) ([]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Product{}
	for _, p := range r.s.products {
		if filter.AvailableOnly && !p.IsAvailable {
			continue
		}
		if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r productRepo) Update(_ context.Context, id uuid.UUID, patch model.ProductPatch) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	if !r.categoryExists(patch.CategoryID) {
		return nil, repository.ErrCategoryNotFound
	}
	updated := *p
	patch.Apply(&updated)
	updated.UpdatedAt = r.s.tick()
	r.s.products[id] = &updated
	cp := updated
	return &cp, nil
}

func (r productRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.products, id)
	for orderID, items := range r.s.items {
		for i := range items {
			if items[i].ProductID != nil && *items[i].ProductID == id {
				items[i].ProductID = nil
			}
		}
		r.s.items[orderID] = items
	}
	return nil
}

func (r productRepo) GetAvailableForOrder(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*model.Product, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil || p == nil || !p.IsAvailable {
		return nil, err
	}
	return p, nil
}

// --- orders ---

type orderRepo struct{ s *Store }

func (r orderRepo) BeginTx(_ context.Context) (pgx.Tx, error) {
	return &Tx{store: r.s}, nil
}

func (r orderRepo) Create(_ context.Context, tx pgx.Tx, order *model.Order) error {
	r.s.mu.Lock()
	order.ID = uuid.New()
	order.CreatedAt = r.s.tick()
	order.UpdatedAt = order.CreatedAt
	r.s.mu.Unlock()

	cp := *order
	cp.Items = nil
	asTx(tx).queue(func() { r.s.orders[cp.ID] = &cp })
	return nil
}

func (r orderRepo) CreateItems(_ context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if r.s.FailCreateItems != nil {
		return r.s.FailCreateItems
	}
	for i := range items {
		items[i].ID = uuid.New()
	}
	cp := append([]model.OrderItem(nil), items...)
	asTx(tx).queue(func() {
		for _, item := range cp {
			r.s.items[item.OrderID] = append(r.s.items[item.OrderID], item)
		}
	})
	return nil
}

func (r orderRepo) withItems(o *model.Order) model.Order {
	cp := *o
	cp.Items = append([]model.OrderItem{}, r.s.items[o.ID]...)
	return cp
}

func (r orderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := r.withItems(o)
	return &cp, nil
}

func (r orderRepo) GetForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r orderRepo) UpdateStatus(_ context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error {
	asTx(tx).queue(func() {
		if o, ok := r.s.orders[id]; ok {
			o.Status = status
			o.UpdatedAt = r.s.tick()
		}
	})
	return nil
}

func (r orderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	return r.list(func(o *model.Order) bool { return o.UserID == userID }), nil
}

func (r orderRepo) ListAll(_ context.Context) ([]model.Order, error) {
	return r.list(func(*model.Order) bool { return true }), nil
}

func (r orderRepo) list(keep func(*model.Order) bool) []model.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Order{}
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, r.withItems(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r orderRepo) Summary(_ context.Context, since time.Time, topN int) (*model.SalesSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	summary := &model.SalesSummary{StatusCounts: make(map[model.OrderStatus]int), TopProducts: []model.ProductSales{}}
	byProduct := make(map[string]*model.ProductSales)
	for _, o := range r.s.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		summary.TotalOrders++
		summary.StatusCounts[o.Status]++
		if o.Status == model.OrderStatusCancelled {
			continue
		}
		summary.TotalRevenue = summary.TotalRevenue.Add(o.TotalAmount)
		for _, item := range r.s.items[o.ID] {
			key := item.ProductName
			if item.ProductID != nil {
				key = item.ProductID.String() + key
			}
			ps, ok := byProduct[key]
			if !ok {
				ps = &model.ProductSales{ProductID: item.ProductID, ProductName: item.ProductName, Revenue: decimal.Zero}
				byProduct[key] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue = ps.Revenue.Add(item.Subtotal())
		}
	}
	for _, ps := range byProduct {
		summary.TopProducts = append(summary.TopProducts, *ps)
	}
	sort.Slice(summary.TopProducts, func(i, j int) bool {
		a, b := summary.TopProducts[i], summary.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.ProductName < b.ProductName
	})
	if len(summary.TopProducts) > topN {
		summary.TopProducts = summary.TopProducts[:topN]
	}
	return summary, nil
}

// --- payments ---

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(_ context.Context, txn *model.PaymentTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn.ID = uuid.New()
	txn.CreatedAt = r.s.tick()
	txn.UpdatedAt = txn.CreatedAt
	cp := *txn
	r.s.payments[txn.ID] = &cp
	return nil
}

func (r paymentRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) (*model.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}
