package services

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/pagination"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

type memTxKey struct{}

// memStore is an in-memory products/orders store. Transactions are serialised and rolled back on
// error, which is what row locks plus a real transaction give the services.
type memStore struct {
	txMu sync.Mutex

	mu          sync.Mutex
	products    map[int64]domain.Product
	orders      map[int64]domain.Order
	nextOrderID int64
	nextItemID  int64

	// beforeUpdate runs before a guarded update is evaluated, with the store unlocked.
	beforeUpdate func(order domain.Order)
}

func newMemStore(products ...domain.Product) *memStore {
	m := &memStore{
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]domain.Order),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memStore) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	products := maps.Clone(m.products)
	orders := maps.Clone(m.orders)
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.products = products
		m.orders = orders
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) product(id int64) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

func (m *memStore) order(id int64) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

func (m *memStore) putOrder(order domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	if order.ID > m.nextOrderID {
		m.nextOrderID = order.ID
	}
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func requireTx(ctx context.Context) error {
	if ctx.Value(memTxKey{}) == nil {
		return errors.New("row locks require a transaction")
	}
	return nil
}

type memProducts struct{ *memStore }

func (r memProducts) FindByID(_ context.Context, productID int64) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.Product{}, database.NotFound("products.find", "product %d not found", productID)
	}
	return p, nil
}

func (r memProducts) LockForUpdate(ctx context.Context, productIDs []int64) (map[int64]domain.Product, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r memProducts) UpdateStock(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.products[product.ID]
	if !ok {
		return database.NotFound("products.update_stock", "product %d not found", product.ID)
	}
	stored.Stock = product.Stock
	stored.Sizes = product.Sizes
	r.products[product.ID] = stored
	return nil
}

type memOrders struct{ *memStore }

func (r memOrders) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextOrderID++
	order.ID = r.nextOrderID
	items := slices.Clone(order.Items)
	for i := range items {
		r.nextItemID++
		items[i].ID = r.nextItemID
		items[i].OrderID = order.ID
	}
	order.Items = items
	r.orders[order.ID] = order
	return order, nil
}

func (r memOrders) FindByID(_ context.Context, orderID int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, database.NotFound("orders.find", "order %d not found", orderID)
	}
	return o, nil
}

func (r memOrders) LockForUpdate(ctx context.Context, orderID int64) (domain.Order, error) {
	if err := requireTx(ctx); err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, orderID)
}

func (r memOrders) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := slices.Collect(maps.Keys(r.orders))
	slices.Sort(ids)
	slices.Reverse(ids)

	page := domain.CursorPage[domain.Order]{Items: []domain.Order{}}
	for _, id := range ids {
		o := r.orders[id]
		switch {
		case filter.AfterID > 0 && id >= filter.AfterID:
			continue
		case filter.UserID != "" && o.UserID != filter.UserID:
			continue
		case filter.Status != "" && o.Status != filter.Status:
			continue
		case filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus:
			continue
		}
		page.Items = append(page.Items, o)
		if len(page.Items) == filter.PageSize {
			break
		}
	}
	if n := len(page.Items); n > 0 {
		page.NextPageToken = pagination.NextToken(n, filter.PageSize, page.Items[n-1].ID)
	}
	return page, nil
}

func (r memOrders) Update(_ context.Context, order domain.Order, guard repositories.OrderGuard) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(order)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return database.NotFound("orders.update", "order %d not found", order.ID)
	}
	if stored.Status != guard.Status || (guard.PaymentStatus != "" && stored.PaymentStatus != guard.PaymentStatus) {
		return database.Conflict("orders.update", "order %d changed concurrently", order.ID)
	}
	order.Items = stored.Items
	r.orders[order.ID] = order
	return nil
}

func (r memOrders) Delete(_ context.Context, orderID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[orderID]; !ok {
		return database.NotFound("orders.delete", "order %d not found", orderID)
	}
	delete(r.orders, orderID)
	return nil
}

type captureOrderEvents struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *captureOrderEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type logEntry struct {
	event  string
	fields map[string]any
}

type captureLogs struct {
	mu      sync.Mutex
	entries []logEntry
}

func (c *captureLogs) log(_ context.Context, event string, fields map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{event: event, fields: fields})
}

func (c *captureLogs) has(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.event == event {
			return true
		}
	}
	return false
}
