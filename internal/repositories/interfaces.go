package repositories

import (
	"context"
	"time"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
)

// Registry exposes typed repository accessors for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Orders() OrderRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository calls in one transaction. Calls made with the ctx passed to fn join it.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository reads products and persists their stock breakdown.
type ProductRepository interface {
	FindByID(ctx context.Context, productID int64) (domain.Product, error)
	// LockForUpdate row-locks the products in ascending id order and returns them keyed by id.
	// Ids that do not exist are absent from the map. Must run inside a transaction.
	LockForUpdate(ctx context.Context, productIDs []int64) (map[int64]domain.Product, error)
	// UpdateStock writes the aggregate stock and size breakdown of product.
	UpdateStock(ctx context.Context, product domain.Product) error
}

// OrderGuard is the state an order must still be in for a conditional update to apply.
// An empty PaymentStatus is not checked.
type OrderGuard struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
}

// OrderListFilter narrows order listings. Results are ordered by descending id.
type OrderListFilter struct {
	UserID        string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Since         *time.Time
	Until         *time.Time
	PageSize      int
	AfterID       int64
}

// OrderRepository persists orders together with their items.
type OrderRepository interface {
	// Insert stores the order and its items and returns them with ids assigned.
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID int64) (domain.Order, error)
	// LockForUpdate reads the order with a row lock. Must run inside a transaction.
	LockForUpdate(ctx context.Context, orderID int64) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// Update writes the mutable order fields only while the stored row still matches guard.
	// A mismatch is reported as a conflict RepositoryError.
	Update(ctx context.Context, order domain.Order, guard OrderGuard) error
	// Delete removes the order and its items.
	Delete(ctx context.Context, orderID int64) error
}

// HealthRepository exposes status of downstream dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
