package sqlstore

import (
	"context"
	"errors"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

// Registry implements repositories.Registry on one gorm connection pool.
type Registry struct {
	provider *database.Provider
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds repositories over provider. health may be nil when readiness probes are not wired.
func NewRegistry(provider *database.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil || provider.DB() == nil {
		return nil, errors.New("sqlstore: database provider is required")
	}
	db := provider.DB()
	return &Registry{
		provider: provider,
		products: NewProductRepository(db),
		orders:   NewOrderRepository(db),
		health:   health,
	}, nil
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Health() repositories.HealthRepository    { return r.health }

// RunInTx implements repositories.UnitOfWork.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn)
}

// Close releases the connection pool.
func (r *Registry) Close(context.Context) error {
	return r.provider.Close()
}
