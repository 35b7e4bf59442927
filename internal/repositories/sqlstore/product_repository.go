package sqlstore

import (
	"context"
	"errors"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

var errTxRequired = errors.New("row locks require a transaction")

type productRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ repositories.ProductRepository = (*productRepository)(nil)

// NewProductRepository returns the gorm ProductRepository.
func NewProductRepository(db *gorm.DB) repositories.ProductRepository {
	return &productRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *productRepository) FindByID(ctx context.Context, productID int64) (domain.Product, error) {
	var row ProductRow
	if err := database.Conn(ctx, r.db).Where("id = ?", productID).Take(&row).Error; err != nil {
		return domain.Product{}, database.WrapError("products.find", err)
	}
	return row.toDomain(), nil
}

func (r *productRepository) LockForUpdate(ctx context.Context, productIDs []int64) (map[int64]domain.Product, error) {
	if _, ok := database.TxFromContext(ctx); !ok {
		return nil, database.WrapError("products.lock", errTxRequired)
	}
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return map[int64]domain.Product{}, nil
	}

	var rows []ProductRow
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, database.WrapError("products.lock", err)
	}
	out := make(map[int64]domain.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row.toDomain()
	}
	return out, nil
}

func (r *productRepository) UpdateStock(ctx context.Context, product domain.Product) error {
	sizes, err := domain.EncodeSizes(product.Sizes)
	if err != nil {
		return database.WrapError("products.update_stock", err)
	}
	res := database.Conn(ctx, r.db).Model(&ProductRow{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"stock":      product.Stock,
			"sizes":      sizes,
			"updated_at": r.now(),
		})
	return database.WrapError("products.update_stock", res.Error)
}
