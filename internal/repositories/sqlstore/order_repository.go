package sqlstore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/pagination"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

type orderRepository struct {
	db *gorm.DB
}

var _ repositories.OrderRepository = (*orderRepository)(nil)

// NewOrderRepository returns the gorm OrderRepository.
func NewOrderRepository(db *gorm.DB) repositories.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	row := orderRowFromDomain(order)
	row.ID = 0
	for i := range row.Items {
		row.Items[i].ID = 0
		row.Items[i].OrderID = 0
	}
	if err := database.Conn(ctx, r.db).Create(&row).Error; err != nil {
		return domain.Order{}, database.WrapError("orders.insert", err)
	}
	return row.toDomain(), nil
}

func (r *orderRepository) FindByID(ctx context.Context, orderID int64) (domain.Order, error) {
	var row OrderRow
	err := database.Conn(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", orderID).
		Take(&row).Error
	if err != nil {
		return domain.Order{}, database.WrapError("orders.find", err)
	}
	return row.toDomain(), nil
}

func (r *orderRepository) LockForUpdate(ctx context.Context, orderID int64) (domain.Order, error) {
	if _, ok := database.TxFromContext(ctx); !ok {
		return domain.Order{}, database.WrapError("orders.lock", errTxRequired)
	}
	conn := database.Conn(ctx, r.db)
	var row OrderRow
	if err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID).Take(&row).Error; err != nil {
		return domain.Order{}, database.WrapError("orders.lock", err)
	}
	if err := conn.Where("order_id = ?", orderID).Order("id ASC").Find(&row.Items).Error; err != nil {
		return domain.Order{}, database.WrapError("orders.lock", err)
	}
	return row.toDomain(), nil
}

func (r *orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	var rows []OrderRow
	err := applyOrderFilter(database.Conn(ctx, r.db).Model(&OrderRow{}), filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id DESC").
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return domain.CursorPage[domain.Order]{}, database.WrapError("orders.list", err)
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(rows))}
	for _, row := range rows {
		page.Items = append(page.Items, row.toDomain())
	}
	if len(rows) > 0 {
		page.NextPageToken = pagination.NextToken(len(rows), pageSize, rows[len(rows)-1].ID)
	}
	return page, nil
}

func applyOrderFilter(q *gorm.DB, filter repositories.OrderListFilter) *gorm.DB {
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.PaymentStatus != "" {
		q = q.Where("payment_status = ?", string(filter.PaymentStatus))
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", filter.Since.UTC())
	}
	if filter.Until != nil {
		q = q.Where("created_at < ?", filter.Until.UTC())
	}
	if filter.AfterID > 0 {
		q = q.Where("id < ?", filter.AfterID)
	}
	return q
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order, guard repositories.OrderGuard) error {
	conn := database.Conn(ctx, r.db)
	q := conn.Model(&OrderRow{}).Where("id = ? AND status = ?", order.ID, string(guard.Status))
	if guard.PaymentStatus != "" {
		q = q.Where("payment_status = ?", string(guard.PaymentStatus))
	}
	res := q.Updates(mutableOrderColumns(order))
	if res.Error != nil {
		return database.WrapError("orders.update", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero rows when the values did not change, so re-read before calling it a conflict.
	var current OrderRow
	if err := conn.Select("id", "status", "payment_status").Where("id = ?", order.ID).Take(&current).Error; err != nil {
		return database.WrapError("orders.update", err)
	}
	if current.Status == string(guard.Status) && (guard.PaymentStatus == "" || current.PaymentStatus == string(guard.PaymentStatus)) {
		return nil
	}
	return database.Conflict("orders.update", "order %d changed concurrently (status %s, payment %s)", order.ID, current.Status, current.PaymentStatus)
}

func (r *orderRepository) Delete(ctx context.Context, orderID int64) error {
	conn := database.Conn(ctx, r.db)
	if err := conn.Where("order_id = ?", orderID).Delete(&OrderItemRow{}).Error; err != nil {
		return database.WrapError("orders.delete", err)
	}
	res := conn.Where("id = ?", orderID).Delete(&OrderRow{})
	if res.Error != nil {
		return database.WrapError("orders.delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return database.NotFound("orders.delete", "order %d not found", orderID)
	}
	return nil
}
