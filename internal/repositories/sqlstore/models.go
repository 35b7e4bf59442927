package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
)

// ProductRow is the products table. Sizes holds the JSON encoded size breakdown.
type ProductRow struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	Name        string          `gorm:"size:255;not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Category    string          `gorm:"size:120;index"`
	Stock       int             `gorm:"not null;default:0"`
	Sizes       string          `gorm:"type:text"`
	IsActive    bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ProductRow) TableName() string { return "products" }

func (r ProductRow) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Stock:       r.Stock,
		Sizes:       domain.ParseSizes(r.Sizes),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// OrderRow is the orders table.
type OrderRow struct {
	ID                    int64           `gorm:"primaryKey;autoIncrement"`
	UserID                string          `gorm:"size:64;not null;index"`
	Status                string          `gorm:"size:20;not null;index"`
	Total                 decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DeliveryCharge        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ShippingName          string          `gorm:"size:255;not null"`
	ShippingPhone         string          `gorm:"size:64;not null"`
	ShippingAddress       string          `gorm:"size:512;not null"`
	ShippingCity          string          `gorm:"size:120;not null"`
	ShippingState         *string         `gorm:"size:120"`
	ShippingZip           *string         `gorm:"size:32"`
	PaymentMethod         string          `gorm:"size:16;not null"`
	PaymentScreenshot     *string         `gorm:"size:1024"`
	FullPaymentScreenshot *string         `gorm:"size:1024"`
	PaidAmount            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaymentStatus         string          `gorm:"size:20;not null;default:review;index"`
	FullPaymentNotified   bool            `gorm:"not null;default:false"`
	CancellationReason    *string         `gorm:"size:500"`
	ReturnReason          *string         `gorm:"size:500"`
	ReturnImage           *string         `gorm:"size:1024"`
	ReceivedAt            *time.Time
	CreatedAt             time.Time `gorm:"index"`
	UpdatedAt             time.Time
	Items                 []OrderItemRow `gorm:"foreignKey:OrderID"`
}

func (OrderRow) TableName() string { return "orders" }

// OrderItemRow is the order_items table.
type OrderItemRow struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	OrderID   int64           `gorm:"not null;index"`
	ProductID int64           `gorm:"not null;index"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Size      *string         `gorm:"size:64"`
	Color     *string         `gorm:"size:64"`
}

func (OrderItemRow) TableName() string { return "order_items" }

func orderRowFromDomain(o domain.Order) OrderRow {
	row := OrderRow{
		ID:                    o.ID,
		UserID:                o.UserID,
		Status:                string(o.Status),
		Total:                 o.Total,
		DeliveryCharge:        o.DeliveryCharge,
		ShippingName:          o.Shipping.Name,
		ShippingPhone:         o.Shipping.Phone,
		ShippingAddress:       o.Shipping.Address,
		ShippingCity:          o.Shipping.City,
		ShippingState:         o.Shipping.State,
		ShippingZip:           o.Shipping.Zip,
		PaymentMethod:         string(o.PaymentMethod),
		PaymentScreenshot:     o.PaymentScreenshot,
		FullPaymentScreenshot: o.FullPaymentScreenshot,
		PaidAmount:            o.PaidAmount,
		PaymentStatus:         string(o.PaymentStatus),
		FullPaymentNotified:   o.FullPaymentNotified,
		CancellationReason:    o.CancellationReason,
		ReturnReason:          o.ReturnReason,
		ReturnImage:           o.ReturnImage,
		ReceivedAt:            o.ReceivedAt,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
	for _, item := range o.Items {
		row.Items = append(row.Items, OrderItemRow{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	return row
}

func (r OrderRow) toDomain() domain.Order {
	order := domain.Order{
		ID:             r.ID,
		UserID:         r.UserID,
		Status:         domain.OrderStatus(r.Status),
		Total:          r.Total,
		DeliveryCharge: r.DeliveryCharge,
		Shipping: domain.Shipping{
			Name:    r.ShippingName,
			Phone:   r.ShippingPhone,
			Address: r.ShippingAddress,
			City:    r.ShippingCity,
			State:   r.ShippingState,
			Zip:     r.ShippingZip,
		},
		PaymentMethod:         domain.PaymentMethod(r.PaymentMethod),
		PaymentScreenshot:     r.PaymentScreenshot,
		FullPaymentScreenshot: r.FullPaymentScreenshot,
		PaidAmount:            r.PaidAmount,
		PaymentStatus:         domain.PaymentStatus(r.PaymentStatus),
		FullPaymentNotified:   r.FullPaymentNotified,
		CancellationReason:    r.CancellationReason,
		ReturnReason:          r.ReturnReason,
		ReturnImage:           r.ReturnImage,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	if r.ReceivedAt != nil {
		received := r.ReceivedAt.UTC()
		order.ReceivedAt = &received
	}
	order.Items = make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	return order
}

// mutableOrderColumns are the columns Update may change. Items, owner, totals and
// the shipping snapshot are fixed at placement.
func mutableOrderColumns(o domain.Order) map[string]any {
	return map[string]any{
		"status":                  string(o.Status),
		"payment_screenshot":      o.PaymentScreenshot,
		"full_payment_screenshot": o.FullPaymentScreenshot,
		"paid_amount":             o.PaidAmount,
		"payment_status":          string(o.PaymentStatus),
		"full_payment_notified":   o.FullPaymentNotified,
		"cancellation_reason":     o.CancellationReason,
		"return_reason":           o.ReturnReason,
		"return_image":            o.ReturnImage,
		"received_at":             o.ReceivedAt,
		"updated_at":              o.UpdatedAt,
	}
}
