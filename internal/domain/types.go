package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	// OrderStatusPending is the state of a freshly placed order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the shop accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped indicates the parcel left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the courier handed over the parcel.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusReceived indicates the customer confirmed receipt.
	OrderStatusReceived OrderStatus = "received"
	// OrderStatusCancelled indicates the order was cancelled by the shop.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusReturned indicates the customer sent the goods back.
	OrderStatusReturned OrderStatus = "returned"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusReceived, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// PaymentStatus tracks how far the shop has verified a payment.
type PaymentStatus string

const (
	// PaymentStatusReview means no payment has been verified yet.
	PaymentStatusReview PaymentStatus = "review"
	// PaymentStatusPreConfirmed means the advance payment was verified.
	PaymentStatusPreConfirmed PaymentStatus = "pre_confirmed"
	// PaymentStatusFullConfirmed means the whole order value was verified.
	PaymentStatusFullConfirmed PaymentStatus = "full_confirmed"
)

// Valid reports whether the payment status is known.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusReview, PaymentStatusPreConfirmed, PaymentStatusFullConfirmed:
		return true
	}
	return false
}

// PaymentMethod describes how the customer pays.
type PaymentMethod string

const (
	// PaymentMethodCOD is cash on delivery.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodOnline is a transfer evidenced by a screenshot.
	PaymentMethodOnline PaymentMethod = "online"
)

// Valid reports whether the payment method is supported.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodOnline
}

// ColorStock is the stock of a single colour within a size.
type ColorStock struct {
	Color string `json:"color"`
	Stock int    `json:"stock"`
}

// SizeStock is the stock of a single size, optionally split by colour.
type SizeStock struct {
	Size   string       `json:"size"`
	Stock  int          `json:"stock"`
	Colors []ColorStock `json:"colors,omitempty"`
}

// Product is a sellable catalog entry. Stock is derived from Sizes when Sizes is non-empty.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	Sizes       []SizeStock
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Shipping is the delivery snapshot captured at placement.
type Shipping struct {
	Name    string
	Phone   string
	Address string
	City    string
	State   *string
	Zip     *string
}

// Order is the order aggregate including its line items.
type Order struct {
	ID                    int64
	UserID                string
	Status                OrderStatus
	Total                 decimal.Decimal
	DeliveryCharge        decimal.Decimal
	Shipping              Shipping
	PaymentMethod         PaymentMethod
	PaymentScreenshot     *string
	FullPaymentScreenshot *string
	PaidAmount            decimal.Decimal
	PaymentStatus         PaymentStatus
	FullPaymentNotified   bool
	CancellationReason    *string
	ReturnReason          *string
	ReturnImage           *string
	ReceivedAt            *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Items                 []OrderItem
}

// RemainingAmount returns what is still owed, never negative.
func (o Order) RemainingAmount() decimal.Decimal {
	remaining := o.Total.Sub(o.PaidAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// OrderItem is an immutable order line with the unit price captured at placement.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
	Size      *string
	Color     *string
}

// LineTotal is the unit price multiplied by quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CursorPage represents a paginated result set with an optional next page token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
