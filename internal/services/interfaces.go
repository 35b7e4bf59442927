package services

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/storage"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product            = domain.Product
	SizeStock          = domain.SizeStock
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	PaymentStatus      = domain.PaymentStatus
	PaymentMethod      = domain.PaymentMethod
	Shipping           = domain.Shipping
	SystemHealthReport = domain.SystemHealthReport
)

// InventoryService is the product stock ledger. Reserve and Release must be called with a
// context that carries a transaction; they lock the touched product rows first.
type InventoryService interface {
	GetAvailable(ctx context.Context, productID int64, size, color string) (int, error)
	Reserve(ctx context.Context, lines []StockLine) (map[int64]Product, error)
	Release(ctx context.Context, lines []StockLine) error
	ReplaceStock(ctx context.Context, cmd ReplaceStockCommand) (Product, error)
}

// OrderService covers placement and the customer and admin lifecycle actions.
type OrderService interface {
	Place(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID int64, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) error
	Delete(ctx context.Context, cmd DeleteOrderCommand) error
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	MarkReceived(ctx context.Context, cmd OrderActionCommand) (Order, error)
	RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error)
	NotifyFullPayment(ctx context.Context, cmd NotifyFullPaymentCommand) (Order, error)
}

// PaymentService is the admin side payment confirmation tracker.
type PaymentService interface {
	ConfirmPrePayment(ctx context.Context, cmd PaymentActionCommand) (Order, error)
	ConfirmFullPayment(ctx context.Context, cmd PaymentActionCommand) (Order, error)
	ResetToReview(ctx context.Context, cmd PaymentActionCommand) (Order, error)
	SetPaidAmount(ctx context.Context, cmd SetPaidAmountCommand) (Order, error)
}

// DeliveryChargeResolver prices delivery for a shipping city.
type DeliveryChargeResolver interface {
	ChargeFor(city string) decimal.Decimal
}

// OrderExportService renders order listings as spreadsheets.
type OrderExportService interface {
	Export(ctx context.Context, filter OrderListFilter, w io.Writer) (int, error)
}

// EvidenceService issues upload URLs for payment and return evidence images.
type EvidenceService interface {
	IssueUpload(ctx context.Context, cmd EvidenceUploadCommand) (EvidenceUpload, error)
}

// SystemService reports dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Command and DTO definitions ------------------------------------------------

// StockLine is one reservation or release against the ledger.
type StockLine struct {
	ProductID int64
	Quantity  int
	Size      string
	Color     string
}

type ReplaceStockCommand struct {
	ProductID int64
	Stock     int
	Sizes     []SizeStock
	ActorID   string
}

type PlaceOrderItem struct {
	ProductID int64
	Quantity  int
	Size      string
	Color     string
}

type PlaceOrderCommand struct {
	UserID            string
	Items             []PlaceOrderItem
	Shipping          Shipping
	PaymentMethod     PaymentMethod
	PaymentScreenshot *string
	PaidAmount        *decimal.Decimal
}

// OrderReadOptions scopes a read. A non-empty UserID hides orders owned by someone else.
type OrderReadOptions struct {
	UserID string
}

// OrderListFilter is the service level listing query; PageToken is the opaque cursor.
type OrderListFilter struct {
	UserID        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Since         *time.Time
	Until         *time.Time
	PageSize      int
	PageToken     string
}

type CancelOrderCommand struct {
	OrderID int64
	UserID  string
}

type DeleteOrderCommand struct {
	OrderID int64
	ActorID string
}

type UpdateOrderStatusCommand struct {
	OrderID            int64
	Status             OrderStatus
	CancellationReason string
	ActorID            string
}

type OrderActionCommand struct {
	OrderID int64
	UserID  string
}

type RequestReturnCommand struct {
	OrderID     int64
	UserID      string
	Reason      string
	ReturnImage *string
}

type NotifyFullPaymentCommand struct {
	OrderID               int64
	UserID                string
	FullPaymentScreenshot *string
}

type PaymentActionCommand struct {
	OrderID int64
	ActorID string
}

type SetPaidAmountCommand struct {
	OrderID int64
	Amount  decimal.Decimal
	ActorID string
}

type EvidenceUploadCommand struct {
	UserID      string
	Purpose     storage.EvidencePurpose
	ContentType string
	FileName    string
}

// EvidenceUpload is a signed PUT target plus the URL the object will be readable at.
type EvidenceUpload struct {
	UploadID  string
	Object    string
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
	PublicURL string
}
