package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/idempotency"
)

// Each migration declares the row shape it introduces. The structs are frozen at the version
// they were written for; the live models in models.go carry the cumulative schema.

type productV1 struct {
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

func (productV1) TableName() string { return "products" }

type orderV2 struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement"`
	UserID             string          `gorm:"size:64;not null;index"`
	Status             string          `gorm:"size:20;not null;index"`
	Total              decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DeliveryCharge     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ShippingName       string          `gorm:"size:255;not null"`
	ShippingPhone      string          `gorm:"size:64;not null"`
	ShippingAddress    string          `gorm:"size:512;not null"`
	ShippingCity       string          `gorm:"size:120;not null"`
	ShippingState      *string         `gorm:"size:120"`
	ShippingZip        *string         `gorm:"size:32"`
	PaymentMethod      string          `gorm:"size:16;not null"`
	PaymentScreenshot  *string         `gorm:"size:1024"`
	CancellationReason *string         `gorm:"size:500"`
	CreatedAt          time.Time       `gorm:"index"`
	UpdatedAt          time.Time
}

func (orderV2) TableName() string { return "orders" }

type orderItemV3 struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	OrderID   int64           `gorm:"not null;index"`
	ProductID int64           `gorm:"not null;index"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Size      *string         `gorm:"size:64"`
	Color     *string         `gorm:"size:64"`
}

func (orderItemV3) TableName() string { return "order_items" }

type orderPaymentV4 struct {
	FullPaymentScreenshot *string         `gorm:"size:1024"`
	PaidAmount            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaymentStatus         string          `gorm:"size:20;not null;default:review;index"`
	FullPaymentNotified   bool            `gorm:"not null;default:false"`
}

func (orderPaymentV4) TableName() string { return "orders" }

type orderReturnV5 struct {
	ReturnReason *string `gorm:"size:500"`
	ReturnImage  *string `gorm:"size:1024"`
	ReceivedAt   *time.Time
}

func (orderReturnV5) TableName() string { return "orders" }

// Migrations is the ordered schema history.
func Migrations() []database.Migration {
	return []database.Migration{
		{Version: 1, Name: "create_products", Up: func(tx *gorm.DB) error {
			return tx.Migrator().CreateTable(&productV1{})
		}},
		{Version: 2, Name: "create_orders", Up: func(tx *gorm.DB) error {
			return tx.Migrator().CreateTable(&orderV2{})
		}},
		{Version: 3, Name: "create_order_items", Up: func(tx *gorm.DB) error {
			return tx.Migrator().CreateTable(&orderItemV3{})
		}},
		{Version: 4, Name: "order_payment_tracking", Up: func(tx *gorm.DB) error {
			if err := addColumns(tx, &orderPaymentV4{}, "FullPaymentScreenshot", "PaidAmount", "PaymentStatus", "FullPaymentNotified"); err != nil {
				return err
			}
			if tx.Migrator().HasIndex(&orderPaymentV4{}, "PaymentStatus") {
				return nil
			}
			return tx.Migrator().CreateIndex(&orderPaymentV4{}, "PaymentStatus")
		}},
		{Version: 5, Name: "order_receipt_and_return", Up: func(tx *gorm.DB) error {
			return addColumns(tx, &orderReturnV5{}, "ReturnReason", "ReturnImage", "ReceivedAt")
		}},
		{Version: 6, Name: "create_idempotency_keys", Up: func(tx *gorm.DB) error {
			return tx.Migrator().CreateTable(&idempotency.KeyRow{})
		}},
	}
}

// addColumns adds the named fields of model that the table does not have yet.
func addColumns(tx *gorm.DB, model any, fields ...string) error {
	m := tx.Migrator()
	for _, field := range fields {
		if m.HasColumn(model, field) {
			continue
		}
		if err := m.AddColumn(model, field); err != nil {
			return err
		}
	}
	return nil
}

// NewMigrator builds the schema migrator for db.
func NewMigrator(db *gorm.DB, opts ...database.MigratorOption) (*database.Migrator, error) {
	return database.NewMigrator(db, Migrations(), opts...)
}
