//go:build integration

package sqlstore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

func openIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("API_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("API_TEST_DATABASE_DSN not set")
	}
	driver := os.Getenv("API_TEST_DATABASE_DRIVER")
	if driver == "" {
		driver = "mysql"
	}
	dialector, err := database.Dialector(driver, dsn)
	require.NoError(t, err)
	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	m, err := NewMigrator(db)
	require.NoError(t, err)
	_, err = m.Up(context.Background())
	require.NoError(t, err)

	// second run must be a no-op
	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	require.Empty(t, applied)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int, sizes []domain.SizeStock) domain.Product {
	t.Helper()
	encoded, err := domain.EncodeSizes(sizes)
	require.NoError(t, err)
	row := ProductRow{Name: "Linen shirt", Price: decimal.RequireFromString("25.00"), Stock: stock, Sizes: encoded, IsActive: true}
	require.NoError(t, db.Create(&row).Error)
	return row.toDomain()
}

func TestRepositoriesIntegration(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	products := NewProductRepository(db)
	orders := NewOrderRepository(db)

	product := seedProduct(t, db, 5, []domain.SizeStock{{Size: "M", Stock: 5}})

	err := database.RunInTx(ctx, db, func(ctx context.Context) error {
		locked, err := products.LockForUpdate(ctx, []int64{product.ID})
		if err != nil {
			return err
		}
		p := locked[product.ID]
		if err := p.Reserve("M", "", 2); err != nil {
			return err
		}
		return products.UpdateStock(ctx, p)
	})
	require.NoError(t, err)

	stored, err := products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.Stock)
	require.Equal(t, 3, stored.Sizes[0].Stock)

	size := "M"
	placed, err := orders.Insert(ctx, domain.Order{
		UserID:        "it-user",
		Status:        domain.OrderStatusPending,
		Total:         decimal.RequireFromString("50.00"),
		Shipping:      domain.Shipping{Name: "A", Phone: "1", Address: "Street 1", City: "Kathmandu"},
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusReview,
		PaidAmount:    decimal.Zero,
		Items:         []domain.OrderItem{{ProductID: product.ID, Quantity: 2, Price: product.Price, Size: &size}},
	})
	require.NoError(t, err)
	require.NotZero(t, placed.ID)
	require.Len(t, placed.Items, 1)
	require.Equal(t, placed.ID, placed.Items[0].OrderID)

	placed.Status = domain.OrderStatusConfirmed
	require.NoError(t, orders.Update(ctx, placed, repositories.OrderGuard{Status: domain.OrderStatusPending}))

	placed.Status = domain.OrderStatusCancelled
	err = orders.Update(ctx, placed, repositories.OrderGuard{Status: domain.OrderStatusPending})
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	require.True(t, repoErr.IsConflict())

	page, err := orders.List(ctx, repositories.OrderListFilter{UserID: "it-user", PageSize: 10})
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)
	require.Equal(t, domain.OrderStatusConfirmed, page.Items[0].Status)

	require.NoError(t, orders.Delete(ctx, placed.ID))
	_, err = orders.FindByID(ctx, placed.ID)
	require.True(t, errors.As(err, &repoErr))
	require.True(t, repoErr.IsNotFound())
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	db := openIntegrationDB(t)
	products := NewProductRepository(db)
	product := seedProduct(t, db, 1, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := database.RunInTx(context.Background(), db, func(ctx context.Context) error {
				locked, err := products.LockForUpdate(ctx, []int64{product.ID})
				if err != nil {
					return err
				}
				p := locked[product.ID]
				if err := p.Reserve("", "", 1); err != nil {
					return err
				}
				return products.UpdateStock(ctx, p)
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	stored, err := products.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Stock)
}
