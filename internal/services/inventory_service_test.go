package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

func newInventoryFixture(t *testing.T, products ...domain.Product) (*memStore, InventoryService, *captureLogs) {
	t.Helper()
	store := newMemStore(products...)
	logs := &captureLogs{}
	svc, err := NewInventoryService(InventoryServiceDeps{Products: memProducts{store}, UnitOfWork: store, Logger: logs.log})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	return store, svc, logs
}

func TestInventoryServiceGetAvailable(t *testing.T) {
	inactive := plainProduct(3, "5.00", 9)
	inactive.IsActive = false
	_, svc, _ := newInventoryFixture(t,
		sizedProduct(1, "25.00",
			domain.SizeStock{Size: "M", Stock: 3, Colors: []domain.ColorStock{{Color: "Red", Stock: 1}, {Color: "Blue", Stock: 2}}},
			domain.SizeStock{Size: "L", Stock: 4},
		),
		plainProduct(2, "10.00", 6),
		inactive,
	)
	ctx := context.Background()

	cases := []struct {
		name      string
		productID int64
		size      string
		color     string
		want      int
	}{
		{name: "size", productID: 1, size: "L", want: 4},
		{name: "colour case-insensitive", productID: 1, size: "M", color: "blue", want: 2},
		{name: "size without colour", productID: 1, size: "M", want: 3},
		{name: "unknown size", productID: 1, size: "XS", want: 0},
		{name: "unknown colour", productID: 1, size: "M", color: "green", want: 0},
		{name: "no breakdown", productID: 2, want: 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.GetAvailable(ctx, tc.productID, tc.size, tc.color)
			if err != nil {
				t.Fatalf("get available: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}

	if _, err := svc.GetAvailable(ctx, 3, "", ""); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected inactive product to be not found, got %v", err)
	}
	if _, err := svc.GetAvailable(ctx, 404, "", ""); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected missing product to be not found, got %v", err)
	}
	if _, err := svc.GetAvailable(ctx, 0, "", ""); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestInventoryServiceReserveIsAllOrNothing(t *testing.T) {
	store, svc, _ := newInventoryFixture(t,
		sizedProduct(1, "25.00", domain.SizeStock{Size: "M", Stock: 2}),
		plainProduct(2, "10.00", 1),
	)

	err := store.RunInTx(context.Background(), func(ctx context.Context) error {
		_, err := svc.Reserve(ctx, []StockLine{
			{ProductID: 1, Size: "M", Quantity: 2},
			{ProductID: 2, Quantity: 3},
		})
		return err
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected inventory error, got %T", err)
	}
	if !strings.Contains(invErr.Message, "requested 3, available 1") {
		t.Fatalf("unexpected message %q", invErr.Message)
	}
	if store.product(1).Sizes[0].Stock != 2 || store.product(2).Stock != 1 {
		t.Fatalf("stock must be untouched")
	}
}

func TestInventoryServiceReserveRequiresTransaction(t *testing.T) {
	_, svc, _ := newInventoryFixture(t, plainProduct(1, "10.00", 1))

	if _, err := svc.Reserve(context.Background(), []StockLine{{ProductID: 1, Quantity: 1}}); err == nil {
		t.Fatalf("expected lock outside a transaction to fail")
	}
}

func TestInventoryServiceReserveRejectsBadLines(t *testing.T) {
	_, svc, _ := newInventoryFixture(t, plainProduct(1, "10.00", 1))

	for _, line := range []StockLine{{ProductID: 1, Quantity: 0}, {ProductID: 0, Quantity: 1}} {
		if _, err := svc.Reserve(context.Background(), []StockLine{line}); !errors.Is(err, ErrInventoryInvalidInput) {
			t.Fatalf("line %+v: expected invalid input, got %v", line, err)
		}
	}
}

func TestInventoryServiceReleaseSkipsMissingProduct(t *testing.T) {
	store, svc, logs := newInventoryFixture(t, plainProduct(1, "10.00", 1))

	err := store.RunInTx(context.Background(), func(ctx context.Context) error {
		return svc.Release(ctx, []StockLine{{ProductID: 1, Quantity: 2}, {ProductID: 8, Quantity: 1}})
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.product(1).Stock != 3 {
		t.Fatalf("expected stock 3, got %d", store.product(1).Stock)
	}
	if !logs.has("inventory.release.product_missing") {
		t.Fatalf("expected product_missing log")
	}
}

func TestInventoryServiceReplaceStock(t *testing.T) {
	store, svc, logs := newInventoryFixture(t, plainProduct(1, "10.00", 1))
	ctx := context.Background()

	product, err := svc.ReplaceStock(ctx, ReplaceStockCommand{
		ProductID: 1,
		Stock:     99,
		Sizes: []domain.SizeStock{
			{Size: " S ", Stock: 2},
			{Size: "M", Colors: []domain.ColorStock{{Color: "red", Stock: 1}, {Color: "blue", Stock: 4}}},
		},
		ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("replace stock: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("expected derived aggregate 7, got %d", product.Stock)
	}
	stored := store.product(1)
	if stored.Stock != 7 || stored.Sizes[0].Size != "S" || stored.Sizes[1].Stock != 5 {
		t.Fatalf("unexpected stored product %+v", stored)
	}
	if !logs.has("inventory.stock.replaced") {
		t.Fatalf("expected replaced log")
	}

	_, err = svc.ReplaceStock(ctx, ReplaceStockCommand{ProductID: 1, Stock: -1})
	if !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected negative stock to be rejected, got %v", err)
	}
	if store.product(1).Stock != 7 {
		t.Fatalf("rejected replace must not write")
	}

	if _, err := svc.ReplaceStock(ctx, ReplaceStockCommand{ProductID: 2, Stock: 1}); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNormaliseStockLinesMergesAndSorts(t *testing.T) {
	lines, err := normaliseStockLines([]StockLine{
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Size: "M ", Quantity: 1},
		{ProductID: 1, Size: "M", Quantity: 2},
		{ProductID: 1, Size: "L", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("normalise: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 merged lines, got %+v", lines)
	}
	if lines[0].ProductID != 1 || lines[0].Size != "L" || lines[1].Size != "M" || lines[1].Quantity != 3 || lines[2].ProductID != 2 {
		t.Fatalf("unexpected order %+v", lines)
	}
}
