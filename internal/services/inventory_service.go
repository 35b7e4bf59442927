package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInsufficientStock indicates the requested quantity exceeds availability.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrProductNotFound indicates the product does not exist or is not on sale.
	ErrProductNotFound = errors.New("inventory: product not found")
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Products   repositories.ProductRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products   repositories.ProductRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		products:   deps.Products,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) GetAvailable(ctx context.Context, productID int64, size, color string) (int, error) {
	if productID <= 0 {
		return 0, fmt.Errorf("%w: product id must be positive", ErrInventoryInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}
	if !product.IsActive {
		return 0, fmt.Errorf("%w: product %d is not active", ErrProductNotFound, productID)
	}
	return product.Available(strings.TrimSpace(size), strings.TrimSpace(color)), nil
}

// Reserve locks every product referenced by lines, checks the summed quantity per
// product/size/colour against what is available and writes the decremented breakdown back.
// Nothing is written unless every line fits. The returned products carry the stored price.
func (s *inventoryService) Reserve(ctx context.Context, lines []StockLine) (map[int64]Product, error) {
	normalised, err := normaliseStockLines(lines)
	if err != nil {
		return nil, err
	}

	locked, err := s.products.LockForUpdate(ctx, stockLineProductIDs(normalised))
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	for _, line := range normalised {
		product, ok := locked[line.ProductID]
		if !ok || !product.IsActive {
			invErr := repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, line.ProductID,
				fmt.Sprintf("product %d not found", line.ProductID), nil)
			return nil, fmt.Errorf("%w: %w", ErrProductNotFound, invErr)
		}
		available := product.Available(line.Size, line.Color)
		if err := product.Reserve(line.Size, line.Color, line.Quantity); err != nil {
			if errors.Is(err, domain.ErrStockInsufficient) {
				invErr := repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, line.ProductID,
					insufficientMessage(product, line, available), err)
				return nil, fmt.Errorf("%w: %w", ErrInsufficientStock, invErr)
			}
			invErr := repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, line.ProductID, err.Error(), err)
			return nil, fmt.Errorf("%w: %w", ErrInventoryInvalidInput, invErr)
		}
		locked[line.ProductID] = product
	}

	if err := s.persist(ctx, locked, stockLineProductIDs(normalised)); err != nil {
		return nil, err
	}
	return locked, nil
}

// Release returns quantities to the ledger. Products that disappeared are skipped and sizes that
// no longer exist leave the breakdown untouched; both are logged rather than failing the caller.
func (s *inventoryService) Release(ctx context.Context, lines []StockLine) error {
	normalised, err := normaliseStockLines(lines)
	if err != nil {
		return err
	}
	if len(normalised) == 0 {
		return nil
	}

	locked, err := s.products.LockForUpdate(ctx, stockLineProductIDs(normalised))
	if err != nil {
		return s.mapRepositoryError(err)
	}

	touched := make([]int64, 0, len(locked))
	for _, line := range normalised {
		product, ok := locked[line.ProductID]
		if !ok {
			s.logger(ctx, "inventory.release.product_missing", map[string]any{
				"productId": line.ProductID,
				"quantity":  line.Quantity,
			})
			continue
		}
		found, err := product.Release(line.Size, line.Color, line.Quantity)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInventoryInvalidInput, err)
		}
		if !found {
			s.logger(ctx, "inventory.release.size_missing", map[string]any{
				"productId": line.ProductID,
				"size":      line.Size,
				"quantity":  line.Quantity,
			})
		}
		locked[line.ProductID] = product
		touched = append(touched, line.ProductID)
	}

	return s.persist(ctx, locked, touched)
}

func (s *inventoryService) ReplaceStock(ctx context.Context, cmd ReplaceStockCommand) (Product, error) {
	if cmd.ProductID <= 0 {
		return Product{}, fmt.Errorf("%w: product id must be positive", ErrInventoryInvalidInput)
	}

	var updated Product
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.products.LockForUpdate(txCtx, []int64{cmd.ProductID})
		if err != nil {
			return s.mapRepositoryError(err)
		}
		product, ok := locked[cmd.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %d not found", ErrProductNotFound, cmd.ProductID)
		}
		if err := product.ReplaceStock(cmd.Stock, cmd.Sizes); err != nil {
			return fmt.Errorf("%w: %v", ErrInventoryInvalidInput, err)
		}
		if err := s.products.UpdateStock(txCtx, product); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = product
		return nil
	})
	if err != nil {
		return Product{}, err
	}

	s.logger(ctx, "inventory.stock.replaced", map[string]any{
		"productId": updated.ID,
		"stock":     updated.Stock,
		"sizes":     len(updated.Sizes),
		"actor":     strings.TrimSpace(cmd.ActorID),
	})
	updated.UpdatedAt = s.clock()
	return updated, nil
}

func (s *inventoryService) persist(ctx context.Context, products map[int64]Product, ids []int64) error {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		product, ok := products[id]
		if !ok {
			continue
		}
		if err := s.products.UpdateStock(ctx, product); err != nil {
			return s.mapRepositoryError(err)
		}
	}
	return nil
}

func (s *inventoryService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *inventoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("inventory: repository unavailable: %w", err)
		}
	}
	return err
}

// normaliseStockLines validates lines and merges those addressing the same product, size and
// colour. The result is sorted so locks and checks run in a stable order.
func normaliseStockLines(lines []StockLine) ([]StockLine, error) {
	type key struct {
		productID int64
		size      string
		color     string
	}
	merged := make(map[key]int, len(lines))
	for _, line := range lines {
		if line.ProductID <= 0 {
			return nil, fmt.Errorf("%w: product id must be positive", ErrInventoryInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %d must be positive", ErrInventoryInvalidInput, line.ProductID)
		}
		k := key{productID: line.ProductID, size: strings.TrimSpace(line.Size), color: strings.TrimSpace(line.Color)}
		merged[k] += line.Quantity
	}

	out := make([]StockLine, 0, len(merged))
	for k, qty := range merged {
		out = append(out, StockLine{ProductID: k.productID, Size: k.size, Color: k.color, Quantity: qty})
	}
	slices.SortFunc(out, func(a, b StockLine) int {
		return cmp.Or(
			cmp.Compare(a.ProductID, b.ProductID),
			cmp.Compare(a.Size, b.Size),
			cmp.Compare(a.Color, b.Color),
		)
	})
	return out, nil
}

func stockLineProductIDs(lines []StockLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func insufficientMessage(product Product, line StockLine, available int) string {
	label := product.Name
	if label == "" {
		label = fmt.Sprintf("product %d", product.ID)
	}
	if line.Size != "" {
		label += " (size " + line.Size
		if line.Color != "" {
			label += ", " + line.Color
		}
		label += ")"
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", label, line.Quantity, available)
}
