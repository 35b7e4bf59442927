package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/pagination"
)

const (
	exportSheet    = "orders"
	maxExportRows  = 10000
	exportPageSize = pagination.DefaultMaxPageSize
)

var exportHeader = []any{
	"Order ID", "Created At", "Customer", "Phone", "City", "Status",
	"Payment Method", "Payment Status", "Total", "Paid", "Remaining", "Items",
}

// OrderExportServiceDeps bundles collaborators required to construct the export service.
type OrderExportServiceDeps struct {
	Orders OrderService
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderExportService struct {
	orders OrderService
	logger func(context.Context, string, map[string]any)
}

var _ OrderExportService = (*orderExportService)(nil)

// NewOrderExportService constructs the spreadsheet exporter over the order listing.
func NewOrderExportService(deps OrderExportServiceDeps) (OrderExportService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order export: order service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderExportService{orders: deps.Orders, logger: logger}, nil
}

// Export pages through every order matching filter and writes an xlsx workbook to w. It returns
// the number of order rows written.
func (s *orderExportService) Export(ctx context.Context, filter OrderListFilter, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("order export: %w", err)
	}
	if err := setExportRow(f, 1, exportHeader); err != nil {
		return 0, err
	}

	filter.PageSize = exportPageSize
	filter.PageToken = ""
	rows := 0
	for {
		page, err := s.orders.ListOrders(ctx, filter)
		if err != nil {
			return 0, err
		}
		for _, order := range page.Items {
			if rows >= maxExportRows {
				break
			}
			if err := setExportRow(f, rows+2, exportValues(order)); err != nil {
				return 0, err
			}
			rows++
		}
		if page.NextPageToken == "" || rows >= maxExportRows {
			if page.NextPageToken != "" {
				s.logger(ctx, "order.export.truncated", map[string]any{"rows": rows})
			}
			break
		}
		filter.PageToken = page.NextPageToken
	}

	if err := f.SetColWidth(exportSheet, "A", "L", 16); err != nil {
		return 0, fmt.Errorf("order export: %w", err)
	}
	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("order export: write workbook: %w", err)
	}
	return rows, nil
}

func setExportRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("order export: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
		return fmt.Errorf("order export: row %d: %w", row, err)
	}
	return nil
}

func exportValues(order Order) []any {
	total, _ := order.Total.Float64()
	paid, _ := order.PaidAmount.Float64()
	remaining, _ := order.RemainingAmount().Float64()
	return []any{
		order.ID,
		order.CreatedAt.UTC().Format(time.RFC3339),
		order.Shipping.Name,
		order.Shipping.Phone,
		order.Shipping.City,
		string(order.Status),
		string(order.PaymentMethod),
		string(order.PaymentStatus),
		total,
		paid,
		remaining,
		describeItems(order.Items),
	}
}

func describeItems(items []OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		label := fmt.Sprintf("#%d x%d", item.ProductID, item.Quantity)
		var variant []string
		if size := derefString(item.Size); size != "" {
			variant = append(variant, size)
		}
		if color := derefString(item.Color); color != "" {
			variant = append(variant, color)
		}
		if len(variant) > 0 {
			label += " (" + strings.Join(variant, "/") + ")"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "; ")
}
