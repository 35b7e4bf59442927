package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/httpx"
	"github.com/kumarpun/fit-theory-sub000/internal/services"
)

const maxStockBodySize = 64 * 1024

type replaceStockRequest struct {
	Stock *int               `json:"stock" validate:"omitempty,min=0"`
	Sizes []sizeStockRequest `json:"sizes" validate:"omitempty,dive"`
}

type sizeStockRequest struct {
	Size   string              `json:"size" validate:"required,max=40"`
	Stock  int                 `json:"stock" validate:"min=0"`
	Colors []colorStockRequest `json:"colors" validate:"omitempty,dive"`
}

type colorStockRequest struct {
	Color string `json:"color" validate:"required,max=40"`
	Stock int    `json:"stock" validate:"min=0"`
}

// ProductHandlers exposes stock availability and the admin restock path.
type ProductHandlers struct {
	inventory services.InventoryService
}

// NewProductHandlers constructs product handlers over the stock ledger.
func NewProductHandlers(inventory services.InventoryService) *ProductHandlers {
	return &ProductHandlers{inventory: inventory}
}

// Routes registers the public /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{productID}/availability", h.availability)
}

// AdminRoutes registers the restock endpoint under the admin group.
func (h *ProductHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Put("/products/{productID}/stock", h.replaceStock)
}

func (h *ProductHandlers) availability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	productID, ok := pathID(w, r, "productID", "product")
	if !ok {
		return
	}
	query := r.URL.Query()
	size := strings.TrimSpace(query.Get("size"))
	color := strings.TrimSpace(query.Get("color"))

	available, err := h.inventory.GetAvailable(ctx, productID, size, color)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", map[string]any{
		"productId": productID,
		"size":      size,
		"color":     color,
		"available": available,
	})
}

func (h *ProductHandlers) replaceStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	productID, ok := pathID(w, r, "productID", "product")
	if !ok {
		return
	}

	var req replaceStockRequest
	if !decodeBody(w, r, maxStockBodySize, &req) {
		return
	}
	if req.Stock == nil && len(req.Sizes) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stock or sizes is required", http.StatusBadRequest))
		return
	}

	cmd := services.ReplaceStockCommand{ProductID: productID, ActorID: actorID(r)}
	if req.Stock != nil {
		cmd.Stock = *req.Stock
	}
	for _, entry := range req.Sizes {
		size := domain.SizeStock{Size: entry.Size, Stock: entry.Stock}
		for _, c := range entry.Colors {
			size.Colors = append(size.Colors, domain.ColorStock{Color: c.Color, Stock: c.Stock})
		}
		cmd.Sizes = append(cmd.Sizes, size)
	}

	product, err := h.inventory.ReplaceStock(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	sizes := product.Sizes
	if sizes == nil {
		sizes = []domain.SizeStock{}
	}
	httpx.WriteSuccess(w, http.StatusOK, "Stock updated", map[string]any{
		"product": map[string]any{
			"id":    product.ID,
			"stock": product.Stock,
			"sizes": sizes,
		},
	})
}
