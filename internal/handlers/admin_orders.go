package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/auth"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/httpx"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/pagination"
	"github.com/kumarpun/fit-theory-sub000/internal/services"
)

const (
	maxAdminOrderBodySize = 8 * 1024
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// adminOrderRequest carries exactly one admin mutation group: payment status, paid amount or status.
type adminOrderRequest struct {
	PaymentStatus      *string          `json:"paymentStatus" validate:"omitempty,oneof=review pre_confirmed full_confirmed"`
	PaidAmount         *decimal.Decimal `json:"paidAmount"`
	Status             *string          `json:"status" validate:"omitempty,oneof=pending confirmed shipped delivered cancelled returned"`
	CancellationReason string           `json:"cancellationReason"`
}

func (r adminOrderRequest) groups() int {
	n := 0
	for _, present := range []bool{r.PaymentStatus != nil, r.PaidAmount != nil, r.Status != nil} {
		if present {
			n++
		}
	}
	return n
}

// AdminOrderHandlers exposes /admin/orders.
type AdminOrderHandlers struct {
	orders   services.OrderService
	payments services.PaymentService
	exporter services.OrderExportService
	clock    func() time.Time
}

// NewAdminOrderHandlers constructs the admin order handlers. exporter may be nil.
func NewAdminOrderHandlers(orders services.OrderService, payments services.PaymentService, exporter services.OrderExportService) *AdminOrderHandlers {
	return &AdminOrderHandlers{
		orders:   orders,
		payments: payments,
		exporter: exporter,
		clock:    time.Now,
	}
}

// Routes registers the admin order endpoints. Callers mount it behind admin authentication.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/export", h.exportOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Put("/orders/{orderID}", h.updateOrder)
	r.Delete("/orders/{orderID}", h.deleteOrder)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	filter, err := adminListFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.PageSize = params.PageSize
	filter.PageToken = params.PageToken

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeOrderPage(w, page)
}

func (h *AdminOrderHandlers) exportOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.exporter == nil {
		httpx.WriteError(ctx, w, httpx.NewError("export_unavailable", "order export unavailable", http.StatusServiceUnavailable))
		return
	}
	filter, err := adminListFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var buf bytes.Buffer
	rows, err := h.exporter.Export(ctx, filter, &buf)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	filename := fmt.Sprintf("orders-%s.xlsx", h.clock().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Export-Rows", fmt.Sprintf("%d", rows))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	orderID, ok := pathID(w, r, "orderID", "order")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(ctx, orderID, services.OrderReadOptions{})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", map[string]any{"order": buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil || h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	orderID, ok := pathID(w, r, "orderID", "order")
	if !ok {
		return
	}

	var req adminOrderRequest
	if !decodeBody(w, r, maxAdminOrderBodySize, &req) {
		return
	}
	if groups := req.groups(); groups > 1 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "send only one of paymentStatus, paidAmount or status per request", http.StatusBadRequest))
		return
	}
	actor := actorID(r)

	var (
		order   services.Order
		err     error
		message string
	)
	switch {
	case req.PaymentStatus != nil:
		cmd := services.PaymentActionCommand{OrderID: orderID, ActorID: actor}
		switch domain.PaymentStatus(*req.PaymentStatus) {
		case domain.PaymentStatusPreConfirmed:
			order, err = h.payments.ConfirmPrePayment(ctx, cmd)
		case domain.PaymentStatusFullConfirmed:
			order, err = h.payments.ConfirmFullPayment(ctx, cmd)
		default:
			order, err = h.payments.ResetToReview(ctx, cmd)
		}
		message = "Payment status updated"
	case req.PaidAmount != nil:
		order, err = h.payments.SetPaidAmount(ctx, services.SetPaidAmountCommand{
			OrderID: orderID,
			Amount:  *req.PaidAmount,
			ActorID: actor,
		})
		message = "Paid amount updated"
	case req.Status != nil:
		order, err = h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
			OrderID:            orderID,
			Status:             services.OrderStatus(*req.Status),
			CancellationReason: req.CancellationReason,
			ActorID:            actor,
		})
		message = "Order status updated"
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "one of paymentStatus, paidAmount or status is required", http.StatusBadRequest))
		return
	}
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, message, map[string]any{"order": buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	orderID, ok := pathID(w, r, "orderID", "order")
	if !ok {
		return
	}
	if err := h.orders.Delete(ctx, services.DeleteOrderCommand{OrderID: orderID, ActorID: actorID(r)}); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Order deleted successfully", nil)
}

func adminListFilter(query url.Values) (services.OrderListFilter, error) {
	filter := services.OrderListFilter{
		UserID:        strings.TrimSpace(query.Get("userId")),
		Status:        services.OrderStatus(strings.ToLower(strings.TrimSpace(query.Get("status")))),
		PaymentStatus: services.PaymentStatus(strings.ToLower(strings.TrimSpace(query.Get("paymentStatus")))),
	}
	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderListFilter{}, fmt.Errorf("since must be a valid RFC3339 timestamp")
		}
		filter.Since = &ts
	}
	if raw := strings.TrimSpace(query.Get("until")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderListFilter{}, fmt.Errorf("until must be a valid RFC3339 timestamp")
		}
		filter.Until = &ts
	}
	return filter, nil
}

func actorID(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.UID
	}
	return ""
}
