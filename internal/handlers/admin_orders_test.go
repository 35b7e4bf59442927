package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/auth"
	"github.com/kumarpun/fit-theory-sub000/internal/services"
)

func adminRouter(h *AdminOrderHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/admin", h.Routes)
	return router
}

func TestAdminOrderHandlersUpdateGroups(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		calls string
	}{
		{name: "pre confirm", body: `{"paymentStatus":"pre_confirmed"}`, calls: "pre"},
		{name: "full confirm", body: `{"paymentStatus":"full_confirmed"}`, calls: "full"},
		{name: "reset", body: `{"paymentStatus":"review"}`, calls: "review"},
		{name: "paid amount", body: `{"paidAmount":"75.50"}`, calls: "paid"},
		{name: "status only", body: `{"status":"shipped"}`, calls: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payments := &stubPaymentService{}
			var statusCmd services.UpdateOrderStatusCommand
			orders := &stubOrderService{
				statusFn: func(_ context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
					statusCmd = cmd
					return services.Order{ID: cmd.OrderID, Status: cmd.Status}, nil
				},
			}
			router := adminRouter(NewAdminOrderHandlers(orders, payments, nil))

			req := withIdentity(httptest.NewRequest(http.MethodPut, "/admin/orders/8", strings.NewReader(tc.body)), "admin-1", auth.RoleAdmin)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if got := strings.Join(payments.calls, ","); got != tc.calls {
				t.Fatalf("expected payment calls %q, got %q", tc.calls, got)
			}
			if tc.calls == "" && (statusCmd.Status != domain.OrderStatusShipped || statusCmd.ActorID != "admin-1") {
				t.Fatalf("unexpected status command %+v", statusCmd)
			}
			if tc.calls != "" && statusCmd.OrderID != 0 {
				t.Fatalf("payment groups must not touch the order status")
			}
			if tc.calls == "paid" && !payments.last.Amount.Equal(decimal.RequireFromString("75.5")) {
				t.Fatalf("unexpected amount %s", payments.last.Amount)
			}
		})
	}
}

func TestAdminOrderHandlersUpdateValidation(t *testing.T) {
	router := adminRouter(NewAdminOrderHandlers(&stubOrderService{}, &stubPaymentService{}, nil))

	for _, body := range []string{`{}`, `{"status":"lost"}`, `{"status":"received"}`, `{"paymentStatus":"refunded"}`} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/orders/8", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestAdminOrderHandlersUpdateRejectsMixedGroups(t *testing.T) {
	payments := &stubPaymentService{}
	orders := &stubOrderService{
		statusFn: func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error) {
			t.Fatalf("status must not be updated for a mixed body")
			return services.Order{}, nil
		},
	}
	router := adminRouter(NewAdminOrderHandlers(orders, payments, nil))

	for _, body := range []string{
		`{"paymentStatus":"full_confirmed","status":"shipped"}`,
		`{"paymentStatus":"review","paidAmount":"10"}`,
		`{"paidAmount":"75.50","status":"shipped"}`,
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/orders/8", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest || decodeEnvelope(t, rr)["error"] != "invalid_request" {
			t.Fatalf("%s: expected 400 invalid_request, got %d %s", body, rr.Code, rr.Body.String())
		}
	}
	if len(payments.calls) != 0 {
		t.Fatalf("expected no payment calls, got %v", payments.calls)
	}
}

func TestAdminOrderHandlersUpdateErrors(t *testing.T) {
	payments := &stubPaymentService{err: fmt.Errorf("%w: payment already fully confirmed", services.ErrPaymentAlreadyConfirmed)}
	orders := &stubOrderService{
		statusFn: func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: order 8 changed", services.ErrOrderConflict)
		},
	}
	router := adminRouter(NewAdminOrderHandlers(orders, payments, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/orders/8", strings.NewReader(`{"paymentStatus":"full_confirmed"}`)))
	if rr.Code != http.StatusBadRequest || decodeEnvelope(t, rr)["error"] != "payment_already_confirmed" {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/orders/8", strings.NewReader(`{"status":"cancelled"}`)))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersListFilters(t *testing.T) {
	var captured services.OrderListFilter
	orders := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{}, nil
		},
	}
	router := adminRouter(NewAdminOrderHandlers(orders, &stubPaymentService{}, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders?userId=user-9&status=shipped&paymentStatus=review&since=2025-05-01T00:00:00Z&pageSize=10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-9" || captured.Status != domain.OrderStatusShipped || captured.PaymentStatus != domain.PaymentStatusReview {
		t.Fatalf("unexpected filter %+v", captured)
	}
	if captured.Since == nil || !captured.Since.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) || captured.PageSize != 10 {
		t.Fatalf("unexpected filter window %+v", captured)
	}
	if orders := decodeEnvelope(t, rr)["orders"]; orders == nil {
		t.Fatalf("expected empty orders array, got nil")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders?since=yesterday", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad since, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersExport(t *testing.T) {
	exporter := &stubExporter{}
	handler := NewAdminOrderHandlers(&stubOrderService{}, &stubPaymentService{}, exporter)
	handler.clock = func() time.Time { return time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC) }
	router := adminRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders/export?status=delivered", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="orders-20250501-093000.xlsx"` {
		t.Fatalf("unexpected disposition %s", cd)
	}
	if rr.Header().Get("X-Export-Rows") != "3" || rr.Body.String() != "PK-xlsx" {
		t.Fatalf("unexpected export output %q", rr.Body.String())
	}
	if exporter.filter.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected status filter to reach exporter, got %+v", exporter.filter)
	}

	exporter.err = errors.New("disk full")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders/export", nil))
	if rr.Code != http.StatusInternalServerError || rr.Header().Get("Content-Disposition") != "" {
		t.Fatalf("expected 500 without attachment, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersExportUnavailable(t *testing.T) {
	router := adminRouter(NewAdminOrderHandlers(&stubOrderService{}, &stubPaymentService{}, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders/export", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersGetAndDelete(t *testing.T) {
	var deleted services.DeleteOrderCommand
	orders := &stubOrderService{
		getFn: func(_ context.Context, id int64, opts services.OrderReadOptions) (services.Order, error) {
			if opts.UserID != "" {
				t.Fatalf("admin reads must not be owner scoped")
			}
			return services.Order{ID: id, UserID: "user-3"}, nil
		},
		deleteFn: func(_ context.Context, cmd services.DeleteOrderCommand) error {
			deleted = cmd
			return nil
		},
	}
	router := adminRouter(NewAdminOrderHandlers(orders, &stubPaymentService{}, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withIdentity(httptest.NewRequest(http.MethodGet, "/admin/orders/12", nil), "admin-1", auth.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withIdentity(httptest.NewRequest(http.MethodDelete, "/admin/orders/12", nil), "admin-1", auth.RoleAdmin))
	if rr.Code != http.StatusOK || deleted.OrderID != 12 || deleted.ActorID != "admin-1" {
		t.Fatalf("unexpected delete %d %+v", rr.Code, deleted)
	}
}
