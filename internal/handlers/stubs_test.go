package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/auth"
	"github.com/kumarpun/fit-theory-sub000/internal/services"
)

var errNotStubbed = errors.New("not implemented")

type stubOrderService struct {
	placeFn    func(context.Context, services.PlaceOrderCommand) (services.Order, error)
	getFn      func(context.Context, int64, services.OrderReadOptions) (services.Order, error)
	listFn     func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	cancelFn   func(context.Context, services.CancelOrderCommand) error
	deleteFn   func(context.Context, services.DeleteOrderCommand) error
	statusFn   func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
	receivedFn func(context.Context, services.OrderActionCommand) (services.Order, error)
	returnFn   func(context.Context, services.RequestReturnCommand) (services.Order, error)
	notifyFn   func(context.Context, services.NotifyFullPaymentCommand) (services.Order, error)
}

func (s *stubOrderService) Place(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) GetOrder(ctx context.Context, id int64, opts services.OrderReadOptions) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id, opts)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return errNotStubbed
}

func (s *stubOrderService) Delete(ctx context.Context, cmd services.DeleteOrderCommand) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cmd)
	}
	return errNotStubbed
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) MarkReceived(ctx context.Context, cmd services.OrderActionCommand) (services.Order, error) {
	if s.receivedFn != nil {
		return s.receivedFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) RequestReturn(ctx context.Context, cmd services.RequestReturnCommand) (services.Order, error) {
	if s.returnFn != nil {
		return s.returnFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) NotifyFullPayment(ctx context.Context, cmd services.NotifyFullPaymentCommand) (services.Order, error) {
	if s.notifyFn != nil {
		return s.notifyFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

var _ services.OrderService = (*stubOrderService)(nil)

type stubPaymentService struct {
	calls []string
	last  services.SetPaidAmountCommand
	err   error
}

func (s *stubPaymentService) record(name string, id int64) (services.Order, error) {
	s.calls = append(s.calls, name)
	return services.Order{ID: id}, s.err
}

func (s *stubPaymentService) ConfirmPrePayment(_ context.Context, cmd services.PaymentActionCommand) (services.Order, error) {
	return s.record("pre", cmd.OrderID)
}

func (s *stubPaymentService) ConfirmFullPayment(_ context.Context, cmd services.PaymentActionCommand) (services.Order, error) {
	return s.record("full", cmd.OrderID)
}

func (s *stubPaymentService) ResetToReview(_ context.Context, cmd services.PaymentActionCommand) (services.Order, error) {
	return s.record("review", cmd.OrderID)
}

func (s *stubPaymentService) SetPaidAmount(_ context.Context, cmd services.SetPaidAmountCommand) (services.Order, error) {
	s.last = cmd
	return s.record("paid", cmd.OrderID)
}

var _ services.PaymentService = (*stubPaymentService)(nil)

type stubInventoryService struct {
	availableFn func(context.Context, int64, string, string) (int, error)
	replaceFn   func(context.Context, services.ReplaceStockCommand) (services.Product, error)
}

func (s *stubInventoryService) GetAvailable(ctx context.Context, id int64, size, color string) (int, error) {
	if s.availableFn != nil {
		return s.availableFn(ctx, id, size, color)
	}
	return 0, errNotStubbed
}

func (s *stubInventoryService) Reserve(context.Context, []services.StockLine) (map[int64]services.Product, error) {
	return nil, errNotStubbed
}

func (s *stubInventoryService) Release(context.Context, []services.StockLine) error {
	return errNotStubbed
}

func (s *stubInventoryService) ReplaceStock(ctx context.Context, cmd services.ReplaceStockCommand) (services.Product, error) {
	if s.replaceFn != nil {
		return s.replaceFn(ctx, cmd)
	}
	return services.Product{}, errNotStubbed
}

var _ services.InventoryService = (*stubInventoryService)(nil)

type stubExporter struct {
	filter services.OrderListFilter
	err    error
}

func (s *stubExporter) Export(_ context.Context, filter services.OrderListFilter, w io.Writer) (int, error) {
	s.filter = filter
	if s.err != nil {
		return 0, s.err
	}
	_, err := w.Write([]byte("PK-xlsx"))
	return 3, err
}

type stubEvidenceService struct {
	cmd services.EvidenceUploadCommand
	err error
}

func (s *stubEvidenceService) IssueUpload(_ context.Context, cmd services.EvidenceUploadCommand) (services.EvidenceUpload, error) {
	s.cmd = cmd
	if s.err != nil {
		return services.EvidenceUpload{}, s.err
	}
	return services.EvidenceUpload{UploadID: "u1", URL: "https://signed", Method: http.MethodPut, PublicURL: "https://cdn/u1.png"}, nil
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

func withIdentity(r *http.Request, uid string, roles ...string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{UID: uid, Roles: roles}))
}
