package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/pagination"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/textutil"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

const (
	defaultReturnWindow = 24 * time.Hour
	defaultMaxLines     = 50
	maxReasonLength     = 500
	maxURLLength        = 1024

	meterName = "github.com/kumarpun/fit-theory-sub000/internal/services"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located or is owned by someone else.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the order is not in a state that permits the action.
	ErrOrderInvalidState = errors.New("order: invalid state")
	// ErrOrderConflict indicates the order changed concurrently.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the order store could not be reached.
	ErrOrderUnavailable = errors.New("order: repository unavailable")
	// ErrReturnWindowExpired indicates the return was requested too long after receipt.
	ErrReturnWindowExpired = errors.New("order: return window expired")
	// ErrPaymentAlreadyConfirmed indicates the full payment was already verified.
	ErrPaymentAlreadyConfirmed = errors.New("order: payment already confirmed")
)

// adminStatusTargets are the states an admin may set directly. received is customer only.
var adminStatusTargets = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:   true,
	domain.OrderStatusConfirmed: true,
	domain.OrderStatusShipped:   true,
	domain.OrderStatusDelivered: true,
	domain.OrderStatusCancelled: true,
	domain.OrderStatusReturned:  true,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders          repositories.OrderRepository
	Inventory       InventoryService
	UnitOfWork      repositories.UnitOfWork
	DeliveryCharges DeliveryChargeResolver
	ReturnWindow    time.Duration
	MaxLines        int
	Clock           func() time.Time
	IDGenerator     func() string
	Events          OrderEventPublisher
	Meter           metric.Meter
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	inventory    InventoryService
	unitOfWork   repositories.UnitOfWork
	delivery     DeliveryChargeResolver
	returnWindow time.Duration
	maxLines     int
	clock        func() time.Time
	sink         eventSink
	metrics      orderMetrics
	logger       func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

type orderMetrics struct {
	placed   metric.Int64Counter
	removed  metric.Int64Counter
	rejected metric.Int64Counter
}

func newOrderMetrics(meter metric.Meter) (orderMetrics, error) {
	placed, err := meter.Int64Counter("orders.placed", metric.WithDescription("Orders committed by placement."))
	if err != nil {
		return orderMetrics{}, err
	}
	removed, err := meter.Int64Counter("orders.removed", metric.WithDescription("Orders cancelled by customers or deleted by admins."))
	if err != nil {
		return orderMetrics{}, err
	}
	rejected, err := meter.Int64Counter("orders.reservation.rejected", metric.WithDescription("Placements refused by the stock ledger."))
	if err != nil {
		return orderMetrics{}, err
	}
	return orderMetrics{placed: placed, removed: removed, rejected: rejected}, nil
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	delivery := deps.DeliveryCharges
	if delivery == nil {
		delivery = NewDeliveryCharges(decimal.Zero, nil)
	}

	window := deps.ReturnWindow
	if window <= 0 {
		window = defaultReturnWindow
	}

	maxLines := deps.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	metrics, err := newOrderMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("order service: metrics: %w", err)
	}

	return &orderService{
		orders:       deps.Orders,
		inventory:    deps.Inventory,
		unitOfWork:   unit,
		delivery:     delivery,
		returnWindow: window,
		maxLines:     maxLines,
		clock: func() time.Time {
			return clock().UTC()
		},
		sink:    eventSink{events: deps.Events, newID: idGen, logger: logger},
		metrics: metrics,
		logger:  logger,
	}, nil
}

func (s *orderService) Place(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	draft, lines, err := s.validatePlacement(cmd)
	if err != nil {
		return Order{}, err
	}

	var placed Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		products, err := s.inventory.Reserve(txCtx, lines)
		if err != nil {
			return err
		}

		order := draft
		subtotal := decimal.Zero
		for i := range order.Items {
			item := &order.Items[i]
			item.Price = products[item.ProductID].Price
			subtotal = subtotal.Add(item.LineTotal())
		}
		order.Total = subtotal.Add(order.DeliveryCharge)

		inserted, err := s.orders.Insert(txCtx, order)
		if err != nil {
			return mapOrderRepositoryError(err)
		}
		placed = inserted
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrProductNotFound) {
			reason := "insufficient_stock"
			if errors.Is(err, ErrProductNotFound) {
				reason = "product_not_found"
			}
			s.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		}
		return Order{}, err
	}

	s.metrics.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(placed.PaymentMethod))))
	s.logger(ctx, "order.placed", map[string]any{
		"order": placed.ID,
		"user":  placed.UserID,
		"items": len(placed.Items),
		"total": placed.Total.StringFixed(2),
	})

	event := orderEvent(orderEventPlaced, placed, "", placed.UserID, placed.CreatedAt)
	event.Metadata = map[string]any{
		"total":          placed.Total.StringFixed(2),
		"deliveryCharge": placed.DeliveryCharge.StringFixed(2),
		"items":          len(placed.Items),
		"paymentMethod":  string(placed.PaymentMethod),
	}
	s.sink.publish(ctx, event)

	return placed, nil
}

// validatePlacement checks everything that does not need the ledger and returns the order draft
// (prices unset) together with the stock lines to reserve.
func (s *orderService) validatePlacement(cmd PlaceOrderCommand) (Order, []StockLine, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, nil, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	if len(cmd.Items) > s.maxLines {
		return Order{}, nil, fmt.Errorf("%w: order may contain at most %d items", ErrOrderInvalidInput, s.maxLines)
	}

	shipping := Shipping{
		Name:    strings.TrimSpace(cmd.Shipping.Name),
		Phone:   strings.TrimSpace(cmd.Shipping.Phone),
		Address: strings.TrimSpace(cmd.Shipping.Address),
		City:    strings.TrimSpace(cmd.Shipping.City),
		State:   trimmedOptional(cmd.Shipping.State, 120),
		Zip:     trimmedOptional(cmd.Shipping.Zip, 32),
	}
	var missing []string
	if shipping.Name == "" {
		missing = append(missing, "name")
	}
	if shipping.Phone == "" {
		missing = append(missing, "phone")
	}
	if shipping.Address == "" {
		missing = append(missing, "address")
	}
	if shipping.City == "" {
		missing = append(missing, "city")
	}
	if len(missing) > 0 {
		return Order{}, nil, fmt.Errorf("%w: shipping %s required", ErrOrderInvalidInput, strings.Join(missing, ", "))
	}

	method := PaymentMethod(strings.ToLower(strings.TrimSpace(string(cmd.PaymentMethod))))
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	if !method.Valid() {
		return Order{}, nil, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}

	paid := decimal.Zero
	if cmd.PaidAmount != nil {
		if cmd.PaidAmount.IsNegative() {
			return Order{}, nil, fmt.Errorf("%w: paid amount must not be negative", ErrOrderInvalidInput)
		}
		paid = *cmd.PaidAmount
	}

	items := make([]OrderItem, 0, len(cmd.Items))
	lines := make([]StockLine, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		if item.ProductID <= 0 {
			return Order{}, nil, fmt.Errorf("%w: items[%d] product id is required", ErrOrderInvalidInput, i)
		}
		if item.Quantity < 1 {
			return Order{}, nil, fmt.Errorf("%w: items[%d] quantity must be at least 1", ErrOrderInvalidInput, i)
		}
		size := strings.TrimSpace(item.Size)
		color := strings.TrimSpace(item.Color)
		items = append(items, OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      optionalString(size),
			Color:     optionalString(color),
		})
		lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity, Size: size, Color: color})
	}

	now := s.now()
	return Order{
		UserID:            userID,
		Status:            domain.OrderStatusPending,
		DeliveryCharge:    s.delivery.ChargeFor(shipping.City),
		Shipping:          shipping,
		PaymentMethod:     method,
		PaymentScreenshot: trimmedOptional(cmd.PaymentScreenshot, maxURLLength),
		PaidAmount:        paid,
		PaymentStatus:     domain.PaymentStatusReview,
		CreatedAt:         now,
		UpdatedAt:         now,
		Items:             items,
	}, lines, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64, opts OrderReadOptions) (Order, error) {
	if orderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id must be positive", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	if err := ensureOwner(order, opts.UserID); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	cursor, err := pagination.DecodeToken(filter.PageToken)
	if err != nil {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, filter.Status)
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, filter.PaymentStatus)
	}
	if filter.Since != nil && filter.Until != nil && !filter.Until.After(*filter.Since) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: until must be after since", ErrOrderInvalidInput)
	}

	pageSize := filter.PageSize
	switch {
	case pageSize <= 0:
		pageSize = pagination.DefaultPageSize
	case pageSize > pagination.DefaultMaxPageSize:
		pageSize = pagination.DefaultMaxPageSize
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:        strings.TrimSpace(filter.UserID),
		Status:        filter.Status,
		PaymentStatus: filter.PaymentStatus,
		Since:         filter.Since,
		Until:         filter.Until,
		PageSize:      pageSize,
		AfterID:       cursor.AfterID,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, mapOrderRepositoryError(err)
	}
	return page, nil
}

// Cancel is the customer cancellation: a pending order is removed and its stock restored.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) error {
	if cmd.OrderID <= 0 {
		return fmt.Errorf("%w: order id must be positive", ErrOrderInvalidInput)
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	removed, err := s.removeOrder(ctx, cmd.OrderID, func(order Order) error {
		if err := ensureOwner(order, userID); err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: only pending orders can be cancelled (status %s)", ErrOrderInvalidState, order.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.removed.Add(ctx, 1, metric.WithAttributes(attribute.String("actor", "customer")))
	event := orderEvent(orderEventCancelled, removed, removed.Status, userID, s.now())
	event.CurrentStatus = string(domain.OrderStatusCancelled)
	s.sink.publish(ctx, event)
	return nil
}

// Delete is the admin removal. It ignores the status but restores stock the same way.
func (s *orderService) Delete(ctx context.Context, cmd DeleteOrderCommand) error {
	if cmd.OrderID <= 0 {
		return fmt.Errorf("%w: order id must be positive", ErrOrderInvalidInput)
	}

	removed, err := s.removeOrder(ctx, cmd.OrderID, nil)
	if err != nil {
		return err
	}

	actor := strings.TrimSpace(cmd.ActorID)
	s.metrics.removed.Add(ctx, 1, metric.WithAttributes(attribute.String("actor", "admin")))
	s.logger(ctx, "order.deleted", map[string]any{
		"order":  removed.ID,
		"status": string(removed.Status),
		"actor":  actor,
	})
	event := orderEvent(orderEventDeleted, removed, removed.Status, actor, s.now())
	event.CurrentStatus = ""
	s.sink.publish(ctx, event)
	return nil
}

// removeOrder locks the order, runs check against the locked state, releases every line back to
// the ledger and deletes the order with its items, all in one transaction.
func (s *orderService) removeOrder(ctx context.Context, orderID int64, check func(Order) error) (Order, error) {
	var removed Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.LockForUpdate(txCtx, orderID)
		if err != nil {
			return mapOrderRepositoryError(err)
		}
		if check != nil {
			if err := check(order); err != nil {
				return err
			}
		}
		if err := s.inventory.Release(txCtx, stockLinesFor(order.Items)); err != nil {
			return err
		}
		if err := s.orders.Delete(txCtx, order.ID); err != nil {
			return mapOrderRepositoryError(err)
		}
		removed = order
		return nil
	})
	return removed, err
}

// UpdateStatus is the admin override. Stock is not touched; only deletion restores stock.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	if cmd.OrderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id must be positive", ErrOrderInvalidInput)
	}
	target := OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if !adminStatusTargets[target] {
		return Order{}, fmt.Errorf("%w: status %q cannot be set by an admin", ErrOrderInvalidInput, cmd.Status)
	}
	var reason *string
	if target == domain.OrderStatusCancelled {
		reason = textutil.OptionalText(cmd.CancellationReason, maxReasonLength)
		if reason == nil {
			return Order{}, fmt.Errorf("%w: cancellation reason is required", ErrOrderInvalidInput)
		}
	}

	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}

	previous := order.Status
	now := s.now()
	order.Status = target
	order.CancellationReason = reason
	if target != domain.OrderStatusReturned {
		order.ReturnReason = nil
		order.ReturnImage = nil
	}
	order.UpdatedAt = now

	if err := guardedUpdate(ctx, s.orders, order, repositories.OrderGuard{Status: previous}, nil); err != nil {
		return Order{}, err
	}

	actor := strings.TrimSpace(cmd.ActorID)
	s.logger(ctx, "order.status.changed", map[string]any{
		"order":    order.ID,
		"previous": string(previous),
		"status":   string(order.Status),
		"actor":    actor,
	})
	event := orderEvent(orderEventStatusChanged, order, previous, actor, now)
	if reason != nil {
		event.Metadata = map[string]any{"reason": *reason}
	}
	s.sink.publish(ctx, event)
	return order, nil
}

func (s *orderService) MarkReceived(ctx context.Context, cmd OrderActionCommand) (Order, error) {
	order, err := s.loadOwned(ctx, cmd.OrderID, cmd.UserID)
	if err != nil {
		return Order{}, err
	}

	check := func(current Order) error {
		if current.Status != domain.OrderStatusDelivered {
			return fmt.Errorf("%w: only delivered orders can be marked received (status %s)", ErrOrderInvalidState, current.Status)
		}
		return nil
	}
	if err := check(order); err != nil {
		return Order{}, err
	}

	previous := order.Status
	now := s.now()
	order.Status = domain.OrderStatusReceived
	order.ReceivedAt = &now
	order.UpdatedAt = now

	if err := guardedUpdate(ctx, s.orders, order, repositories.OrderGuard{Status: previous}, check); err != nil {
		return Order{}, err
	}

	s.sink.publish(ctx, orderEvent(orderEventReceived, order, previous, order.UserID, now))
	return order, nil
}

func (s *orderService) RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error) {
	reason := textutil.OptionalText(cmd.Reason, maxReasonLength)
	if reason == nil {
		return Order{}, fmt.Errorf("%w: return reason is required", ErrOrderInvalidInput)
	}

	order, err := s.loadOwned(ctx, cmd.OrderID, cmd.UserID)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	check := func(current Order) error {
		return s.returnAllowed(current, now)
	}
	if err := check(order); err != nil {
		return Order{}, err
	}

	previous := order.Status
	order.Status = domain.OrderStatusReturned
	order.ReturnReason = reason
	order.ReturnImage = trimmedOptional(cmd.ReturnImage, maxURLLength)
	order.UpdatedAt = now

	if err := guardedUpdate(ctx, s.orders, order, repositories.OrderGuard{Status: previous}, check); err != nil {
		return Order{}, err
	}

	event := orderEvent(orderEventReturnRequested, order, previous, order.UserID, now)
	event.Metadata = map[string]any{"reason": *reason, "hasImage": order.ReturnImage != nil}
	s.sink.publish(ctx, event)
	return order, nil
}

// returnAllowed accepts delivered orders, and received orders while now is at most the return
// window past receipt.
func (s *orderService) returnAllowed(order Order, now time.Time) error {
	switch order.Status {
	case domain.OrderStatusDelivered:
		return nil
	case domain.OrderStatusReceived:
		if order.ReceivedAt == nil {
			return fmt.Errorf("%w: receipt time unknown", ErrReturnWindowExpired)
		}
		if now.Sub(*order.ReceivedAt) > s.returnWindow {
			return fmt.Errorf("%w: returns are accepted up to %s after receipt", ErrReturnWindowExpired, s.returnWindow)
		}
		return nil
	default:
		return fmt.Errorf("%w: only delivered or received orders can be returned (status %s)", ErrOrderInvalidState, order.Status)
	}
}

func (s *orderService) NotifyFullPayment(ctx context.Context, cmd NotifyFullPaymentCommand) (Order, error) {
	order, err := s.loadOwned(ctx, cmd.OrderID, cmd.UserID)
	if err != nil {
		return Order{}, err
	}

	check := func(current Order) error {
		if current.PaymentStatus == domain.PaymentStatusFullConfirmed {
			return fmt.Errorf("%w: full payment is already confirmed", ErrPaymentAlreadyConfirmed)
		}
		return nil
	}
	if err := check(order); err != nil {
		return Order{}, err
	}

	now := s.now()
	order.FullPaymentNotified = true
	if screenshot := trimmedOptional(cmd.FullPaymentScreenshot, maxURLLength); screenshot != nil {
		order.FullPaymentScreenshot = screenshot
	}
	order.UpdatedAt = now

	guard := repositories.OrderGuard{Status: order.Status, PaymentStatus: order.PaymentStatus}
	if err := guardedUpdate(ctx, s.orders, order, guard, check); err != nil {
		return Order{}, err
	}

	event := orderEvent(orderEventPaymentNotified, order, order.Status, order.UserID, now)
	event.Metadata = map[string]any{
		"remaining":     order.RemainingAmount().StringFixed(2),
		"hasScreenshot": order.FullPaymentScreenshot != nil,
	}
	s.sink.publish(ctx, event)
	return order, nil
}

func (s *orderService) loadOwned(ctx context.Context, orderID int64, userID string) (Order, error) {
	if orderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id must be positive", ErrOrderInvalidInput)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	if err := ensureOwner(order, userID); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

// guardedUpdate writes order while the stored row still matches guard. When the row moved on,
// check is re-run against a fresh read so the caller sees the precondition that now fails.
func guardedUpdate(ctx context.Context, orders repositories.OrderRepository, order Order, guard repositories.OrderGuard, check func(Order) error) error {
	err := orders.Update(ctx, order, guard)
	if err == nil {
		return nil
	}
	mapped := mapOrderRepositoryError(err)
	if !errors.Is(mapped, ErrOrderConflict) || check == nil {
		return mapped
	}
	current, readErr := orders.FindByID(ctx, order.ID)
	if readErr != nil {
		return mapOrderRepositoryError(readErr)
	}
	if checkErr := check(current); checkErr != nil {
		return checkErr
	}
	return mapped
}

func mapOrderRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}

	return err
}

func ensureOwner(order Order, userID string) error {
	if userID == "" || order.UserID == userID {
		return nil
	}
	return fmt.Errorf("%w: order %d", ErrOrderNotFound, order.ID)
}

func stockLinesFor(items []OrderItem) []StockLine {
	lines := make([]StockLine, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		lines = append(lines, StockLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      derefString(item.Size),
			Color:     derefString(item.Color),
		})
	}
	return lines
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func trimmedOptional(v *string, limit int) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	if limit > 0 && utf8.RuneCountInString(trimmed) > limit {
		trimmed = string([]rune(trimmed)[:limit])
	}
	return &trimmed
}
