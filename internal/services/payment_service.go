package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
)

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders      repositories.OrderRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders repositories.OrderRepository
	clock  func() time.Time
	sink   eventSink
	logger func(context.Context, string, map[string]any)
}

var _ PaymentService = (*paymentService)(nil)

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
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

	return &paymentService{
		orders: deps.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
		sink:   eventSink{events: deps.Events, newID: idGen, logger: logger},
		logger: logger,
	}, nil
}

func (s *paymentService) ConfirmPrePayment(ctx context.Context, cmd PaymentActionCommand) (Order, error) {
	return s.apply(ctx, cmd.OrderID, cmd.ActorID, func(order *Order) {
		order.PaymentStatus = domain.PaymentStatusPreConfirmed
	})
}

// ConfirmFullPayment marks the order fully paid and records the paid amount as the order total.
func (s *paymentService) ConfirmFullPayment(ctx context.Context, cmd PaymentActionCommand) (Order, error) {
	return s.apply(ctx, cmd.OrderID, cmd.ActorID, func(order *Order) {
		order.PaymentStatus = domain.PaymentStatusFullConfirmed
		order.PaidAmount = order.Total
	})
}

func (s *paymentService) ResetToReview(ctx context.Context, cmd PaymentActionCommand) (Order, error) {
	return s.apply(ctx, cmd.OrderID, cmd.ActorID, func(order *Order) {
		order.PaymentStatus = domain.PaymentStatusReview
	})
}

// SetPaidAmount overwrites the recorded amount. Amounts above the total are accepted and logged.
func (s *paymentService) SetPaidAmount(ctx context.Context, cmd SetPaidAmountCommand) (Order, error) {
	if cmd.Amount.IsNegative() {
		return Order{}, fmt.Errorf("%w: paid amount must not be negative", ErrOrderInvalidInput)
	}
	amount := cmd.Amount.Round(2)
	order, err := s.apply(ctx, cmd.OrderID, cmd.ActorID, func(order *Order) {
		order.PaidAmount = amount
	})
	if err != nil {
		return Order{}, err
	}
	if order.PaidAmount.GreaterThan(order.Total) {
		s.logger(ctx, "order.payment.overpaid", map[string]any{
			"order":  order.ID,
			"total":  order.Total.StringFixed(2),
			"paid":   order.PaidAmount.StringFixed(2),
			"excess": order.PaidAmount.Sub(order.Total).StringFixed(2),
			"actor":  strings.TrimSpace(cmd.ActorID),
		})
	}
	return order, nil
}

// apply reads the order, mutates its payment fields and writes them back guarded by the status
// and payment status that were read. Shipping status is never changed here.
func (s *paymentService) apply(ctx context.Context, orderID int64, actorID string, mutate func(*Order)) (Order, error) {
	if orderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id must be positive", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}

	guard := repositories.OrderGuard{Status: order.Status, PaymentStatus: order.PaymentStatus}
	previousPayment := order.PaymentStatus
	now := s.clock()
	mutate(&order)
	order.UpdatedAt = now

	if err := guardedUpdate(ctx, s.orders, order, guard, nil); err != nil {
		return Order{}, err
	}

	actor := strings.TrimSpace(actorID)
	s.logger(ctx, "order.payment.updated", map[string]any{
		"order":           order.ID,
		"previousPayment": string(previousPayment),
		"paymentStatus":   string(order.PaymentStatus),
		"paid":            order.PaidAmount.StringFixed(2),
		"actor":           actor,
	})
	event := orderEvent(orderEventPaymentUpdated, order, order.Status, actor, now)
	event.Metadata = map[string]any{
		"previousPaymentStatus": string(previousPayment),
		"paidAmount":            order.PaidAmount.StringFixed(2),
		"remaining":             order.RemainingAmount().StringFixed(2),
	}
	s.sink.publish(ctx, event)
	return order, nil
}
