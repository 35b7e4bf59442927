package services

import (
	"context"
	"maps"
	"time"
)

const (
	orderEventPlaced           = "order.placed"
	orderEventCancelled        = "order.cancelled"
	orderEventDeleted          = "order.deleted"
	orderEventStatusChanged    = "order.status.changed"
	orderEventReceived         = "order.received"
	orderEventReturnRequested  = "order.return.requested"
	orderEventPaymentNotified  = "order.payment.notified"
	orderEventPaymentUpdated   = "order.payment.updated"
	orderEventPublishFailedLog = "order.event.publish.failed"
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	ID             string
	Type           string
	OrderID        int64
	UserID         string
	PreviousStatus string
	CurrentStatus  string
	PaymentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// eventSink is shared by the order and payment services. Publishing happens after commit and
// never fails the caller.
type eventSink struct {
	events OrderEventPublisher
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

func (s eventSink) publish(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.ID == "" && s.newID != nil {
		event.ID = s.newID()
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger(ctx, orderEventPublishFailedLog, map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func orderEvent(eventType string, order Order, previous OrderStatus, actorID string, at time.Time) OrderEvent {
	return OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		UserID:         order.UserID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		ActorID:        actorID,
		OccurredAt:     at,
	}
}
