package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/httpx"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
	"github.com/kumarpun/fit-theory-sub000/internal/services"
)

type orderPayload struct {
	ID                    int64              `json:"id"`
	UserID                string             `json:"userId"`
	Status                string             `json:"status"`
	Total                 decimal.Decimal    `json:"total"`
	DeliveryCharge        decimal.Decimal    `json:"deliveryCharge"`
	PaidAmount            decimal.Decimal    `json:"paidAmount"`
	RemainingAmount       decimal.Decimal    `json:"remainingAmount"`
	PaymentMethod         string             `json:"paymentMethod"`
	PaymentStatus         string             `json:"paymentStatus"`
	PaymentScreenshot     *string            `json:"paymentScreenshot,omitempty"`
	FullPaymentScreenshot *string            `json:"fullPaymentScreenshot,omitempty"`
	FullPaymentNotified   bool               `json:"fullPaymentNotified"`
	Shipping              shippingPayload    `json:"shipping"`
	CancellationReason    *string            `json:"cancellationReason,omitempty"`
	ReturnReason          *string            `json:"returnReason,omitempty"`
	ReturnImage           *string            `json:"returnImage,omitempty"`
	ReceivedAt            string             `json:"receivedAt,omitempty"`
	CreatedAt             string             `json:"createdAt"`
	UpdatedAt             string             `json:"updatedAt,omitempty"`
	Items                 []orderItemPayload `json:"items"`
}

type shippingPayload struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
	City    string  `json:"city"`
	State   *string `json:"state,omitempty"`
	Zip     *string `json:"zip,omitempty"`
}

type orderItemPayload struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Size      *string         `json:"size,omitempty"`
	Color     *string         `json:"color,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:                    order.ID,
		UserID:                order.UserID,
		Status:                string(order.Status),
		Total:                 order.Total,
		DeliveryCharge:        order.DeliveryCharge,
		PaidAmount:            order.PaidAmount,
		RemainingAmount:       order.RemainingAmount(),
		PaymentMethod:         string(order.PaymentMethod),
		PaymentStatus:         string(order.PaymentStatus),
		PaymentScreenshot:     cloneStringPointer(order.PaymentScreenshot),
		FullPaymentScreenshot: cloneStringPointer(order.FullPaymentScreenshot),
		FullPaymentNotified:   order.FullPaymentNotified,
		Shipping: shippingPayload{
			Name:    order.Shipping.Name,
			Phone:   order.Shipping.Phone,
			Address: order.Shipping.Address,
			City:    order.Shipping.City,
			State:   cloneStringPointer(order.Shipping.State),
			Zip:     cloneStringPointer(order.Shipping.Zip),
		},
		CancellationReason: cloneStringPointer(order.CancellationReason),
		ReturnReason:       cloneStringPointer(order.ReturnReason),
		ReturnImage:        cloneStringPointer(order.ReturnImage),
		ReceivedAt:         formatTime(pointerTime(order.ReceivedAt)),
		CreatedAt:          formatTime(order.CreatedAt),
		UpdatedAt:          formatTime(order.UpdatedAt),
		Items:              make([]orderItemPayload, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: item.LineTotal(),
			Size:      cloneStringPointer(item.Size),
			Color:     cloneStringPointer(item.Color),
		})
	}
	return payload
}

func buildOrderPayloads(orders []services.Order) []orderPayload {
	out := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		out = append(out, buildOrderPayload(order))
	}
	return out
}

// writeOrderError maps service errors onto the response envelope. Precondition failures are
// client errors and carry the service message.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInsufficientStock):
		apiErr := httpx.NewError("insufficient_stock", err.Error(), http.StatusBadRequest)
		var invErr *repositories.InventoryError
		if errors.As(err, &invErr) {
			apiErr = httpx.NewError("insufficient_stock", invErr.Message, http.StatusBadRequest).
				WithDetails(map[string]any{"productId": invErr.ProductID})
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrInventoryInvalidInput),
		errors.Is(err, services.ErrEvidenceInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReturnWindowExpired):
		httpx.WriteError(ctx, w, httpx.NewError("return_window_expired", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentAlreadyConfirmed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_already_confirmed", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order changed concurrently; reload and retry", http.StatusConflict))
	case errors.Is(err, services.ErrEvidenceUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("uploads_unavailable", "evidence uploads are not configured", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", err.Error(), http.StatusInternalServerError))
	}
}
