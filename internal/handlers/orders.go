package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kumarpun/fit-theory-sub000/internal/domain"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/auth"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/httpx"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/pagination"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/storage"
	"github.com/kumarpun/fit-theory-sub000/internal/services"
)

const (
	maxPlaceOrderBodySize  = 256 * 1024
	maxOrderActionBodySize = 8 * 1024
	uploadRateLimit        = 30
	uploadRateWindow       = time.Minute
)

const (
	orderActionNotifyFullPayment = "notifyFullPayment"
	orderActionReceived          = "received"
	orderActionReturn            = "return"
)

type placeOrderRequest struct {
	Items             []placeOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Name              string                  `json:"name" validate:"required,max=200"`
	Phone             string                  `json:"phone" validate:"required,max=40"`
	Address           string                  `json:"address" validate:"required,max=500"`
	City              string                  `json:"city" validate:"required,max=120"`
	State             *string                 `json:"state" validate:"omitempty,max=120"`
	Zip               *string                 `json:"zip" validate:"omitempty,max=32"`
	PaymentMethod     string                  `json:"paymentMethod" validate:"omitempty,oneof=cod online"`
	PaymentScreenshot *string                 `json:"paymentScreenshot" validate:"omitempty,max=1024"`
	PaidAmount        *decimal.Decimal        `json:"paidAmount"`
}

type placeOrderItemRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	Size      string `json:"size" validate:"max=40"`
	Color     string `json:"color" validate:"max=40"`
}

type orderActionRequest struct {
	Action                string  `json:"action" validate:"omitempty,oneof=notifyFullPayment received return"`
	FullPaymentScreenshot *string `json:"fullPaymentScreenshot" validate:"omitempty,max=1024"`
	ReturnReason          string  `json:"returnReason"`
	ReturnImage           *string `json:"returnImage" validate:"omitempty,max=1024"`
}

type uploadRequest struct {
	Purpose     string `json:"purpose" validate:"required,oneof=payment_screenshot full_payment_screenshot return_image"`
	ContentType string `json:"contentType" validate:"required"`
	FileName    string `json:"fileName" validate:"max=255"`
}

// OrderHandlers exposes the customer order endpoints.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	evidence    services.EvidenceService
	idempotency func(http.Handler) http.Handler
	uploads     uploadThrottle
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithEvidenceService enables POST /orders/uploads.
func WithEvidenceService(svc services.EvidenceService) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.evidence = svc
	}
}

// WithPlacementMiddleware wraps POST /orders, typically with the idempotency middleware.
func WithPlacementMiddleware(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithUploadRateLimit limits upload URL issuance per caller.
func WithUploadRateLimit(limit int, window time.Duration, clock func() time.Time) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.uploads = newWindowCounter(limit, window, clock)
	}
}

// NewOrderHandlers constructs the customer order handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:   authn,
		orders:  orders,
		uploads: newWindowCounter(uploadRateLimit, uploadRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleUser, auth.RoleAdmin))
	}
	place := r
	if h.idempotency != nil {
		place = r.With(h.idempotency)
	}
	place.Post("/", h.placeOrder)
	r.Get("/", h.listOrders)
	r.Post("/uploads", h.issueUpload)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}", h.orderAction)
	r.Delete("/{orderID}", h.cancelOrder)
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req placeOrderRequest
	if !decodeBody(w, r, maxPlaceOrderBodySize, &req) {
		return
	}

	items := make([]services.PlaceOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.PlaceOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}

	order, err := h.orders.Place(ctx, services.PlaceOrderCommand{
		UserID: identity.UID,
		Items:  items,
		Shipping: services.Shipping{
			Name:    req.Name,
			Phone:   req.Phone,
			Address: req.Address,
			City:    req.City,
			State:   req.State,
			Zip:     req.Zip,
		},
		PaymentMethod:     services.PaymentMethod(req.PaymentMethod),
		PaymentScreenshot: req.PaymentScreenshot,
		PaidAmount:        req.PaidAmount,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, "Order placed successfully", map[string]any{
		"orderId": order.ID,
	})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		UserID:    identity.UID,
		Status:    services.OrderStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))),
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeOrderPage(w, page)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID", "order")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, services.OrderReadOptions{UserID: identity.UID})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", map[string]any{"order": buildOrderPayload(order)})
}

// orderAction dispatches the customer mutations carried by PUT /orders/{id}. A body without an
// action is a return request.
func (h *OrderHandlers) orderAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID", "order")
	if !ok {
		return
	}

	var req orderActionRequest
	if !decodeBody(w, r, maxOrderActionBodySize, &req) {
		return
	}

	var (
		order   services.Order
		err     error
		message string
	)
	switch strings.TrimSpace(req.Action) {
	case orderActionNotifyFullPayment:
		order, err = h.orders.NotifyFullPayment(ctx, services.NotifyFullPaymentCommand{
			OrderID:               orderID,
			UserID:                identity.UID,
			FullPaymentScreenshot: req.FullPaymentScreenshot,
		})
		message = "Full payment notification sent"
	case orderActionReceived:
		order, err = h.orders.MarkReceived(ctx, services.OrderActionCommand{OrderID: orderID, UserID: identity.UID})
		message = "Order marked as received"
	default:
		order, err = h.orders.RequestReturn(ctx, services.RequestReturnCommand{
			OrderID:     orderID,
			UserID:      identity.UID,
			Reason:      req.ReturnReason,
			ReturnImage: req.ReturnImage,
		})
		message = "Return request submitted"
	}
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, message, map[string]any{"order": buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID", "order")
	if !ok {
		return
	}

	if err := h.orders.Cancel(ctx, services.CancelOrderCommand{OrderID: orderID, UserID: identity.UID}); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Order cancelled successfully", nil)
}

func (h *OrderHandlers) issueUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.evidence == nil {
		httpx.WriteError(ctx, w, httpx.NewError("uploads_unavailable", "evidence uploads are not configured", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.uploads != nil {
		if ok, retry := h.uploads.Take(identity.UID); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many upload requests; try again shortly", http.StatusTooManyRequests))
			return
		}
	}

	var req uploadRequest
	if !decodeBody(w, r, maxOrderActionBodySize, &req) {
		return
	}

	upload, err := h.evidence.IssueUpload(ctx, services.EvidenceUploadCommand{
		UserID:      identity.UID,
		Purpose:     storage.EvidencePurpose(req.Purpose),
		ContentType: req.ContentType,
		FileName:    req.FileName,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, "", map[string]any{
		"upload": map[string]any{
			"uploadId":  upload.UploadID,
			"object":    upload.Object,
			"url":       upload.URL,
			"method":    upload.Method,
			"headers":   upload.Headers,
			"expiresAt": formatTime(upload.ExpiresAt),
			"publicUrl": upload.PublicURL,
		},
	})
}

func writeOrderPage(w http.ResponseWriter, page domain.CursorPage[services.Order]) {
	fields := map[string]any{"orders": buildOrderPayloads(page.Items)}
	if page.NextPageToken != "" {
		fields["nextPageToken"] = page.NextPageToken
	}
	httpx.WriteSuccess(w, http.StatusOK, "", fields)
}
