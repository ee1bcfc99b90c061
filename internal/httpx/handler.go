// Package httpx is the HTTP transport for the storefront: JSON handlers,
// DTO mapping and the router.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pressandpolish/storefront/internal/cart"
	"github.com/pressandpolish/storefront/internal/catalog"
	"github.com/pressandpolish/storefront/internal/events"
	"github.com/pressandpolish/storefront/internal/httpx/middlewares"
	"github.com/pressandpolish/storefront/internal/orders"
	"github.com/pressandpolish/storefront/internal/payments"
	"github.com/pressandpolish/storefront/internal/payments/razorpay"
)

// Handler serves the storefront API. Checkout orchestration (validate →
// persist → gateway order) lives here; payment confirmation lives in the
// payments service because two routes share it.
type Handler struct {
	carts     *cart.Service
	products  catalog.Repository
	orders    orders.Repository
	payments  *payments.Service
	gateway   *razorpay.Client
	publisher *events.Publisher // nil-safe: publishing skipped if nil
}

func NewHandler(
	cs *cart.Service,
	pr catalog.Repository,
	or orders.Repository,
	ps *payments.Service,
	gw *razorpay.Client,
	pub *events.Publisher,
) *Handler {
	return &Handler{
		carts:     cs,
		products:  pr,
		orders:    or,
		payments:  ps,
		gateway:   gw,
		publisher: pub,
	}
}

// ListProducts returns the active catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), true)
	if err != nil {
		slog.ErrorContext(r.Context(), "list products failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct returns a single product by its SEO slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	product, err := h.products.GetBySlug(r.Context(), slug)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product_not_found", "")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "get product failed", "slug", slug, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// ValidateCart re-validates and re-prices the client's cart.
func (h *Handler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	var req ValidateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	priced, err := h.carts.Validate(r.Context(), req.Items)
	if err != nil {
		h.writeCartError(w, r, "validate", err)
		return
	}

	middlewares.RecordCheckoutOperation("validate", true)
	writeJSON(w, http.StatusOK, mapPricedCart(priced))
}

// AddCartItem validates a single line and echoes it back priced. Cart state
// itself lives in the browser's local storage.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	priced, err := h.carts.Validate(r.Context(), []cart.ItemRequest{req.ItemRequest})
	if err != nil {
		h.writeCartError(w, r, "add", err)
		return
	}

	middlewares.RecordCheckoutOperation("add", true)
	writeJSON(w, http.StatusOK, mapPricedCart(priced))
}

// Checkout validates the cart, persists a pending order with item and
// address snapshots, creates the gateway order for the computed total, and
// returns the widget parameters.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if fields := validateAddress(req.Address); len(fields) > 0 {
		middlewares.RecordCheckoutOperation("checkout", false)
		writeValidationError(w, fields)
		return
	}

	priced, err := h.carts.Validate(r.Context(), req.Items)
	if err != nil {
		h.writeCartError(w, r, "checkout", err)
		return
	}

	order := buildOrder(userID, priced, toAddress(req.Address))
	if err := h.orders.Create(r.Context(), order); err != nil {
		slog.ErrorContext(r.Context(), "persist order failed", "error", err)
		middlewares.RecordCheckoutOperation("checkout", false)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	// The gateway bills in the minor currency unit.
	amountMinor := priced.Total.Shift(2).IntPart()
	gatewayOrder, err := h.gateway.CreateOrder(r.Context(), amountMinor, "INR", order.OrderNumber)
	if err != nil {
		slog.ErrorContext(r.Context(), "gateway order creation failed", "order_id", order.ID.Hex(), "error", err)
		middlewares.RecordCheckoutOperation("checkout", false)
		writeError(w, http.StatusBadGateway, "payment_gateway_error", "could not start payment")
		return
	}

	if err := h.orders.SetGatewayOrder(r.Context(), order.ID, gatewayOrder.ID, "razorpay"); err != nil {
		slog.ErrorContext(r.Context(), "store gateway order id failed", "order_id", order.ID.Hex(), "error", err)
		middlewares.RecordCheckoutOperation("checkout", false)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	h.publishOrderEvent(r.Context(), order, "created")
	middlewares.RecordCheckoutOperation("checkout", true)

	resp := CheckoutResponse{
		OrderID:     order.ID.Hex(),
		OrderNumber: order.OrderNumber,
		Amounts:     mapAmounts(priced),
	}
	resp.Razorpay.KeyID = h.gateway.KeyID()
	resp.Razorpay.GatewayOrderID = gatewayOrder.ID
	resp.Razorpay.Amount = amountMinor
	resp.Razorpay.Currency = gatewayOrder.Currency
	resp.Razorpay.Prefill.Name = req.Address.Name
	resp.Razorpay.Prefill.Email = req.Address.Email
	resp.Razorpay.Prefill.Contact = req.Address.Phone

	writeJSON(w, http.StatusCreated, resp)
}

// VerifyPayment is the redirect confirmation path: the browser posts the
// identifiers and signature from the widget's success callback.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "order id, payment id and signature are required")
		return
	}

	order, err := h.payments.ConfirmBySignature(r.Context(), req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	switch {
	case errors.Is(err, payments.ErrInvalidSignature):
		middlewares.RecordCheckoutOperation("verify_payment", false)
		writeError(w, http.StatusBadRequest, "invalid_signature", "payment verification failed")
		return
	case errors.Is(err, orders.ErrNotFound):
		middlewares.RecordCheckoutOperation("verify_payment", false)
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "payment verification failed", "gateway_order_id", req.RazorpayOrderID, "error", err)
		middlewares.RecordCheckoutOperation("verify_payment", false)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	middlewares.RecordCheckoutOperation("verify_payment", true)
	writeJSON(w, http.StatusOK, mapOrder(order))
}

// RazorpayWebhook is the asynchronous confirmation path. Signature is over
// the raw body; processing errors are logged and answered with a 500 — any
// retrying is the gateway's own.
func (h *Handler) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "")
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	err = h.payments.HandleWebhookEvent(r.Context(), body, signature)
	switch {
	case errors.Is(err, payments.ErrInvalidSignature):
		middlewares.RecordCheckoutOperation("webhook", false)
		writeError(w, http.StatusBadRequest, "invalid_signature", "")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "webhook processing failed", "error", err)
		middlewares.RecordCheckoutOperation("webhook", false)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	middlewares.RecordCheckoutOperation("webhook", true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListOrders returns the authenticated user's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	list, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "list orders failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	out := make([]OrderResponse, len(list))
	for i := range list {
		out[i] = mapOrder(&list[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetOrder returns a single order. Users can only see their own orders;
// admins can see any.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	if order.UserID != userID && !middlewares.IsAdmin(r.Context()) {
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

// UpdateOrderStatus is the fulfillment endpoint (admin): processing,
// shipped, delivered and the rest of the lifecycle enum.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	status := orders.Status(req.Status)
	if !orders.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown order status")
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), order.ID, status); err != nil {
		slog.ErrorContext(r.Context(), "update order status failed", "order_id", order.ID.Hex(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": order.ID.Hex(), "status": req.Status})
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*orders.Order, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", "")
		return nil, false
	}

	order, err := h.orders.GetByID(r.Context(), id)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return nil, false
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "get order failed", "order_id", id.Hex(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return nil, false
	}
	return order, true
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(middlewares.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid user identity")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) writeCartError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	middlewares.RecordCheckoutOperation(operation, false)

	var verr *cart.ValidationError
	if errors.As(err, &verr) {
		writeValidationError(w, verr.Fields)
		return
	}
	slog.ErrorContext(r.Context(), "cart validation failed", "operation", operation, "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "")
}

func (h *Handler) publishOrderEvent(ctx context.Context, order *orders.Order, eventType string) {
	err := h.publisher.Publish(ctx, events.OrderEvent{
		OrderID:     order.ID.Hex(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.Hex(),
		Type:        eventType,
		Total:       order.Amounts.Total,
		Occurred:    time.Now().UTC(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish order event", "order_id", order.ID.Hex(), "type", eventType, "error", err)
	}
}

// buildOrder snapshots the priced cart and address into a pending order.
func buildOrder(userID primitive.ObjectID, pc *cart.PricedCart, addr orders.Address) *orders.Order {
	items := make([]orders.Item, len(pc.Items))
	for i, it := range pc.Items {
		items[i] = orders.Item{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice.InexactFloat64(),
			Size:      it.Size,
			Design:    it.Design,
			Image:     it.Image,
			Quantity:  it.Quantity,
		}
	}
	return &orders.Order{
		UserID: userID,
		Items:  items,
		Amounts: orders.Amounts{
			Subtotal: pc.Subtotal.InexactFloat64(),
			Tax:      pc.Tax.InexactFloat64(),
			Shipping: pc.Shipping.InexactFloat64(),
			Discount: pc.Discount.InexactFloat64(),
			Total:    pc.Total.InexactFloat64(),
		},
		Status:  orders.StatusPending,
		Payment: orders.PaymentInfo{Status: orders.PaymentPending},
		Address: addr,
	}
}

func validateAddress(a AddressDTO) []cart.FieldError {
	var fields []cart.FieldError
	require := func(field, value string) {
		if value == "" {
			fields = append(fields, cart.FieldError{Field: "address." + field, Message: "required"})
		}
	}
	require("name", a.Name)
	require("email", a.Email)
	require("line1", a.Line1)
	require("city", a.City)
	require("zip", a.ZIP)
	require("country", a.Country)
	return fields
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}

func writeValidationError(w http.ResponseWriter, fields []cart.FieldError) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_failed",
		Message: "request validation failed",
		Fields:  fields,
	})
}
