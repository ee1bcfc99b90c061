package httpx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pressandpolish/storefront/internal/cart"
	"github.com/pressandpolish/storefront/internal/catalog"
	"github.com/pressandpolish/storefront/internal/httpx/middlewares"
	"github.com/pressandpolish/storefront/internal/orders"
	"github.com/pressandpolish/storefront/internal/payments"
	"github.com/pressandpolish/storefront/internal/payments/razorpay"
)

const (
	jwtSecret     = "test-jwt-secret"
	keySecret     = "test-key-secret"
	webhookSecret = "test-webhook-secret"
)

type fakeProducts struct {
	byID map[primitive.ObjectID]*catalog.Product
}

func (f *fakeProducts) GetByID(_ context.Context, id primitive.ObjectID) (*catalog.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) GetBySlug(_ context.Context, slug string) (*catalog.Product, error) {
	for _, p := range f.byID {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeProducts) List(_ context.Context, activeOnly bool) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range f.byID {
		if !activeOnly || p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) Create(_ context.Context, p *catalog.Product) error {
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProducts) DecrementStock(_ context.Context, id primitive.ObjectID, size, design string, qty int) error {
	p, ok := f.byID[id]
	if !ok {
		return catalog.ErrNotFound
	}
	for i, v := range p.Variants {
		if v.Size == size && v.Design == design {
			p.Variants[i].Stock -= qty
			return nil
		}
	}
	return catalog.ErrVariantNotFound
}

type fakeOrders struct {
	byID map[primitive.ObjectID]*orders.Order
	seq  int
}

func (f *fakeOrders) Create(_ context.Context, o *orders.Order) error {
	f.seq++
	o.ID = primitive.NewObjectID()
	o.OrderNumber = orders.NextOrderNumber(fmt.Sprintf("ORD-%s-%04d", time.Now().Format("20060102"), f.seq-1), time.Now())
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	f.byID[o.ID] = o
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id primitive.ObjectID) (*orders.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*orders.Order, error) {
	for _, o := range f.byID {
		if o.Payment.GatewayOrderID == gatewayOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, orders.ErrNotFound
}

func (f *fakeOrders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range f.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id primitive.ObjectID, status orders.Status) error {
	o, ok := f.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeOrders) SetGatewayOrder(_ context.Context, id primitive.ObjectID, gatewayOrderID, method string) error {
	o, ok := f.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Payment.GatewayOrderID = gatewayOrderID
	o.Payment.Method = method
	return nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, id primitive.ObjectID, paymentID string, paidAt time.Time) error {
	o, ok := f.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = orders.StatusConfirmed
	o.Payment.Status = orders.PaymentPaid
	o.Payment.PaymentID = paymentID
	t := paidAt.UTC()
	o.Payment.PaidAt = &t
	return nil
}

func (f *fakeOrders) MarkPaymentFailed(_ context.Context, id primitive.ObjectID, reason string) error {
	o, ok := f.byID[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = orders.StatusCancelled
	o.Payment.Status = orders.PaymentFailed
	o.Payment.FailureReason = reason
	return nil
}

type fixture struct {
	router    http.Handler
	products  *fakeProducts
	orders    *fakeOrders
	productID primitive.ObjectID
	userID    primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	productID := primitive.NewObjectID()
	product := &catalog.Product{
		ID:       productID,
		Title:    "Midnight Velvet",
		Slug:     "midnight-velvet",
		Price:    40.00,
		IsActive: true,
		Images:   []catalog.Image{{URL: "https://cdn.example/mv.jpg", IsPrimary: true}},
		Variants: []catalog.Variant{{Size: "M", Design: "almond", Stock: 10}},
	}

	pr := &fakeProducts{byID: map[primitive.ObjectID]*catalog.Product{productID: product}}
	or := &fakeOrders{byID: map[primitive.ObjectID]*orders.Order{}}

	gatewaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Receipt  string `json:"receipt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(razorpay.Order{
			ID: "order_gw123", Amount: req.Amount, Currency: req.Currency,
			Receipt: req.Receipt, Status: "created",
		})
	}))
	t.Cleanup(gatewaySrv.Close)

	gateway := razorpay.NewClient("rzp_test_key", keySecret).WithBaseURL(gatewaySrv.URL)
	verifier := payments.NewVerifier(keySecret, webhookSecret)
	cartSvc := cart.NewService(pr)
	paySvc := payments.NewService(or, pr, verifier, nil, nil)

	handler := NewHandler(cartSvc, pr, or, paySvc, gateway, nil)
	router := NewRouter(handler, jwtSecret, "")

	return &fixture{
		router:    router,
		products:  pr,
		orders:    or,
		productID: productID,
		userID:    primitive.NewObjectID(),
	}
}

func (f *fixture) token(t *testing.T, admin bool) string {
	t.Helper()
	claims := middlewares.Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   f.userID.Hex(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func signHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (f *fixture) checkout(t *testing.T) CheckoutResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/cart/create-razorpay-order", f.token(t, false), CheckoutRequest{
		Items: []cart.ItemRequest{{ProductID: f.productID.Hex(), Size: "M", Design: "almond", Quantity: 1}},
		Address: AddressDTO{
			Name: "Priya Sharma", Email: "priya@example.com", Phone: "+919999999999",
			Line1: "12 Rose Lane", City: "Mumbai", ZIP: "400001", Country: "IN",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestValidateCart(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/cart/validate", f.token(t, false), ValidateCartRequest{
		Items: []cart.ItemRequest{{ProductID: f.productID.Hex(), Size: "M", Design: "almond", Quantity: 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PricedCartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "40.00", resp.Amounts.Subtotal)
	assert.Equal(t, "3.20", resp.Amounts.Tax)
	assert.Equal(t, "9.99", resp.Amounts.Shipping)
	assert.Equal(t, "53.19", resp.Amounts.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "40.00", resp.Items[0].UnitPrice)
}

func TestValidateCart_StockExceeded(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/cart/validate", f.token(t, false), ValidateCartRequest{
		Items: []cart.ItemRequest{{ProductID: f.productID.Hex(), Size: "M", Design: "almond", Quantity: 99}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Error)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "items[0].quantity", resp.Fields[0].Field)
}

func TestValidateCart_RequiresAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/cart/validate", "", ValidateCartRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)

	resp := f.checkout(t)

	assert.NotEmpty(t, resp.OrderID)
	assert.Contains(t, resp.OrderNumber, "ORD-")
	assert.Equal(t, "53.19", resp.Amounts.Total)
	assert.Equal(t, "rzp_test_key", resp.Razorpay.KeyID)
	assert.Equal(t, "order_gw123", resp.Razorpay.GatewayOrderID)
	assert.Equal(t, int64(5319), resp.Razorpay.Amount)
	assert.Equal(t, "priya@example.com", resp.Razorpay.Prefill.Email)

	// Order persisted pending with the gateway order attached.
	id, err := primitive.ObjectIDFromHex(resp.OrderID)
	require.NoError(t, err)
	stored := f.orders.byID[id]
	require.NotNil(t, stored)
	assert.Equal(t, orders.StatusPending, stored.Status)
	assert.Equal(t, orders.PaymentPending, stored.Payment.Status)
	assert.Equal(t, "order_gw123", stored.Payment.GatewayOrderID)
	assert.Equal(t, 53.19, stored.Amounts.Total)
}

// Order items snapshot the product at checkout; later catalog edits must not
// leak into stored orders.
func TestCheckout_ItemSnapshotImmuneToCatalogEdits(t *testing.T) {
	f := newFixture(t)
	checkout := f.checkout(t)

	product := f.products.byID[f.productID]
	product.Title = "Renamed Set"
	product.Price = 55.00
	product.Images[0].URL = "https://cdn.example/renamed.jpg"

	rec := f.do(t, http.MethodGet, "/orders/"+checkout.OrderID, f.token(t, false), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Midnight Velvet", resp.Items[0].Title)
	assert.Equal(t, 40.00, resp.Items[0].UnitPrice)
	assert.Equal(t, "https://cdn.example/mv.jpg", resp.Items[0].Image)
	assert.Equal(t, 53.19, resp.Amounts.Total)
}

func TestCheckout_MissingAddress(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/cart/create-razorpay-order", f.token(t, false), CheckoutRequest{
		Items: []cart.ItemRequest{{ProductID: f.productID.Hex(), Size: "M", Design: "almond", Quantity: 1}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Error)
	assert.NotEmpty(t, resp.Fields)
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture(t)
	checkout := f.checkout(t)

	sig := signHex(keySecret, []byte(checkout.Razorpay.GatewayOrderID+"|pay_777"))
	rec := f.do(t, http.MethodPost, "/cart/verify-payment", f.token(t, false), VerifyPaymentRequest{
		RazorpayOrderID:   checkout.Razorpay.GatewayOrderID,
		RazorpayPaymentID: "pay_777",
		RazorpaySignature: sig,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(orders.StatusConfirmed), resp.Status)
	assert.Equal(t, string(orders.PaymentPaid), resp.PaymentStatus)

	// Stock decremented for the confirmed item.
	assert.Equal(t, 9, f.products.byID[f.productID].Variants[0].Stock)
}

func TestVerifyPayment_ForgedSignature(t *testing.T) {
	f := newFixture(t)
	checkout := f.checkout(t)

	rec := f.do(t, http.MethodPost, "/cart/verify-payment", f.token(t, false), VerifyPaymentRequest{
		RazorpayOrderID:   checkout.Razorpay.GatewayOrderID,
		RazorpayPaymentID: "pay_777",
		RazorpaySignature: "deadbeef",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_signature", resp.Error)

	// Nothing confirmed, nothing decremented.
	assert.Equal(t, 10, f.products.byID[f.productID].Variants[0].Stock)
}

func TestWebhook(t *testing.T) {
	f := newFixture(t)
	checkout := f.checkout(t)

	body, err := json.Marshal(map[string]any{
		"event": "payment.captured",
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{"id": "pay_888", "order_id": checkout.Razorpay.GatewayOrderID},
			},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", signHex(webhookSecret, body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 9, f.products.byID[f.productID].Variants[0].Stock)
}

func TestWebhook_ForgedSignature(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"event":"payment.captured","payload":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder_OtherUsersOrderHidden(t *testing.T) {
	f := newFixture(t)
	checkout := f.checkout(t)

	// A different user cannot see the order.
	other := &fixture{router: f.router, userID: primitive.NewObjectID()}
	rec := other.do(t, http.MethodGet, "/orders/"+checkout.OrderID, other.token(t, false), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The owner can.
	rec = f.do(t, http.MethodGet, "/orders/"+checkout.OrderID, f.token(t, false), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateOrderStatus_AdminOnly(t *testing.T) {
	f := newFixture(t)
	checkout := f.checkout(t)

	rec := f.do(t, http.MethodPut, "/orders/"+checkout.OrderID+"/status", f.token(t, false),
		UpdateOrderStatusRequest{Status: "shipped"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, "/orders/"+checkout.OrderID+"/status", f.token(t, true),
		UpdateOrderStatusRequest{Status: "shipped"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	id, err := primitive.ObjectIDFromHex(checkout.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, f.orders.byID[id].Status)
}

func TestUpdateOrderStatus_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	checkout := f.checkout(t)

	rec := f.do(t, http.MethodPut, "/orders/"+checkout.OrderID+"/status", f.token(t, true),
		UpdateOrderStatusRequest{Status: "teleported"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProductBySlug(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/products/midnight-velvet", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var p catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Midnight Velvet", p.Title)

	rec = f.do(t, http.MethodGet, "/products/no-such-set", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
