package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(5319), req["amount"])
		assert.Equal(t, "INR", req["currency"])
		assert.Equal(t, "ORD-20260829-0001", req["receipt"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Order{
			ID:       "order_gw123",
			Amount:   5319,
			Currency: "INR",
			Receipt:  "ORD-20260829-0001",
			Status:   "created",
		})
	}))
	defer srv.Close()

	client := NewClient("rzp_test_key", "rzp_test_secret").WithBaseURL(srv.URL)

	order, err := client.CreateOrder(context.Background(), 5319, "INR", "ORD-20260829-0001")
	require.NoError(t, err)
	assert.Equal(t, "order_gw123", order.ID)
	assert.Equal(t, int64(5319), order.Amount)
	assert.Equal(t, "created", order.Status)
}

func TestCreateOrder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
	}))
	defer srv.Close()

	client := NewClient("bad", "creds").WithBaseURL(srv.URL)

	_, err := client.CreateOrder(context.Background(), 100, "INR", "r1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "Authentication failed")
}
