package midtrans

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/laundry-orders/internal/domain/payment"
)

func testRequest() payment.ChargeRequest {
	return payment.ChargeRequest{
		OrderCode:   "ORD-20250615-ABCDEF123456",
		GrossAmount: decimal.RequireFromString("94500"),
		Items: []payment.ChargeItem{
			{ID: "suit", Name: "Suit", Price: decimal.RequireFromString("35000"), Quantity: 2},
			{ID: "wash", Name: "Wash & Fold (2.5 kg)", Price: decimal.RequireFromString("25000"), Quantity: 1},
			{ID: "DISCOUNT", Name: "Discount", Price: decimal.RequireFromString("-500.5"), Quantity: 1},
		},
		Customer: payment.ChargeCustomer{Name: "Sari", Email: "sari@example.com"},
	}
}

func newTestClient(url string) *Client {
	return NewClient(&payment.GatewayConfig{
		ServerKey:       "SB-Mid-server-test",
		BaseURL:         url,
		Timeout:         5 * time.Second,
		EnabledPayments: []string{"bca_va", "gopay"},
	}, tracenoop.NewTracerProvider())
}

func TestClient_CreateTransaction(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/snap/v1/transactions", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "SB-Mid-server-test", user)
		assert.Empty(t, pass)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"tok-1","redirect_url":"https://app.sandbox.midtrans.com/snap/v4/redirection/tok-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL + "/snap/v1/")
	charge, err := c.CreateTransaction(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", charge.Token)
	assert.Contains(t, charge.RedirectURL, "tok-1")

	details := got["transaction_details"].(map[string]any)
	assert.Equal(t, "ORD-20250615-ABCDEF123456", details["order_id"])
	assert.Equal(t, float64(94500), details["gross_amount"])

	items := got["item_details"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, float64(2), items[0].(map[string]any)["quantity"])
	assert.Equal(t, -500.5, items[2].(map[string]any)["price"])

	assert.Equal(t, []any{"bca_va", "gopay"}, got["enabled_payments"])
	assert.Equal(t, "Sari", got["customer_details"].(map[string]any)["first_name"])
}

func TestClient_CreateTransaction_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_messages":["transaction_details.gross_amount is not equal to the sum of item_details"]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateTransaction(context.Background(), testRequest())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, []string{"transaction_details.gross_amount is not equal to the sum of item_details"}, apiErr.Messages)
}

func TestClient_CreateTransaction_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"redirect_url":"x"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateTransaction(context.Background(), testRequest())
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 50))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "ké", truncate("kéé", 2))
}
