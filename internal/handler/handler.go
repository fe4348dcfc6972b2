// Package handler exposes the order, payment, tracking and voucher
// operations over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/laundry-orders/internal/domain/order"
	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/internal/domain/voucher"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Orders is the order lifecycle.
type Orders interface {
	Quote(ctx context.Context, req order.QuoteRequest) (*pricing.Quote, error)
	Create(ctx context.Context, req order.CreateRequest) (*order.Details, error)
	Get(ctx context.Context, id string) (*order.Details, error)
	Cancel(ctx context.Context, id string) (*order.Details, error)
	Advance(ctx context.Context, id string, target order.State) (*order.Details, error)
	StartPayment(ctx context.Context, id string) (*payment.Payment, error)
	ListByOutlet(ctx context.Context, outletID string, p pagination.Params) (*pagination.Page[order.Order], error)
}

// Reconciler applies gateway notifications.
type Reconciler interface {
	Reconcile(ctx context.Context, n payment.Notification) (*payment.Payment, error)
}

// Ledger reads order tracking.
type Ledger interface {
	ByOrder(ctx context.Context, orderID string) ([]tracking.Entry, error)
	SummaryByOutlet(ctx context.Context, outletID string, day time.Time) (tracking.Summary, error)
	ListByOutlet(ctx context.Context, outletID string, p pagination.Params) (*pagination.Page[tracking.OrderLog], error)
	Location() *time.Location
}

// Vouchers manages voucher definitions.
type Vouchers interface {
	Create(ctx context.Context, v *voucher.Voucher) error
}

// Handler serves the HTTP API.
type Handler struct {
	orders     Orders
	reconciler Reconciler
	ledger     Ledger
	vouchers   Vouchers
	validate   *validator.Validate
}

// New creates a Handler.
func New(orders Orders, reconciler Reconciler, ledger Ledger, vouchers Vouchers) *Handler {
	return &Handler{
		orders:     orders,
		reconciler: reconciler,
		ledger:     ledger,
		vouchers:   vouchers,
		validate:   newValidator(),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders/quote", h.quoteOrder)
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/advance", h.advanceOrder)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.startPayment)
	mux.HandleFunc("GET /api/outlets/{outletId}/orders", h.listOutletOrders)

	mux.HandleFunc("POST /api/payments/notifications", h.paymentNotification)

	mux.HandleFunc("GET /api/tracking/{orderId}", h.orderTracking)
	mux.HandleFunc("GET /api/tracking/outlets/{outletId}", h.outletTracking)
	mux.HandleFunc("GET /api/tracking/outlets/{outletId}/summary", h.outletSummary)

	mux.HandleFunc("POST /api/vouchers", h.createVoucher)
}
