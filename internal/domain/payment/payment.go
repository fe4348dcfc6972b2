// Package payment reconciles gateway notifications with stored payments.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/pkg/apperror"
)

// Status is the state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Rank orders statuses by precedence: paid over the closing statuses over
// pending. A stored status is only ever replaced by one of higher rank.
func (s Status) Rank() int {
	switch s {
	case StatusPaid:
		return 2
	case StatusFailed, StatusExpired, StatusCancelled:
		return 1
	default:
		return 0
	}
}

// Supersedes reports whether s may replace current.
func (s Status) Supersedes(current Status) bool {
	return s.Rank() > current.Rank()
}

var (
	// ErrOrderNotFound is returned when a notification names an unknown order.
	ErrOrderNotFound = apperror.NotFound("order")
	// ErrNotFound is returned when an order has no payment record.
	ErrNotFound = apperror.NotFound("payment")
	// ErrInvalidSignature is returned for a notification whose signature does not verify.
	ErrInvalidSignature = apperror.Authentication("invalid notification signature")
)

// Payment is the payment record of an order.
type Payment struct {
	InvoiceNumber string
	OrderID       string
	// PaymentType is the order's payment type until the gateway reports the
	// concrete method.
	PaymentType   string
	Status        Status
	AmountPaid    decimal.Decimal
	TransactionID string
	GatewayToken  string
	RedirectURL   string
	// Metadata is the raw body of the last applied notification.
	Metadata  []byte
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInvoiceNumber returns a fresh invoice number.
func NewInvoiceNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "INV-" + now.Format("20060102") + "-" + id[:12]
}

// OrderRef is what reconciliation needs to know about an order.
type OrderRef struct {
	ID            string
	Code          string
	OutletID      string
	Total         decimal.Decimal
	PaymentStatus string
}

// Transition is a requested payment status change for an order.
type Transition struct {
	OrderID       string
	InvoiceNumber string
	Target        Status
	PaymentType   string
	TransactionID string
	Amount        decimal.Decimal
	// PaidAt is used only when Target is paid and the payment has no
	// paid-at time yet.
	PaidAt   time.Time
	Metadata []byte
	At       time.Time
}

// Outcome describes what a Transition changed.
type Outcome struct {
	Payment *Payment
	// Applied is false when the stored status already had equal or higher
	// precedence; nothing was changed then.
	Applied bool
	// OrderPaid is set when the order moved to paid and Payment Received
	// was appended.
	OrderPaid bool
	// OrderClosed is set when an unpaid order moved to expired or cancelled
	// and Order Canceled was appended.
	OrderClosed bool
	// DiscountCode is the order's voucher, if any.
	DiscountCode string
	// VoucherReleased is set when closing the order gave its voucher slot back.
	VoucherReleased bool
	// VoucherOverdrawn is set when a payment revived an expired or cancelled
	// order whose voucher had no slot left to take back. The order keeps its
	// discount.
	VoucherOverdrawn bool
}

// Store applies payment transitions atomically.
type Store interface {
	// OrderByCode returns ErrOrderNotFound for an unknown code.
	OrderByCode(ctx context.Context, code string) (*OrderRef, error)
	// PaymentByOrder returns ErrNotFound when the order has no payment.
	PaymentByOrder(ctx context.Context, orderID string) (*Payment, error)
	// Apply replaces the payment status only if Target supersedes the stored
	// one, and in the same transaction updates the order and appends the
	// matching tracking entry. The conditional update is the only
	// serialization point between concurrent deliveries.
	Apply(ctx context.Context, t Transition) (*Outcome, error)
}
