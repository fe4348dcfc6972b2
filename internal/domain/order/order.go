package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
	"github.com/xenking/laundry-orders/internal/domain/product"
	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/pkg/apperror"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

var (
	ErrNotFound          = apperror.NotFound("order")
	ErrDuplicateCode     = apperror.Conflict("order code already exists")
	ErrNotCancellable    = apperror.Conflict("order can no longer be cancelled")
	ErrIllegalTransition = apperror.Conflict("illegal order state transition")
	ErrNotPaid           = apperror.Conflict("order is not paid")
	ErrNotPayable        = apperror.Conflict("order is not awaiting payment")
	ErrCashPayment       = apperror.Conflict("cash orders are paid at the counter")
	ErrUnsupportedTarget = apperror.Validation("unsupported target state")
)

// PaymentType is how the customer pays.
type PaymentType string

const (
	PaymentCash         PaymentType = "cash"
	PaymentBankTransfer PaymentType = "bank_transfer"
	PaymentEWallet      PaymentType = "ewallet"
)

// Valid reports whether t is a known payment type.
func (t PaymentType) Valid() bool {
	return t == PaymentCash || t == PaymentBankTransfer || t == PaymentEWallet
}

// Online reports whether t is settled through the payment gateway.
func (t PaymentType) Online() bool {
	return t == PaymentBankTransfer || t == PaymentEWallet
}

// PaymentStatus is the order-level payment state.
type PaymentStatus string

const (
	StatusUnpaid    PaymentStatus = "unpaid"
	StatusPaid      PaymentStatus = "paid"
	StatusExpired   PaymentStatus = "expired"
	StatusCancelled PaymentStatus = "cancelled"
)

// Customer identifies who the order is for. UserID is empty for walk-in
// customers.
type Customer struct {
	UserID string
	Name   string
	Phone  string
	Email  string
}

// Item is an order line with the price captured at creation.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Unit      product.Unit    `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is a laundry order. Amounts and lines are fixed at creation; only
// PaymentStatus changes afterwards.
type Order struct {
	ID             string
	Code           string
	Customer       Customer
	OutletID       string
	Items          []Item
	Subtotal       decimal.Decimal
	ServiceFee     decimal.Decimal
	DiscountAmount decimal.Decimal
	DiscountCode   string
	Total          decimal.Decimal
	ServiceType    pricing.ServiceType
	PaymentType    PaymentType
	PaymentStatus  PaymentStatus
	Note           string
	PickupDate     time.Time
	// CompletedAt is the estimated completion time.
	CompletedAt time.Time
	// ExpireAt is set for online orders only.
	ExpireAt    *time.Time
	ProcessedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewCode returns a fresh order code.
func NewCode(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + now.Format("20060102") + "-" + id[:12]
}

// State is the lifecycle position of an order.
type State string

const (
	StateCreated        State = "created"
	StatePaymentPending State = "payment_pending"
	StatePaid           State = "paid"
	StateInProgress     State = "in_progress"
	StateCompleted      State = "completed"
	StateTaken          State = "taken"
	StateCancelled      State = "cancelled"
	StateExpired        State = "expired"
)

// StateOf derives the lifecycle state from the order, its payment and its ledger.
func StateOf(o *Order, p *payment.Payment, entries []tracking.Entry) State {
	switch o.PaymentStatus {
	case StatusCancelled:
		return StateCancelled
	case StatusExpired:
		return StateExpired
	case StatusUnpaid:
		if p != nil && p.GatewayToken != "" {
			return StatePaymentPending
		}
		return StateCreated
	}
	switch {
	case tracking.Has(entries, tracking.StatusTaken):
		return StateTaken
	case tracking.Has(entries, tracking.StatusCompleted):
		return StateCompleted
	case tracking.Has(entries, tracking.StatusInProgress):
		return StateInProgress
	}
	return StatePaid
}

// ledgerStatus maps an operational target state to its ledger entry.
func ledgerStatus(s State) (tracking.Status, bool) {
	switch s {
	case StateInProgress:
		return tracking.StatusInProgress, true
	case StateCompleted:
		return tracking.StatusCompleted, true
	case StateTaken:
		return tracking.StatusTaken, true
	}
	return "", false
}

// Details is an order with its payment, ledger and derived state.
type Details struct {
	Order    *Order
	Payment  *payment.Payment
	Tracking []tracking.Entry
	State    State
}

// Repository persists orders.
type Repository interface {
	// Create stores the order, its payment and its initial ledger entries
	// atomically. It returns ErrDuplicateCode when the code is taken.
	Create(ctx context.Context, o *Order, p *payment.Payment, entries []tracking.Entry) error
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*Order, error)
	ListByOutlet(ctx context.Context, outletID string, p pagination.Params) ([]Order, int64, error)
	// Cancel moves an unpaid order without settling ledger entries to
	// cancelled, cancels its payment and appends Order Canceled, as one
	// conditional update. It returns ErrNotFound or ErrNotCancellable.
	Cancel(ctx context.Context, id string, at time.Time) (*Order, error)
	// ExpireDue moves up to limit unpaid orders whose ExpireAt is not after
	// now to expired, with the same side effects as Cancel.
	ExpireDue(ctx context.Context, now time.Time, limit int) ([]Order, error)
}

// Payments reads and updates the payment record of an order.
type Payments interface {
	PaymentByOrder(ctx context.Context, orderID string) (*payment.Payment, error)
	// AttachCharge stores the remote transaction handle on a pending payment.
	AttachCharge(ctx context.Context, orderID string, c payment.Charge) (*payment.Payment, error)
}
