package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/laundry-orders/internal/domain/event"
	"github.com/xenking/laundry-orders/internal/domain/member"
	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/pkg/apperror"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

const codeAttempts = 3

// Pricer computes order totals. Compute redeems the voucher, Estimate does not.
type Pricer interface {
	Compute(ctx context.Context, req pricing.Request) (*pricing.Quote, error)
	Estimate(ctx context.Context, req pricing.Request) (*pricing.Quote, error)
}

// VoucherReleaser returns redemptions of orders that did not go through.
type VoucherReleaser interface {
	Release(ctx context.Context, code string) error
}

// Ledger is the tracking API used by the lifecycle.
type Ledger interface {
	AppendAfter(ctx context.Context, orderID string, status, after tracking.Status) (bool, error)
	ByOrder(ctx context.Context, orderID string) ([]tracking.Entry, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Pricing  Pricer
	Vouchers VoucherReleaser
	Members  member.Repository
	Orders   Repository
	Payments Payments
	Ledger   Ledger
	Gateway  payment.Gateway
	Events   event.Publisher
}

// Config tunes the lifecycle.
type Config struct {
	// PaymentTTL is how long an online order waits for payment.
	PaymentTTL time.Duration
	// ExpireBatch bounds the orders expired per sweep.
	ExpireBatch int
	// Location is the zone calendar days are evaluated in.
	Location *time.Location
}

// Service implements the order lifecycle.
type Service struct {
	Deps
	cfg Config
	now func() time.Time
}

// NewService creates an order Service.
func NewService(deps Deps, cfg Config) *Service {
	if deps.Events == nil {
		deps.Events = event.Nop{}
	}
	if cfg.PaymentTTL <= 0 {
		cfg.PaymentTTL = 2 * time.Hour
	}
	if cfg.ExpireBatch <= 0 {
		cfg.ExpireBatch = 100
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{Deps: deps, cfg: cfg, now: time.Now}
}

// CreateRequest is the input for creating an order.
type CreateRequest struct {
	Customer    Customer
	OutletID    string
	Items       []pricing.Item
	PickupDate  time.Time
	Note        string
	PaymentType PaymentType
	ServiceType pricing.ServiceType
	VoucherCode string
	// ProcessedBy is the cashier creating a cash order.
	ProcessedBy string
}

// Create prices and stores a new order. Cash orders are created paid with a
// settled payment; online orders are unpaid and expire after PaymentTTL.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Details, error) {
	now := s.now()
	if err := validateCreate(req, now, s.cfg.Location); err != nil {
		return nil, err
	}

	m, err := s.member(ctx, req.Customer.UserID, req.OutletID)
	if err != nil {
		return nil, err
	}

	quote, err := s.Pricing.Compute(ctx, pricing.Request{
		OutletID:    req.OutletID,
		Items:       req.Items,
		ServiceType: req.ServiceType,
		VoucherCode: req.VoucherCode,
		Member:      m,
	})
	if err != nil {
		return nil, errors.Wrap(err, "price order")
	}

	o, p, entries := s.build(req, quote, now)
	for attempt := 1; ; attempt++ {
		err = s.Orders.Create(ctx, o, p, entries)
		if !errors.Is(err, ErrDuplicateCode) || attempt == codeAttempts {
			break
		}
		o.Code = NewCode(now)
	}
	if err != nil {
		if o.DiscountCode != "" {
			s.releaseVoucher(ctx, o.DiscountCode)
		}
		return nil, errors.Wrap(err, "store order")
	}

	s.publish(ctx, o, event.OrderCreated, string(tracking.StatusOrderCreated))
	return &Details{Order: o, Payment: p, Tracking: entries, State: StateOf(o, p, entries)}, nil
}

// QuoteRequest is the input for pricing a prospective order.
type QuoteRequest struct {
	UserID      string
	OutletID    string
	Items       []pricing.Item
	ServiceType pricing.ServiceType
	VoucherCode string
}

// Quote prices a prospective order, applying the customer's membership and
// checking the voucher without redeeming it.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error) {
	var fields []apperror.FieldError
	if req.OutletID == "" {
		fields = append(fields, apperror.FieldError{Field: "outletId", Message: "required"})
	}
	if len(req.Items) == 0 {
		fields = append(fields, apperror.FieldError{Field: "items", Message: "at least one item is required"})
	}
	if !req.ServiceType.Valid() {
		fields = append(fields, apperror.FieldError{Field: "serviceType", Message: "must be regular, express or super_express"})
	}
	if len(fields) > 0 {
		return nil, apperror.Validation("invalid quote request", fields...)
	}

	m, err := s.member(ctx, req.UserID, req.OutletID)
	if err != nil {
		return nil, err
	}
	q, err := s.Pricing.Estimate(ctx, pricing.Request{
		OutletID:    req.OutletID,
		Items:       req.Items,
		ServiceType: req.ServiceType,
		VoucherCode: req.VoucherCode,
		Member:      m,
	})
	if err != nil {
		return nil, errors.Wrap(err, "estimate order")
	}
	return q, nil
}

func (s *Service) member(ctx context.Context, userID, outletID string) (*member.Member, error) {
	if userID == "" {
		return nil, nil
	}
	m, err := s.Members.FindByUserOutlet(ctx, userID, outletID)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get member")
	}
	return m, nil
}

func (s *Service) build(req CreateRequest, q *pricing.Quote, now time.Time) (*Order, *payment.Payment, []tracking.Entry) {
	items := make([]Item, len(q.Lines))
	for i, l := range q.Lines {
		items[i] = Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Unit:      l.Unit,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		}
	}
	o := &Order{
		ID:             uuid.NewString(),
		Code:           NewCode(now),
		Customer:       req.Customer,
		OutletID:       req.OutletID,
		Items:          items,
		Subtotal:       q.Subtotal,
		ServiceFee:     q.ServiceFee,
		DiscountAmount: q.DiscountAmount,
		Total:          q.Total,
		ServiceType:    req.ServiceType,
		PaymentType:    req.PaymentType,
		PaymentStatus:  StatusUnpaid,
		Note:           req.Note,
		PickupDate:     req.PickupDate,
		CompletedAt:    q.EstimatedCompletion,
		ProcessedBy:    req.ProcessedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if q.Voucher != nil {
		o.DiscountCode = q.Voucher.Code
	}

	p := &payment.Payment{
		InvoiceNumber: payment.NewInvoiceNumber(now),
		OrderID:       o.ID,
		PaymentType:   string(req.PaymentType),
		Status:        payment.StatusPending,
		AmountPaid:    decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	entries := []tracking.Entry{{OrderID: o.ID, Status: tracking.StatusOrderCreated, Timestamp: now}}

	// Nothing to collect online when discounts cover the whole order.
	if req.PaymentType.Online() && o.Total.IsPositive() {
		expireAt := now.Add(s.cfg.PaymentTTL)
		o.ExpireAt = &expireAt
	} else {
		o.PaymentStatus = StatusPaid
		p.Status = payment.StatusPaid
		p.AmountPaid = o.Total
		paidAt := now
		p.PaidAt = &paidAt
		entries = append(entries, tracking.Entry{OrderID: o.ID, Status: tracking.StatusPaymentReceived, Timestamp: now})
	}
	return o, p, entries
}

// Get returns an order with its payment, ledger and state.
func (s *Service) Get(ctx context.Context, id string) (*Details, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return s.details(ctx, o)
}

func (s *Service) details(ctx context.Context, o *Order) (*Details, error) {
	p, err := s.Payments.PaymentByOrder(ctx, o.ID)
	if err != nil && !errors.Is(err, payment.ErrNotFound) {
		return nil, errors.Wrap(err, "get payment")
	}
	entries, err := s.Ledger.ByOrder(ctx, o.ID)
	if err != nil && !errors.Is(err, tracking.ErrOrderNotFound) {
		return nil, errors.Wrap(err, "get ledger")
	}
	return &Details{Order: o, Payment: p, Tracking: entries, State: StateOf(o, p, entries)}, nil
}

// ListByOutlet returns a page of the outlet's orders, newest first.
func (s *Service) ListByOutlet(ctx context.Context, outletID string, p pagination.Params) (*pagination.Page[Order], error) {
	p = p.Normalize()
	orders, total, err := s.Orders.ListByOutlet(ctx, outletID, p)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pagination.NewPage(orders, p, total), nil
}

// Cancel cancels an unpaid order that has not entered processing and
// returns its voucher redemption.
func (s *Service) Cancel(ctx context.Context, id string) (*Details, error) {
	o, err := s.Orders.Cancel(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotCancellable) {
			return nil, err
		}
		return nil, errors.Wrap(err, "cancel order")
	}
	if o.DiscountCode != "" {
		s.releaseVoucher(ctx, o.DiscountCode)
	}
	s.publish(ctx, o, event.OrderCanceled, string(tracking.StatusOrderCanceled))
	return s.details(ctx, o)
}

// Advance moves a paid order one operational step forward. Repeating a
// step already taken is a no-op; skipping or going back is a conflict.
func (s *Service) Advance(ctx context.Context, id string, target State) (*Details, error) {
	status, ok := ledgerStatus(target)
	if !ok {
		return nil, ErrUnsupportedTarget
	}
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	entries, err := s.Ledger.ByOrder(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get ledger")
	}
	if tracking.Has(entries, status) {
		return s.details(ctx, o)
	}
	if o.PaymentStatus != StatusPaid {
		return nil, ErrNotPaid
	}
	prev, _ := status.Predecessor()
	if !tracking.Has(entries, prev) {
		return nil, errors.Wrapf(ErrIllegalTransition, "%s requires %s", status, prev)
	}

	appended, err := s.Ledger.AppendAfter(ctx, id, status, prev)
	if err != nil {
		return nil, errors.Wrap(err, "append ledger")
	}
	if !appended {
		// Lost a race: either the same step was recorded concurrently, which
		// is fine, or the ledger changed under us.
		d, err := s.details(ctx, o)
		if err != nil {
			return nil, err
		}
		if !tracking.Has(d.Tracking, status) {
			return nil, ErrIllegalTransition
		}
		return d, nil
	}

	s.publish(ctx, o, event.OrderAdvanced, string(status))
	return s.details(ctx, o)
}

// StartPayment opens a gateway transaction for an unpaid online order and
// stores its handle, moving the order to payment pending. Calling it again
// returns the existing handle.
func (s *Service) StartPayment(ctx context.Context, id string) (*payment.Payment, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if !o.PaymentType.Online() {
		return nil, ErrCashPayment
	}
	if o.PaymentStatus != StatusUnpaid || !o.Total.IsPositive() {
		return nil, ErrNotPayable
	}
	if o.ExpireAt != nil && !s.now().Before(*o.ExpireAt) {
		return nil, ErrNotPayable
	}

	p, err := s.Payments.PaymentByOrder(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get payment")
	}
	if p.GatewayToken != "" {
		return p, nil
	}

	charge, err := s.Gateway.CreateTransaction(ctx, chargeRequest(o))
	if err != nil {
		return nil, errors.Wrap(err, "create gateway transaction")
	}
	p, err = s.Payments.AttachCharge(ctx, id, *charge)
	if err != nil {
		return nil, errors.Wrap(err, "attach charge")
	}
	return p, nil
}

// ExpireStale expires unpaid online orders past their deadline and returns
// how many were expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	expired, err := s.Orders.ExpireDue(ctx, s.now(), s.cfg.ExpireBatch)
	if err != nil {
		return 0, errors.Wrap(err, "expire orders")
	}
	for i := range expired {
		o := &expired[i]
		if o.DiscountCode != "" {
			s.releaseVoucher(ctx, o.DiscountCode)
		}
		s.publish(ctx, o, event.OrderExpired, string(StatusExpired))
	}
	return len(expired), nil
}

func (s *Service) releaseVoucher(ctx context.Context, code string) {
	if err := s.Vouchers.Release(ctx, code); err != nil {
		zctx.From(ctx).Error("Failed to release voucher", zap.String("voucher", code), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, o *Order, t event.Type, status string) {
	err := s.Events.Publish(ctx, event.Event{
		Type:       t,
		OrderID:    o.ID,
		OrderCode:  o.Code,
		OutletID:   o.OutletID,
		Status:     status,
		OccurredAt: s.now(),
	})
	if err != nil {
		zctx.From(ctx).Warn("Failed to publish event",
			zap.String("type", string(t)),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
