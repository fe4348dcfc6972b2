package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/laundry-orders/internal/domain/event"
	"github.com/xenking/laundry-orders/pkg/apperror"
)

const settlementTimeLayout = "2006-01-02 15:04:05"

// Deduper remembers notifications that were already reconciled. It only
// short-circuits redeliveries; correctness rests on Store.Apply.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type nopDeduper struct{}

func (nopDeduper) Seen(context.Context, string) (bool, error) { return false, nil }
func (nopDeduper) Mark(context.Context, string) error         { return nil }

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithDeduper sets the redelivery fast path.
func WithDeduper(d Deduper) Option {
	return func(r *Reconciler) { r.dedup = d }
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p event.Publisher) Option {
	return func(r *Reconciler) { r.events = p }
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Reconciler) { r.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Reconciler) { r.meterProvider = mp }
}

// Reconciler applies gateway notifications to payments, orders and the
// tracking ledger.
type Reconciler struct {
	store  Store
	cfg    *GatewayConfig
	dedup  Deduper
	events event.Publisher
	now    func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	notifications  metric.Int64Counter
}

// NewReconciler creates a Reconciler verifying signatures with cfg.ServerKey.
func NewReconciler(store Store, cfg *GatewayConfig, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{
		store:          store,
		cfg:            cfg,
		dedup:          nopDeduper{},
		events:         event.Nop{},
		now:            time.Now,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(r)
	}
	r.tracer = r.tracerProvider.Tracer("github.com/xenking/laundry-orders/internal/domain/payment")
	counter, err := r.meterProvider.Meter("github.com/xenking/laundry-orders/internal/domain/payment").
		Int64Counter("laundry.payment.notifications",
			metric.WithDescription("Payment notifications by reconciliation outcome"),
		)
	if err != nil {
		return nil, errors.Wrap(err, "create notifications counter")
	}
	r.notifications = counter
	return r, nil
}

// Reconcile verifies n and applies it. Redeliveries and notifications that
// would lower the stored status are no-ops returning the current payment.
// A notification with a bad signature changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, n Notification) (_ *Payment, rerr error) {
	ctx, span := r.tracer.Start(ctx, "payment.Reconcile", trace.WithAttributes(
		attribute.String("order.code", n.OrderCode),
		attribute.String("gateway.transaction_status", n.TransactionStatus),
	))
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()
	lg := zctx.From(ctx).With(
		zap.String("order_code", n.OrderCode),
		zap.String("transaction_id", n.TransactionID),
		zap.String("transaction_status", n.TransactionStatus),
	)

	if !VerifySignature(n, r.cfg.ServerKey) {
		lg.Warn("Rejected notification with invalid signature")
		r.count(ctx, "rejected")
		return nil, ErrInvalidSignature
	}
	if n.OrderCode == "" {
		return nil, apperror.Validation("invalid notification", apperror.FieldError{Field: "order_id", Message: "required"})
	}
	amount, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		return nil, apperror.Validation("invalid notification", apperror.FieldError{Field: "gross_amount", Message: "not a number"})
	}
	target := MapStatus(n.TransactionStatus, n.FraudStatus)

	order, err := r.store.OrderByCode(ctx, n.OrderCode)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}

	key := n.DedupKey(target)
	if r.seen(ctx, key) {
		lg.Debug("Skipping redelivered notification")
		r.count(ctx, "duplicate")
		p, err := r.store.PaymentByOrder(ctx, order.ID)
		if err != nil {
			return nil, errors.Wrap(err, "get payment")
		}
		return p, nil
	}

	if target == StatusPaid && !amount.Equal(order.Total) {
		lg.Warn("Gross amount differs from order total",
			zap.Stringer("gross_amount", amount),
			zap.Stringer("order_total", order.Total),
		)
	}

	now := r.now()
	out, err := r.store.Apply(ctx, Transition{
		OrderID:       order.ID,
		InvoiceNumber: NewInvoiceNumber(now),
		Target:        target,
		PaymentType:   n.PaymentType,
		TransactionID: n.TransactionID,
		Amount:        amount,
		PaidAt:        r.paidAt(n, now),
		Metadata:      n.Raw,
		At:            now,
	})
	if err != nil {
		r.count(ctx, "failed")
		return nil, errors.Wrap(err, "apply payment transition")
	}
	if err := r.dedup.Mark(ctx, key); err != nil {
		lg.Warn("Failed to remember notification", zap.Error(err))
	}

	if !out.Applied {
		lg.Debug("Notification does not supersede stored status",
			zap.String("target", string(target)),
			zap.String("stored", string(out.Payment.Status)),
		)
		r.count(ctx, "ignored")
		return out.Payment, nil
	}

	lg.Info("Payment status updated", zap.String("status", string(out.Payment.Status)))
	if out.VoucherOverdrawn {
		lg.Warn("Voucher usage limit exceeded by revived order", zap.String("discount_code", out.DiscountCode))
	}
	r.count(ctx, "applied")
	r.publish(ctx, lg, order, out, target, now)
	return out.Payment, nil
}

func (r *Reconciler) seen(ctx context.Context, key string) bool {
	ok, err := r.dedup.Seen(ctx, key)
	if err != nil {
		zctx.From(ctx).Warn("Dedup lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (r *Reconciler) paidAt(n Notification, now time.Time) time.Time {
	if n.SettlementTime == "" {
		return now
	}
	loc := r.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(settlementTimeLayout, n.SettlementTime, loc)
	if err != nil {
		return now
	}
	return t
}

func (r *Reconciler) publish(ctx context.Context, lg *zap.Logger, order *OrderRef, out *Outcome, target Status, now time.Time) {
	e := event.Event{
		OrderID:    order.ID,
		OrderCode:  order.Code,
		OutletID:   order.OutletID,
		Status:     string(target),
		OccurredAt: now,
	}
	switch {
	case out.OrderPaid:
		e.Type = event.PaymentReceived
	case out.OrderClosed && target == StatusExpired:
		e.Type = event.OrderExpired
	case out.OrderClosed:
		e.Type = event.OrderCanceled
	default:
		return
	}
	if err := r.events.Publish(ctx, e); err != nil {
		lg.Warn("Failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func (r *Reconciler) count(ctx context.Context, outcome string) {
	r.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
