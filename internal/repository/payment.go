package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/laundry-orders/internal/domain/order"
	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/tracking"
)

const (
	paymentColumns = `p.invoice_number, p.order_id, p.payment_type, p.status, p.amount_paid,
		p.transaction_id, p.gateway_token, p.redirect_url, p.metadata, p.paid_at, p.created_at, p.updated_at`

	insertPaymentSQL = `INSERT INTO payments (invoice_number, order_id, payment_type, status, amount_paid,
		transaction_id, gateway_token, redirect_url, metadata, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	paymentByOrderSQL = `SELECT ` + paymentColumns + ` FROM payments p WHERE p.order_id = $1`

	orderRefByCodeSQL = `SELECT id, code, outlet_id, total, payment_status FROM orders WHERE code = $1`

	lockOrderSQL = `SELECT payment_status, discount_code FROM orders WHERE id = $1 FOR UPDATE`

	attachChargeSQL = `UPDATE payments p SET gateway_token = $2, redirect_url = $3, updated_at = $4
		WHERE p.order_id = $1 AND p.status = 'pending'
		RETURNING ` + paymentColumns

	// The WHERE clause of the conflict branch is the precedence guard: a
	// stored status is only replaced by one of higher rank, so redeliveries
	// and late lower-rank notifications update nothing and return no row.
	applyPaymentSQL = `INSERT INTO payments AS p (invoice_number, order_id, payment_type, status,
			amount_paid, transaction_id, metadata, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text,
			CASE WHEN $4::text = 'paid' THEN $5::numeric ELSE 0 END,
			$6, $7, CASE WHEN $4::text = 'paid' THEN $8::timestamptz END, $9, $9)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			payment_type = COALESCE(NULLIF(EXCLUDED.payment_type, ''), p.payment_type),
			amount_paid = CASE WHEN EXCLUDED.status = 'paid' THEN EXCLUDED.amount_paid ELSE p.amount_paid END,
			transaction_id = COALESCE(NULLIF(EXCLUDED.transaction_id, ''), p.transaction_id),
			metadata = EXCLUDED.metadata,
			paid_at = CASE WHEN EXCLUDED.status = 'paid' THEN COALESCE(p.paid_at, EXCLUDED.paid_at) ELSE p.paid_at END,
			updated_at = EXCLUDED.updated_at
		WHERE payment_status_rank(EXCLUDED.status) > payment_status_rank(p.status)
		RETURNING ` + paymentColumns

	markOrderPaidSQL = `UPDATE orders SET payment_status = 'paid', updated_at = $2
		WHERE id = $1 AND payment_status <> 'paid'`

	closeOrderSQL = `UPDATE orders SET payment_status = $2, updated_at = $3
		WHERE id = $1 AND payment_status = 'unpaid'`
)

var (
	_ payment.Store  = (*PaymentRepository)(nil)
	_ order.Payments = (*PaymentRepository)(nil)
)

// PaymentRepository implements payment.Store and order.Payments backed by
// PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// OrderByCode returns what reconciliation needs about an order.
func (r *PaymentRepository) OrderByCode(ctx context.Context, code string) (*payment.OrderRef, error) {
	var ref payment.OrderRef
	err := r.pool.QueryRow(ctx, orderRefByCodeSQL, code).
		Scan(&ref.ID, &ref.Code, &ref.OutletID, &ref.Total, &ref.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", code, err)
	}
	return &ref, nil
}

// PaymentByOrder returns the payment record of an order.
func (r *PaymentRepository) PaymentByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	return paymentByOrder(ctx, r.pool, orderID)
}

// AttachCharge stores the gateway handle on a pending payment.
func (r *PaymentRepository) AttachCharge(ctx context.Context, orderID string, c payment.Charge) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, attachChargeSQL, orderID, c.Token, c.RedirectURL, time.Now())
	if err != nil {
		return nil, fmt.Errorf("attaching charge to order %q: %w", orderID, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either there is no payment, or it settled meanwhile.
			if _, err := r.PaymentByOrder(ctx, orderID); err != nil {
				return nil, err
			}
			return nil, order.ErrNotPayable
		}
		return nil, fmt.Errorf("attaching charge to order %q: %w", orderID, err)
	}
	return &p, nil
}

// Apply applies a payment transition under the order row lock.
func (r *PaymentRepository) Apply(ctx context.Context, t payment.Transition) (*payment.Outcome, error) {
	invoice := t.InvoiceNumber
	if invoice == "" {
		invoice = payment.NewInvoiceNumber(t.At)
	}

	var out payment.Outcome
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var orderStatus, discountCode string
		if err := tx.QueryRow(ctx, lockOrderSQL, t.OrderID).Scan(&orderStatus, &discountCode); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payment.ErrOrderNotFound
			}
			return err
		}

		rows, err := tx.Query(ctx, applyPaymentSQL,
			invoice, t.OrderID, t.PaymentType, string(t.Target), t.Amount,
			t.TransactionID, metadataArg(t.Metadata), t.PaidAt, t.At,
		)
		if err != nil {
			return err
		}
		p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			current, err := paymentByOrder(ctx, tx, t.OrderID)
			if err != nil {
				return err
			}
			out.Payment = current
			return nil
		case err != nil:
			return err
		}
		out.Payment = &p
		out.Applied = true

		switch t.Target {
		case payment.StatusPaid:
			tag, err := tx.Exec(ctx, markOrderPaidSQL, t.OrderID, t.At)
			if err != nil {
				return err
			}
			out.OrderPaid = tag.RowsAffected() > 0
			if out.OrderPaid && discountCode != "" && orderStatus != string(order.StatusUnpaid) {
				// The slot was given back when the order closed.
				out.DiscountCode = discountCode
				tag, err := tx.Exec(ctx, redeemVoucherSQL, discountCode)
				if err != nil {
					return err
				}
				out.VoucherOverdrawn = tag.RowsAffected() == 0
			}
			_, err = appendEntry(ctx, tx, t.OrderID, tracking.StatusPaymentReceived, t.At)
			return err
		case payment.StatusExpired, payment.StatusCancelled:
			status := order.StatusExpired
			if t.Target == payment.StatusCancelled {
				status = order.StatusCancelled
			}
			tag, err := tx.Exec(ctx, closeOrderSQL, t.OrderID, string(status), t.At)
			if err != nil {
				return err
			}
			out.OrderClosed = tag.RowsAffected() > 0
			if !out.OrderClosed {
				return nil
			}
			if discountCode != "" {
				out.DiscountCode = discountCode
				tag, err := tx.Exec(ctx, releaseVoucherSQL, discountCode)
				if err != nil {
					return err
				}
				out.VoucherReleased = tag.RowsAffected() > 0
			}
			_, err = appendEntry(ctx, tx, t.OrderID, tracking.StatusOrderCanceled, t.At)
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("applying %q to order %q: %w", t.Target, t.OrderID, err)
	}
	return &out, nil
}

func paymentByOrder(ctx context.Context, q querier, orderID string) (*payment.Payment, error) {
	rows, err := q.Query(ctx, paymentByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting payment of order %q: %w", orderID, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment of order %q: %w", orderID, err)
	}
	return &p, nil
}

func paymentArgs(p *payment.Payment) []any {
	return []any{
		p.InvoiceNumber, p.OrderID, p.PaymentType, string(p.Status), p.AmountPaid,
		p.TransactionID, p.GatewayToken, p.RedirectURL, metadataArg(p.Metadata), p.PaidAt,
		p.CreatedAt, p.UpdatedAt,
	}
}

// metadataArg maps an empty body to NULL rather than invalid JSON.
func metadataArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p        payment.Payment
		status   string
		metadata []byte
	)
	err := row.Scan(
		&p.InvoiceNumber, &p.OrderID, &p.PaymentType, &status, &p.AmountPaid,
		&p.TransactionID, &p.GatewayToken, &p.RedirectURL, &metadata, &p.PaidAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	p.Status = payment.Status(status)
	p.Metadata = metadata
	return p, err
}
