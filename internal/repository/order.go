package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/laundry-orders/internal/domain/order"
	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

const (
	orderColumns = `o.id, o.code, o.user_id, o.customer_name, o.customer_phone, o.customer_email,
		o.outlet_id, o.items, o.subtotal, o.service_fee, o.discount_amount, o.discount_code, o.total,
		o.service_type, o.payment_type, o.payment_status, o.note, o.pickup_date, o.completed_at,
		o.expire_at, o.processed_by, o.created_at, o.updated_at`

	insertOrderSQL = `INSERT INTO orders (id, code, user_id, customer_name, customer_phone, customer_email,
		outlet_id, items, subtotal, service_fee, discount_amount, discount_code, total,
		service_type, payment_type, payment_status, note, pickup_date, completed_at,
		expire_at, processed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23)`

	insertEntrySQL = `INSERT INTO tracking_entries (order_id, status, at) VALUES ($1, $2, $3)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.outlet_id = $1
		ORDER BY o.created_at DESC, o.id LIMIT $2 OFFSET $3`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	// An order is cancellable while unpaid and before any settling entry.
	cancelOrderSQL = `UPDATE orders o SET payment_status = 'cancelled', updated_at = $2
		WHERE o.id = $1 AND o.payment_status = 'unpaid'
		AND NOT EXISTS (SELECT 1 FROM tracking_entries t WHERE t.order_id = o.id
			AND t.status IN ('In Progress', 'Completed', 'Taken', 'Order Canceled'))
		RETURNING ` + orderColumns

	expireDueSQL = `WITH due AS (
			SELECT id FROM orders
			WHERE payment_status = 'unpaid' AND expire_at IS NOT NULL AND expire_at <= $1
			ORDER BY expire_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE orders o SET payment_status = 'expired', updated_at = $1
		FROM due WHERE o.id = due.id
		RETURNING ` + orderColumns

	closePaymentsSQL = `UPDATE payments SET status = $2, updated_at = $3
		WHERE order_id = ANY($1) AND payment_status_rank($2) > payment_status_rank(status)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its payment and initial ledger in one
// transaction. The order items are serialized to JSON for storage in the
// JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, p *payment.Payment, entries []tracking.Entry) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.Code, o.Customer.UserID, o.Customer.Name, o.Customer.Phone, o.Customer.Email,
			o.OutletID, itemsJSON, o.Subtotal, o.ServiceFee, o.DiscountAmount, o.DiscountCode, o.Total,
			string(o.ServiceType), string(o.PaymentType), string(o.PaymentStatus), o.Note,
			o.PickupDate, o.CompletedAt, o.ExpireAt, o.ProcessedBy, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertPaymentSQL, paymentArgs(p)...); err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := tx.Exec(ctx, insertEntrySQL, o.ID, string(e.Status), e.Timestamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return order.ErrDuplicateCode
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByOutlet returns a page of the outlet's orders, newest first, and the
// outlet's order count.
func (r *OrderRepository) ListByOutlet(ctx context.Context, outletID string, p pagination.Params) ([]order.Order, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, countOutletOrdersSQL, outletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting outlet %q orders: %w", outletID, err)
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, outletID, p.Limit, p.Skip())
	if err != nil {
		return nil, 0, fmt.Errorf("listing outlet %q orders: %w", outletID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing outlet %q orders: %w", outletID, err)
	}
	return orders, total, nil
}

// Cancel cancels an unpaid order, its payment, and appends Order Canceled.
func (r *OrderRepository) Cancel(ctx context.Context, id string, at time.Time) (*order.Order, error) {
	var cancelled order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, cancelOrderSQL, id, at)
		if err != nil {
			return err
		}
		cancelled, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			var exists bool
			if err := tx.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return order.ErrNotFound
			}
			return order.ErrNotCancellable
		}
		return closeOrders(ctx, tx, []string{id}, payment.StatusCancelled, at)
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) || errors.Is(err, order.ErrNotCancellable) {
			return nil, err
		}
		return nil, fmt.Errorf("cancelling order %q: %w", id, err)
	}
	return &cancelled, nil
}

// ExpireDue expires up to limit overdue unpaid orders. Rows locked by a
// concurrent sweep are skipped.
func (r *OrderRepository) ExpireDue(ctx context.Context, now time.Time, limit int) ([]order.Order, error) {
	var expired []order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, expireDueSQL, now, limit)
		if err != nil {
			return err
		}
		expired, err = pgx.CollectRows(rows, scanOrder)
		if err != nil || len(expired) == 0 {
			return err
		}
		ids := make([]string, len(expired))
		for i := range expired {
			ids[i] = expired[i].ID
		}
		return closeOrders(ctx, tx, ids, payment.StatusExpired, now)
	})
	if err != nil {
		return nil, fmt.Errorf("expiring orders: %w", err)
	}
	return expired, nil
}

// closeOrders moves the payments of closed orders to status and appends
// Order Canceled to their ledgers.
func closeOrders(ctx context.Context, tx pgx.Tx, ids []string, status payment.Status, at time.Time) error {
	if _, err := tx.Exec(ctx, closePaymentsSQL, ids, string(status), at); err != nil {
		return err
	}
	return appendEntries(ctx, tx, ids, tracking.StatusOrderCanceled, at)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		items         []byte
		serviceType   string
		paymentType   string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.Code, &o.Customer.UserID, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Email,
		&o.OutletID, &items, &o.Subtotal, &o.ServiceFee, &o.DiscountAmount, &o.DiscountCode, &o.Total,
		&serviceType, &paymentType, &paymentStatus, &o.Note, &o.PickupDate, &o.CompletedAt,
		&o.ExpireAt, &o.ProcessedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.ServiceType = pricing.ServiceType(serviceType)
	o.PaymentType = order.PaymentType(paymentType)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	return o, nil
}
