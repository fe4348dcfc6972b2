package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

const (
	// GREATEST ignores the NULL max of an empty ledger.
	appendEntrySQL = `INSERT INTO tracking_entries (order_id, status, at)
		SELECT $1, $2, GREATEST($3::timestamptz,
			(SELECT max(at) FROM tracking_entries WHERE order_id = $1))
		ON CONFLICT (order_id, status) DO NOTHING
		RETURNING seq`

	appendEntryAfterSQL = `INSERT INTO tracking_entries (order_id, status, at)
		SELECT $1, $2, GREATEST($4::timestamptz, max(at))
		FROM tracking_entries WHERE order_id = $1
		HAVING bool_or(status = $3)
		ON CONFLICT (order_id, status) DO NOTHING
		RETURNING seq`

	appendEntriesSQL = `INSERT INTO tracking_entries (order_id, status, at)
		SELECT ids.id, $2, GREATEST($3::timestamptz,
			(SELECT max(at) FROM tracking_entries t WHERE t.order_id = ids.id))
		FROM unnest($1::text[]) AS ids(id)
		ON CONFLICT (order_id, status) DO NOTHING`

	entriesByOrderSQL = `SELECT seq, order_id, status, at FROM tracking_entries
		WHERE order_id = $1 ORDER BY at, seq`

	outletDaySQL = `SELECT t.seq, t.order_id, t.status, t.at, o.payment_status
		FROM tracking_entries t JOIN orders o ON o.id = t.order_id
		WHERE o.outlet_id = $1 AND t.at >= $2 AND t.at < $3
		ORDER BY t.order_id, t.at, t.seq`

	countOutletOrdersSQL = `SELECT count(*) FROM orders WHERE outlet_id = $1`

	outletLogsSQL = `SELECT o.id, o.code, t.seq, t.status, t.at
		FROM (SELECT id, code, created_at FROM orders WHERE outlet_id = $1
			ORDER BY created_at DESC, id LIMIT $2 OFFSET $3) o
		JOIN tracking_entries t ON t.order_id = o.id
		ORDER BY o.created_at DESC, o.id, t.at, t.seq`
)

var _ tracking.Repository = (*TrackingRepository)(nil)

// TrackingRepository implements tracking.Repository backed by PostgreSQL.
// The (order_id, status) unique key makes appends idempotent.
type TrackingRepository struct {
	pool *pgxpool.Pool
}

// NewTrackingRepository returns a TrackingRepository that uses the given pool.
func NewTrackingRepository(pool *pgxpool.Pool) *TrackingRepository {
	return &TrackingRepository{pool: pool}
}

// Append records status for an order unless it is already present.
func (r *TrackingRepository) Append(ctx context.Context, orderID string, status tracking.Status, at time.Time) (bool, error) {
	return appendEntry(ctx, r.pool, orderID, status, at)
}

// AppendAfter records status only when after is already in the ledger.
func (r *TrackingRepository) AppendAfter(ctx context.Context, orderID string, status, after tracking.Status, at time.Time) (bool, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, appendEntryAfterSQL, orderID, string(status), string(after), at).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("appending %q after %q to order %q: %w", status, after, orderID, err)
	}
	return true, nil
}

// ByOrder returns the entries of an order in ledger order.
func (r *TrackingRepository) ByOrder(ctx context.Context, orderID string) ([]tracking.Entry, error) {
	rows, err := r.pool.Query(ctx, entriesByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing ledger of order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanEntry)
}

// OutletDay returns the outlet's orders with the entries they got in
// [from, to).
func (r *TrackingRepository) OutletDay(ctx context.Context, outletID string, from, to time.Time) ([]tracking.DayActivity, error) {
	rows, err := r.pool.Query(ctx, outletDaySQL, outletID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing outlet %q activity: %w", outletID, err)
	}
	defer rows.Close()

	var (
		day []tracking.DayActivity
		e   tracking.Entry
		ps  string
	)
	for rows.Next() {
		var status string
		if err := rows.Scan(&e.Seq, &e.OrderID, &status, &e.Timestamp, &ps); err != nil {
			return nil, fmt.Errorf("scanning outlet activity: %w", err)
		}
		e.Status = tracking.Status(status)
		if n := len(day); n == 0 || day[n-1].OrderID != e.OrderID {
			day = append(day, tracking.DayActivity{
				OrderID: e.OrderID,
				Paid:    ps == "paid",
				Unpaid:  ps == "unpaid",
			})
		}
		last := &day[len(day)-1]
		last.Entries = append(last.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing outlet %q activity: %w", outletID, err)
	}
	return day, nil
}

// ListByOutlet returns a page of the outlet's orders, newest first, each
// with its full ledger.
func (r *TrackingRepository) ListByOutlet(ctx context.Context, outletID string, p pagination.Params) ([]tracking.OrderLog, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, countOutletOrdersSQL, outletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting outlet %q orders: %w", outletID, err)
	}

	rows, err := r.pool.Query(ctx, outletLogsSQL, outletID, p.Limit, p.Skip())
	if err != nil {
		return nil, 0, fmt.Errorf("listing outlet %q ledgers: %w", outletID, err)
	}
	defer rows.Close()

	var logs []tracking.OrderLog
	for rows.Next() {
		var (
			code   string
			status string
			e      tracking.Entry
		)
		if err := rows.Scan(&e.OrderID, &code, &e.Seq, &status, &e.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("scanning outlet ledgers: %w", err)
		}
		e.Status = tracking.Status(status)
		if n := len(logs); n == 0 || logs[n-1].OrderID != e.OrderID {
			logs = append(logs, tracking.OrderLog{OrderID: e.OrderID, OrderCode: code})
		}
		last := &logs[len(logs)-1]
		last.Entries = append(last.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing outlet %q ledgers: %w", outletID, err)
	}
	return logs, total, nil
}

func appendEntry(ctx context.Context, q querier, orderID string, status tracking.Status, at time.Time) (bool, error) {
	var seq int64
	err := q.QueryRow(ctx, appendEntrySQL, orderID, string(status), at).Scan(&seq)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case pgCode(err) == foreignKeyViolation:
		return false, tracking.ErrOrderNotFound
	default:
		return false, fmt.Errorf("appending %q to order %q: %w", status, orderID, err)
	}
}

func appendEntries(ctx context.Context, q querier, orderIDs []string, status tracking.Status, at time.Time) error {
	if _, err := q.Exec(ctx, appendEntriesSQL, orderIDs, string(status), at); err != nil {
		return fmt.Errorf("appending %q to %d orders: %w", status, len(orderIDs), err)
	}
	return nil
}

func scanEntry(row pgx.CollectableRow) (tracking.Entry, error) {
	var (
		e      tracking.Entry
		status string
	)
	err := row.Scan(&e.Seq, &e.OrderID, &status, &e.Timestamp)
	e.Status = tracking.Status(status)
	return e, err
}
