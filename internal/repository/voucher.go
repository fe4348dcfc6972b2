package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/laundry-orders/internal/domain/voucher"
)

const (
	voucherColumns = `id, code, percent, valid_from, valid_until, max_usage, usage_count,
		active, outlet_ids, product_ids`

	findVoucherSQL = `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`

	// The guard and the increment are one statement, so concurrent
	// redemptions of the last slot cannot both succeed.
	redeemVoucherSQL = `UPDATE vouchers SET usage_count = usage_count + 1
		WHERE code = $1 AND (max_usage IS NULL OR usage_count < max_usage)
		RETURNING ` + voucherColumns

	releaseVoucherSQL = `UPDATE vouchers SET usage_count = usage_count - 1
		WHERE code = $1 AND usage_count > 0`

	insertVoucherSQL = `INSERT INTO vouchers (` + voucherColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	upsertVoucherSQL = insertVoucherSQL + `
		ON CONFLICT (code) DO UPDATE SET
			percent = EXCLUDED.percent,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_usage = EXCLUDED.max_usage,
			active = EXCLUDED.active,
			outlet_ids = EXCLUDED.outlet_ids,
			product_ids = EXCLUDED.product_ids`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// FindByCode looks up a voucher by its normalized code.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, findVoucherSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding voucher %q: %w", code, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrInvalidCode
		}
		return nil, fmt.Errorf("finding voucher %q: %w", code, err)
	}
	return &v, nil
}

// Redeem takes one usage slot if any remain.
func (r *VoucherRepository) Redeem(ctx context.Context, code string) (*voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, redeemVoucherSQL, code)
	if err != nil {
		return nil, fmt.Errorf("redeeming voucher %q: %w", code, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrUsageLimitReached
		}
		return nil, fmt.Errorf("redeeming voucher %q: %w", code, err)
	}
	return &v, nil
}

// Release gives a usage slot back.
func (r *VoucherRepository) Release(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, releaseVoucherSQL, code); err != nil {
		return fmt.Errorf("releasing voucher %q: %w", code, err)
	}
	return nil
}

// Create inserts a new voucher.
func (r *VoucherRepository) Create(ctx context.Context, v *voucher.Voucher) error {
	if _, err := r.pool.Exec(ctx, insertVoucherSQL, voucherArgs(v)...); err != nil {
		if pgCode(err) == uniqueViolation {
			return voucher.ErrDuplicateCode
		}
		return fmt.Errorf("creating voucher %q: %w", v.Code, err)
	}
	return nil
}

// UpsertBatch inserts vouchers or updates their definition by code. Usage
// counters of existing vouchers are kept.
func (r *VoucherRepository) UpsertBatch(ctx context.Context, vs []voucher.Voucher) error {
	batch := &pgx.Batch{}
	for i := range vs {
		batch.Queue(upsertVoucherSQL, voucherArgs(&vs[i])...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d vouchers: %w", len(vs), err)
	}
	return nil
}

func voucherArgs(v *voucher.Voucher) []any {
	outlets, products := v.OutletIDs, v.ProductIDs
	if outlets == nil {
		outlets = []string{}
	}
	if products == nil {
		products = []string{}
	}
	return []any{
		v.ID, v.Code, v.Percent, v.ValidFrom, v.ValidUntil, v.MaxUsage, v.UsageCount,
		v.Active, outlets, products,
	}
}

func scanVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var v voucher.Voucher
	err := row.Scan(
		&v.ID, &v.Code, &v.Percent, &v.ValidFrom, &v.ValidUntil, &v.MaxUsage, &v.UsageCount,
		&v.Active, &v.OutletIDs, &v.ProductIDs,
	)
	return v, err
}
