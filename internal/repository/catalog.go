package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/laundry-orders/internal/domain/member"
	"github.com/xenking/laundry-orders/internal/domain/product"
)

const (
	upsertOutletSQL = `INSERT INTO outlets (id, name, address) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address`

	upsertProductSQL = `INSERT INTO products (id, outlet_id, name, price, unit, estimation)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			outlet_id = EXCLUDED.outlet_id,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			unit = EXCLUDED.unit,
			estimation = EXCLUDED.estimation`

	upsertMemberSQL = `INSERT INTO members (id, user_id, outlet_id, level, expired_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, outlet_id) DO UPDATE SET
			level = EXCLUDED.level,
			expired_date = EXCLUDED.expired_date`
)

// Outlet is a laundry branch.
type Outlet struct {
	ID      string
	Name    string
	Address string
}

// CatalogRepository maintains outlets, products and memberships. Orders
// only read them; this is used by seeding and administration tools.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Upsert writes outlets, then products, then members in one transaction.
func (r *CatalogRepository) Upsert(ctx context.Context, outlets []Outlet, products []product.Product, members []member.Member) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, o := range outlets {
			batch.Queue(upsertOutletSQL, o.ID, o.Name, o.Address)
		}
		for _, p := range products {
			batch.Queue(upsertProductSQL, p.ID, p.OutletID, p.Name, p.Price, string(p.Unit), p.Estimation)
		}
		for _, m := range members {
			var expired *time.Time
			if !m.ExpiredDate.IsZero() {
				expired = &m.ExpiredDate
			}
			batch.Queue(upsertMemberSQL, m.ID, m.UserID, m.OutletID, string(m.Level), expired)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting catalog: %w", err)
		}
		return nil
	})
}
