package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/laundry-orders/internal/domain/member"
)

const findMemberSQL = `SELECT id, user_id, outlet_id, level, expired_date
	FROM members WHERE user_id = $1 AND outlet_id = $2`

var _ member.Repository = (*MemberRepository)(nil)

// MemberRepository implements member.Repository backed by PostgreSQL.
type MemberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository returns a MemberRepository that uses the given pool.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

// FindByUserOutlet returns the membership of a user at an outlet.
func (r *MemberRepository) FindByUserOutlet(ctx context.Context, userID, outletID string) (*member.Member, error) {
	var (
		m       member.Member
		level   string
		expired *time.Time
	)
	err := r.pool.QueryRow(ctx, findMemberSQL, userID, outletID).
		Scan(&m.ID, &m.UserID, &m.OutletID, &level, &expired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, member.ErrNotFound
		}
		return nil, fmt.Errorf("finding member %q at outlet %q: %w", userID, outletID, err)
	}
	m.Level = member.Level(level)
	if expired != nil {
		m.ExpiredDate = *expired
	}
	return &m, nil
}
