package member

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/pkg/apperror"
)

// ErrNotFound is returned when a user has no membership at an outlet.
var ErrNotFound = apperror.NotFound("member")

// Level is a membership tier.
type Level string

const (
	LevelSilver   Level = "silver"
	LevelGold     Level = "gold"
	LevelPlatinum Level = "platinum"
)

// Member is a user's membership at one outlet.
type Member struct {
	ID          string
	UserID      string
	OutletID    string
	Level       Level
	ExpiredDate time.Time
}

// Active reports whether the membership is still valid at now.
// A zero ExpiredDate never expires.
func (m *Member) Active(now time.Time) bool {
	return m.ExpiredDate.IsZero() || now.Before(m.ExpiredDate)
}

// Rates maps a level to its discount percentage (10 means 10%).
type Rates map[Level]decimal.Decimal

// DefaultRates returns the stock tier percentages.
func DefaultRates() Rates {
	return Rates{
		LevelSilver:   decimal.NewFromInt(5),
		LevelGold:     decimal.NewFromInt(10),
		LevelPlatinum: decimal.NewFromInt(15),
	}
}

// Percent returns the discount percentage for m at now, or zero when m is
// nil, expired, or of an unknown level.
func (r Rates) Percent(m *Member, now time.Time) decimal.Decimal {
	if m == nil || !m.Active(now) {
		return decimal.Zero
	}
	pct, ok := r[m.Level]
	if !ok {
		return decimal.Zero
	}
	return pct
}

// Repository looks up memberships.
type Repository interface {
	// FindByUserOutlet returns ErrNotFound when the user is not a member of the outlet.
	FindByUserOutlet(ctx context.Context, userID, outletID string) (*Member, error)
}
