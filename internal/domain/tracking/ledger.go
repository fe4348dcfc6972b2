package tracking

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/laundry-orders/pkg/pagination"
)

// Ledger is the read and append API over order lifecycle entries.
type Ledger struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewLedger creates a Ledger. Calendar days are evaluated in loc.
func NewLedger(repo Repository, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{repo: repo, loc: loc, now: time.Now}
}

// Append records status for orderID. It reports false when the order
// already has an entry with that status.
func (l *Ledger) Append(ctx context.Context, orderID string, status Status) (bool, error) {
	if !status.Valid() {
		return false, ErrUnknownStatus
	}
	ok, err := l.repo.Append(ctx, orderID, status, l.now())
	if err != nil {
		return false, errors.Wrapf(err, "append %q", status)
	}
	return ok, nil
}

// AppendAfter records status only if after is already present. It reports
// false when nothing was appended, either because status already exists or
// because after is missing; callers re-read the ledger to tell them apart.
func (l *Ledger) AppendAfter(ctx context.Context, orderID string, status, after Status) (bool, error) {
	if !status.Valid() || !after.Valid() {
		return false, ErrUnknownStatus
	}
	ok, err := l.repo.AppendAfter(ctx, orderID, status, after, l.now())
	if err != nil {
		return false, errors.Wrapf(err, "append %q after %q", status, after)
	}
	return ok, nil
}

// ByOrder returns the ordered ledger of orderID. Every order has at least
// its creation entry, so an empty ledger means the order does not exist.
func (l *Ledger) ByOrder(ctx context.Context, orderID string) ([]Entry, error) {
	entries, err := l.repo.ByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get ledger")
	}
	if len(entries) == 0 {
		return nil, ErrOrderNotFound
	}
	return entries, nil
}

// SummaryByOutlet aggregates the outlet's activity on the calendar day
// containing day. A zero day means today.
func (l *Ledger) SummaryByOutlet(ctx context.Context, outletID string, day time.Time) (Summary, error) {
	if day.IsZero() {
		day = l.now()
	}
	from, to := DayBounds(day, l.loc)
	activity, err := l.repo.OutletDay(ctx, outletID, from, to)
	if err != nil {
		return Summary{}, errors.Wrap(err, "get outlet day")
	}
	return Summarize(activity), nil
}

// ListByOutlet returns a page of order ledgers for the outlet, most recently
// updated first.
func (l *Ledger) ListByOutlet(ctx context.Context, outletID string, p pagination.Params) (*pagination.Page[OrderLog], error) {
	p = p.Normalize()
	logs, total, err := l.repo.ListByOutlet(ctx, outletID, p)
	if err != nil {
		return nil, errors.Wrap(err, "list outlet ledgers")
	}
	return pagination.NewPage(logs, p, total), nil
}

// Location is the time zone calendar days are evaluated in.
func (l *Ledger) Location() *time.Location { return l.loc }
