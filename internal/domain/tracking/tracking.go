// Package tracking keeps the append-only lifecycle log of orders and its
// per-outlet daily aggregation.
package tracking

import (
	"context"
	"time"

	"github.com/xenking/laundry-orders/pkg/apperror"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

// Status is a ledger entry label.
type Status string

const (
	StatusOrderCreated    Status = "Order Created"
	StatusPaymentReceived Status = "Payment Received"
	StatusInProgress      Status = "In Progress"
	StatusCompleted       Status = "Completed"
	StatusTaken           Status = "Taken"
	StatusOrderCanceled   Status = "Order Canceled"
)

var (
	// ErrUnknownStatus is returned for a label outside the ledger vocabulary.
	ErrUnknownStatus = apperror.Validation("unknown tracking status")
	// ErrOrderNotFound is returned when no ledger exists for an order.
	ErrOrderNotFound = apperror.NotFound("order")
)

// Valid reports whether s belongs to the ledger vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusOrderCreated, StatusPaymentReceived, StatusInProgress,
		StatusCompleted, StatusTaken, StatusOrderCanceled:
		return true
	}
	return false
}

// Predecessor returns the entry that must already be present before s may
// be appended by an operational advance.
func (s Status) Predecessor() (Status, bool) {
	switch s {
	case StatusInProgress:
		return StatusPaymentReceived, true
	case StatusCompleted:
		return StatusInProgress, true
	case StatusTaken:
		return StatusCompleted, true
	}
	return "", false
}

// Settles reports whether an entry with status s ends the window in which an
// order can still be cancelled.
func (s Status) Settles() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusTaken, StatusOrderCanceled:
		return true
	}
	return false
}

// operational reports whether s counts as an order's position in the
// workflow. Payment Received is a payment fact, not a workflow step.
func (s Status) operational() bool {
	return s.Valid() && s != StatusPaymentReceived
}

// Entry is one ledger record. Within an order, entries are ordered by
// Timestamp and then Seq; timestamps never decrease.
type Entry struct {
	Seq       int64
	OrderID   string
	Status    Status
	Timestamp time.Time
}

// Has reports whether entries contain status.
func Has(entries []Entry, status Status) bool {
	for _, e := range entries {
		if e.Status == status {
			return true
		}
	}
	return false
}

// DayActivity is an order of an outlet with its entries of one day.
type DayActivity struct {
	OrderID string
	// Paid and Unpaid mirror the order's current payment status; both are
	// false for expired or cancelled orders.
	Paid    bool
	Unpaid  bool
	Entries []Entry
}

// OrderLog is the full ledger of one order.
type OrderLog struct {
	OrderID   string
	OrderCode string
	Entries   []Entry
}

// Repository persists ledger entries.
//
// Appends are idempotent per (order, status): appending a status that is
// already present is a no-op reported as appended == false. Stored
// timestamps are raised to the order's latest entry if the clock went back.
type Repository interface {
	Append(ctx context.Context, orderID string, status Status, at time.Time) (appended bool, err error)
	// AppendAfter appends status only if after is already present.
	AppendAfter(ctx context.Context, orderID string, status, after Status, at time.Time) (appended bool, err error)
	ByOrder(ctx context.Context, orderID string) ([]Entry, error)
	OutletDay(ctx context.Context, outletID string, from, to time.Time) ([]DayActivity, error)
	ListByOutlet(ctx context.Context, outletID string, p pagination.Params) ([]OrderLog, int64, error)
}
