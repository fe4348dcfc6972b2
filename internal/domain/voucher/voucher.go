package voucher

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/pkg/apperror"
)

var (
	// ErrInvalidCode is returned when no voucher exists for a code.
	ErrInvalidCode = apperror.Validation("invalid voucher code")
	// ErrInactive is returned for a voucher that has been switched off.
	ErrInactive = apperror.Validation("voucher is not active")
	// ErrOutsideWindow is returned outside [ValidFrom, ValidUntil].
	ErrOutsideWindow = apperror.Validation("voucher is not valid at this time")
	// ErrNotApplicable is returned when the voucher is scoped to other outlets or products.
	ErrNotApplicable = apperror.Validation("voucher does not apply to this order")
	// ErrUsageLimitReached is returned once UsageCount has reached MaxUsage.
	ErrUsageLimitReached = apperror.Conflict("voucher usage limit reached")
	// ErrDuplicateCode is returned when creating a voucher whose code is taken.
	ErrDuplicateCode = apperror.Conflict("voucher code already exists")
)

var (
	minPercent = decimal.NewFromInt(1)
	maxPercent = decimal.NewFromInt(100)
)

// Voucher is a redeemable percentage-off code.
type Voucher struct {
	ID         string
	Code       string
	Percent    decimal.Decimal
	ValidFrom  time.Time
	ValidUntil time.Time
	// MaxUsage is nil for unlimited vouchers.
	MaxUsage   *int
	UsageCount int
	Active     bool
	OutletIDs  []string
	ProductIDs []string
}

// NormalizeCode canonicalizes a user supplied code. Codes are stored upper case.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Exhausted reports whether no redemptions remain.
func (v *Voucher) Exhausted() bool {
	return v.MaxUsage != nil && v.UsageCount >= *v.MaxUsage
}

// Validate checks the definition of a new voucher.
func (v *Voucher) Validate() error {
	var fields []apperror.FieldError
	if NormalizeCode(v.Code) == "" {
		fields = append(fields, apperror.FieldError{Field: "code", Message: "required"})
	}
	if v.Percent.LessThan(minPercent) || v.Percent.GreaterThan(maxPercent) {
		fields = append(fields, apperror.FieldError{Field: "percent", Message: "must be between 1 and 100"})
	}
	if v.ValidFrom.IsZero() || v.ValidUntil.IsZero() || !v.ValidFrom.Before(v.ValidUntil) {
		fields = append(fields, apperror.FieldError{Field: "validUntil", Message: "must be after validFrom"})
	}
	if v.MaxUsage != nil && *v.MaxUsage < 0 {
		fields = append(fields, apperror.FieldError{Field: "maxUsage", Message: "must not be negative"})
	}
	if len(v.OutletIDs) == 0 {
		fields = append(fields, apperror.FieldError{Field: "outletIds", Message: "at least one outlet required"})
	}
	if len(fields) > 0 {
		return apperror.Validation("invalid voucher", fields...)
	}
	return nil
}

// CheckEligible verifies the voucher can be used for an order at outletID
// containing productIDs at now. Usage capacity is not checked here.
func (v *Voucher) CheckEligible(outletID string, productIDs []string, now time.Time) error {
	if !v.Active {
		return ErrInactive
	}
	if now.Before(v.ValidFrom) || now.After(v.ValidUntil) {
		return ErrOutsideWindow
	}
	if !slices.Contains(v.OutletIDs, outletID) {
		return ErrNotApplicable
	}
	if len(v.ProductIDs) > 0 && !slices.ContainsFunc(productIDs, func(id string) bool {
		return slices.Contains(v.ProductIDs, id)
	}) {
		return ErrNotApplicable
	}
	return nil
}

// Repository stores vouchers.
//
// Redeem and Release must be single conditional storage operations: the
// store is the only synchronization point between concurrent redemptions.
type Repository interface {
	// FindByCode returns ErrInvalidCode when the code is unknown.
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	// Redeem increments the usage counter only while it is below MaxUsage
	// and returns the updated voucher. It returns ErrUsageLimitReached when
	// the guard fails.
	Redeem(ctx context.Context, code string) (*Voucher, error)
	// Release decrements the usage counter, never below zero.
	Release(ctx context.Context, code string) error
	// Create returns ErrDuplicateCode when the code is taken.
	Create(ctx context.Context, v *Voucher) error
}
