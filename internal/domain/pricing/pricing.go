// Package pricing computes order totals from catalog prices, the service
// tier surcharge and voucher/membership discounts.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/internal/domain/product"
	"github.com/xenking/laundry-orders/pkg/apperror"
)

// ServiceType is the delivery speed tier of an order.
type ServiceType string

const (
	ServiceRegular      ServiceType = "regular"
	ServiceExpress      ServiceType = "express"
	ServiceSuperExpress ServiceType = "super_express"
)

// Valid reports whether s is a known tier.
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceRegular, ServiceExpress, ServiceSuperExpress:
		return true
	}
	return false
}

// LeadTime is the time from order creation to estimated completion.
func (s ServiceType) LeadTime() time.Duration {
	const day = 24 * time.Hour
	switch s {
	case ServiceExpress:
		return 2 * day
	case ServiceSuperExpress:
		return day
	default:
		return 3 * day
	}
}

// FeeSchedule holds the flat surcharge per service tier.
type FeeSchedule struct {
	Express      decimal.Decimal
	SuperExpress decimal.Decimal
}

// DefaultFeeSchedule returns the stock surcharges.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Express:      decimal.NewFromInt(5000),
		SuperExpress: decimal.NewFromInt(10000),
	}
}

// Fee returns the surcharge for s. Regular service is free.
func (f FeeSchedule) Fee(s ServiceType) decimal.Decimal {
	switch s {
	case ServiceExpress:
		return f.Express
	case ServiceSuperExpress:
		return f.SuperExpress
	default:
		return decimal.Zero
	}
}

var (
	// ErrEmptyItems is returned for an order without line items.
	ErrEmptyItems = apperror.Validation("at least one item is required")
	// ErrInvalidServiceType is returned for an unknown service tier.
	ErrInvalidServiceType = apperror.Validation("invalid service type")
)

// ProductNotFoundError indicates a product is missing or belongs to another outlet.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ErrorKind implements apperror.Kinder.
func (e *ProductNotFoundError) ErrorKind() apperror.Kind { return apperror.KindNotFound }

// InvalidQuantityError indicates a non-positive quantity, or a fractional
// quantity for a per-piece product.
type InvalidQuantityError struct {
	ProductID string
	Reason    string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity for product %s: %s", e.ProductID, e.Reason)
}

// ErrorKind implements apperror.Kinder.
func (e *InvalidQuantityError) ErrorKind() apperror.Kind { return apperror.KindValidation }

// Item is a requested order line.
type Item struct {
	ProductID string
	Quantity  decimal.Decimal
}

// Line is a priced order line. UnitPrice is captured from the catalog when
// the line is priced and never re-read afterwards.
type Line struct {
	ProductID string
	Name      string
	Unit      product.Unit
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Totals is the monetary breakdown of an order.
type Totals struct {
	Subtotal        decimal.Decimal
	ServiceFee      decimal.Decimal
	VoucherDiscount decimal.Decimal
	MemberDiscount  decimal.Decimal
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Calculate applies both discount percentages to the pre-discount base
// (subtotal + fee) independently and sums them. The total is clamped at zero.
func Calculate(subtotal, fee, voucherPercent, memberPercent decimal.Decimal) Totals {
	base := subtotal.Add(fee)
	voucherDiscount := base.Mul(voucherPercent).Div(hundred).Round(2)
	memberDiscount := base.Mul(memberPercent).Div(hundred).Round(2)
	discount := voucherDiscount.Add(memberDiscount)

	total := base.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{
		Subtotal:        subtotal.Round(2),
		ServiceFee:      fee.Round(2),
		VoucherDiscount: voucherDiscount,
		MemberDiscount:  memberDiscount,
		DiscountAmount:  discount,
		Total:           total.Round(2),
	}
}

func checkQuantity(p product.Product, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return &InvalidQuantityError{ProductID: p.ID, Reason: "must be greater than 0"}
	}
	if p.Unit == product.UnitPiece && !qty.Equal(qty.Truncate(0)) {
		return &InvalidQuantityError{ProductID: p.ID, Reason: "must be a whole number of pieces"}
	}
	return nil
}
