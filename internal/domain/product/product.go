package product

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/pkg/apperror"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = apperror.NotFound("product")

// Unit is the billing unit of a service product.
type Unit string

const (
	// UnitKilogram bills by weight; fractional quantities are allowed.
	UnitKilogram Unit = "kg"
	// UnitPiece bills per item; quantities must be whole.
	UnitPiece Unit = "pcs"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitKilogram || u == UnitPiece
}

// Product is a laundry service offered by an outlet.
type Product struct {
	ID         string
	OutletID   string
	Name       string
	Price      decimal.Decimal
	Unit       Unit
	Estimation string
}

// Repository defines read operations for the service catalog.
type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
