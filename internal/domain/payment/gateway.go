package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayConfig holds the payment gateway credentials and endpoints. One
// instance is built at startup and shared by the outbound client and the
// Reconciler.
type GatewayConfig struct {
	ServerKey       string
	ClientKey       string
	BaseURL         string
	Timeout         time.Duration
	EnabledPayments []string
	// Location is the zone the gateway reports settlement times in.
	Location *time.Location
}

// ChargeItem is one line of a remote transaction. Price may be negative
// for discount lines; the item total must equal the gross amount.
type ChargeItem struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int64
}

// ChargeCustomer identifies the payer.
type ChargeCustomer struct {
	Name  string
	Email string
	Phone string
}

// ChargeRequest asks the gateway to open a transaction for an order.
type ChargeRequest struct {
	OrderCode   string
	GrossAmount decimal.Decimal
	Items       []ChargeItem
	Customer    ChargeCustomer
}

// Charge is the handle of an opened remote transaction.
type Charge struct {
	Token       string
	RedirectURL string
}

// Gateway opens remote payment transactions.
type Gateway interface {
	CreateTransaction(ctx context.Context, req ChargeRequest) (*Charge, error)
}
