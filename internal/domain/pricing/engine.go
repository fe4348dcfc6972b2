package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/internal/domain/member"
	"github.com/xenking/laundry-orders/internal/domain/product"
	"github.com/xenking/laundry-orders/internal/domain/voucher"
)

// Vouchers validates voucher codes for pricing.
type Vouchers interface {
	Check(ctx context.Context, code, outletID string, productIDs []string) (*voucher.Voucher, error)
	ValidateAndRedeem(ctx context.Context, code, outletID string, productIDs []string) (*voucher.Voucher, error)
}

// Request is the input to a pricing run.
type Request struct {
	OutletID    string
	Items       []Item
	ServiceType ServiceType
	VoucherCode string
	// Member is the customer's membership at the outlet, if any.
	Member *member.Member
}

// Quote is the result of a pricing run.
type Quote struct {
	Lines []Line
	Totals
	// Voucher is set when a voucher code was applied.
	Voucher             *voucher.Voucher
	MemberLevel         member.Level
	EstimatedCompletion time.Time
}

// Engine prices orders.
type Engine struct {
	products product.Repository
	vouchers Vouchers
	fees     FeeSchedule
	rates    member.Rates
	now      func() time.Time
}

// NewEngine creates a pricing Engine.
func NewEngine(products product.Repository, vouchers Vouchers, fees FeeSchedule, rates member.Rates) *Engine {
	return &Engine{
		products: products,
		vouchers: vouchers,
		fees:     fees,
		rates:    rates,
		now:      time.Now,
	}
}

// Estimate prices req without redeeming the voucher.
func (e *Engine) Estimate(ctx context.Context, req Request) (*Quote, error) {
	return e.price(ctx, req, e.vouchers.Check)
}

// Compute prices req and redeems the voucher, if any. Redemption is the
// last step, so a request that fails validation never consumes a voucher.
func (e *Engine) Compute(ctx context.Context, req Request) (*Quote, error) {
	return e.price(ctx, req, e.vouchers.ValidateAndRedeem)
}

type voucherFunc func(ctx context.Context, code, outletID string, productIDs []string) (*voucher.Voucher, error)

func (e *Engine) price(ctx context.Context, req Request, applyVoucher voucherFunc) (*Quote, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !req.ServiceType.Valid() {
		return nil, ErrInvalidServiceType
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}
	fetched, err := e.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]Line, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok || p.OutletID != req.OutletID {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if err := checkQuantity(p, item.Quantity); err != nil {
			return nil, err
		}
		lineTotal := p.Price.Mul(item.Quantity).Round(2)
		lines[i] = Line{
			ProductID: p.ID,
			Name:      p.Name,
			Unit:      p.Unit,
			Quantity:  item.Quantity,
			UnitPrice: p.Price,
			Subtotal:  lineTotal,
		}
		subtotal = subtotal.Add(lineTotal)
	}

	now := e.now()
	q := &Quote{
		Lines:               lines,
		EstimatedCompletion: now.Add(req.ServiceType.LeadTime()),
	}

	voucherPct := decimal.Zero
	if req.VoucherCode != "" {
		v, err := applyVoucher(ctx, req.VoucherCode, req.OutletID, ids)
		if err != nil {
			return nil, errors.Wrap(err, "apply voucher")
		}
		q.Voucher = v
		voucherPct = v.Percent
	}

	memberPct := e.rates.Percent(req.Member, now)
	if memberPct.IsPositive() {
		q.MemberLevel = req.Member.Level
	}

	q.Totals = Calculate(subtotal, e.fees.Fee(req.ServiceType), voucherPct, memberPct)
	return q, nil
}
