package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Validator validates and redeems voucher codes.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by repo.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Check validates code for an order without consuming a redemption.
func (v *Validator) Check(ctx context.Context, code, outletID string, productIDs []string) (*Voucher, error) {
	vc, err := v.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup voucher")
	}
	if err := vc.CheckEligible(outletID, productIDs, v.now()); err != nil {
		return nil, err
	}
	if vc.Exhausted() {
		return nil, ErrUsageLimitReached
	}
	return vc, nil
}

// ValidateAndRedeem validates code and consumes one redemption. Capacity is
// enforced by the repository's conditional increment, so among concurrent
// callers competing for the last redemption exactly one succeeds.
func (v *Validator) ValidateAndRedeem(ctx context.Context, code, outletID string, productIDs []string) (*Voucher, error) {
	vc, err := v.Check(ctx, code, outletID, productIDs)
	if err != nil {
		return nil, err
	}
	redeemed, err := v.repo.Redeem(ctx, vc.Code)
	if err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			return nil, ErrUsageLimitReached
		}
		return nil, errors.Wrap(err, "redeem voucher")
	}
	return redeemed, nil
}

// Release returns a redemption consumed by an order that did not go through.
func (v *Validator) Release(ctx context.Context, code string) error {
	if err := v.repo.Release(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "release voucher")
	}
	return nil
}

// Create validates and stores a new voucher.
func (v *Validator) Create(ctx context.Context, vc *Voucher) error {
	vc.Code = NormalizeCode(vc.Code)
	if err := vc.Validate(); err != nil {
		return err
	}
	if vc.ID == "" {
		vc.ID = uuid.NewString()
	}
	vc.UsageCount = 0
	if err := v.repo.Create(ctx, vc); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return ErrDuplicateCode
		}
		return errors.Wrap(err, "create voucher")
	}
	return nil
}
