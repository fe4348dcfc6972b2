package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/internal/domain/voucher"
)

type createVoucherRequest struct {
	Code       string          `json:"code" validate:"required,max=64"`
	Percent    decimal.Decimal `json:"percent"`
	ValidFrom  time.Time       `json:"validFrom" validate:"required"`
	ValidUntil time.Time       `json:"validUntil" validate:"required,gtfield=ValidFrom"`
	MaxUsage   *int            `json:"maxUsage" validate:"omitempty,min=0"`
	Active     *bool           `json:"active"`
	OutletIDs  []string        `json:"outletIds" validate:"required,min=1,dive,required"`
	ProductIDs []string        `json:"productIds" validate:"dive,required"`
}

func (h *Handler) createVoucher(w http.ResponseWriter, r *http.Request) {
	var req createVoucherRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v := &voucher.Voucher{
		Code:       req.Code,
		Percent:    req.Percent,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		MaxUsage:   req.MaxUsage,
		Active:     req.Active == nil || *req.Active,
		OutletIDs:  req.OutletIDs,
		ProductIDs: req.ProductIDs,
	}
	if err := h.vouchers.Create(r.Context(), v); err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, func(e *jx.Encoder) { encodeVoucher(e, v) })
}
