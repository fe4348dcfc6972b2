package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/pkg/apperror"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

func (h *Handler) orderTracking(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	entries, err := h.ledger.ByOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			strField(e, "orderId", orderID)
			e.Field("entries", func(e *jx.Encoder) { encodeEntries(e, entries) })
		})
	})
}

func (h *Handler) outletTracking(w http.ResponseWriter, r *http.Request) {
	page, err := h.ledger.ListByOutlet(r.Context(), r.PathValue("outletId"), pagination.FromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		encodePage(e, page, func(e *jx.Encoder, l *tracking.OrderLog) {
			e.Obj(func(e *jx.Encoder) {
				strField(e, "orderId", l.OrderID)
				strField(e, "orderCode", l.OrderCode)
				e.Field("entries", func(e *jx.Encoder) { encodeEntries(e, l.Entries) })
			})
		})
	})
}

func (h *Handler) outletSummary(w http.ResponseWriter, r *http.Request) {
	loc := h.ledger.Location()
	day := time.Now().In(loc)
	if s := r.URL.Query().Get("day"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, loc)
		if err != nil {
			writeError(w, r, apperror.Validation("invalid request",
				apperror.FieldError{Field: "day", Message: "must be YYYY-MM-DD"}))
			return
		}
		day = t
	}

	outletID := r.PathValue("outletId")
	s, err := h.ledger.SummaryByOutlet(r.Context(), outletID, day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, outletID, day, s) })
}
