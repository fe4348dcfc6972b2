package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/internal/domain/order"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
	"github.com/xenking/laundry-orders/pkg/apperror"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

type itemRequest struct {
	ProductID string          `json:"productId" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type customerRequest struct {
	UserID string `json:"userId" validate:"max=64"`
	Name   string `json:"name" validate:"max=100"`
	Phone  string `json:"phone" validate:"max=32"`
	Email  string `json:"email" validate:"omitempty,email"`
}

type quoteRequest struct {
	UserID      string        `json:"userId"`
	OutletID    string        `json:"outletId" validate:"required"`
	Items       []itemRequest `json:"items" validate:"required,min=1,dive"`
	ServiceType string        `json:"serviceType" validate:"required,oneof=regular express super_express"`
	VoucherCode string        `json:"voucherCode" validate:"max=64"`
}

type createOrderRequest struct {
	Customer    customerRequest `json:"customer"`
	OutletID    string          `json:"outletId" validate:"required"`
	Items       []itemRequest   `json:"items" validate:"required,min=1,dive"`
	PickupDate  string          `json:"pickupDate" validate:"required"`
	Note        string          `json:"note" validate:"max=500"`
	PaymentType string          `json:"paymentType" validate:"required,oneof=cash bank_transfer ewallet"`
	ServiceType string          `json:"serviceType" validate:"required,oneof=regular express super_express"`
	VoucherCode string          `json:"voucherCode" validate:"max=64"`
	ProcessedBy string          `json:"processedBy"`
}

type advanceRequest struct {
	State string `json:"state" validate:"required,oneof=in_progress completed taken"`
}

func items(in []itemRequest) []pricing.Item {
	out := make([]pricing.Item, len(in))
	for i, it := range in {
		out[i] = pricing.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

// parseDate accepts a calendar date in loc or an RFC 3339 timestamp.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperror.Validation("invalid request", apperror.FieldError{
			Field:   "pickupDate",
			Message: "must be YYYY-MM-DD or RFC 3339",
		})
	}
	return t, nil
}

func (h *Handler) quoteOrder(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.orders.Quote(r.Context(), order.QuoteRequest{
		UserID:      req.UserID,
		OutletID:    req.OutletID,
		Items:       items(req.Items),
		ServiceType: pricing.ServiceType(req.ServiceType),
		VoucherCode: req.VoucherCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, q) })
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pickup, err := parseDate(req.PickupDate, h.ledger.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.orders.Create(r.Context(), order.CreateRequest{
		Customer: order.Customer{
			UserID: req.Customer.UserID,
			Name:   req.Customer.Name,
			Phone:  req.Customer.Phone,
			Email:  req.Customer.Email,
		},
		OutletID:    req.OutletID,
		Items:       items(req.Items),
		PickupDate:  pickup,
		Note:        req.Note,
		PaymentType: order.PaymentType(req.PaymentType),
		ServiceType: pricing.ServiceType(req.ServiceType),
		VoucherCode: req.VoucherCode,
		ProcessedBy: req.ProcessedBy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, func(e *jx.Encoder) { encodeDetails(e, d) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeDetails(e, d) })
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeDetails(e, d) })
}

func (h *Handler) advanceOrder(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.orders.Advance(r.Context(), r.PathValue("id"), order.State(req.State))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeDetails(e, d) })
}

func (h *Handler) startPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.orders.StartPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodePayment(e, p) })
}

func (h *Handler) listOutletOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.orders.ListByOutlet(r.Context(), r.PathValue("outletId"), pagination.FromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		encodePage(e, page, func(e *jx.Encoder, o *order.Order) {
			e.Obj(func(e *jx.Encoder) { encodeOrderFields(e, o) })
		})
	})
}
