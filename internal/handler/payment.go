package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/pkg/apperror"
)

// decodeNotification reads a gateway notification. gross_amount and
// status_code are kept exactly as sent since the signature covers them;
// the gateway sends them as strings but numbers are tolerated.
func decodeNotification(body []byte) (payment.Notification, error) {
	n := payment.Notification{Raw: body}
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
		case "order_id":
			dst = &n.OrderCode
		case "status_code":
			dst = &n.StatusCode
		case "gross_amount":
			dst = &n.GrossAmount
		case "signature_key":
			dst = &n.SignatureKey
		case "transaction_status":
			dst = &n.TransactionStatus
		case "fraud_status":
			dst = &n.FraudStatus
		case "payment_type":
			dst = &n.PaymentType
		case "transaction_id":
			dst = &n.TransactionID
		case "settlement_time":
			dst = &n.SettlementTime
		default:
			return d.Skip()
		}
		v, err := scalar(d)
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		*dst = v
		return nil
	})
	if err != nil {
		return payment.Notification{}, err
	}
	return n, nil
}

func scalar(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		num, err := d.Num()
		if err != nil {
			return "", err
		}
		return string(num), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}

func (h *Handler) paymentNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, apperror.Validation("unreadable notification body"))
		return
	}
	n, err := decodeNotification(body)
	if err != nil {
		writeError(w, r, apperror.Validation("malformed notification",
			apperror.FieldError{Field: "body", Message: err.Error()}))
		return
	}
	if n.OrderCode == "" {
		writeError(w, r, apperror.Validation("malformed notification",
			apperror.FieldError{Field: "order_id", Message: "required"}))
		return
	}

	p, err := h.reconciler.Reconcile(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodePayment(e, p) })
}
