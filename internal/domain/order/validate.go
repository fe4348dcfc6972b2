package order

import (
	"time"

	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/pkg/apperror"
)

func validateCreate(req CreateRequest, now time.Time, loc *time.Location) error {
	var fields []apperror.FieldError
	fields = append(fields, validateCommon(req, now, loc)...)
	if req.PaymentType.Online() {
		fields = append(fields, validateOnline(req)...)
	} else if req.PaymentType == PaymentCash {
		fields = append(fields, validateCash(req)...)
	}
	if len(fields) > 0 {
		return apperror.Validation("invalid order", fields...)
	}
	return nil
}

func validateCommon(req CreateRequest, now time.Time, loc *time.Location) []apperror.FieldError {
	var fields []apperror.FieldError
	if req.OutletID == "" {
		fields = append(fields, apperror.FieldError{Field: "outletId", Message: "required"})
	}
	if len(req.Items) == 0 {
		fields = append(fields, apperror.FieldError{Field: "items", Message: "at least one item is required"})
	}
	if req.PickupDate.IsZero() {
		fields = append(fields, apperror.FieldError{Field: "pickupDate", Message: "required"})
	} else if today, _ := tracking.DayBounds(now, loc); req.PickupDate.Before(today) {
		fields = append(fields, apperror.FieldError{Field: "pickupDate", Message: "must not be in the past"})
	}
	if !req.PaymentType.Valid() {
		fields = append(fields, apperror.FieldError{Field: "paymentType", Message: "must be cash, bank_transfer or ewallet"})
	}
	if !req.ServiceType.Valid() {
		fields = append(fields, apperror.FieldError{Field: "serviceType", Message: "must be regular, express or super_express"})
	}
	if req.Customer.UserID == "" && req.Customer.Name == "" {
		fields = append(fields, apperror.FieldError{Field: "customer.name", Message: "required for walk-in customers"})
	}
	return fields
}

// validateOnline checks what the gateway needs to reach the payer.
func validateOnline(req CreateRequest) []apperror.FieldError {
	if req.Customer.Email == "" && req.Customer.Phone == "" {
		return []apperror.FieldError{{Field: "customer.email", Message: "email or phone required for online payment"}}
	}
	return nil
}

// validateCash requires the cashier who took the money.
func validateCash(req CreateRequest) []apperror.FieldError {
	if req.ProcessedBy == "" {
		return []apperror.FieldError{{Field: "processedBy", Message: "required for cash orders"}}
	}
	return nil
}
