package order

import (
	"fmt"

	"github.com/xenking/laundry-orders/internal/domain/payment"
)

const (
	serviceFeeItemID = "SERVICE_FEE"
	discountItemID   = "DISCOUNT"
)

// chargeRequest builds the gateway transaction for o. Item totals add up
// to the order total: lines, plus the service fee, minus the discount.
// Weighed lines are sent as a single item priced at the line subtotal,
// since the gateway only accepts whole quantities.
func chargeRequest(o *Order) payment.ChargeRequest {
	items := make([]payment.ChargeItem, 0, len(o.Items)+2)
	for _, it := range o.Items {
		if it.Quantity.Equal(it.Quantity.Truncate(0)) {
			items = append(items, payment.ChargeItem{
				ID:       it.ProductID,
				Name:     it.Name,
				Price:    it.UnitPrice,
				Quantity: it.Quantity.IntPart(),
			})
			continue
		}
		items = append(items, payment.ChargeItem{
			ID:       it.ProductID,
			Name:     fmt.Sprintf("%s (%s %s)", it.Name, it.Quantity, it.Unit),
			Price:    it.Subtotal,
			Quantity: 1,
		})
	}
	if o.ServiceFee.IsPositive() {
		items = append(items, payment.ChargeItem{
			ID:       serviceFeeItemID,
			Name:     fmt.Sprintf("Service fee (%s)", o.ServiceType),
			Price:    o.ServiceFee,
			Quantity: 1,
		})
	}
	if o.DiscountAmount.IsPositive() {
		items = append(items, payment.ChargeItem{
			ID:       discountItemID,
			Name:     "Discount",
			Price:    o.DiscountAmount.Neg(),
			Quantity: 1,
		})
	}
	return payment.ChargeRequest{
		OrderCode:   o.Code,
		GrossAmount: o.Total,
		Items:       items,
		Customer: payment.ChargeCustomer{
			Name:  o.Customer.Name,
			Email: o.Customer.Email,
			Phone: o.Customer.Phone,
		},
	}
}
