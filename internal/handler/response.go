package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/laundry-orders/internal/domain/order"
	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/internal/domain/voucher"
	"github.com/xenking/laundry-orders/pkg/apperror"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func respond(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	writeJSON(w, status, &e)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if kind == apperror.KindInternal {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	} else {
		zctx.From(r.Context()).Debug("Request rejected", zap.Stringer("kind", kind), zap.Error(err))
	}

	fields := apperror.FieldsOf(err)
	respond(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("code", func(e *jx.Encoder) { e.Str(kind.String()) })
					e.Field("message", func(e *jx.Encoder) { e.Str(apperror.PublicMessage(err)) })
					if len(fields) == 0 {
						return
					}
					e.Field("fields", func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							for _, f := range fields {
								e.Obj(func(e *jx.Encoder) {
									e.Field("field", func(e *jx.Encoder) { e.Str(f.Field) })
									e.Field("message", func(e *jx.Encoder) { e.Str(f.Message) })
								})
							}
						})
					})
				})
			})
		})
	})
}

// Money is rendered as a JSON string to keep decimal precision.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func strField(e *jx.Encoder, name, v string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func optStrField(e *jx.Encoder, name, v string) {
	if v != "" {
		strField(e, name, v)
	}
}

func moneyField(e *jx.Encoder, name string, d decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { encodeMoney(e, d) })
}

func timeField(e *jx.Encoder, name string, t time.Time) {
	e.Field(name, func(e *jx.Encoder) { encodeTime(e, t) })
}

func optTimeField(e *jx.Encoder, name string, t *time.Time) {
	if t != nil {
		timeField(e, name, *t)
	}
}

func encodeQuote(e *jx.Encoder, q *pricing.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range q.Lines {
					encodeLine(e, l.ProductID, l.Name, string(l.Unit), l.Quantity, l.UnitPrice, l.Subtotal)
				}
			})
		})
		moneyField(e, "subtotal", q.Subtotal)
		moneyField(e, "serviceFee", q.ServiceFee)
		moneyField(e, "voucherDiscount", q.VoucherDiscount)
		moneyField(e, "memberDiscount", q.MemberDiscount)
		moneyField(e, "discountAmount", q.DiscountAmount)
		moneyField(e, "total", q.Total)
		if q.Voucher != nil {
			strField(e, "voucherCode", q.Voucher.Code)
		}
		optStrField(e, "memberLevel", string(q.MemberLevel))
		timeField(e, "estimatedCompletion", q.EstimatedCompletion)
	})
}

func encodeLine(e *jx.Encoder, productID, name, unit string, qty, unitPrice, subtotal decimal.Decimal) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "productId", productID)
		strField(e, "name", name)
		strField(e, "unit", unit)
		e.Field("quantity", func(e *jx.Encoder) { e.Str(qty.String()) })
		moneyField(e, "unitPrice", unitPrice)
		moneyField(e, "subtotal", subtotal)
	})
}

func encodeOrderFields(e *jx.Encoder, o *order.Order) {
	strField(e, "id", o.ID)
	strField(e, "code", o.Code)
	strField(e, "outletId", o.OutletID)
	e.Field("customer", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			optStrField(e, "userId", o.Customer.UserID)
			optStrField(e, "name", o.Customer.Name)
			optStrField(e, "phone", o.Customer.Phone)
			optStrField(e, "email", o.Customer.Email)
		})
	})
	e.Field("items", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, it := range o.Items {
				encodeLine(e, it.ProductID, it.Name, string(it.Unit), it.Quantity, it.UnitPrice, it.Subtotal)
			}
		})
	})
	moneyField(e, "subtotal", o.Subtotal)
	moneyField(e, "serviceFee", o.ServiceFee)
	moneyField(e, "discountAmount", o.DiscountAmount)
	optStrField(e, "discountCode", o.DiscountCode)
	moneyField(e, "total", o.Total)
	strField(e, "serviceType", string(o.ServiceType))
	strField(e, "paymentType", string(o.PaymentType))
	strField(e, "paymentStatus", string(o.PaymentStatus))
	optStrField(e, "note", o.Note)
	timeField(e, "pickupDate", o.PickupDate)
	timeField(e, "completedAt", o.CompletedAt)
	optTimeField(e, "expireAt", o.ExpireAt)
	optStrField(e, "processedBy", o.ProcessedBy)
	timeField(e, "createdAt", o.CreatedAt)
	timeField(e, "updatedAt", o.UpdatedAt)
}

func encodeDetails(e *jx.Encoder, d *order.Details) {
	e.Obj(func(e *jx.Encoder) {
		encodeOrderFields(e, d.Order)
		strField(e, "state", string(d.State))
		if d.Payment != nil {
			e.Field("payment", func(e *jx.Encoder) { encodePayment(e, d.Payment) })
		}
		e.Field("tracking", func(e *jx.Encoder) { encodeEntries(e, d.Tracking) })
	})
}

func encodePayment(e *jx.Encoder, p *payment.Payment) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "invoiceNumber", p.InvoiceNumber)
		strField(e, "orderId", p.OrderID)
		strField(e, "paymentType", p.PaymentType)
		strField(e, "status", string(p.Status))
		moneyField(e, "amountPaid", p.AmountPaid)
		optStrField(e, "transactionId", p.TransactionID)
		optStrField(e, "token", p.GatewayToken)
		optStrField(e, "redirectUrl", p.RedirectURL)
		optTimeField(e, "paidAt", p.PaidAt)
	})
}

func encodeEntries(e *jx.Encoder, entries []tracking.Entry) {
	e.Arr(func(e *jx.Encoder) {
		for _, en := range entries {
			e.Obj(func(e *jx.Encoder) {
				strField(e, "status", string(en.Status))
				timeField(e, "timestamp", en.Timestamp)
			})
		}
	})
}

func encodeSummary(e *jx.Encoder, outletID string, day time.Time, s tracking.Summary) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "outletId", outletID)
		strField(e, "day", day.Format(time.DateOnly))
		e.Field("pending", func(e *jx.Encoder) { e.Int(s.Pending) })
		e.Field("toProcess", func(e *jx.Encoder) { e.Int(s.ToProcess) })
		e.Field("inProgress", func(e *jx.Encoder) { e.Int(s.InProgress) })
		e.Field("taken", func(e *jx.Encoder) { e.Int(s.Taken) })
	})
}

func encodeVoucher(e *jx.Encoder, v *voucher.Voucher) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "id", v.ID)
		strField(e, "code", v.Code)
		e.Field("percent", func(e *jx.Encoder) { e.Str(v.Percent.String()) })
		timeField(e, "validFrom", v.ValidFrom)
		timeField(e, "validUntil", v.ValidUntil)
		if v.MaxUsage != nil {
			e.Field("maxUsage", func(e *jx.Encoder) { e.Int(*v.MaxUsage) })
		}
		e.Field("usageCount", func(e *jx.Encoder) { e.Int(v.UsageCount) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(v.Active) })
		e.Field("outletIds", func(e *jx.Encoder) { encodeStrings(e, v.OutletIDs) })
		e.Field("productIds", func(e *jx.Encoder) { encodeStrings(e, v.ProductIDs) })
	})
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range ss {
			e.Str(s)
		}
	})
}

func encodePage[T any](e *jx.Encoder, p *pagination.Page[T], item func(e *jx.Encoder, v *T)) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range p.Items {
					item(e, &p.Items[i])
				}
			})
		})
		e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
		e.Field("limit", func(e *jx.Encoder) { e.Int(p.Limit) })
		e.Field("totalCount", func(e *jx.Encoder) { e.Int64(p.TotalCount) })
		e.Field("totalPages", func(e *jx.Encoder) { e.Int(p.TotalPages) })
	})
}
