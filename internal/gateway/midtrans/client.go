// Package midtrans opens Snap payment transactions.
package midtrans

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/laundry-orders/internal/domain/payment"
)

const maxResponseBytes = 1 << 20

var _ payment.Gateway = (*Client)(nil)

// Client is a Snap API client.
type Client struct {
	cfg  *payment.GatewayConfig
	http *http.Client
}

// NewClient creates a Client for cfg. The same cfg is shared with the
// notification reconciler.
func NewClient(cfg *payment.GatewayConfig, tp trace.TracerProvider) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
			),
		},
	}
}

// APIError is a non-success answer from the gateway.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// CreateTransaction implements payment.Gateway.
func (c *Client) CreateTransaction(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	body := encodeCharge(req, c.cfg.EnabledPayments)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.SetBasicAuth(c.cfg.ServerKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Messages: decodeErrorMessages(data)}
	}

	charge, err := decodeCharge(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if charge.Token == "" {
		return nil, errors.New("gateway returned no token")
	}
	return charge, nil
}

func encodeCharge(req payment.ChargeRequest, enabled []string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("transaction_details", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("order_id", func(e *jx.Encoder) { e.Str(req.OrderCode) })
				e.Field("gross_amount", func(e *jx.Encoder) { e.RawStr(req.GrossAmount.String()) })
			})
		})
		e.Field("item_details", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range req.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(truncate(it.Name, 50)) })
						e.Field("price", func(e *jx.Encoder) { e.RawStr(it.Price.String()) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int64(it.Quantity) })
					})
				}
			})
		})
		e.Field("customer_details", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				name := req.Customer.Name
				if name == "" {
					name = "Customer"
				}
				e.Field("first_name", func(e *jx.Encoder) { e.Str(name) })
				if req.Customer.Email != "" {
					e.Field("email", func(e *jx.Encoder) { e.Str(req.Customer.Email) })
				}
				if req.Customer.Phone != "" {
					e.Field("phone", func(e *jx.Encoder) { e.Str(req.Customer.Phone) })
				}
			})
		})
		if len(enabled) > 0 {
			e.Field("enabled_payments", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, p := range enabled {
						e.Str(p)
					}
				})
			})
		}
	})
	return e.Bytes()
}

// truncate cuts s to n runes; the gateway rejects longer item names.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func decodeCharge(data []byte) (*payment.Charge, error) {
	var c payment.Charge
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "token":
			v, err := d.Str()
			c.Token = v
			return err
		case "redirect_url":
			v, err := d.Str()
			c.RedirectURL = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeErrorMessages(data []byte) []string {
	var msgs []string
	_ = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error_messages" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			v, err := d.Str()
			if err != nil {
				return err
			}
			msgs = append(msgs, v)
			return nil
		})
	})
	if len(msgs) == 0 && len(data) > 0 {
		msgs = append(msgs, string(data))
	}
	return msgs
}
