package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/laundry-orders/internal/domain/event"
	"github.com/xenking/laundry-orders/internal/domain/member"
	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
	"github.com/xenking/laundry-orders/internal/domain/product"
	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/internal/domain/voucher"
	"github.com/xenking/laundry-orders/pkg/apperror"
	"github.com/xenking/laundry-orders/pkg/pagination"
)

// --- Mock implementations ---

type mockPricer struct {
	quote     *pricing.Quote
	err       error
	lastReq   pricing.Request
	computeN  int
	estimateN int
}

func (m *mockPricer) Compute(_ context.Context, req pricing.Request) (*pricing.Quote, error) {
	m.lastReq = req
	m.computeN++
	if m.err != nil {
		return nil, m.err
	}
	q := *m.quote
	return &q, nil
}

func (m *mockPricer) Estimate(_ context.Context, req pricing.Request) (*pricing.Quote, error) {
	m.lastReq = req
	m.estimateN++
	if m.err != nil {
		return nil, m.err
	}
	q := *m.quote
	return &q, nil
}

type mockVouchers struct {
	released []string
}

func (m *mockVouchers) Release(_ context.Context, code string) error {
	m.released = append(m.released, code)
	return nil
}

type mockMembers struct {
	member *member.Member
}

func (m *mockMembers) FindByUserOutlet(_ context.Context, _, _ string) (*member.Member, error) {
	if m.member == nil {
		return nil, member.ErrNotFound
	}
	return m.member, nil
}

// memStore keeps orders, payments and ledgers; each method is atomic.
type memStore struct {
	mu        sync.Mutex
	orders    map[string]*Order
	payments  map[string]*payment.Payment
	ledger    map[string][]tracking.Entry
	createErr error
	dupCodes  int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[string]*Order),
		payments: make(map[string]*payment.Payment),
		ledger:   make(map[string][]tracking.Entry),
	}
}

func (m *memStore) Create(_ context.Context, o *Order, p *payment.Payment, entries []tracking.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dupCodes > 0 {
		m.dupCodes--
		return ErrDuplicateCode
	}
	if m.createErr != nil {
		return m.createErr
	}
	oc, pc := *o, *p
	m.orders[o.ID] = &oc
	m.payments[o.ID] = &pc
	m.ledger[o.ID] = append([]tracking.Entry(nil), entries...)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListByOutlet(_ context.Context, outletID string, _ pagination.Params) ([]Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.OutletID == outletID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) closeLocked(o *Order, status PaymentStatus, target payment.Status, at time.Time) {
	o.PaymentStatus = status
	o.UpdatedAt = at
	if p := m.payments[o.ID]; p != nil && target.Supersedes(p.Status) {
		p.Status = target
	}
	m.appendLocked(o.ID, tracking.StatusOrderCanceled, at)
}

func (m *memStore) Cancel(_ context.Context, id string, at time.Time) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.PaymentStatus != StatusUnpaid {
		return nil, ErrNotCancellable
	}
	for _, e := range m.ledger[id] {
		if e.Status.Settles() {
			return nil, ErrNotCancellable
		}
	}
	m.closeLocked(o, StatusCancelled, payment.StatusCancelled, at)
	cp := *o
	return &cp, nil
}

func (m *memStore) ExpireDue(_ context.Context, now time.Time, limit int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if len(out) == limit {
			break
		}
		if o.PaymentStatus == StatusUnpaid && o.ExpireAt != nil && !o.ExpireAt.After(now) {
			m.closeLocked(o, StatusExpired, payment.StatusExpired, now)
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) PaymentByOrder(_ context.Context, orderID string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) AttachCharge(_ context.Context, orderID string, c payment.Charge) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.payments[orderID]
	p.GatewayToken = c.Token
	p.RedirectURL = c.RedirectURL
	cp := *p
	return &cp, nil
}

func (m *memStore) appendLocked(orderID string, status tracking.Status, at time.Time) bool {
	if tracking.Has(m.ledger[orderID], status) {
		return false
	}
	m.ledger[orderID] = append(m.ledger[orderID], tracking.Entry{
		Seq: int64(len(m.ledger[orderID]) + 1), OrderID: orderID, Status: status, Timestamp: at,
	})
	return true
}

func (m *memStore) AppendAfter(_ context.Context, orderID string, status, after tracking.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !tracking.Has(m.ledger[orderID], after) {
		return false, nil
	}
	return m.appendLocked(orderID, status, fixedNow), nil
}

func (m *memStore) ByOrder(_ context.Context, orderID string) ([]tracking.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.ledger[orderID]
	if len(entries) == 0 {
		return nil, tracking.ErrOrderNotFound
	}
	return append([]tracking.Entry(nil), entries...), nil
}

func (m *memStore) statuses(orderID string) []tracking.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tracking.Status
	for _, e := range m.ledger[orderID] {
		out = append(out, e.Status)
	}
	return out
}

type mockGateway struct {
	calls   int
	lastReq payment.ChargeRequest
	err     error
}

func (m *mockGateway) CreateTransaction(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &payment.Charge{Token: "snap-token", RedirectURL: "https://pay.example/snap-token"}, nil
}

type recordingPublisher struct {
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e event.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []event.Type {
	var out []event.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// --- Helpers ---

var fixedNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type fixture struct {
	svc      *Service
	store    *memStore
	pricer   *mockPricer
	vouchers *mockVouchers
	members  *mockMembers
	gateway  *mockGateway
	events   *recordingPublisher
}

func newFixture() *fixture {
	quote := &pricing.Quote{
		Lines: []pricing.Line{{
			ProductID: "wash", Name: "Wash & Fold", Unit: product.UnitKilogram,
			Quantity: dec("2"), UnitPrice: dec("10000"), Subtotal: dec("20000"),
		}},
		Totals:              pricing.Calculate(dec("20000"), dec("5000"), decimal.Zero, decimal.Zero),
		EstimatedCompletion: fixedNow.AddDate(0, 0, 2),
	}
	f := &fixture{
		store:    newMemStore(),
		pricer:   &mockPricer{quote: quote},
		vouchers: &mockVouchers{},
		members:  &mockMembers{},
		gateway:  &mockGateway{},
		events:   &recordingPublisher{},
	}
	f.svc = NewService(Deps{
		Pricing:  f.pricer,
		Vouchers: f.vouchers,
		Members:  f.members,
		Orders:   f.store,
		Payments: f.store,
		Ledger:   f.store,
		Gateway:  f.gateway,
		Events:   f.events,
	}, Config{PaymentTTL: 2 * time.Hour})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func cashRequest() CreateRequest {
	return CreateRequest{
		Customer:    Customer{Name: "Walk-in"},
		OutletID:    "outlet-1",
		Items:       []pricing.Item{{ProductID: "wash", Quantity: dec("2")}},
		PickupDate:  fixedNow.AddDate(0, 0, 2),
		PaymentType: PaymentCash,
		ServiceType: pricing.ServiceExpress,
		ProcessedBy: "cashier-1",
	}
}

func onlineRequest() CreateRequest {
	req := cashRequest()
	req.Customer = Customer{UserID: "user-1", Name: "Sari", Email: "sari@example.com"}
	req.PaymentType = PaymentBankTransfer
	req.ProcessedBy = ""
	return req
}

// --- Tests ---

func TestCreate_CashOrderIsPaid(t *testing.T) {
	f := newFixture()

	got, err := f.svc.Create(context.Background(), cashRequest())
	require.NoError(t, err)

	o := got.Order
	assert.Equal(t, StatusPaid, o.PaymentStatus)
	assert.Nil(t, o.ExpireAt)
	assert.True(t, o.Total.Equal(dec("25000")))
	assert.Regexp(t, `^ORD-20250615-[0-9A-F]{12}$`, o.Code)
	assert.Equal(t, payment.StatusPaid, got.Payment.Status)
	assert.True(t, got.Payment.AmountPaid.Equal(dec("25000")))
	require.NotNil(t, got.Payment.PaidAt)
	assert.Regexp(t, `^INV-20250615-[0-9A-F]{12}$`, got.Payment.InvoiceNumber)
	assert.Equal(t, StatePaid, got.State)
	assert.Equal(t, []tracking.Status{tracking.StatusOrderCreated, tracking.StatusPaymentReceived}, f.store.statuses(o.ID))
	assert.Equal(t, []event.Type{event.OrderCreated}, f.events.types())
}

func TestCreate_OnlineOrderAwaitsPayment(t *testing.T) {
	f := newFixture()
	f.members.member = &member.Member{UserID: "user-1", OutletID: "outlet-1", Level: member.LevelGold}

	got, err := f.svc.Create(context.Background(), onlineRequest())
	require.NoError(t, err)

	o := got.Order
	assert.Equal(t, StatusUnpaid, o.PaymentStatus)
	require.NotNil(t, o.ExpireAt)
	assert.True(t, o.ExpireAt.Equal(fixedNow.Add(2*time.Hour)))
	assert.Equal(t, payment.StatusPending, got.Payment.Status)
	assert.Nil(t, got.Payment.PaidAt)
	assert.Equal(t, StateCreated, got.State)
	assert.Equal(t, []tracking.Status{tracking.StatusOrderCreated}, f.store.statuses(o.ID))
	assert.Equal(t, f.members.member, f.pricer.lastReq.Member)
}

func TestCreate_FullyDiscountedOnlineOrderIsPaid(t *testing.T) {
	f := newFixture()
	f.pricer.quote.Totals = pricing.Calculate(dec("20000"), dec("5000"), dec("90"), dec("15"))
	require.True(t, f.pricer.quote.Total.IsZero())

	got, err := f.svc.Create(context.Background(), onlineRequest())
	require.NoError(t, err)

	o := got.Order
	assert.Equal(t, StatusPaid, o.PaymentStatus)
	assert.Nil(t, o.ExpireAt)
	assert.Equal(t, payment.StatusPaid, got.Payment.Status)
	require.NotNil(t, got.Payment.PaidAt)
	assert.Equal(t, StatePaid, got.State)
	assert.Equal(t, []tracking.Status{tracking.StatusOrderCreated, tracking.StatusPaymentReceived}, f.store.statuses(o.ID))

	_, err = f.svc.StartPayment(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrNotPayable)
	assert.Equal(t, 0, f.gateway.calls)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateRequest)
		field  string
	}{
		{"pickup yesterday", func(r *CreateRequest) { r.PickupDate = fixedNow.AddDate(0, 0, -1) }, "pickupDate"},
		{"no items", func(r *CreateRequest) { r.Items = nil }, "items"},
		{"no outlet", func(r *CreateRequest) { r.OutletID = "" }, "outletId"},
		{"bad payment type", func(r *CreateRequest) { r.PaymentType = "cheque" }, "paymentType"},
		{"bad service type", func(r *CreateRequest) { r.ServiceType = "overnight" }, "serviceType"},
		{"anonymous walk-in", func(r *CreateRequest) { r.Customer = Customer{} }, "customer.name"},
		{"cash without cashier", func(r *CreateRequest) { r.ProcessedBy = "" }, "processedBy"},
		{"online without contact", func(r *CreateRequest) {
			r.PaymentType = PaymentEWallet
			r.Customer = Customer{Name: "Budi"}
		}, "customer.email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := cashRequest()
			tt.mutate(&req)

			_, err := f.svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			var fields []string
			for _, fe := range apperror.FieldsOf(err) {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
			assert.Equal(t, 0, f.pricer.computeN)
		})
	}
}

func TestCreate_PickupEarlierToday(t *testing.T) {
	f := newFixture()
	req := cashRequest()
	req.PickupDate = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestCreate_PricingErrorStoresNothing(t *testing.T) {
	f := newFixture()
	f.pricer.err = &pricing.ProductNotFoundError{ProductID: "ghost"}

	_, err := f.svc.Create(context.Background(), cashRequest())
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.Empty(t, f.store.orders)
	assert.Empty(t, f.events.events)
}

func TestCreate_StoreFailureReleasesVoucher(t *testing.T) {
	f := newFixture()
	f.pricer.quote.Voucher = &voucher.Voucher{Code: "SAVE10", Percent: dec("10")}
	f.store.createErr = errors.New("connection reset")

	req := cashRequest()
	req.VoucherCode = "SAVE10"
	_, err := f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Equal(t, []string{"SAVE10"}, f.vouchers.released)
}

func TestCreate_RetriesDuplicateCode(t *testing.T) {
	f := newFixture()
	f.store.dupCodes = 1

	got, err := f.svc.Create(context.Background(), cashRequest())
	require.NoError(t, err)
	assert.Contains(t, f.store.orders, got.Order.ID)
}

func TestQuote(t *testing.T) {
	f := newFixture()
	f.members.member = &member.Member{UserID: "user-1", OutletID: "outlet-1", Level: member.LevelSilver}

	q, err := f.svc.Quote(context.Background(), QuoteRequest{
		UserID:      "user-1",
		OutletID:    "outlet-1",
		Items:       []pricing.Item{{ProductID: "wash", Quantity: dec("2")}},
		ServiceType: pricing.ServiceExpress,
		VoucherCode: "SAVE10",
	})
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("25000")))
	assert.Equal(t, 1, f.pricer.estimateN)
	assert.Equal(t, 0, f.pricer.computeN)
	assert.Equal(t, "SAVE10", f.pricer.lastReq.VoucherCode)
	assert.Equal(t, f.members.member, f.pricer.lastReq.Member)
	assert.Empty(t, f.store.orders)

	_, err = f.svc.Quote(context.Background(), QuoteRequest{ServiceType: "overnight"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Len(t, apperror.FieldsOf(err), 3)
	assert.Equal(t, 1, f.pricer.estimateN)
}

func TestCancel(t *testing.T) {
	f := newFixture()
	f.pricer.quote.Voucher = &voucher.Voucher{Code: "SAVE10", Percent: dec("10")}
	req := onlineRequest()
	req.VoucherCode = "SAVE10"
	created, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	got, err := f.svc.Cancel(context.Background(), created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)
	assert.Equal(t, payment.StatusCancelled, got.Payment.Status)
	assert.Equal(t, []tracking.Status{tracking.StatusOrderCreated, tracking.StatusOrderCanceled}, f.store.statuses(created.Order.ID))
	assert.Equal(t, []string{"SAVE10"}, f.vouchers.released)

	_, err = f.svc.Cancel(context.Background(), created.Order.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancel_PaidOrderConflicts(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), cashRequest())
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), created.Order.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	_, err = f.svc.Cancel(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdvance_ForwardSequence(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), cashRequest())
	require.NoError(t, err)
	id := created.Order.ID

	for _, target := range []State{StateInProgress, StateCompleted, StateTaken} {
		got, err := f.svc.Advance(context.Background(), id, target)
		require.NoError(t, err)
		assert.Equal(t, target, got.State)
	}
	assert.Equal(t, []tracking.Status{
		tracking.StatusOrderCreated, tracking.StatusPaymentReceived,
		tracking.StatusInProgress, tracking.StatusCompleted, tracking.StatusTaken,
	}, f.store.statuses(id))
}

func TestAdvance_DuplicateIsNoop(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), cashRequest())
	require.NoError(t, err)
	id := created.Order.ID

	_, err = f.svc.Advance(context.Background(), id, StateInProgress)
	require.NoError(t, err)
	got, err := f.svc.Advance(context.Background(), id, StateInProgress)
	require.NoError(t, err)

	assert.Equal(t, StateInProgress, got.State)
	assert.Len(t, f.store.statuses(id), 3)
	assert.Equal(t, []event.Type{event.OrderCreated, event.OrderAdvanced}, f.events.types())
}

func TestAdvance_Rejections(t *testing.T) {
	f := newFixture()
	paid, err := f.svc.Create(context.Background(), cashRequest())
	require.NoError(t, err)
	unpaid, err := f.svc.Create(context.Background(), onlineRequest())
	require.NoError(t, err)

	_, err = f.svc.Advance(context.Background(), paid.Order.ID, StateTaken)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = f.svc.Advance(context.Background(), unpaid.Order.ID, StateInProgress)
	require.ErrorIs(t, err, ErrNotPaid)

	_, err = f.svc.Advance(context.Background(), paid.Order.ID, StateCancelled)
	require.ErrorIs(t, err, ErrUnsupportedTarget)

	_, err = f.svc.Advance(context.Background(), "missing", StateInProgress)
	require.ErrorIs(t, err, ErrNotFound)

	// Going back after completion is refused, repeating is not.
	for _, s := range []State{StateInProgress, StateCompleted} {
		_, err = f.svc.Advance(context.Background(), paid.Order.ID, s)
		require.NoError(t, err)
	}
	_, err = f.svc.Advance(context.Background(), paid.Order.ID, StateInProgress)
	require.NoError(t, err)
	assert.Len(t, f.store.statuses(paid.Order.ID), 4)
}

func TestStartPayment(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), onlineRequest())
	require.NoError(t, err)
	id := created.Order.ID

	p, err := f.svc.StartPayment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "snap-token", p.GatewayToken)
	assert.Equal(t, created.Order.Code, f.gateway.lastReq.OrderCode)
	assert.True(t, f.gateway.lastReq.GrossAmount.Equal(dec("25000")))

	again, err := f.svc.StartPayment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, p.GatewayToken, again.GatewayToken)
	assert.Equal(t, 1, f.gateway.calls)

	got, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatePaymentPending, got.State)
}

func TestStartPayment_Rejections(t *testing.T) {
	f := newFixture()
	cash, err := f.svc.Create(context.Background(), cashRequest())
	require.NoError(t, err)
	_, err = f.svc.StartPayment(context.Background(), cash.Order.ID)
	require.ErrorIs(t, err, ErrCashPayment)

	online, err := f.svc.Create(context.Background(), onlineRequest())
	require.NoError(t, err)
	f.svc.now = func() time.Time { return fixedNow.Add(3 * time.Hour) }
	_, err = f.svc.StartPayment(context.Background(), online.Order.ID)
	require.ErrorIs(t, err, ErrNotPayable)
	assert.Equal(t, 0, f.gateway.calls)
}

func TestStartPayment_GatewayFailure(t *testing.T) {
	f := newFixture()
	f.gateway.err = errors.New("gateway timeout")
	created, err := f.svc.Create(context.Background(), onlineRequest())
	require.NoError(t, err)

	_, err = f.svc.StartPayment(context.Background(), created.Order.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	got, err := f.svc.Get(context.Background(), created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, got.State)
}

func TestExpireStale(t *testing.T) {
	f := newFixture()
	f.pricer.quote.Voucher = &voucher.Voucher{Code: "SAVE10", Percent: dec("10")}
	online, err := f.svc.Create(context.Background(), onlineRequest())
	require.NoError(t, err)
	cash, err := f.svc.Create(context.Background(), cashRequest())
	require.NoError(t, err)

	n, err := f.svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.svc.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	n, err = f.svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(context.Background(), online.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, got.State)
	assert.Equal(t, payment.StatusExpired, got.Payment.Status)
	assert.Equal(t, []string{"SAVE10"}, f.vouchers.released)

	paid, err := f.svc.Get(context.Background(), cash.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePaid, paid.State)
}

func TestListByOutlet(t *testing.T) {
	f := newFixture()
	for range 3 {
		_, err := f.svc.Create(context.Background(), cashRequest())
		require.NoError(t, err)
	}

	page, err := f.svc.ListByOutlet(context.Background(), "outlet-1", pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
}

func TestChargeRequest_ItemsSumToTotal(t *testing.T) {
	o := &Order{
		Code: "ORD-1",
		Items: []Item{
			{ProductID: "wash", Name: "Wash & Fold", Unit: product.UnitKilogram, Quantity: dec("2.5"), UnitPrice: dec("10000"), Subtotal: dec("25000")},
			{ProductID: "suit", Name: "Suit", Unit: product.UnitPiece, Quantity: dec("2"), UnitPrice: dec("35000"), Subtotal: dec("70000")},
		},
		ServiceType:    pricing.ServiceSuperExpress,
		ServiceFee:     dec("10000"),
		DiscountAmount: dec("10500"),
		Total:          dec("94500"),
	}

	req := chargeRequest(o)
	sum := decimal.Zero
	for _, it := range req.Items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	assert.True(t, sum.Equal(o.Total), "sum %s", sum)
	require.Len(t, req.Items, 4)
	assert.Equal(t, "Wash & Fold (2.5 kg)", req.Items[0].Name)
	assert.Equal(t, int64(2), req.Items[1].Quantity)
	assert.True(t, req.Items[3].Price.IsNegative())
}

func TestStateOf(t *testing.T) {
	entries := func(ss ...tracking.Status) []tracking.Entry {
		var out []tracking.Entry
		for _, s := range ss {
			out = append(out, tracking.Entry{Status: s})
		}
		return out
	}
	tests := []struct {
		name    string
		status  PaymentStatus
		payment *payment.Payment
		entries []tracking.Entry
		want    State
	}{
		{"created", StatusUnpaid, &payment.Payment{}, entries(tracking.StatusOrderCreated), StateCreated},
		{"payment pending", StatusUnpaid, &payment.Payment{GatewayToken: "tok"}, entries(tracking.StatusOrderCreated), StatePaymentPending},
		{"paid", StatusPaid, nil, entries(tracking.StatusOrderCreated, tracking.StatusPaymentReceived), StatePaid},
		{"completed", StatusPaid, nil, entries(tracking.StatusInProgress, tracking.StatusCompleted), StateCompleted},
		{"cancelled", StatusCancelled, nil, nil, StateCancelled},
		{"expired", StatusExpired, nil, nil, StateExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(&Order{PaymentStatus: tt.status}, tt.payment, tt.entries))
		})
	}
}
