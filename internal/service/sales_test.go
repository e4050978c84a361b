package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"posledger/internal/domain"
	"posledger/internal/sequence"
	"posledger/internal/store"
	"posledger/internal/store/memory"
)

var fixedNow = time.Date(2026, 5, 20, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts Options) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return New(repo, nil, zaptest.NewLogger(t), opts), repo
}

func asRole(role domain.Role) context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 1, Username: string(role), Role: role})
}

func d(v string) *decimal.Decimal {
	x := decimal.RequireFromString(v)
	return &x
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func stockOf(t *testing.T, repo *memory.Store, id int64) int {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestPostSaleComputesTotals(t *testing.T) {
	svc, repo := newTestService(t, Options{})

	resp, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
		Items:          []domain.SaleLineRequest{{ProductID: 3, Quantity: 2, UnitPrice: d("10.00")}},
		PaymentMethod:  domain.PaymentCash,
		AmountPaid:     d("25.00"),
		TaxAmount:      d("2.00"),
		DiscountAmount: d("1.00"),
	})
	require.NoError(t, err)

	inv := resp.Invoice
	assertDecimal(t, "20.00", inv.Subtotal, "subtotal")
	assertDecimal(t, "21.00", inv.TotalAmount, "total_amount")
	assertDecimal(t, "4.00", inv.ChangeAmount, "change_amount")
	assertDecimal(t, "0", resp.BalanceDue, "balance_due")
	assert.Equal(t, "INV-20260520-000001", inv.InvoiceNumber)
	assert.Equal(t, domain.InvoiceStatusCompleted, inv.Status)
	assert.Equal(t, fixedNow, inv.SaleDate)
	assert.Equal(t, int64(1), inv.UserID)
	require.Len(t, inv.Items, 1)
	assertDecimal(t, "20.00", inv.Items[0].TotalAmount, "item total")

	assert.Equal(t, 23, stockOf(t, repo, 3))
}

func TestPostSaleTotalInvariantsHold(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	resp, err := svc.PostSale(asRole(domain.RoleManager), domain.SaleRequest{
		Items: []domain.SaleLineRequest{
			{ProductID: 1, Quantity: 1, UnitPrice: d("699.99"), DiscountAmount: d("50"), TaxAmount: d("13.00")},
			{ProductID: 2, Quantity: 3, UnitPrice: d("29.99"), TaxAmount: d("1.50")},
		},
		PaymentMethod:  domain.PaymentCard,
		AmountPaid:     d("800"),
		TaxAmount:      d("12.34"),
		DiscountAmount: d("5"),
	})
	require.NoError(t, err)
	inv := resp.Invoice

	// line tax stays on the line, invoice tax on the invoice
	assertDecimal(t, "739.96", inv.Subtotal, "subtotal")
	assert.True(t, inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount).Sub(inv.DiscountAmount)))
	assertDecimal(t, "747.30", inv.TotalAmount, "total_amount")
	assertDecimal(t, "52.70", inv.ChangeAmount, "change_amount")
	assertDecimal(t, "662.99", inv.Items[0].TotalAmount, "line 0 total")
	assertDecimal(t, "91.47", inv.Items[1].TotalAmount, "line 1 total")
}

func TestPostSaleDuplicateProductLinesAreNotMerged(t *testing.T) {
	svc, repo := newTestService(t, Options{})

	resp, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
		Items: []domain.SaleLineRequest{
			{ProductID: 2, Quantity: 4, UnitPrice: d("29.99")},
			{ProductID: 3, Quantity: 1, UnitPrice: d("19.99")},
			{ProductID: 2, Quantity: 6, UnitPrice: d("25.00")},
		},
		PaymentMethod: domain.PaymentDigitalWallet,
		AmountPaid:    d("300"),
	})
	require.NoError(t, err)
	require.Len(t, resp.Invoice.Items, 3)
	assert.Equal(t, int64(2), resp.Invoice.Items[0].ProductID)
	assert.Equal(t, int64(3), resp.Invoice.Items[1].ProductID)
	assert.Equal(t, int64(2), resp.Invoice.Items[2].ProductID)

	assert.Equal(t, 90, stockOf(t, repo, 2))
	assert.Equal(t, 24, stockOf(t, repo, 3))
}

func TestPostSaleRejectsEmptyCart(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := asRole(domain.RoleCashier)

	_, err := svc.PostSale(ctx, domain.SaleRequest{PaymentMethod: domain.PaymentCash, AmountPaid: d("0")})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	page, err := svc.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestPostSaleRejectsNonPositiveQuantity(t *testing.T) {
	svc, repo := newTestService(t, Options{})

	for _, qty := range []int{0, -3} {
		_, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
			Items:         []domain.SaleLineRequest{{ProductID: 1, Quantity: qty, UnitPrice: d("1")}},
			PaymentMethod: domain.PaymentCash,
			AmountPaid:    d("1"),
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "qty %d", qty)
		assert.Equal(t, "must be at least 1", verr.Fields["items.0.quantity"])
	}
	assert.Equal(t, 50, stockOf(t, repo, 1))
}

func TestPostSaleReportsEveryInvalidField(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	_, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
		Items: []domain.SaleLineRequest{
			{ProductID: 1, Quantity: 1},
			{ProductID: 0, Quantity: 1, UnitPrice: d("-1"), DiscountAmount: d("-2")},
		},
		PaymentMethod:  "crypto",
		DiscountAmount: d("-1"),
		TaxAmount:      d("-1"),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{
		"items.0.unit_price",
		"items.1.product_id",
		"items.1.unit_price",
		"items.1.discount_amount",
		"payment_method",
		"amount_paid",
		"discount_amount",
		"tax_amount",
	} {
		assert.Contains(t, verr.Fields, field)
	}
}

func TestPostSaleRejectsUnknownReferences(t *testing.T) {
	svc, repo := newTestService(t, Options{})
	ghost := int64(404)

	_, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
		Items: []domain.SaleLineRequest{
			{ProductID: 1, Quantity: 1, UnitPrice: d("699.99")},
			{ProductID: 999, Quantity: 1, UnitPrice: d("1")},
		},
		CustomerID:    &ghost,
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    d("700"),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "does not exist", verr.Fields["items.1.product_id"])
	assert.Contains(t, verr.Fields, "customer_id")
	assert.Equal(t, 50, stockOf(t, repo, 1))
}

func TestPostSaleWithCustomer(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	customer := int64(2)

	resp, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
		Items:         []domain.SaleLineRequest{{ProductID: 4, Quantity: 1, UnitPrice: d("39.99")}},
		CustomerID:    &customer,
		PaymentMethod: domain.PaymentBankTransfer,
		AmountPaid:    d("39.99"),
		Notes:         "  gift wrap  ",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Invoice.CustomerID)
	assert.Equal(t, customer, *resp.Invoice.CustomerID)
	assert.Equal(t, "gift wrap", resp.Invoice.Notes)
	assertDecimal(t, "0", resp.Invoice.ChangeAmount, "change_amount")
}

func TestPostSaleAcceptsUnderpaymentAndLogsIt(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := memory.NewSeeded()
	svc := New(repo, nil, zap.New(core), Options{Now: func() time.Time { return fixedNow }})

	resp, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
		Items:          []domain.SaleLineRequest{{ProductID: 3, Quantity: 2, UnitPrice: d("10.00")}},
		PaymentMethod:  domain.PaymentCash,
		AmountPaid:     d("5.00"),
		TaxAmount:      d("2.00"),
		DiscountAmount: d("1.00"),
	})
	require.NoError(t, err)
	assertDecimal(t, "0", resp.Invoice.ChangeAmount, "change_amount")
	assertDecimal(t, "5.00", resp.Invoice.AmountPaid, "amount_paid")
	assertDecimal(t, "16.00", resp.BalanceDue, "balance_due")
	assert.Equal(t, domain.InvoiceStatusCompleted, resp.Invoice.Status)

	entries := logs.FilterMessage("sale underpaid, recording with zero change").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "16.00", entries[0].ContextMap()["balance_due"])
}

func TestPostSaleRoundsToCents(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	resp, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
		Items:         []domain.SaleLineRequest{{ProductID: 2, Quantity: 3, UnitPrice: d("10.005")}},
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    d("40"),
	})
	require.NoError(t, err)
	assertDecimal(t, "10.01", resp.Invoice.Items[0].UnitPrice, "unit_price")
	assertDecimal(t, "30.03", resp.Invoice.TotalAmount, "total_amount")
	assertDecimal(t, "9.97", resp.Invoice.ChangeAmount, "change_amount")
}

func TestPostSaleEnforcesCatalogPriceWhenConfigured(t *testing.T) {
	svc, repo := newTestService(t, Options{EnforceCatalogPrice: true})
	ctx := asRole(domain.RoleCashier)

	_, err := svc.PostSale(ctx, domain.SaleRequest{
		Items:         []domain.SaleLineRequest{{ProductID: 1, Quantity: 1, UnitPrice: d("1.00")}},
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    d("1.00"),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must match the catalog price 699.99", verr.Fields["items.0.unit_price"])
	assert.Equal(t, 50, stockOf(t, repo, 1))

	_, err = svc.PostSale(ctx, domain.SaleRequest{
		Items:         []domain.SaleLineRequest{{ProductID: 1, Quantity: 1, UnitPrice: d("699.99")}},
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    d("700"),
	})
	require.NoError(t, err)
}

func TestPostSaleTrustsCallerPriceByDefault(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	resp, err := svc.PostSale(asRole(domain.RoleCashier), domain.SaleRequest{
		Items:         []domain.SaleLineRequest{{ProductID: 1, Quantity: 1, UnitPrice: d("1.00")}},
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    d("1.00"),
	})
	require.NoError(t, err)
	assertDecimal(t, "1.00", resp.Invoice.TotalAmount, "total_amount")
}

type scriptedCounter struct {
	mu     sync.Mutex
	values []int64
	calls  int
}

func (c *scriptedCounter) Next(_ context.Context, _ string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.values[len(c.values)-1]
	if c.calls < len(c.values) {
		v = c.values[c.calls]
	}
	c.calls++
	return v, nil
}

func saleOfOneBook() domain.SaleRequest {
	return domain.SaleRequest{
		Items:         []domain.SaleLineRequest{{ProductID: 4, Quantity: 1, UnitPrice: d("39.99")}},
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    d("40"),
	}
}

func TestPostSaleRetriesInvoiceNumberCollision(t *testing.T) {
	repo := memory.NewSeeded()
	counter := &scriptedCounter{values: []int64{1, 1, 1, 2}}
	svc := New(repo, counter, zaptest.NewLogger(t), Options{Now: func() time.Time { return fixedNow }})
	ctx := asRole(domain.RoleCashier)

	first, err := svc.PostSale(ctx, saleOfOneBook())
	require.NoError(t, err)
	second, err := svc.PostSale(ctx, saleOfOneBook())
	require.NoError(t, err)

	assert.Equal(t, "INV-20260520-000001", first.Invoice.InvoiceNumber)
	assert.Equal(t, "INV-20260520-000002", second.Invoice.InvoiceNumber)
	assert.Equal(t, 4, counter.calls)
	assert.Equal(t, 28, stockOf(t, repo, 4))
}

func TestPostSaleGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := memory.NewSeeded()
	counter := &scriptedCounter{values: []int64{9}}
	svc := New(repo, counter, zaptest.NewLogger(t), Options{Now: func() time.Time { return fixedNow }})
	ctx := asRole(domain.RoleCashier)

	_, err := svc.PostSale(ctx, saleOfOneBook())
	require.NoError(t, err)

	_, err = svc.PostSale(ctx, saleOfOneBook())
	require.ErrorIs(t, err, store.ErrDuplicateInvoiceNumber)
	assert.Equal(t, 1+maxInvoiceNumberAttempts, counter.calls)
	assert.Equal(t, 29, stockOf(t, repo, 4))
}

// dayCounter starts every scope at zero, like a freshly flushed Redis key.
type dayCounter struct {
	mu      sync.Mutex
	last    map[string]int64
	floor   sequence.Floor
	calls   int
	resyncs int
}

func (c *dayCounter) Next(_ context.Context, scope string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.last[scope]++
	return c.last[scope], nil
}

func (c *dayCounter) Resync(ctx context.Context, scope string) error {
	floor, err := c.floor(ctx, scope)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resyncs++
	c.last[scope] = max(c.last[scope], floor)
	return nil
}

func TestPostSaleCounterResyncsPastRepositoryNumbers(t *testing.T) {
	repo := memory.NewSeeded()
	now := func() time.Time { return fixedNow }
	ctx := asRole(domain.RoleCashier)

	bySequence := New(repo, nil, zaptest.NewLogger(t), Options{Now: now})
	for range 6 {
		_, err := bySequence.PostSale(ctx, saleOfOneBook())
		require.NoError(t, err)
	}

	counter := &dayCounter{last: map[string]int64{}, floor: repo.LastInvoiceSequence}
	byCounter := New(repo, counter, zaptest.NewLogger(t), Options{Now: now})

	resp, err := byCounter.PostSale(ctx, saleOfOneBook())
	require.NoError(t, err)
	assert.Equal(t, "INV-20260520-000007", resp.Invoice.InvoiceNumber)
	assert.Equal(t, 2, counter.calls)
	assert.Equal(t, 1, counter.resyncs)

	resp, err = byCounter.PostSale(ctx, saleOfOneBook())
	require.NoError(t, err)
	assert.Equal(t, "INV-20260520-000008", resp.Invoice.InvoiceNumber)
	assert.Equal(t, 1, counter.resyncs)
	assert.Equal(t, 22, stockOf(t, repo, 4))
}

func TestRepositorySequenceSkipsNumbersIssuedByCounter(t *testing.T) {
	repo := memory.NewSeeded()
	now := func() time.Time { return fixedNow }
	ctx := asRole(domain.RoleCashier)

	counter := &scriptedCounter{values: []int64{1, 2, 3, 4, 5, 6}}
	byCounter := New(repo, counter, zaptest.NewLogger(t), Options{Now: now})
	for range 6 {
		_, err := byCounter.PostSale(ctx, saleOfOneBook())
		require.NoError(t, err)
	}

	bySequence := New(repo, nil, zaptest.NewLogger(t), Options{Now: now})
	resp, err := bySequence.PostSale(ctx, saleOfOneBook())
	require.NoError(t, err)
	assert.Equal(t, "INV-20260520-000007", resp.Invoice.InvoiceNumber)

	nextDay := New(repo, nil, zaptest.NewLogger(t), Options{Now: func() time.Time { return fixedNow.AddDate(0, 0, 1) }})
	resp, err = nextDay.PostSale(ctx, saleOfOneBook())
	require.NoError(t, err)
	assert.Equal(t, "INV-20260521-000001", resp.Invoice.InvoiceNumber)
}

func TestPostSaleRequiresAuthenticatedActor(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	_, err := svc.PostSale(context.Background(), saleOfOneBook())
	require.True(t, errors.Is(err, ErrForbidden))
}

func TestConcurrentSalesApplyEveryDecrement(t *testing.T) {
	svc, repo := newTestService(t, Options{})
	ctx := asRole(domain.RoleCashier)

	const sales = 35
	var wg sync.WaitGroup
	errs := make(chan error, sales)
	for i := 0; i < sales; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PostSale(ctx, saleOfOneBook())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 30 in stock, no floor: overselling goes negative rather than losing a decrement
	assert.Equal(t, -5, stockOf(t, repo, 4))

	page, err := svc.ListInvoices(ctx, domain.InvoiceFilter{PerPage: 100})
	require.NoError(t, err)
	assert.Equal(t, sales, page.Total)
	seen := map[string]bool{}
	for _, inv := range page.Data {
		assert.False(t, seen[inv.InvoiceNumber], "duplicate %s", inv.InvoiceNumber)
		seen[inv.InvoiceNumber] = true
	}
}
