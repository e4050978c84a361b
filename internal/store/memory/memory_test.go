package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/domain"
	"posledger/internal/store"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func invoiceFor(number string, at time.Time, method string, lines ...domain.InvoiceItem) domain.Invoice {
	subtotal := decimal.Zero
	for i := range lines {
		lines[i].TotalAmount = lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(lines[i].Quantity))).Sub(lines[i].DiscountAmount).Add(lines[i].TaxAmount)
		subtotal = subtotal.Add(lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(lines[i].Quantity))).Sub(lines[i].DiscountAmount))
	}
	return domain.Invoice{
		InvoiceNumber: number,
		UserID:        1,
		Subtotal:      subtotal,
		TotalAmount:   subtotal,
		PaymentMethod: method,
		AmountPaid:    subtotal,
		Status:        domain.InvoiceStatusCompleted,
		SaleDate:      at,
		Items:         lines,
	}
}

func TestCreateInvoiceDecrementsStockPerLine(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	inv := invoiceFor("INV-1", time.Now().UTC(), domain.PaymentCash,
		domain.InvoiceItem{ProductID: 1, Quantity: 2, UnitPrice: dec("699.99")},
		domain.InvoiceItem{ProductID: 2, Quantity: 1, UnitPrice: dec("29.99")},
		domain.InvoiceItem{ProductID: 1, Quantity: 3, UnitPrice: dec("699.99")},
	)

	created, err := s.CreateInvoice(ctx, inv)
	require.NoError(t, err)
	require.Len(t, created.Items, 3)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, created.ID, created.Items[2].InvoiceID)

	phone, err := s.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 45, phone.StockQuantity)

	shirt, err := s.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 99, shirt.StockQuantity)
}

func TestCreateInvoiceLeavesNoTraceOnFailure(t *testing.T) {
	s := NewSeeded()
	s.faultAtItem = 2
	ctx := context.Background()

	inv := invoiceFor("INV-FAIL", time.Now().UTC(), domain.PaymentCard,
		domain.InvoiceItem{ProductID: 1, Quantity: 1, UnitPrice: dec("10.00")},
		domain.InvoiceItem{ProductID: 2, Quantity: 1, UnitPrice: dec("10.00")},
	)

	_, err := s.CreateInvoice(ctx, inv)
	require.ErrorIs(t, err, errSimulatedFailure)

	invoices, total, err := s.ListInvoices(ctx, store.InvoiceQuery{})
	require.NoError(t, err)
	assert.Empty(t, invoices)
	assert.Zero(t, total)

	phone, err := s.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, phone.StockQuantity)

	// the number is still free after the failed attempt
	s.faultAtItem = 0
	_, err = s.CreateInvoice(ctx, inv)
	require.NoError(t, err)
}

func TestCreateInvoiceUnknownProductRollsBack(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.CreateInvoice(ctx, invoiceFor("INV-X", time.Now().UTC(), domain.PaymentCash,
		domain.InvoiceItem{ProductID: 1, Quantity: 1, UnitPrice: dec("1")},
		domain.InvoiceItem{ProductID: 999, Quantity: 1, UnitPrice: dec("1")},
	))
	require.ErrorIs(t, err, store.ErrNotFound)

	phone, _ := s.GetProduct(ctx, 1)
	assert.Equal(t, 50, phone.StockQuantity)
}

func TestCreateInvoiceRejectsDuplicateNumber(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	line := domain.InvoiceItem{ProductID: 3, Quantity: 1, UnitPrice: dec("19.99")}

	_, err := s.CreateInvoice(ctx, invoiceFor("INV-DUP", time.Now().UTC(), domain.PaymentCash, line))
	require.NoError(t, err)

	_, err = s.CreateInvoice(ctx, invoiceFor("INV-DUP", time.Now().UTC(), domain.PaymentCash, line))
	require.ErrorIs(t, err, store.ErrDuplicateInvoiceNumber)

	coffee, _ := s.GetProduct(ctx, 3)
	assert.Equal(t, 24, coffee.StockQuantity)
}

func TestConcurrentInvoicesApplyEveryDecrement(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	const workers = 40
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateInvoice(ctx, invoiceFor(fmt.Sprintf("INV-C-%d", i), time.Now().UTC(), domain.PaymentCash,
				domain.InvoiceItem{ProductID: 4, Quantity: 1, UnitPrice: dec("39.99")},
			))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 30 in stock, 40 sold: no floor, every decrement applied
	book, err := s.GetProduct(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, -10, book.StockQuantity)
}

func TestNextInvoiceSequenceIsPerScope(t *testing.T) {
	s := New()
	ctx := context.Background()

	a1, _ := s.NextInvoiceSequence(ctx, "20260101")
	a2, _ := s.NextInvoiceSequence(ctx, "20260101")
	b1, _ := s.NextInvoiceSequence(ctx, "20260102")

	assert.Equal(t, int64(1), a1)
	assert.Equal(t, int64(2), a2)
	assert.Equal(t, int64(1), b1)
}

func TestNextInvoiceSequenceSkipsStoredNumbers(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	at := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	line := domain.InvoiceItem{ProductID: 3, Quantity: 1, UnitPrice: dec("19.99")}

	for _, number := range []string{"INV-20260520-000004", "INV-20260520-000002", "INV-20260521-000009", "INV-LEGACY-1"} {
		_, err := s.CreateInvoice(ctx, invoiceFor(number, at, domain.PaymentCash, line))
		require.NoError(t, err)
	}

	last, err := s.LastInvoiceSequence(ctx, "20260520")
	require.NoError(t, err)
	assert.Equal(t, int64(4), last)

	next, err := s.NextInvoiceSequence(ctx, "20260520")
	require.NoError(t, err)
	assert.Equal(t, int64(5), next)

	_, err = s.CreateInvoice(ctx, invoiceFor("INV-20260520-000011", at, domain.PaymentCash, line))
	require.NoError(t, err)
	next, err = s.NextInvoiceSequence(ctx, "20260520")
	require.NoError(t, err)
	assert.Equal(t, int64(12), next)

	empty, err := s.LastInvoiceSequence(ctx, "20260522")
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestListInvoicesFiltersAndPaginates(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := s.CreateInvoice(ctx, invoiceFor(fmt.Sprintf("INV-%d", i), base.Add(time.Duration(i)*24*time.Hour), domain.PaymentCash,
			domain.InvoiceItem{ProductID: 2, Quantity: 1, UnitPrice: dec("29.99")},
		))
		require.NoError(t, err)
	}

	page, total, err := s.ListInvoices(ctx, store.InvoiceQuery{
		From:  base.Add(24 * time.Hour),
		To:    base.Add(4 * 24 * time.Hour),
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "INV-3", page[0].InvoiceNumber)
	assert.Equal(t, "INV-2", page[1].InvoiceNumber)
	assert.Nil(t, page[0].Items)

	_, total, err = s.ListInvoices(ctx, store.InvoiceQuery{Status: domain.InvoiceStatusRefunded})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTopProductsBreaksTiesByProductID(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	at := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	_, err := s.CreateInvoice(ctx, invoiceFor("INV-A", at, domain.PaymentCash,
		domain.InvoiceItem{ProductID: 3, Quantity: 1, UnitPrice: dec("50.00")},
		domain.InvoiceItem{ProductID: 2, Quantity: 2, UnitPrice: dec("25.00")},
		domain.InvoiceItem{ProductID: 4, Quantity: 1, UnitPrice: dec("80.00")},
	))
	require.NoError(t, err)

	top, err := s.TopProducts(ctx, at.Add(-time.Hour), at.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, int64(4), top[0].ProductID)
	assert.Equal(t, int64(2), top[1].ProductID)
	assert.Equal(t, int64(3), top[2].ProductID)
	assert.Equal(t, int64(2), top[1].TotalQuantity)
	assert.True(t, dec("50").Equal(top[1].TotalRevenue))
}
