package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"posledger/internal/domain"
	"posledger/internal/sequence"
	"posledger/internal/store"
)

func (s *Store) NextInvoiceSequence(_ context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := max(s.sequences[scope], s.lastIssued(scope)) + 1
	s.sequences[scope] = next
	return next, nil
}

func (s *Store) LastInvoiceSequence(_ context.Context, scope string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastIssued(scope), nil
}

func (s *Store) lastIssued(scope string) int64 {
	var last int64
	for number := range s.numbers {
		if n, ok := sequence.ParseInvoiceNumber(scope, number); ok && n > last {
			last = n
		}
	}
	return last
}

// CreateInvoice stages the header, the lines and the stock decrements and
// only applies them once every line has been staged.
func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if invoice.InvoiceNumber == "" || len(invoice.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.numbers[invoice.InvoiceNumber]; taken {
		return nil, store.ErrDuplicateInvoiceNumber
	}
	if invoice.CustomerID != nil {
		if _, ok := s.customers[*invoice.CustomerID]; !ok {
			return nil, fmt.Errorf("customer %d: %w", *invoice.CustomerID, store.ErrNotFound)
		}
	}

	staged := invoice
	staged.ID = s.lastID["invoices"] + 1
	if staged.SaleDate.IsZero() {
		staged.SaleDate = time.Now().UTC()
	}
	staged.Items = make([]domain.InvoiceItem, 0, len(invoice.Items))
	stock := make(map[int64]int, len(invoice.Items))
	nextItemID := s.lastID["invoice_items"]

	for i, item := range invoice.Items {
		if s.faultAtItem > 0 && i+1 == s.faultAtItem {
			return nil, errSimulatedFailure
		}
		product, ok := s.products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, store.ErrNotFound)
		}
		if item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		nextItemID++
		item.ID = nextItemID
		item.InvoiceID = staged.ID
		item.ProductName = product.Name
		item.ProductSKU = product.SKU
		staged.Items = append(staged.Items, item)

		if _, seen := stock[item.ProductID]; !seen {
			stock[item.ProductID] = product.StockQuantity
		}
		stock[item.ProductID] -= item.Quantity
	}

	now := time.Now().UTC()
	for productID, qty := range stock {
		product := s.products[productID]
		product.StockQuantity = qty
		product.UpdatedAt = now
		s.products[productID] = product
	}
	s.lastID["invoices"] = staged.ID
	s.lastID["invoice_items"] = nextItemID
	s.numbers[staged.InvoiceNumber] = staged.ID
	s.invoices = append(s.invoices, cloneInvoice(staged))

	return &staged, nil
}

func (s *Store) GetInvoice(_ context.Context, id int64) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.ID == id {
			out := cloneInvoice(inv)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListInvoices(_ context.Context, query store.InvoiceQuery) ([]domain.Invoice, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Invoice, 0, len(s.invoices))
	// newest first: invoices are appended in id order
	for i := len(s.invoices) - 1; i >= 0; i-- {
		inv := s.invoices[i]
		if !inRange(inv.SaleDate, query.From, query.To) {
			continue
		}
		if query.Status != "" && inv.Status != query.Status {
			continue
		}
		matched = append(matched, inv)
	}
	sortInvoicesLatestFirst(matched)

	total := len(matched)
	if query.Offset >= total {
		return []domain.Invoice{}, total, nil
	}
	end := total
	if query.Limit > 0 && query.Offset+query.Limit < end {
		end = query.Offset + query.Limit
	}

	page := make([]domain.Invoice, 0, end-query.Offset)
	for _, inv := range matched[query.Offset:end] {
		inv.Items = nil
		page = append(page, inv)
	}
	return page, total, nil
}

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	out := inv
	out.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	if inv.CustomerID != nil {
		id := *inv.CustomerID
		out.CustomerID = &id
	}
	return out
}

func sortInvoicesLatestFirst(invoices []domain.Invoice) {
	slices.SortStableFunc(invoices, func(a, b domain.Invoice) int {
		if c := b.SaleDate.Compare(a.SaleDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
