package service

import (
	"context"
	"fmt"
	"time"

	"posledger/internal/authz"
	"posledger/internal/domain"
	"posledger/internal/store"
)

const (
	defaultInvoicesPerPage = 15
	maxPerPage             = 100
)

var zeroTime time.Time

// ListInvoices pages through the ledger, newest sale first.
func (s *Service) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) (domain.Page[domain.Invoice], error) {
	if _, err := s.authorize(ctx, authz.ListInvoices); err != nil {
		return domain.Page[domain.Invoice]{}, err
	}

	start, end, err := s.parseRange(filter.StartDate, filter.EndDate, zeroTime, zeroTime)
	if err != nil {
		return domain.Page[domain.Invoice]{}, err
	}
	if filter.Status != "" && !domain.IsInvoiceStatus(filter.Status) {
		return domain.Page[domain.Invoice]{}, &ValidationError{Fields: map[string]string{
			"status": "must be one of completed, refunded, partially_refunded",
		}}
	}

	page, perPage := normalizePage(filter.Page, filter.PerPage, defaultInvoicesPerPage)
	query := store.InvoiceQuery{
		From:   start,
		Status: filter.Status,
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if !end.IsZero() {
		query.To = end.AddDate(0, 0, 1)
	}

	invoices, total, err := s.repo.ListInvoices(ctx, query)
	if err != nil {
		return domain.Page[domain.Invoice]{}, fmt.Errorf("list invoices: %w", err)
	}
	return domain.NewPage(invoices, total, page, perPage), nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (domain.Invoice, error) {
	if _, err := s.authorize(ctx, authz.ViewInvoice); err != nil {
		return domain.Invoice{}, err
	}
	if id <= 0 {
		return domain.Invoice{}, store.ErrNotFound
	}
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func normalizePage(page int, perPage int, fallback int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = fallback
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
