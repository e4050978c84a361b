package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"posledger/internal/domain"
)

func (s *Store) ReportSummary(_ context.Context, from time.Time, to time.Time) (domain.ReportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.ReportSummary{
		TotalRevenue:   decimal.Zero,
		TotalTax:       decimal.Zero,
		TotalDiscounts: decimal.Zero,
	}
	for _, inv := range s.invoices {
		if !inRange(inv.SaleDate, from, to) {
			continue
		}
		summary.TotalTransactions++
		summary.TotalRevenue = summary.TotalRevenue.Add(inv.TotalAmount)
		summary.TotalTax = summary.TotalTax.Add(inv.TaxAmount)
		summary.TotalDiscounts = summary.TotalDiscounts.Add(inv.DiscountAmount)
	}
	return summary, nil
}

func (s *Store) DailySales(_ context.Context, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySales, error) {
	if loc == nil {
		loc = time.UTC
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := map[string]*domain.DailySales{}
	for _, inv := range s.invoices {
		if !inRange(inv.SaleDate, from, to) {
			continue
		}
		day := inv.SaleDate.In(loc).Format(time.DateOnly)
		entry := byDay[day]
		if entry == nil {
			entry = &domain.DailySales{Date: day, Revenue: decimal.Zero}
			byDay[day] = entry
		}
		entry.Transactions++
		entry.Revenue = entry.Revenue.Add(inv.TotalAmount)
	}

	days := make([]domain.DailySales, 0, len(byDay))
	for _, entry := range byDay {
		days = append(days, *entry)
	}
	slices.SortFunc(days, func(a, b domain.DailySales) int {
		return strings.Compare(a.Date, b.Date)
	})
	return days, nil
}

func (s *Store) TopProducts(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := map[int64]*domain.TopProduct{}
	for _, inv := range s.invoices {
		if !inRange(inv.SaleDate, from, to) {
			continue
		}
		for _, item := range inv.Items {
			entry := byProduct[item.ProductID]
			if entry == nil {
				product := s.products[item.ProductID]
				entry = &domain.TopProduct{
					ProductID:    item.ProductID,
					Name:         product.Name,
					SKU:          product.SKU,
					TotalRevenue: decimal.Zero,
				}
				byProduct[item.ProductID] = entry
			}
			entry.TotalQuantity += int64(item.Quantity)
			entry.TotalRevenue = entry.TotalRevenue.Add(item.TotalAmount)
		}
	}

	top := make([]domain.TopProduct, 0, len(byProduct))
	for _, entry := range byProduct {
		top = append(top, *entry)
	}
	slices.SortFunc(top, func(a, b domain.TopProduct) int {
		if c := b.TotalRevenue.Cmp(a.TotalRevenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (s *Store) PaymentBreakdown(_ context.Context, from time.Time, to time.Time) ([]domain.PaymentBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMethod := map[string]*domain.PaymentBreakdown{}
	for _, inv := range s.invoices {
		if !inRange(inv.SaleDate, from, to) {
			continue
		}
		entry := byMethod[inv.PaymentMethod]
		if entry == nil {
			entry = &domain.PaymentBreakdown{PaymentMethod: inv.PaymentMethod, Revenue: decimal.Zero}
			byMethod[inv.PaymentMethod] = entry
		}
		entry.Transactions++
		entry.Revenue = entry.Revenue.Add(inv.TotalAmount)
	}

	breakdown := make([]domain.PaymentBreakdown, 0, len(byMethod))
	for _, entry := range byMethod {
		breakdown = append(breakdown, *entry)
	}
	slices.SortFunc(breakdown, func(a, b domain.PaymentBreakdown) int {
		return strings.Compare(a.PaymentMethod, b.PaymentMethod)
	})
	return breakdown, nil
}
