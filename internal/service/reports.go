package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/internal/authz"
	"posledger/internal/domain"
)

const topProductsLimit = 10

// GetReport aggregates the invoices posted between startDate and endDate,
// both inclusive calendar days (YYYY-MM-DD). Empty dates default to the start
// of the current month and today.
func (s *Service) GetReport(ctx context.Context, startDate string, endDate string) (domain.Report, error) {
	if _, err := s.authorize(ctx, authz.ViewReports); err != nil {
		return domain.Report{}, err
	}

	today := s.now().In(s.location)
	start, end, err := s.parseRange(startDate, endDate,
		time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, s.location),
		time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.location),
	)
	if err != nil {
		return domain.Report{}, err
	}
	from, to := start, end.AddDate(0, 0, 1)

	summary, err := s.repo.ReportSummary(ctx, from, to)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report summary: %w", err)
	}
	summary.AverageTransaction = decimal.Zero
	if summary.TotalTransactions > 0 {
		summary.AverageTransaction = summary.TotalRevenue.DivRound(decimal.NewFromInt(summary.TotalTransactions), 2)
	}

	daily, err := s.repo.DailySales(ctx, from, to, s.location)
	if err != nil {
		return domain.Report{}, fmt.Errorf("daily sales: %w", err)
	}
	top, err := s.repo.TopProducts(ctx, from, to, topProductsLimit)
	if err != nil {
		return domain.Report{}, fmt.Errorf("top products: %w", err)
	}
	payments, err := s.repo.PaymentBreakdown(ctx, from, to)
	if err != nil {
		return domain.Report{}, fmt.Errorf("payment breakdown: %w", err)
	}

	s.logger.Debug("report computed",
		zap.String("start_date", start.Format(time.DateOnly)),
		zap.String("end_date", end.Format(time.DateOnly)),
		zap.Int64("transactions", summary.TotalTransactions),
	)

	return domain.Report{
		StartDate:      start.Format(time.DateOnly),
		EndDate:        end.Format(time.DateOnly),
		Summary:        summary,
		DailySales:     nonNil(daily),
		TopProducts:    nonNil(top),
		PaymentMethods: nonNil(payments),
	}, nil
}

// parseRange turns two optional YYYY-MM-DD strings into local midnights.
func (s *Service) parseRange(startDate string, endDate string, defaultStart time.Time, defaultEnd time.Time) (time.Time, time.Time, error) {
	verr := &ValidationError{}
	start, ok := s.parseDay(startDate, defaultStart)
	if !ok {
		verr.add("start_date", "must be a date in YYYY-MM-DD format")
	}
	end, ok := s.parseDay(endDate, defaultEnd)
	if !ok {
		verr.add("end_date", "must be a date in YYYY-MM-DD format")
	}
	if len(verr.Fields) == 0 && !start.IsZero() && !end.IsZero() && start.After(end) {
		verr.add("end_date", "must be on or after start_date")
	}
	if err := verr.orNil(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (s *Service) parseDay(raw string, fallback time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, true
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, s.location)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
