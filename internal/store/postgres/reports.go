package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"posledger/internal/domain"
)

func (s *Store) ReportSummary(ctx context.Context, from time.Time, to time.Time) (domain.ReportSummary, error) {
	var summary domain.ReportSummary
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(total_amount), 0),
			COALESCE(SUM(tax_amount), 0),
			COALESCE(SUM(discount_amount), 0)
		FROM invoices
		WHERE sale_date >= $1 AND sale_date < $2
	`, from, to).Scan(&summary.TotalTransactions, &summary.TotalRevenue, &summary.TotalTax, &summary.TotalDiscounts)
	return summary, err
}

// DailySales buckets by the calendar day of sale_date in loc, which must be a
// zone name PostgreSQL knows (IANA names such as Asia/Jakarta).
func (s *Store) DailySales(ctx context.Context, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySales, error) {
	zone := "UTC"
	if loc != nil && loc != time.Local {
		zone = loc.String()
	}
	rows, err := s.db.Query(ctx, `
		SELECT to_char(sale_date AT TIME ZONE $3, 'YYYY-MM-DD') AS day,
			COUNT(*),
			SUM(total_amount)
		FROM invoices
		WHERE sale_date >= $1 AND sale_date < $2
		GROUP BY day
		ORDER BY day
	`, from, to, zone)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DailySales, error) {
		var d domain.DailySales
		err := row.Scan(&d.Date, &d.Transactions, &d.Revenue)
		return d, err
	})
}

func (s *Store) TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.name, p.sku,
			SUM(ii.quantity) AS total_quantity,
			SUM(ii.total_amount) AS total_revenue
		FROM invoice_items ii
		JOIN invoices i ON i.id = ii.invoice_id
		JOIN products p ON p.id = ii.product_id
		WHERE i.sale_date >= $1 AND i.sale_date < $2
		GROUP BY p.id, p.name, p.sku
		ORDER BY total_revenue DESC, p.id ASC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TopProduct, error) {
		var t domain.TopProduct
		err := row.Scan(&t.ProductID, &t.Name, &t.SKU, &t.TotalQuantity, &t.TotalRevenue)
		return t, err
	})
}

func (s *Store) PaymentBreakdown(ctx context.Context, from time.Time, to time.Time) ([]domain.PaymentBreakdown, error) {
	rows, err := s.db.Query(ctx, `
		SELECT payment_method, COUNT(*), SUM(total_amount)
		FROM invoices
		WHERE sale_date >= $1 AND sale_date < $2
		GROUP BY payment_method
		ORDER BY payment_method
	`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PaymentBreakdown, error) {
		var p domain.PaymentBreakdown
		err := row.Scan(&p.PaymentMethod, &p.Transactions, &p.Revenue)
		return p, err
	})
}
