package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"posledger/internal/domain"
	"posledger/internal/sequence"
	"posledger/internal/store"
)

const invoiceNumberConstraint = "invoices_invoice_number_key"

var _ store.Repository = (*Store)(nil)

// NextInvoiceSequence bumps the scope's counter row. The row lock serializes
// concurrent draws and the new value is never below the highest number
// already stored for the day.
func (s *Store) NextInvoiceSequence(ctx context.Context, scope string) (int64, error) {
	prefix := sequence.Prefix(scope)
	var next int64
	err := s.db.QueryRow(ctx, `
		WITH issued AS (
			SELECT COALESCE(MAX(substring(invoice_number FROM $3)::bigint), 0) AS last_value
			FROM invoices
			WHERE invoice_number LIKE $2 AND substring(invoice_number FROM $3) ~ '^[0-9]+$'
		)
		INSERT INTO invoice_counters (scope, last_value)
		SELECT $1, last_value + 1 FROM issued
		ON CONFLICT (scope) DO UPDATE
		SET last_value = GREATEST(invoice_counters.last_value + 1, EXCLUDED.last_value)
		RETURNING last_value
	`, scope, prefix+"%", len(prefix)+1).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) LastInvoiceSequence(ctx context.Context, scope string) (int64, error) {
	prefix := sequence.Prefix(scope)
	var last int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(substring(invoice_number FROM $2)::bigint), 0)
		FROM invoices
		WHERE invoice_number LIKE $1 AND substring(invoice_number FROM $2) ~ '^[0-9]+$'
	`, prefix+"%", len(prefix)+1).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last, nil
}

// CreateInvoice writes the header, every line and the stock decrements in one
// transaction. Decrements are applied in product id order so two sales
// touching the same products lock rows in the same order.
func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if invoice.InvoiceNumber == "" || len(invoice.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if invoice.SaleDate.IsZero() {
		invoice.SaleDate = time.Now().UTC()
	}

	created := invoice
	created.Items = make([]domain.InvoiceItem, 0, len(invoice.Items))
	decrements := make(map[int64]int, len(invoice.Items))

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO invoices (
				invoice_number, customer_id, user_id, subtotal, tax_amount, discount_amount,
				total_amount, payment_method, amount_paid, change_amount, status, notes, sale_date
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			RETURNING id
		`,
			invoice.InvoiceNumber, invoice.CustomerID, invoice.UserID, invoice.Subtotal, invoice.TaxAmount, invoice.DiscountAmount,
			invoice.TotalAmount, invoice.PaymentMethod, invoice.AmountPaid, invoice.ChangeAmount, invoice.Status, invoice.Notes, invoice.SaleDate,
		).Scan(&created.ID)
		if err != nil {
			if pgErr, ok := pgError(err); ok && pgErr.Code == "23505" && pgErr.ConstraintName == invoiceNumberConstraint {
				return store.ErrDuplicateInvoiceNumber
			}
			return fmt.Errorf("insert invoice: %w", mapWriteError(err))
		}

		for _, item := range invoice.Items {
			item.InvoiceID = created.ID
			if err := tx.QueryRow(ctx, `
				INSERT INTO invoice_items (
					invoice_id, product_id, quantity, unit_price, discount_amount, tax_amount, total_amount
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
				RETURNING id
			`, item.InvoiceID, item.ProductID, item.Quantity, item.UnitPrice, item.DiscountAmount, item.TaxAmount, item.TotalAmount).Scan(&item.ID); err != nil {
				return fmt.Errorf("insert item for product %d: %w", item.ProductID, mapWriteError(err))
			}
			created.Items = append(created.Items, item)
			decrements[item.ProductID] += item.Quantity
		}

		productIDs := make([]int64, 0, len(decrements))
		for id := range decrements {
			productIDs = append(productIDs, id)
		}
		slices.Sort(productIDs)
		for _, id := range productIDs {
			tag, err := tx.Exec(ctx, `
				UPDATE products
				SET stock_quantity = stock_quantity - $1, updated_at = now()
				WHERE id = $2
			`, decrements[id], id)
			if err != nil {
				return fmt.Errorf("decrement stock for product %d: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("product %d: %w", id, store.ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

const invoiceColumns = `
	id, invoice_number, customer_id, user_id, subtotal, tax_amount, discount_amount,
	total_amount, payment_method, amount_paid, change_amount, status, notes, sale_date
`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.UserID, &inv.Subtotal, &inv.TaxAmount, &inv.DiscountAmount,
		&inv.TotalAmount, &inv.PaymentMethod, &inv.AmountPaid, &inv.ChangeAmount, &inv.Status, &inv.Notes, &inv.SaleDate,
	)
	return inv, err
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT ii.id, ii.invoice_id, ii.product_id, p.name, p.sku, ii.quantity,
			ii.unit_price, ii.discount_amount, ii.tax_amount, ii.total_amount
		FROM invoice_items ii
		JOIN products p ON p.id = ii.product_id
		WHERE ii.invoice_id = $1
		ORDER BY ii.id
	`, id)
	if err != nil {
		return nil, err
	}
	inv.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.InvoiceItem, error) {
		var item domain.InvoiceItem
		err := row.Scan(
			&item.ID, &item.InvoiceID, &item.ProductID, &item.ProductName, &item.ProductSKU, &item.Quantity,
			&item.UnitPrice, &item.DiscountAmount, &item.TaxAmount, &item.TotalAmount,
		)
		return item, err
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, query store.InvoiceQuery) ([]domain.Invoice, int, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if !query.From.IsZero() {
		args = append(args, query.From)
		where = append(where, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if !query.To.IsZero() {
		args = append(args, query.To)
		where = append(where, fmt.Sprintf("sale_date < $%d", len(args)))
	}
	if query.Status != "" {
		args = append(args, query.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, query.Offset)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM invoices
		%s
		ORDER BY sale_date DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, invoiceColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	invoices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Invoice, error) {
		return scanInvoice(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}
