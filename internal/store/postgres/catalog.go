package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"posledger/internal/domain"
	"posledger/internal/store"
)

const productColumns = `
	id, name, sku, barcode, description, category_id, unit_id, supplier_id,
	cost_price, selling_price, stock_quantity, min_stock_level, is_active, created_at, updated_at
`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.SKU, &p.Barcode, &p.Description, &p.CategoryID, &p.UnitID, &p.SupplierID,
		&p.CostPrice, &p.SellingPrice, &p.StockQuantity, &p.MinStockLevel, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()
	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active OR $1
		ORDER BY name, id
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	created, err := scanProduct(s.db.QueryRow(ctx, `
		INSERT INTO products (
			name, sku, barcode, description, category_id, unit_id, supplier_id,
			cost_price, selling_price, stock_quantity, min_stock_level, is_active
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+productColumns,
		product.Name, product.SKU, product.Barcode, product.Description, product.CategoryID, product.UnitID, product.SupplierID,
		product.CostPrice, product.SellingPrice, product.StockQuantity, product.MinStockLevel, product.Active,
	))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &created, nil
}

// UpdateProduct rewrites everything but the stock, which only moves through
// sales and AdjustStock.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	updated, err := scanProduct(s.db.QueryRow(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, description = $4, category_id = $5, unit_id = $6, supplier_id = $7,
			cost_price = $8, selling_price = $9, min_stock_level = $10, is_active = $11, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Barcode, product.Description, product.CategoryID, product.UnitID, product.SupplierID,
		product.CostPrice, product.SellingPrice, product.MinStockLevel, product.Active,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapWriteError(err)
	}
	return &updated, nil
}

func (s *Store) AdjustStock(ctx context.Context, productID int64, delta int) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = now()
		WHERE id = $2
		RETURNING `+productColumns,
		delta, productID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active AND stock_quantity <= min_stock_level
		ORDER BY stock_quantity, id
	`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, description, is_active, created_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Category, error) {
		var c domain.Category
		err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt)
		return c, err
	})
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRow(ctx, `SELECT id, name, description, is_active, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO categories (name, description, is_active)
		VALUES ($1,$2,$3)
		RETURNING id, created_at
	`, category.Name, category.Description, category.Active).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &category, nil
}

func (s *Store) ListUnits(ctx context.Context) ([]domain.Unit, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, abbreviation, description, is_active, created_at FROM units ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Unit, error) {
		var u domain.Unit
		err := row.Scan(&u.ID, &u.Name, &u.Abbreviation, &u.Description, &u.Active, &u.CreatedAt)
		return u, err
	})
}

func (s *Store) GetUnit(ctx context.Context, id int64) (*domain.Unit, error) {
	var u domain.Unit
	err := s.db.QueryRow(ctx, `SELECT id, name, abbreviation, description, is_active, created_at FROM units WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Abbreviation, &u.Description, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) CreateUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO units (name, abbreviation, description, is_active)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, unit.Name, unit.Abbreviation, unit.Description, unit.Active).Scan(&unit.ID, &unit.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &unit, nil
}

const supplierColumns = `id, name, contact_person, email, phone, address, is_active, created_at`

func scanSupplier(row pgx.Row) (domain.Supplier, error) {
	var sup domain.Supplier
	err := row.Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Email, &sup.Phone, &sup.Address, &sup.Active, &sup.CreatedAt)
	return sup, err
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Supplier, error) {
		return scanSupplier(row)
	})
}

func (s *Store) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	sup, err := scanSupplier(s.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO suppliers (name, contact_person, email, phone, address, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, supplier.Name, supplier.ContactPerson, supplier.Email, supplier.Phone, supplier.Address, supplier.Active).
		Scan(&supplier.ID, &supplier.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &supplier, nil
}

const customerColumns = `id, name, email, phone, address, is_active, created_at`

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Active, &c.CreatedAt)
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Customer, error) {
		return scanCustomer(row)
	})
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO customers (name, email, phone, address, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, customer.Name, customer.Email, customer.Phone, customer.Address, customer.Active).
		Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &customer, nil
}

const taxColumns = `id, name, rate, description, is_active, created_at, updated_at`

func scanTax(row pgx.Row) (domain.Tax, error) {
	var t domain.Tax
	err := row.Scan(&t.ID, &t.Name, &t.Rate, &t.Description, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) ListTaxes(ctx context.Context, limit int, offset int) ([]domain.Tax, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM taxes`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+taxColumns+`
		FROM taxes
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	taxes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Tax, error) {
		return scanTax(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return taxes, total, nil
}

func (s *Store) GetTax(ctx context.Context, id int64) (*domain.Tax, error) {
	t, err := scanTax(s.db.QueryRow(ctx, `SELECT `+taxColumns+` FROM taxes WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) CreateTax(ctx context.Context, tax domain.Tax) (*domain.Tax, error) {
	created, err := scanTax(s.db.QueryRow(ctx, `
		INSERT INTO taxes (name, rate, description, is_active)
		VALUES ($1,$2,$3,$4)
		RETURNING `+taxColumns,
		tax.Name, tax.Rate, tax.Description, tax.Active,
	))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &created, nil
}

func (s *Store) UpdateTax(ctx context.Context, tax domain.Tax) (*domain.Tax, error) {
	updated, err := scanTax(s.db.QueryRow(ctx, `
		UPDATE taxes
		SET name = $2, rate = $3, description = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+taxColumns,
		tax.ID, tax.Name, tax.Rate, tax.Description, tax.Active,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return &updated, nil
}

func (s *Store) DeleteTax(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM taxes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	default:
		return err
	}
}
