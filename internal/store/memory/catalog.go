package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"posledger/internal/domain"
	"posledger/internal/store"
)

func (s *Store) ListProducts(_ context.Context, includeInactive bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active && !includeInactive {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.SKU == "" {
		return nil, store.ErrInvalidInput
	}
	if s.productKeyTaken(product) {
		return nil, store.ErrConflict
	}

	now := time.Now().UTC()
	product.ID = s.nextID("products")
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.productKeyTaken(product) {
		return nil, store.ErrConflict
	}

	// Stock is owned by sale posting and AdjustStock.
	product.StockQuantity = existing.StockQuantity
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) productKeyTaken(product domain.Product) bool {
	for id, other := range s.products {
		if id == product.ID {
			continue
		}
		if strings.EqualFold(other.SKU, product.SKU) {
			return true
		}
		if product.Barcode != nil && other.Barcode != nil && *other.Barcode == *product.Barcode {
			return true
		}
	}
	return false
}

func (s *Store) AdjustStock(_ context.Context, productID int64, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.StockQuantity += delta
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return &product, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.Active && p.LowStock() {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := cmp.Compare(a.StockQuantity, b.StockQuantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.categories, func(c domain.Category) int64 { return c.ID }), nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &category, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.categories {
		if strings.EqualFold(other.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	category.ID = s.nextID("categories")
	category.CreatedAt = time.Now().UTC()
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) ListUnits(_ context.Context) ([]domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.units, func(u domain.Unit) int64 { return u.ID }), nil
}

func (s *Store) GetUnit(_ context.Context, id int64) (*domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.units[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &unit, nil
}

func (s *Store) CreateUnit(_ context.Context, unit domain.Unit) (*domain.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.units {
		if strings.EqualFold(other.Name, unit.Name) {
			return nil, store.ErrConflict
		}
	}
	unit.ID = s.nextID("units")
	unit.CreatedAt = time.Now().UTC()
	s.units[unit.ID] = unit
	return &unit, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.suppliers, func(sup domain.Supplier) int64 { return sup.ID }), nil
}

func (s *Store) GetSupplier(_ context.Context, id int64) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	supplier, ok := s.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	supplier.ID = s.nextID("suppliers")
	supplier.CreatedAt = time.Now().UTC()
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := sortedByID(s.customers, func(c domain.Customer) int64 { return c.ID })
	active := all[:0]
	for _, c := range all {
		if c.Active {
			active = append(active, c)
		}
	}
	return active, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer.ID = s.nextID("customers")
	customer.CreatedAt = time.Now().UTC()
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) ListTaxes(_ context.Context, limit int, offset int) ([]domain.Tax, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	taxes := sortedByID(s.taxes, func(t domain.Tax) int64 { return t.ID })
	// latest first
	slices.Reverse(taxes)
	total := len(taxes)
	if offset >= total {
		return []domain.Tax{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return taxes[offset:end], total, nil
}

func (s *Store) GetTax(_ context.Context, id int64) (*domain.Tax, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tax, ok := s.taxes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tax, nil
}

func (s *Store) CreateTax(_ context.Context, tax domain.Tax) (*domain.Tax, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	tax.ID = s.nextID("taxes")
	tax.CreatedAt = now
	tax.UpdatedAt = now
	s.taxes[tax.ID] = tax
	return &tax, nil
}

func (s *Store) UpdateTax(_ context.Context, tax domain.Tax) (*domain.Tax, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.taxes[tax.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	tax.CreatedAt = existing.CreatedAt
	tax.UpdatedAt = time.Now().UTC()
	s.taxes[tax.ID] = tax
	return &tax, nil
}

func (s *Store) DeleteTax(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.taxes[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.taxes, id)
	return nil
}

func sortedByID[T any](m map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return out
}
