package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"posledger/internal/authz"
	"posledger/internal/domain"
	"posledger/internal/store"
)

const maxNameLength = 255

func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, includeInactive)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.authorize(ctx, authz.ManageCatalog)
	if err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		Name:          strings.TrimSpace(req.Name),
		SKU:           strings.ToUpper(strings.TrimSpace(req.SKU)),
		Barcode:       trimmedOrNil(req.Barcode),
		Description:   strings.TrimSpace(req.Description),
		CategoryID:    req.CategoryID,
		UnitID:        req.UnitID,
		SupplierID:    req.SupplierID,
		StockQuantity: req.StockQuantity,
		MinStockLevel: req.MinStockLevel,
		Active:        req.Active == nil || *req.Active,
	}

	verr := &ValidationError{}
	if req.CostPrice == nil {
		verr.add("cost_price", "is required")
	} else {
		product.CostPrice = money(*req.CostPrice)
	}
	if req.SellingPrice == nil {
		verr.add("selling_price", "is required")
	} else {
		product.SellingPrice = money(*req.SellingPrice)
	}
	if req.StockQuantity < 0 {
		verr.add("stock_quantity", "must be at least 0")
	}
	s.validateProduct(ctx, product, verr)
	if err := verr.orNil(); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Product{}, fmt.Errorf("sku or barcode already in use: %w", err)
		}
		return domain.Product{}, err
	}
	s.logger.Info("product created", zap.Int64("product_id", created.ID), zap.String("sku", created.SKU), zap.String("username", actor.Username))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := s.authorize(ctx, authz.ManageCatalog)
	if err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Barcode != nil {
		updated.Barcode = trimmedOrNil(req.Barcode)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		updated.CategoryID = *req.CategoryID
	}
	if req.UnitID != nil {
		updated.UnitID = *req.UnitID
	}
	if req.SupplierID != nil {
		updated.SupplierID = req.SupplierID
		if *req.SupplierID == 0 {
			updated.SupplierID = nil
		}
	}
	if req.CostPrice != nil {
		updated.CostPrice = money(*req.CostPrice)
	}
	if req.SellingPrice != nil {
		updated.SellingPrice = money(*req.SellingPrice)
	}
	if req.MinStockLevel != nil {
		updated.MinStockLevel = *req.MinStockLevel
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	verr := &ValidationError{}
	s.validateProduct(ctx, updated, verr)
	if err := verr.orNil(); err != nil {
		return domain.Product{}, err
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	if !existing.SellingPrice.Equal(saved.SellingPrice) {
		s.logger.Info("selling price changed",
			zap.Int64("product_id", saved.ID),
			zap.String("old_price", existing.SellingPrice.StringFixed(2)),
			zap.String("new_price", saved.SellingPrice.StringFixed(2)),
			zap.String("username", actor.Username),
		)
	}
	return *saved, nil
}

func (s *Service) validateProduct(ctx context.Context, p domain.Product, verr *ValidationError) {
	if p.Name == "" {
		verr.add("name", "is required")
	} else if len(p.Name) > maxNameLength {
		verr.add("name", "must not exceed 255 characters")
	}
	if p.SKU == "" {
		verr.add("sku", "is required")
	} else if len(p.SKU) > 100 {
		verr.add("sku", "must not exceed 100 characters")
	}
	if p.CostPrice.IsNegative() {
		verr.add("cost_price", "must be at least 0")
	}
	if p.SellingPrice.IsNegative() {
		verr.add("selling_price", "must be at least 0")
	}
	if p.MinStockLevel < 0 {
		verr.add("min_stock_level", "must be at least 0")
	}
	if _, err := s.repo.GetCategory(ctx, p.CategoryID); err != nil {
		verr.add("category_id", "must reference an existing category")
	}
	if _, err := s.repo.GetUnit(ctx, p.UnitID); err != nil {
		verr.add("unit_id", "must reference an existing unit")
	}
	if p.SupplierID != nil {
		if _, err := s.repo.GetSupplier(ctx, *p.SupplierID); err != nil {
			verr.add("supplier_id", "must reference an existing supplier")
		}
	}
}

// AdjustStock applies a manual signed correction to a product's stock.
func (s *Service) AdjustStock(ctx context.Context, productID int64, req domain.StockAdjustmentRequest) (domain.Product, error) {
	actor, err := s.authorize(ctx, authz.ManageCatalog)
	if err != nil {
		return domain.Product{}, err
	}
	if req.Delta == 0 {
		return domain.Product{}, &ValidationError{Fields: map[string]string{"delta": "must not be zero"}}
	}

	product, err := s.repo.AdjustStock(ctx, productID, req.Delta)
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("stock adjusted",
		zap.Int64("product_id", product.ID),
		zap.Int("delta", req.Delta),
		zap.Int("stock_quantity", product.StockQuantity),
		zap.String("reason", strings.TrimSpace(req.Reason)),
		zap.String("username", actor.Username),
	)
	return *product, nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.LowStockAlert, error) {
	if _, err := s.authorize(ctx, authz.ViewLowStock); err != nil {
		return nil, err
	}
	products, err := s.repo.ListLowStockProducts(ctx)
	if err != nil {
		return nil, err
	}
	return LowStockAlerts(products), nil
}

func LowStockAlerts(products []domain.Product) []domain.LowStockAlert {
	alerts := make([]domain.LowStockAlert, 0, len(products))
	for _, p := range products {
		alerts = append(alerts, domain.LowStockAlert{
			ProductID:     p.ID,
			Name:          p.Name,
			SKU:           p.SKU,
			StockQuantity: p.StockQuantity,
			MinStockLevel: p.MinStockLevel,
		})
	}
	return alerts
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := s.authorize(ctx, authz.ManageCatalog); err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if err := requireName(name); err != nil {
		return domain.Category{}, err
	}
	created, err := s.repo.CreateCategory(ctx, domain.Category{Name: name, Description: strings.TrimSpace(req.Description), Active: true})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) ListUnits(ctx context.Context) ([]domain.Unit, error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return nil, err
	}
	return s.repo.ListUnits(ctx)
}

func (s *Service) CreateUnit(ctx context.Context, req domain.UnitCreateRequest) (domain.Unit, error) {
	if _, err := s.authorize(ctx, authz.ManageCatalog); err != nil {
		return domain.Unit{}, err
	}
	unit := domain.Unit{
		Name:         strings.TrimSpace(req.Name),
		Abbreviation: strings.TrimSpace(req.Abbreviation),
		Description:  strings.TrimSpace(req.Description),
		Active:       true,
	}
	verr := &ValidationError{}
	if unit.Name == "" {
		verr.add("name", "is required")
	}
	if unit.Abbreviation == "" {
		verr.add("abbreviation", "is required")
	} else if len(unit.Abbreviation) > 10 {
		verr.add("abbreviation", "must not exceed 10 characters")
	}
	if err := verr.orNil(); err != nil {
		return domain.Unit{}, err
	}
	created, err := s.repo.CreateUnit(ctx, unit)
	if err != nil {
		return domain.Unit{}, err
	}
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if _, err := s.authorize(ctx, authz.ManageCatalog); err != nil {
		return domain.Supplier{}, err
	}
	supplier := domain.Supplier{
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		Active:        true,
	}
	verr := &ValidationError{}
	if supplier.Name == "" {
		verr.add("name", "is required")
	}
	validateEmail(supplier.Email, verr)
	if err := verr.orNil(); err != nil {
		return domain.Supplier{}, err
	}
	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if _, err := s.authorize(ctx, authz.CreateCustomer); err != nil {
		return domain.Customer{}, err
	}
	customer := domain.Customer{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Active:  true,
	}
	verr := &ValidationError{}
	if customer.Name == "" {
		verr.add("name", "is required")
	} else if len(customer.Name) > maxNameLength {
		verr.add("name", "must not exceed 255 characters")
	}
	validateEmail(customer.Email, verr)
	if err := verr.orNil(); err != nil {
		return domain.Customer{}, err
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func requireName(name string) error {
	verr := &ValidationError{}
	if name == "" {
		verr.add("name", "is required")
	} else if len(name) > maxNameLength {
		verr.add("name", "must not exceed 255 characters")
	}
	return verr.orNil()
}

func validateEmail(email string, verr *ValidationError) {
	if email == "" {
		return
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.add("email", "must be a valid email address")
	}
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
