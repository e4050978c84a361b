package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/internal/authz"
	"posledger/internal/domain"
)

const defaultTaxesPerPage = 10

var maxTaxRate = decimal.NewFromInt(100)

func (s *Service) ListTaxes(ctx context.Context, page int, perPage int) (domain.Page[domain.Tax], error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return domain.Page[domain.Tax]{}, err
	}
	page, perPage = normalizePage(page, perPage, defaultTaxesPerPage)
	taxes, total, err := s.repo.ListTaxes(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return domain.Page[domain.Tax]{}, err
	}
	return domain.NewPage(taxes, total, page, perPage), nil
}

func (s *Service) GetTax(ctx context.Context, id int64) (domain.Tax, error) {
	if _, err := s.authorize(ctx, authz.ViewCatalog); err != nil {
		return domain.Tax{}, err
	}
	tax, err := s.repo.GetTax(ctx, id)
	if err != nil {
		return domain.Tax{}, err
	}
	return *tax, nil
}

func (s *Service) CreateTax(ctx context.Context, req domain.TaxRequest) (domain.Tax, error) {
	actor, err := s.authorize(ctx, authz.ManageTaxes)
	if err != nil {
		return domain.Tax{}, err
	}
	tax, err := taxFromRequest(req)
	if err != nil {
		return domain.Tax{}, err
	}
	created, err := s.repo.CreateTax(ctx, tax)
	if err != nil {
		return domain.Tax{}, err
	}
	s.logger.Info("tax created", zap.Int64("tax_id", created.ID), zap.String("rate", created.Rate.String()), zap.String("username", actor.Username))
	return *created, nil
}

func (s *Service) UpdateTax(ctx context.Context, id int64, req domain.TaxRequest) (domain.Tax, error) {
	actor, err := s.authorize(ctx, authz.ManageTaxes)
	if err != nil {
		return domain.Tax{}, err
	}
	tax, err := taxFromRequest(req)
	if err != nil {
		return domain.Tax{}, err
	}
	tax.ID = id
	updated, err := s.repo.UpdateTax(ctx, tax)
	if err != nil {
		return domain.Tax{}, err
	}
	s.logger.Info("tax updated", zap.Int64("tax_id", updated.ID), zap.String("rate", updated.Rate.String()), zap.String("username", actor.Username))
	return *updated, nil
}

// DeleteTax removes the tax row. Posted invoices keep their amounts because
// they never reference a tax.
func (s *Service) DeleteTax(ctx context.Context, id int64) error {
	actor, err := s.authorize(ctx, authz.ManageTaxes)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTax(ctx, id); err != nil {
		return err
	}
	s.logger.Info("tax deleted", zap.Int64("tax_id", id), zap.String("username", actor.Username))
	return nil
}

func taxFromRequest(req domain.TaxRequest) (domain.Tax, error) {
	tax := domain.Tax{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Active:      req.Active == nil || *req.Active,
	}

	verr := &ValidationError{}
	if tax.Name == "" {
		verr.add("name", "is required")
	} else if len(tax.Name) > maxNameLength {
		verr.add("name", "must not exceed 255 characters")
	}
	if req.Rate == nil {
		verr.add("rate", "is required")
	} else if req.Rate.IsNegative() || req.Rate.GreaterThan(maxTaxRate) {
		verr.add("rate", "must be between 0 and 100")
	} else {
		tax.Rate = money(*req.Rate)
	}
	if err := verr.orNil(); err != nil {
		return domain.Tax{}, err
	}
	return tax, nil
}
