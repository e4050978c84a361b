package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posledger/internal/authz"
	"posledger/internal/domain"
	"posledger/internal/sequence"
	"posledger/internal/store"
)

const maxInvoiceNumberAttempts = 5

// PostSale turns a cart into a completed invoice and decrements stock for
// every line. Either everything is recorded or nothing is.
func (s *Service) PostSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	actor, err := s.authorize(ctx, authz.PostSale)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	verr := validateSaleShape(req)
	if len(verr.Fields) > 0 {
		return domain.SaleResponse{}, verr
	}
	if err := s.validateSaleReferences(ctx, req, verr); err != nil {
		return domain.SaleResponse{}, err
	}
	if err := verr.orNil(); err != nil {
		return domain.SaleResponse{}, err
	}

	saleDate := s.now()
	invoice := buildInvoice(req, actor.UserID, saleDate)
	if due := invoice.BalanceDue(); due.IsPositive() {
		s.logger.Warn("sale underpaid, recording with zero change",
			zap.String("username", actor.Username),
			zap.String("total_amount", invoice.TotalAmount.StringFixed(2)),
			zap.String("amount_paid", invoice.AmountPaid.StringFixed(2)),
			zap.String("balance_due", due.StringFixed(2)),
		)
	}

	local := saleDate.In(s.location)
	scope := sequence.DayScope(local)
	for attempt := 1; ; attempt++ {
		seq, err := s.counter.Next(ctx, scope)
		if err != nil {
			return domain.SaleResponse{}, fmt.Errorf("next invoice number: %w", err)
		}
		invoice.InvoiceNumber = sequence.InvoiceNumber(local, seq)

		created, err := s.repo.CreateInvoice(ctx, invoice)
		if errors.Is(err, store.ErrDuplicateInvoiceNumber) && attempt < maxInvoiceNumberAttempts {
			s.logger.Warn("invoice number collision, drawing a new one",
				zap.String("invoice_number", invoice.InvoiceNumber),
				zap.Int("attempt", attempt),
			)
			if r, ok := s.counter.(sequence.Resyncer); ok {
				if err := r.Resync(ctx, scope); err != nil {
					return domain.SaleResponse{}, fmt.Errorf("resync invoice counter: %w", err)
				}
			}
			continue
		}
		if err != nil {
			s.logger.Error("post sale failed",
				zap.String("username", actor.Username),
				zap.Int("lines", len(invoice.Items)),
				zap.Error(err),
			)
			return domain.SaleResponse{}, fmt.Errorf("post sale: %w", err)
		}

		s.logger.Info("sale posted",
			zap.String("invoice_number", created.InvoiceNumber),
			zap.Int64("invoice_id", created.ID),
			zap.String("username", actor.Username),
			zap.String("payment_method", created.PaymentMethod),
			zap.String("total_amount", created.TotalAmount.StringFixed(2)),
		)
		return domain.SaleResponse{Invoice: *created, BalanceDue: created.BalanceDue()}, nil
	}
}

func validateSaleShape(req domain.SaleRequest) *ValidationError {
	verr := &ValidationError{}

	if len(req.Items) == 0 {
		verr.add("items", "is required and must contain at least one line")
	}
	for i, line := range req.Items {
		field := func(name string) string { return fmt.Sprintf("items.%d.%s", i, name) }
		if line.ProductID <= 0 {
			verr.add(field("product_id"), "is required")
		}
		if line.Quantity < 1 {
			verr.add(field("quantity"), "must be at least 1")
		}
		if line.UnitPrice == nil {
			verr.add(field("unit_price"), "is required")
		} else if line.UnitPrice.IsNegative() {
			verr.add(field("unit_price"), "must be at least 0")
		}
		if line.DiscountAmount != nil && line.DiscountAmount.IsNegative() {
			verr.add(field("discount_amount"), "must be at least 0")
		}
	}

	if strings.TrimSpace(req.PaymentMethod) == "" {
		verr.add("payment_method", "is required")
	} else if !domain.IsPaymentMethod(req.PaymentMethod) {
		verr.add("payment_method", "must be one of "+strings.Join(domain.PaymentMethods, ", "))
	}
	if req.AmountPaid == nil {
		verr.add("amount_paid", "is required")
	} else if req.AmountPaid.IsNegative() {
		verr.add("amount_paid", "must be at least 0")
	}
	if req.DiscountAmount != nil && req.DiscountAmount.IsNegative() {
		verr.add("discount_amount", "must be at least 0")
	}
	if req.TaxAmount != nil && req.TaxAmount.IsNegative() {
		verr.add("tax_amount", "must be at least 0")
	}
	if req.CustomerID != nil && *req.CustomerID <= 0 {
		verr.add("customer_id", "must reference an existing customer")
	}

	return verr
}

func (s *Service) validateSaleReferences(ctx context.Context, req domain.SaleRequest, verr *ValidationError) error {
	ids := make([]int64, 0, len(req.Items))
	for _, line := range req.Items {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	for i, line := range req.Items {
		product, ok := products[line.ProductID]
		if !ok {
			verr.add(fmt.Sprintf("items.%d.product_id", i), "does not exist")
			continue
		}
		if s.enforceCatalogPrice && !money(*line.UnitPrice).Equal(product.SellingPrice) {
			verr.add(fmt.Sprintf("items.%d.unit_price", i), "must match the catalog price "+product.SellingPrice.StringFixed(2))
		}
	}

	if req.CustomerID != nil {
		_, err := s.repo.GetCustomer(ctx, *req.CustomerID)
		if errors.Is(err, store.ErrNotFound) {
			verr.add("customer_id", "must reference an existing customer")
		} else if err != nil {
			return fmt.Errorf("load customer: %w", err)
		}
	}
	return nil
}

// buildInvoice computes every amount of the invoice from a validated request.
//
//	line total = quantity*unit_price - line discount + line tax
//	subtotal   = Σ(quantity*unit_price - line discount)
//	total      = subtotal + tax - discount
//	change     = max(0, paid - total)
func buildInvoice(req domain.SaleRequest, userID int64, saleDate time.Time) domain.Invoice {
	subtotal := decimal.Zero
	items := make([]domain.InvoiceItem, 0, len(req.Items))
	for _, line := range req.Items {
		price := money(*line.UnitPrice)
		discount := moneyOrZero(line.DiscountAmount)
		tax := moneyOrZero(line.TaxAmount)
		net := price.Mul(decimal.NewFromInt(int64(line.Quantity))).Sub(discount)

		subtotal = subtotal.Add(net)
		items = append(items, domain.InvoiceItem{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPrice:      price,
			DiscountAmount: discount,
			TaxAmount:      tax,
			TotalAmount:    net.Add(tax),
		})
	}

	tax := moneyOrZero(req.TaxAmount)
	discount := moneyOrZero(req.DiscountAmount)
	total := subtotal.Add(tax).Sub(discount)
	paid := money(*req.AmountPaid)
	change := paid.Sub(total)
	if change.IsNegative() {
		change = decimal.Zero
	}

	var customerID *int64
	if req.CustomerID != nil {
		id := *req.CustomerID
		customerID = &id
	}

	return domain.Invoice{
		CustomerID:     customerID,
		UserID:         userID,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		TotalAmount:    total,
		PaymentMethod:  req.PaymentMethod,
		AmountPaid:     paid,
		ChangeAmount:   change,
		Status:         domain.InvoiceStatusCompleted,
		Notes:          strings.TrimSpace(req.Notes),
		SaleDate:       saleDate,
		Items:          items,
	}
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func moneyOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return money(*d)
}
