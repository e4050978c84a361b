package store

import (
	"context"
	"errors"
	"time"

	"posledger/internal/domain"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidInput           = errors.New("invalid input")
	ErrDuplicateInvoiceNumber = errors.New("duplicate invoice number")
)

// InvoiceQuery selects invoices with sale_date in [From, To). Zero times leave
// that side of the range open.
type InvoiceQuery struct {
	From   time.Time
	To     time.Time
	Status string
	Limit  int
	Offset int
}

type CatalogStore interface {
	ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int) (*domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListUnits(ctx context.Context) ([]domain.Unit, error)
	GetUnit(ctx context.Context, id int64) (*domain.Unit, error)
	CreateUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	ListTaxes(ctx context.Context, limit int, offset int) ([]domain.Tax, int, error)
	GetTax(ctx context.Context, id int64) (*domain.Tax, error)
	CreateTax(ctx context.Context, tax domain.Tax) (*domain.Tax, error)
	UpdateTax(ctx context.Context, tax domain.Tax) (*domain.Tax, error)
	DeleteTax(ctx context.Context, id int64) error
}

type LedgerStore interface {
	// NextInvoiceSequence returns a value never handed out before for scope
	// and above every invoice number already stored for it.
	NextInvoiceSequence(ctx context.Context, scope string) (int64, error)
	// LastInvoiceSequence is the highest sequence among stored invoice
	// numbers of scope, whichever counter issued them. 0 when there are none.
	LastInvoiceSequence(ctx context.Context, scope string) (int64, error)
	// CreateInvoice persists the invoice, its items and the stock decrements
	// as one unit. Nothing is visible if any part fails.
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, query InvoiceQuery) ([]domain.Invoice, int, error)
}

// ReportStore aggregates invoices with sale_date in [from, to).
type ReportStore interface {
	ReportSummary(ctx context.Context, from time.Time, to time.Time) (domain.ReportSummary, error)
	DailySales(ctx context.Context, from time.Time, to time.Time, loc *time.Location) ([]domain.DailySales, error)
	TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error)
	PaymentBreakdown(ctx context.Context, from time.Time, to time.Time) ([]domain.PaymentBreakdown, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	CatalogStore
	LedgerStore
	ReportStore
	UserStore
}
