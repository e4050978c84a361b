package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleManager       Role = "manager"
	RoleCashier       Role = "cashier"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleManager, RoleCashier:
		return true
	}
	return false
}

const (
	PaymentCash          = "cash"
	PaymentCard          = "card"
	PaymentDigitalWallet = "digital_wallet"
	PaymentBankTransfer  = "bank_transfer"
)

// PaymentMethods lists the accepted payment methods in display order.
var PaymentMethods = []string{PaymentCash, PaymentCard, PaymentDigitalWallet, PaymentBankTransfer}

func IsPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

const (
	InvoiceStatusCompleted         = "completed"
	InvoiceStatusRefunded          = "refunded"
	InvoiceStatusPartiallyRefunded = "partially_refunded"
)

func IsInvoiceStatus(status string) bool {
	switch status {
	case InvoiceStatusCompleted, InvoiceStatusRefunded, InvoiceStatusPartiallyRefunded:
		return true
	}
	return false
}

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Barcode       *string         `json:"barcode,omitempty"`
	Description   string          `json:"description,omitempty"`
	CategoryID    int64           `json:"category_id"`
	UnitID        int64           `json:"unit_id"`
	SupplierID    *int64          `json:"supplier_id,omitempty"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity"`
	MinStockLevel int             `json:"min_stock_level"`
	Active        bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LowStock reports whether the product sits at or below its alert threshold.
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

type ProductCreateRequest struct {
	Name          string           `json:"name"`
	SKU           string           `json:"sku"`
	Barcode       *string          `json:"barcode,omitempty"`
	Description   string           `json:"description,omitempty"`
	CategoryID    int64            `json:"category_id"`
	UnitID        int64            `json:"unit_id"`
	SupplierID    *int64           `json:"supplier_id,omitempty"`
	CostPrice     *decimal.Decimal `json:"cost_price"`
	SellingPrice  *decimal.Decimal `json:"selling_price"`
	StockQuantity int              `json:"stock_quantity"`
	MinStockLevel int              `json:"min_stock_level"`
	Active        *bool            `json:"is_active,omitempty"`
}

type ProductUpdateRequest struct {
	Name          *string          `json:"name,omitempty"`
	Barcode       *string          `json:"barcode,omitempty"`
	Description   *string          `json:"description,omitempty"`
	CategoryID    *int64           `json:"category_id,omitempty"`
	UnitID        *int64           `json:"unit_id,omitempty"`
	SupplierID    *int64           `json:"supplier_id,omitempty"`
	CostPrice     *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice  *decimal.Decimal `json:"selling_price,omitempty"`
	MinStockLevel *int             `json:"min_stock_level,omitempty"`
	Active        *bool            `json:"is_active,omitempty"`
}

type StockAdjustmentRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Unit struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation"`
	Description  string    `json:"description,omitempty"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type UnitCreateRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Description  string `json:"description,omitempty"`
}

type Supplier struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	Active        bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Tax struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description,omitempty"`
	Active      bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type TaxRequest struct {
	Name        string           `json:"name"`
	Rate        *decimal.Decimal `json:"rate"`
	Description string           `json:"description,omitempty"`
	Active      *bool            `json:"is_active,omitempty"`
}

type Invoice struct {
	ID             int64           `json:"id"`
	InvoiceNumber  string          `json:"invoice_number"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	UserID         int64           `json:"user_id"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentMethod  string          `json:"payment_method"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	ChangeAmount   decimal.Decimal `json:"change_amount"`
	Status         string          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	SaleDate       time.Time       `json:"sale_date"`
	Items          []InvoiceItem   `json:"items,omitempty"`
}

// BalanceDue is the unpaid part of the total. Underpaid invoices are still
// recorded as completed; this is how callers can tell.
func (inv Invoice) BalanceDue() decimal.Decimal {
	due := inv.TotalAmount.Sub(inv.AmountPaid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

type InvoiceItem struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoice_id"`
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name,omitempty"`
	ProductSKU     string          `json:"product_sku,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

type SaleLineRequest struct {
	ProductID      int64            `json:"product_id"`
	Quantity       int              `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	TaxAmount      *decimal.Decimal `json:"tax_amount,omitempty"`
}

type SaleRequest struct {
	Items          []SaleLineRequest `json:"items"`
	CustomerID     *int64            `json:"customer_id,omitempty"`
	PaymentMethod  string            `json:"payment_method"`
	AmountPaid     *decimal.Decimal  `json:"amount_paid"`
	DiscountAmount *decimal.Decimal  `json:"discount_amount,omitempty"`
	TaxAmount      *decimal.Decimal  `json:"tax_amount,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

type SaleResponse struct {
	Invoice    Invoice         `json:"invoice"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

type InvoiceFilter struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Status    string `json:"status,omitempty"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Data     []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
}

func NewPage[T any](data []T, total int, page int, perPage int) Page[T] {
	if data == nil {
		data = []T{}
	}
	lastPage := 1
	if perPage > 0 && total > 0 {
		lastPage = (total + perPage - 1) / perPage
	}
	return Page[T]{Data: data, Total: total, Page: page, PerPage: perPage, LastPage: lastPage}
}

type Report struct {
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Summary        ReportSummary      `json:"summary"`
	DailySales     []DailySales       `json:"daily_sales"`
	TopProducts    []TopProduct       `json:"top_products"`
	PaymentMethods []PaymentBreakdown `json:"payment_methods"`
}

type ReportSummary struct {
	TotalTransactions  int64           `json:"total_transactions"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalTax           decimal.Decimal `json:"total_tax"`
	TotalDiscounts     decimal.Decimal `json:"total_discounts"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
}

type DailySales struct {
	Date         string          `json:"date"`
	Transactions int64           `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type TopProduct struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

type PaymentBreakdown struct {
	PaymentMethod string          `json:"payment_method"`
	Transactions  int64           `json:"transactions"`
	Revenue       decimal.Decimal `json:"revenue"`
}

type LowStockAlert struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	StockQuantity int    `json:"stock_quantity"`
	MinStockLevel int    `json:"min_stock_level"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	Role         Role     `json:"role"`
	Capabilities []string `json:"capabilities"`
	ExpiresAt    string   `json:"expires_at"`
}

type Actor struct {
	UserID   int64
	Username string
	Role     Role
}

type UserAccount struct {
	ID        int64
	Username  string
	Name      string
	Password  string
	Role      Role
	Active    bool
	CreatedAt time.Time
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
