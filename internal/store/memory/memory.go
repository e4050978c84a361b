package memory

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"posledger/internal/domain"
	"posledger/internal/store"
)

var _ store.Repository = (*Store)(nil)

var errSimulatedFailure = errors.New("memory: simulated storage failure")

type Store struct {
	mu         sync.RWMutex
	products   map[int64]domain.Product
	categories map[int64]domain.Category
	units      map[int64]domain.Unit
	suppliers  map[int64]domain.Supplier
	customers  map[int64]domain.Customer
	taxes      map[int64]domain.Tax
	invoices   []domain.Invoice
	numbers    map[string]int64
	users      map[string]domain.UserAccount
	sequences  map[string]int64
	lastID     map[string]int64

	// faultAtItem makes CreateInvoice fail right before staging the given
	// 1-based line. Zero disables it.
	faultAtItem int
}

func New() *Store {
	return &Store{
		products:   make(map[int64]domain.Product),
		categories: make(map[int64]domain.Category),
		units:      make(map[int64]domain.Unit),
		suppliers:  make(map[int64]domain.Supplier),
		customers:  make(map[int64]domain.Customer),
		taxes:      make(map[int64]domain.Tax),
		invoices:   make([]domain.Invoice, 0, 64),
		numbers:    make(map[string]int64),
		users:      make(map[string]domain.UserAccount),
		sequences:  make(map[string]int64),
		lastID:     make(map[string]int64),
	}
}

// UsingDefaultCredentials reports whether NewSeeded falls back to the built-in
// dev passwords for at least one seeded account.
func UsingDefaultCredentials() bool {
	return os.Getenv("SEED_ADMIN_PASSWORD") == "" ||
		os.Getenv("SEED_MANAGER_PASSWORD") == "" ||
		os.Getenv("SEED_CASHIER_PASSWORD") == ""
}

// NewSeeded returns a store holding the demo catalog: three users, three
// taxes, five units and categories, two suppliers, three customers and four
// products. Passwords come from SEED_*_PASSWORD, defaulting to "password".
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, u := range []struct {
		username string
		name     string
		envKey   string
		role     domain.Role
	}{
		{"admin", "Admin User", "SEED_ADMIN_PASSWORD", domain.RoleAdministrator},
		{"cashier", "Cashier User", "SEED_CASHIER_PASSWORD", domain.RoleCashier},
		{"manager", "Manager User", "SEED_MANAGER_PASSWORD", domain.RoleManager},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(envOr(u.envKey, "password")), bcrypt.DefaultCost)
		if err != nil {
			panic("memory: hash seed password: " + err.Error())
		}
		id := s.nextID("users")
		s.users[u.username] = domain.UserAccount{
			ID:        id,
			Username:  u.username,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}

	for _, t := range []struct {
		name string
		rate string
		desc string
	}{
		{"VAT", "20.00", "Value Added Tax"},
		{"Sales Tax", "8.50", "State Sales Tax"},
		{"Service Tax", "5.00", "Service Tax"},
	} {
		id := s.nextID("taxes")
		s.taxes[id] = domain.Tax{ID: id, Name: t.name, Rate: decimal.RequireFromString(t.rate), Description: t.desc, Active: true, CreatedAt: now, UpdatedAt: now}
	}

	for _, u := range [][3]string{
		{"Piece", "pc", "Individual pieces"},
		{"Kilogram", "kg", "Weight in kilograms"},
		{"Liter", "L", "Volume in liters"},
		{"Meter", "m", "Length in meters"},
		{"Box", "box", "Items sold by box"},
	} {
		id := s.nextID("units")
		s.units[id] = domain.Unit{ID: id, Name: u[0], Abbreviation: u[1], Description: u[2], Active: true, CreatedAt: now}
	}

	for _, c := range [][2]string{
		{"Electronics", "Electronic devices and accessories"},
		{"Clothing", "Apparel and fashion items"},
		{"Food & Beverages", "Food items and drinks"},
		{"Books", "Books and educational materials"},
		{"Home & Garden", "Home improvement and garden items"},
	} {
		id := s.nextID("categories")
		s.categories[id] = domain.Category{ID: id, Name: c[0], Description: c[1], Active: true, CreatedAt: now}
	}

	for _, sup := range []domain.Supplier{
		{Name: "TechSupplier Inc.", ContactPerson: "John Doe", Email: "contact@techsupplier.com", Phone: "+1-555-0101", Address: "123 Tech Street, Silicon Valley, CA"},
		{Name: "Fashion World Ltd.", ContactPerson: "Jane Smith", Email: "orders@fashionworld.com", Phone: "+1-555-0202", Address: "456 Fashion Ave, New York, NY"},
	} {
		sup.ID = s.nextID("suppliers")
		sup.Active = true
		sup.CreatedAt = now
		s.suppliers[sup.ID] = sup
	}

	for _, c := range []domain.Customer{
		{Name: "John Customer", Email: "john@example.com", Phone: "+1-555-1001", Address: "789 Customer Lane, Anytown, USA"},
		{Name: "Jane Buyer", Email: "jane@example.com", Phone: "+1-555-1002", Address: "321 Buyer Street, Somewhere, USA"},
		{Name: "Bob Client", Phone: "+1-555-1003", Address: "654 Client Road, Elsewhere, USA"},
	} {
		c.ID = s.nextID("customers")
		c.Active = true
		c.CreatedAt = now
		s.customers[c.ID] = c
	}

	supplier1, supplier2 := int64(1), int64(2)
	for _, p := range []domain.Product{
		{Name: "Smartphone X1", SKU: "PHONE-X1-001", Barcode: strPtr("1234567890123"), Description: "Latest smartphone with advanced features", CategoryID: 1, UnitID: 1, SupplierID: &supplier1, CostPrice: decimal.RequireFromString("500.00"), SellingPrice: decimal.RequireFromString("699.99"), StockQuantity: 50, MinStockLevel: 5},
		{Name: "Cotton T-Shirt", SKU: "CLOTH-TS-001", Barcode: strPtr("2234567890123"), Description: "100% cotton comfortable t-shirt", CategoryID: 2, UnitID: 1, SupplierID: &supplier2, CostPrice: decimal.RequireFromString("15.00"), SellingPrice: decimal.RequireFromString("29.99"), StockQuantity: 100, MinStockLevel: 10},
		{Name: "Coffee Premium Blend", SKU: "FOOD-COF-001", Barcode: strPtr("3234567890123"), Description: "Premium coffee blend 1kg", CategoryID: 3, UnitID: 2, CostPrice: decimal.RequireFromString("12.00"), SellingPrice: decimal.RequireFromString("19.99"), StockQuantity: 25, MinStockLevel: 5},
		{Name: "Programming Guide", SKU: "BOOK-PRG-001", Barcode: strPtr("4234567890123"), Description: "Complete programming guide for beginners", CategoryID: 4, UnitID: 1, CostPrice: decimal.RequireFromString("25.00"), SellingPrice: decimal.RequireFromString("39.99"), StockQuantity: 30, MinStockLevel: 3},
	} {
		p.ID = s.nextID("products")
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	return s
}

// nextID must be called with the write lock held (or before the store is shared).
func (s *Store) nextID(table string) int64 {
	s.lastID[table]++
	return s.lastID[table]
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func strPtr(v string) *string {
	return &v
}

func inRange(at time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}
