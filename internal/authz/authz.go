// Package authz decides which roles may run which operations.
package authz

import (
	"sort"

	"posledger/internal/domain"
)

type Operation string

const (
	PostSale       Operation = "post_sale"
	ViewCatalog    Operation = "view_catalog"
	ListInvoices   Operation = "list_invoices"
	ViewInvoice    Operation = "view_invoice"
	CreateCustomer Operation = "create_customer"
	ViewReports    Operation = "view_reports"
	ViewLowStock   Operation = "view_low_stock"
	ManageCatalog  Operation = "manage_catalog"
	ManageTaxes    Operation = "manage_taxes"
	ManageUsers    Operation = "manage_users"
)

var counterOps = []Operation{PostSale, ViewCatalog, ListInvoices, ViewInvoice, CreateCustomer}

var backOfficeOps = []Operation{ViewReports, ViewLowStock, ManageCatalog}

var capabilities = map[domain.Role]map[Operation]bool{
	domain.RoleAdministrator: set(counterOps, backOfficeOps, []Operation{ManageTaxes, ManageUsers}),
	domain.RoleManager:       set(counterOps, backOfficeOps),
	domain.RoleCashier:       set(counterOps),
}

func set(groups ...[]Operation) map[Operation]bool {
	out := make(map[Operation]bool)
	for _, group := range groups {
		for _, op := range group {
			out[op] = true
		}
	}
	return out
}

// Allowed reports whether role may perform op. Unknown roles and operations
// are denied.
func Allowed(role domain.Role, op Operation) bool {
	return capabilities[role][op]
}

// Capabilities lists the operations granted to role in name order.
func Capabilities(role domain.Role) []string {
	ops := make([]string, 0, len(capabilities[role]))
	for op := range capabilities[role] {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	return ops
}
