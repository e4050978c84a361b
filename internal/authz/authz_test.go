package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"posledger/internal/domain"
)

func TestAllowedMatrix(t *testing.T) {
	cases := []struct {
		role domain.Role
		op   Operation
		want bool
	}{
		{domain.RoleCashier, PostSale, true},
		{domain.RoleCashier, ListInvoices, true},
		{domain.RoleCashier, CreateCustomer, true},
		{domain.RoleCashier, ViewReports, false},
		{domain.RoleCashier, ManageCatalog, false},
		{domain.RoleCashier, ManageTaxes, false},
		{domain.RoleManager, ViewReports, true},
		{domain.RoleManager, ViewLowStock, true},
		{domain.RoleManager, ManageCatalog, true},
		{domain.RoleManager, ManageTaxes, false},
		{domain.RoleManager, ManageUsers, false},
		{domain.RoleAdministrator, ManageTaxes, true},
		{domain.RoleAdministrator, ManageUsers, true},
		{domain.RoleAdministrator, PostSale, true},
		{domain.Role("owner"), PostSale, false},
		{domain.Role(""), ViewCatalog, false},
		{domain.RoleAdministrator, Operation("drop_tables"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Allowed(tc.role, tc.op), "%s/%s", tc.role, tc.op)
	}
}

func TestCapabilitiesAreSorted(t *testing.T) {
	caps := Capabilities(domain.RoleCashier)
	assert.Equal(t, []string{"create_customer", "list_invoices", "post_sale", "view_catalog", "view_invoice"}, caps)
	assert.Empty(t, Capabilities(domain.Role("ghost")))
}
