package catalog

import (
	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/engine/tenancy"
)

// Builtin returns the category templates seeded at install time.
func Builtin() []RoleTemplate {
	return []RoleTemplate{
		{
			ID:          "tpl_supervisor",
			Name:        "Supervisor",
			Description: "Runs the shop floor and reads every report",
			Permissions: permissions.MustFromTokens(
				"sales.create", "sales.read", "sales.update",
				"inventory.read", "inventory.update",
				"purchasing.read", "users.read", "reports.read",
			),
			Categories: tenancy.Categories,
			Order:      10,
		},
		{
			ID:          "tpl_cashier",
			Name:        "Cashier",
			Description: "Registers sales and checks stock",
			Permissions: permissions.MustFromTokens("sales.create", "sales.read", "inventory.read"),
			Categories: []tenancy.Category{
				tenancy.Minimarket, tenancy.Pharmacy, tenancy.HardwareStore, tenancy.ClothingStore,
			},
			Order: 20,
		},
		{
			ID:          "tpl_stock_clerk",
			Name:        "Stock clerk",
			Description: "Receives goods and keeps inventory up to date",
			Permissions: permissions.MustFromTokens(
				"inventory.create", "inventory.read", "inventory.update", "purchasing.read",
			),
			Categories: []tenancy.Category{tenancy.Minimarket, tenancy.HardwareStore, tenancy.ClothingStore},
			Order:      30,
		},
		{
			ID:          "tpl_buyer",
			Name:        "Buyer",
			Description: "Places and tracks purchase orders",
			Permissions: permissions.MustFromTokens(
				"purchasing.create", "purchasing.read", "purchasing.update",
				"inventory.read", "reports.read",
			),
			Categories: []tenancy.Category{tenancy.Minimarket, tenancy.HardwareStore, tenancy.Pharmacy},
			Order:      40,
		},
		{
			ID:          "tpl_waiter",
			Name:        "Waiter",
			Description: "Takes orders at the table",
			Permissions: permissions.MustFromTokens("sales.create", "sales.read", "sales.update"),
			Categories:  []tenancy.Category{tenancy.Restaurant},
			Order:       20,
		},
		{
			ID:          "tpl_cook",
			Name:        "Cook",
			Description: "Consumes ingredients from inventory",
			Permissions: permissions.MustFromTokens("inventory.read", "inventory.update", "sales.read"),
			Categories:  []tenancy.Category{tenancy.Restaurant},
			Order:       30,
		},
		{
			ID:          "tpl_pharmacist",
			Name:        "Pharmacist",
			Description: "Dispenses medication and manages controlled stock",
			Permissions: permissions.MustFromTokens(
				"sales.create", "sales.read", "sales.update",
				"inventory.read", "inventory.update", "reports.read",
			),
			Categories: []tenancy.Category{tenancy.Pharmacy},
			Order:      15,
		},
		{
			ID:          "tpl_sales_associate",
			Name:        "Sales associate",
			Description: "Helps customers and closes sales",
			Permissions: permissions.MustFromTokens("sales.create", "sales.read", "inventory.read"),
			Categories:  []tenancy.Category{tenancy.ClothingStore},
			Order:       25,
		},
	}
}
