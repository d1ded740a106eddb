// Package catalog holds the immutable role templates shared by every
// organization.
package catalog

import (
	"sort"
	"strings"

	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/engine/tenancy"
)

const (
	AdministratorTemplateID = "tpl_administrator"
	AdministratorName       = "Administrator"
)

type RoleTemplate struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Permissions permissions.Set    `json:"permissions"`
	Categories  []tenancy.Category `json:"categories,omitempty"`
	Universal   bool               `json:"universal"`
	Order       int                `json:"order"`
}

func (t RoleTemplate) appliesTo(category tenancy.Category) bool {
	for _, c := range t.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Administrator is the universal template every organization receives. It is
// synthesized here and never stored per category.
func Administrator() RoleTemplate {
	return RoleTemplate{
		ID:          AdministratorTemplateID,
		Name:        AdministratorName,
		Description: "Full access to every module",
		Permissions: permissions.Full(),
		Universal:   true,
		Order:       0,
	}
}

type Catalog struct {
	admin     RoleTemplate
	templates []RoleTemplate
	byID      map[string]RoleTemplate
}

// New builds a catalog from category templates. The Administrator template is
// always present; templates reusing its id or name, or repeating an earlier
// id, are skipped.
func New(templates ...RoleTemplate) *Catalog {
	c := &Catalog{
		admin: Administrator(),
		byID:  make(map[string]RoleTemplate, len(templates)+1),
	}
	c.byID[c.admin.ID] = c.admin

	for _, t := range templates {
		if _, exists := c.byID[t.ID]; exists || t.ID == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(t.Name), AdministratorName) {
			continue
		}
		t.Universal = false
		c.byID[t.ID] = t
		c.templates = append(c.templates, t)
	}

	sort.SliceStable(c.templates, func(i, j int) bool {
		if c.templates[i].Order != c.templates[j].Order {
			return c.templates[i].Order < c.templates[j].Order
		}
		return c.templates[i].ID < c.templates[j].ID
	})
	return c
}

// Default is the catalog built from the built-in templates.
func Default() *Catalog {
	return New(Builtin()...)
}

// TemplatesFor returns the Administrator template followed by every template
// tagged for category, in catalog order.
func (c *Catalog) TemplatesFor(category tenancy.Category) []RoleTemplate {
	out := []RoleTemplate{c.admin}
	for _, t := range c.templates {
		if t.appliesTo(category) {
			out = append(out, t)
		}
	}
	return out
}

// ProvisionDefaults is the set of predetermined roles an organization of the
// given category starts with. The result only depends on the category, so
// provisioning from it twice yields the same templates; the registry keys
// inserted rows by template id.
func (c *Catalog) ProvisionDefaults(category tenancy.Category) []RoleTemplate {
	return c.TemplatesFor(category)
}

func (c *Catalog) Template(id string) (RoleTemplate, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// IsApplicable reports whether t may be used by an organization of category.
func IsApplicable(t RoleTemplate, category tenancy.Category) bool {
	return t.Universal || t.appliesTo(category)
}

// All returns the category templates, without the Administrator.
func (c *Catalog) All() []RoleTemplate {
	out := make([]RoleTemplate, len(c.templates))
	copy(out, c.templates)
	return out
}
