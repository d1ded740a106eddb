// Package tenancy describes the organizations the engine serves and how it
// looks them up.
package tenancy

import "context"

// Category is the business type of an organization. It selects which role
// templates apply.
type Category string

const (
	Minimarket    Category = "minimarket"
	Restaurant    Category = "restaurant"
	Pharmacy      Category = "pharmacy"
	HardwareStore Category = "hardware_store"
	ClothingStore Category = "clothing_store"
)

var Categories = []Category{Minimarket, Restaurant, Pharmacy, HardwareStore, ClothingStore}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Organization struct {
	ID       string
	Name     string
	Category Category
	PlanID   string
}

// Directory resolves organizations. Implementations return nil, nil when the
// organization does not exist.
type Directory interface {
	Organization(ctx context.Context, id string) (*Organization, error)
}
