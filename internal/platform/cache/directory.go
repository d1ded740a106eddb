// Package cache fronts the organization directory with a bounded,
// time-limited LRU. Plan changes become visible once an entry expires or is
// invalidated.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"orgauthz/internal/engine/tenancy"
)

const (
	DefaultTTL  = time.Minute
	DefaultSize = 1024
)

type Directory struct {
	next  tenancy.Directory
	store *expirable.LRU[string, tenancy.Organization]
}

func NewDirectory(next tenancy.Directory, size int, ttl time.Duration) *Directory {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{
		next:  next,
		store: expirable.NewLRU[string, tenancy.Organization](size, nil, ttl),
	}
}

// Organization implements tenancy.Directory. Unknown organizations are not
// cached.
func (d *Directory) Organization(ctx context.Context, id string) (*tenancy.Organization, error) {
	if org, ok := d.store.Get(id); ok {
		return &org, nil
	}
	org, err := d.next.Organization(ctx, id)
	if err != nil || org == nil {
		return org, err
	}
	d.store.Add(id, *org)
	cp := *org
	return &cp, nil
}

func (d *Directory) Invalidate(id string) {
	d.store.Remove(id)
}

func (d *Directory) Len() int {
	return d.store.Len()
}
