// Package roles stores and mutates the roles of each organization.
//
// Predetermined roles are provisioned from the catalog and never change.
// Custom roles are created within the plan quota, edited and deleted freely as
// long as nothing references them.
package roles

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"orgauthz/internal/engine/catalog"
	"orgauthz/internal/engine/errs"
	"orgauthz/internal/engine/events"
	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/engine/quota"
	"orgauthz/internal/engine/tenancy"
)

const maxNameLength = 80

type Registry struct {
	store     Store
	directory tenancy.Directory
	catalog   *catalog.Catalog
	quota     *quota.Policy
	now       func() time.Time
}

type Option func(*Registry)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(store Store, directory tenancy.Directory, cat *catalog.Catalog, policy *quota.Policy, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		directory: directory,
		catalog:   cat,
		quota:     policy,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) clock() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *Registry) organization(ctx context.Context, orgID string) (*tenancy.Organization, error) {
	org, err := r.directory.Organization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil {
		return nil, &errs.NotFoundError{Resource: "organization", ID: orgID}
	}
	return org, nil
}

// Provision creates the predetermined roles of the organization's category.
// Calling it again inserts nothing.
func (r *Registry) Provision(ctx context.Context, orgID string) ([]*Role, []events.Event, error) {
	org, err := r.organization(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}

	now := r.clock()
	inserted, err := r.store.InsertPredetermined(ctx, r.predetermined(org, now))
	if err != nil {
		return nil, nil, fmt.Errorf("provision roles: %w", err)
	}
	return inserted, provisioned(org.ID, inserted, now), nil
}

// ProvisionTx is Provision for an organization created inside tx and not yet
// visible to the directory.
func (r *Registry) ProvisionTx(ctx context.Context, tx *sql.Tx, org *tenancy.Organization) ([]*Role, []events.Event, error) {
	now := r.clock()
	inserted, err := r.store.InsertPredeterminedTx(ctx, tx, r.predetermined(org, now))
	if err != nil {
		return nil, nil, fmt.Errorf("provision roles: %w", err)
	}
	return inserted, provisioned(org.ID, inserted, now), nil
}

func (r *Registry) predetermined(org *tenancy.Organization, now time.Time) []*Role {
	var candidates []*Role
	for i, tpl := range r.catalog.ProvisionDefaults(org.Category) {
		templateID := tpl.ID
		candidates = append(candidates, &Role{
			ID:               "role_" + uuid.NewString(),
			OrganizationID:   org.ID,
			Name:             tpl.Name,
			Description:      tpl.Description,
			Permissions:      tpl.Permissions,
			IsPredetermined:  true,
			OriginTemplateID: &templateID,
			SortOrder:        i,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return candidates
}

func provisioned(orgID string, inserted []*Role, now time.Time) []events.Event {
	if len(inserted) == 0 {
		return nil
	}
	ids := make([]string, 0, len(inserted))
	for _, role := range inserted {
		ids = append(ids, role.ID)
	}
	return []events.Event{events.New(events.RolesProvisioned, orgID, orgID, now, ids)}
}

// List returns predetermined roles by sort order, then custom roles by
// creation order.
func (r *Registry) List(ctx context.Context, orgID string) ([]*Role, error) {
	return r.store.List(ctx, orgID)
}

func (r *Registry) Get(ctx context.Context, orgID, roleID string) (*Role, error) {
	role, err := r.store.Get(ctx, orgID, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, &errs.NotFoundError{Resource: "role", ID: roleID}
	}
	return role, nil
}

func (r *Registry) quotaCheck(planID string) func(count int) error {
	return func(count int) error {
		if !r.quota.CanCreateCustomRole(planID, count) {
			return &errs.QuotaExceededError{Limit: int(r.quota.LimitFor(planID)), Used: count}
		}
		return nil
	}
}

// CreateFromTemplate copies a catalog template into a new custom role.
func (r *Registry) CreateFromTemplate(ctx context.Context, orgID, templateID string, in CreateFromTemplateInput) (*Role, []events.Event, error) {
	org, err := r.organization(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}

	// Fail fast on quota before validating the template; the authoritative
	// check runs again inside the insert transaction.
	count, err := r.store.CountCustom(ctx, org.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := r.quotaCheck(org.PlanID)(count); err != nil {
		return nil, nil, err
	}

	tpl, ok := r.catalog.Template(templateID)
	if !ok {
		return nil, nil, &errs.NotFoundError{Resource: "role template", ID: templateID}
	}
	if !catalog.IsApplicable(tpl, org.Category) {
		return nil, nil, &errs.TemplateNotApplicableError{TemplateID: tpl.ID, Category: string(org.Category)}
	}

	name := tpl.Name
	if in.Name != "" {
		name = in.Name
	}
	name, err = normalizeName(name)
	if err != nil {
		return nil, nil, err
	}
	description := tpl.Description
	if in.Description != "" {
		description = strings.TrimSpace(in.Description)
	}

	now := r.clock()
	origin := tpl.ID
	role := &Role{
		ID:               "role_" + uuid.NewString(),
		OrganizationID:   org.ID,
		Name:             name,
		Description:      description,
		Permissions:      permissions.Merge(tpl.Permissions, in.Overrides),
		OriginTemplateID: &origin,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.store.CreateWithinQuota(ctx, role, r.quotaCheck(org.PlanID)); err != nil {
		return nil, nil, err
	}

	return role, []events.Event{events.New(events.RoleCreated, org.ID, role.ID, now, role)}, nil
}

// CreateCustom defines a role from scratch.
func (r *Registry) CreateCustom(ctx context.Context, orgID string, in CustomRoleInput) (*Role, []events.Event, error) {
	org, err := r.organization(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}

	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, nil, err
	}

	now := r.clock()
	role := &Role{
		ID:             "role_" + uuid.NewString(),
		OrganizationID: org.ID,
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		Permissions:    in.Permissions,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.store.CreateWithinQuota(ctx, role, r.quotaCheck(org.PlanID)); err != nil {
		return nil, nil, err
	}

	return role, []events.Event{events.New(events.RoleCreated, org.ID, role.ID, now, role)}, nil
}

// Update applies the non-nil fields of u to a custom role.
func (r *Registry) Update(ctx context.Context, orgID, roleID string, u RoleUpdate) (*Role, []events.Event, error) {
	role, err := r.Get(ctx, orgID, roleID)
	if err != nil {
		return nil, nil, err
	}
	if role.IsPredetermined {
		return nil, nil, &errs.ProtectedRoleError{RoleID: role.ID, Name: role.Name}
	}

	var changed []string
	if u.Name != nil {
		name, err := normalizeName(*u.Name)
		if err != nil {
			return nil, nil, err
		}
		role.Name = name
		changed = append(changed, "name")
	}
	if u.Description != nil {
		role.Description = strings.TrimSpace(*u.Description)
		changed = append(changed, "description")
	}
	if u.Permissions != nil {
		role.Permissions = *u.Permissions
		changed = append(changed, "permissions")
	}

	now := r.clock()
	role.UpdatedAt = now
	ok, err := r.store.UpdateCustom(ctx, role)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, &errs.NotFoundError{Resource: "role", ID: roleID}
	}

	evt := events.New(events.RoleUpdated, role.OrganizationID, role.ID, now, map[string]interface{}{
		"role":    role,
		"changed": changed,
	})
	return role, []events.Event{evt}, nil
}

// Delete removes a custom role that no active member or live invitation uses.
func (r *Registry) Delete(ctx context.Context, orgID, roleID string) ([]events.Event, error) {
	role, err := r.Get(ctx, orgID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsPredetermined {
		return nil, &errs.ProtectedRoleError{RoleID: role.ID, Name: role.Name}
	}

	now := r.clock()
	refs, deleted, err := r.store.DeleteUnreferenced(ctx, role.OrganizationID, role.ID, now)
	if err != nil {
		return nil, err
	}
	if refs.InUse() {
		return nil, &errs.RoleInUseError{RoleID: role.ID, Members: refs.Members, Invitations: refs.Invitations}
	}
	if !deleted {
		return nil, &errs.NotFoundError{Resource: "role", ID: roleID}
	}

	return []events.Event{events.New(events.RoleDeleted, role.OrganizationID, role.ID, now, map[string]string{
		"name": role.Name,
	})}, nil
}

func (r *Registry) Stats(ctx context.Context, orgID string) (Stats, error) {
	org, err := r.organization(ctx, orgID)
	if err != nil {
		return Stats{}, err
	}
	list, err := r.store.List(ctx, org.ID)
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, role := range list {
		if role.IsPredetermined {
			s.Predetermined++
		} else {
			s.Custom++
		}
	}
	s.Total = len(list)

	usage := r.quota.UsageStats(org.PlanID, s.Custom)
	s.Limit = usage.Limit
	s.CanCreateMore = usage.CanCreateMore
	s.TemplateUsageLimit = int(r.quota.Plan(org.PlanID).MaxTemplateUsages)
	return s, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &errs.InvalidInputError{Field: "name", Reason: "must not be empty"}
	}
	if len([]rune(name)) > maxNameLength {
		return "", &errs.InvalidInputError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	return name, nil
}
