// Package authz is the entry point callers use. It scopes every operation
// to the caller's organization and delegates to the role registry and the
// invitation lifecycle.
package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orgauthz/internal/engine/catalog"
	"orgauthz/internal/engine/errs"
	"orgauthz/internal/engine/events"
	"orgauthz/internal/engine/invitations"
	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/engine/roles"
	"orgauthz/internal/engine/tenancy"
)

// Caller is the identity resolved by the integrating layer.
type Caller struct {
	UserID         string
	OrganizationID string
	RoleID         string
}

// Result pairs the outcome of a mutation with the events the caller must
// dispatch.
type Result[T any] struct {
	Value  T
	Events []events.Event
}

// MemberAttacher adds a user to an organization under a role once an
// invitation is accepted.
type MemberAttacher interface {
	AttachMember(ctx context.Context, orgID, userID, email, roleID string) error
}

type Facade struct {
	directory   tenancy.Directory
	catalog     *catalog.Catalog
	roles       *roles.Registry
	invitations *invitations.Lifecycle
	members     MemberAttacher
}

func New(directory tenancy.Directory, cat *catalog.Catalog, registry *roles.Registry, lifecycle *invitations.Lifecycle, members MemberAttacher) *Facade {
	return &Facade{
		directory:   directory,
		catalog:     cat,
		roles:       registry,
		invitations: lifecycle,
		members:     members,
	}
}

func scope(c Caller) (string, error) {
	if c.OrganizationID == "" {
		return "", &errs.InvalidInputError{Field: "caller", Reason: "no organization"}
	}
	return c.OrganizationID, nil
}

// ProvisionOrganization creates the predetermined roles of a new
// organization. It is a system operation and takes no caller.
func (f *Facade) ProvisionOrganization(ctx context.Context, orgID string) (Result[[]*roles.Role], error) {
	created, evts, err := f.roles.Provision(ctx, orgID)
	if err != nil {
		return Result[[]*roles.Role]{}, err
	}
	return Result[[]*roles.Role]{Value: created, Events: evts}, nil
}

// ProvisionOrganizationTx provisions an organization being created inside tx,
// so registration and its roles commit together.
func (f *Facade) ProvisionOrganizationTx(ctx context.Context, tx *sql.Tx, org *tenancy.Organization) (Result[[]*roles.Role], error) {
	created, evts, err := f.roles.ProvisionTx(ctx, tx, org)
	if err != nil {
		return Result[[]*roles.Role]{}, err
	}
	return Result[[]*roles.Role]{Value: created, Events: evts}, nil
}

func (f *Facade) ListRoles(ctx context.Context, c Caller) ([]*roles.Role, error) {
	orgID, err := scope(c)
	if err != nil {
		return nil, err
	}
	return f.roles.List(ctx, orgID)
}

func (f *Facade) GetRole(ctx context.Context, c Caller, roleID string) (*roles.Role, error) {
	orgID, err := scope(c)
	if err != nil {
		return nil, err
	}
	return f.roles.Get(ctx, orgID, roleID)
}

// AvailableTemplates lists the templates the caller's organization may copy.
func (f *Facade) AvailableTemplates(ctx context.Context, c Caller) ([]catalog.RoleTemplate, error) {
	orgID, err := scope(c)
	if err != nil {
		return nil, err
	}
	org, err := f.directory.Organization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil {
		return nil, &errs.NotFoundError{Resource: "organization", ID: orgID}
	}
	return f.catalog.TemplatesFor(org.Category), nil
}

func (f *Facade) CreateRoleFromTemplate(ctx context.Context, c Caller, templateID string, in roles.CreateFromTemplateInput) (Result[*roles.Role], error) {
	orgID, err := scope(c)
	if err != nil {
		return Result[*roles.Role]{}, err
	}
	role, evts, err := f.roles.CreateFromTemplate(ctx, orgID, templateID, in)
	if err != nil {
		return Result[*roles.Role]{}, err
	}
	return Result[*roles.Role]{Value: role, Events: evts}, nil
}

func (f *Facade) CreateCustomRole(ctx context.Context, c Caller, in roles.CustomRoleInput) (Result[*roles.Role], error) {
	orgID, err := scope(c)
	if err != nil {
		return Result[*roles.Role]{}, err
	}
	role, evts, err := f.roles.CreateCustom(ctx, orgID, in)
	if err != nil {
		return Result[*roles.Role]{}, err
	}
	return Result[*roles.Role]{Value: role, Events: evts}, nil
}

func (f *Facade) UpdateRole(ctx context.Context, c Caller, roleID string, u roles.RoleUpdate) (Result[*roles.Role], error) {
	orgID, err := scope(c)
	if err != nil {
		return Result[*roles.Role]{}, err
	}
	role, evts, err := f.roles.Update(ctx, orgID, roleID, u)
	if err != nil {
		return Result[*roles.Role]{}, err
	}
	return Result[*roles.Role]{Value: role, Events: evts}, nil
}

func (f *Facade) DeleteRole(ctx context.Context, c Caller, roleID string) (Result[string], error) {
	orgID, err := scope(c)
	if err != nil {
		return Result[string]{}, err
	}
	evts, err := f.roles.Delete(ctx, orgID, roleID)
	if err != nil {
		return Result[string]{}, err
	}
	return Result[string]{Value: roleID, Events: evts}, nil
}

func (f *Facade) RoleStats(ctx context.Context, c Caller) (roles.Stats, error) {
	orgID, err := scope(c)
	if err != nil {
		return roles.Stats{}, err
	}
	return f.roles.Stats(ctx, orgID)
}

// Permissions resolves the grants of the caller's role.
func (f *Facade) Permissions(ctx context.Context, c Caller) (permissions.Set, error) {
	orgID, err := scope(c)
	if err != nil {
		return permissions.Set{}, err
	}
	if c.RoleID == "" {
		return permissions.Set{}, nil
	}
	role, err := f.roles.Get(ctx, orgID, c.RoleID)
	if err != nil {
		var nf *errs.NotFoundError
		if errors.As(err, &nf) {
			// a member whose role vanished holds no permissions
			return permissions.Set{}, nil
		}
		return permissions.Set{}, err
	}
	return role.Permissions, nil
}

// Require fails with PermissionDeniedError unless the caller's role grants
// action on module.
func (f *Facade) Require(ctx context.Context, c Caller, module permissions.Module, action permissions.Action) error {
	perms, err := f.Permissions(ctx, c)
	if err != nil {
		return err
	}
	if !perms.Allows(module, action) {
		return &errs.PermissionDeniedError{Permission: permissions.Token(module, action)}
	}
	return nil
}
