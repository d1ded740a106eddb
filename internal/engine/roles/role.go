package roles

import (
	"context"
	"database/sql"
	"time"

	"orgauthz/internal/engine/permissions"
)

type Role struct {
	ID               string          `json:"id"`
	OrganizationID   string          `json:"organization_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Permissions      permissions.Set `json:"permissions"`
	IsPredetermined  bool            `json:"is_predetermined"`
	OriginTemplateID *string         `json:"origin_template_id,omitempty"`
	SortOrder        int             `json:"sort_order"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CreateFromTemplateInput customizes a role copied from a template. An empty
// Name keeps the template name; Overrides are added to the template grants.
type CreateFromTemplateInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Overrides   permissions.Set `json:"permission_overrides"`
}

type CustomRoleInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Permissions permissions.Set `json:"permissions"`
}

// RoleUpdate holds optional changes; nil fields are left as they are.
type RoleUpdate struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Permissions *permissions.Set `json:"permissions"`
}

type Stats struct {
	Total         int  `json:"total"`
	Predetermined int  `json:"predetermined"`
	Custom        int  `json:"custom"`
	Limit         int  `json:"limit"`
	CanCreateMore bool `json:"can_create_more"`
	// TemplateUsageLimit is informational; it is not enforced.
	TemplateUsageLimit int `json:"template_usage_limit"`
}

// References counts what still points at a role.
type References struct {
	Members     int
	Invitations int
}

func (r References) InUse() bool {
	return r.Members > 0 || r.Invitations > 0
}

// Store persists roles. Lookups return nil, nil when nothing matches the
// organization and id.
type Store interface {
	List(ctx context.Context, orgID string) ([]*Role, error)
	Get(ctx context.Context, orgID, roleID string) (*Role, error)
	CountCustom(ctx context.Context, orgID string) (int, error)
	// InsertPredetermined skips roles whose template was already provisioned
	// for the organization and returns the ones actually inserted.
	InsertPredetermined(ctx context.Context, roles []*Role) ([]*Role, error)
	InsertPredeterminedTx(ctx context.Context, tx *sql.Tx, roles []*Role) ([]*Role, error)
	// CreateWithinQuota counts the organization's custom roles and calls check
	// with the count inside the same write transaction; the role is inserted
	// only if check returns nil.
	CreateWithinQuota(ctx context.Context, role *Role, check func(count int) error) error
	UpdateCustom(ctx context.Context, role *Role) (bool, error)
	// DeleteUnreferenced removes a custom role unless active members or
	// pending invitations not yet expired at now reference it.
	DeleteUnreferenced(ctx context.Context, orgID, roleID string, now time.Time) (References, bool, error)
}
