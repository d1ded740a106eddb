package models

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	PlanID    string `json:"plan_id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Member is a user attached to an organization under one role.
type Member struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	RoleID         string `json:"role_id"`
	Status         string `json:"status"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

const (
	MemberStatusActive    = "active"
	MemberStatusSuspended = "suspended"
)

type AuditLog struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Action         string `json:"action"`
	ResourceType   string `json:"resource_type"`
	ResourceID     string `json:"resource_id"`
	Metadata       string `json:"metadata,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}
