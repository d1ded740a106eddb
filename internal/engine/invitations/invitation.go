package invitations

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s != StatusPending
}

type Invitation struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Email          string     `json:"email"`
	RoleID         string     `json:"role_id"`
	InvitedBy      string     `json:"invited_by"`
	Status         Status     `json:"status"`
	ResendCount    int        `json:"resend_count"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy     string     `json:"accepted_by,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	TokenHash      string     `json:"-"`
}

// EffectiveStatus derives the status seen by readers. A pending invitation
// whose expiry is strictly before now reads as expired; the stored row is not
// touched.
func EffectiveStatus(inv *Invitation, now time.Time) Status {
	if inv.Status == StatusPending && now.After(inv.ExpiresAt) {
		return StatusExpired
	}
	return inv.Status
}

// Notification is what the delivery collaborator needs to send an invitation.
// It travels inside invitation.created and invitation.resent events.
type Notification struct {
	InvitationID     string    `json:"invitation_id"`
	Email            string    `json:"email"`
	OrganizationName string    `json:"organization_name"`
	RoleID           string    `json:"role_id"`
	Token            string    `json:"token,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Store persists invitations. Get returns nil, nil for unknown ids.
type Store interface {
	// CreatePending marks stale pending rows for the same organization and
	// email as expired, then inserts inv unless a live pending invitation
	// remains or the role is not part of the organization.
	CreatePending(ctx context.Context, inv *Invitation, now time.Time) error
	Get(ctx context.Context, id string) (*Invitation, error)
	List(ctx context.Context, orgID string) ([]*Invitation, error)
	// Transition writes inv only if the stored row still has the given
	// status and resend count.
	Transition(ctx context.Context, inv *Invitation, from Status, fromResendCount int) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
