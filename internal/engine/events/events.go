// Package events defines the domain events returned by mutating engine
// operations. The engine never publishes them; callers dispatch the list they
// get back.
package events

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Type string

const (
	RoleCreated         Type = "role.created"
	RoleUpdated         Type = "role.updated"
	RoleDeleted         Type = "role.deleted"
	RolesProvisioned    Type = "roles.provisioned"
	InvitationCreated   Type = "invitation.created"
	InvitationResent    Type = "invitation.resent"
	InvitationCancelled Type = "invitation.cancelled"
	InvitationAccepted  Type = "invitation.accepted"
)

type Event struct {
	ID             string      `json:"id"`
	Type           Type        `json:"type"`
	OrganizationID string      `json:"organization_id"`
	ResourceID     string      `json:"resource_id"`
	OccurredAt     time.Time   `json:"occurred_at"`
	Payload        interface{} `json:"payload,omitempty"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New stamps an event with a time ordered id.
func New(typ Type, orgID, resourceID string, at time.Time, payload interface{}) Event {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(at), entropy).String()
	entropyMu.Unlock()

	return Event{
		ID:             "evt_" + id,
		Type:           typ,
		OrganizationID: orgID,
		ResourceID:     resourceID,
		OccurredAt:     at,
		Payload:        payload,
	}
}

// OfType filters evts by type, keeping order.
func OfType(evts []Event, typ Type) []Event {
	var out []Event
	for _, e := range evts {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
