package handlers

import (
	"context"

	"github.com/rs/zerolog/log"

	"orgauthz/internal/engine/events"
	"orgauthz/internal/platform/audit"
	"orgauthz/internal/platform/metrics"
	"orgauthz/internal/platform/notify"
)

// Dispatcher fans engine events out to the audit trail, invitation delivery
// and metrics.
type Dispatcher struct {
	audit    *audit.Logger
	notifier *notify.Dispatcher
}

func NewDispatcher(auditLog *audit.Logger, notifier *notify.Dispatcher) *Dispatcher {
	return &Dispatcher{audit: auditLog, notifier: notifier}
}

func (d *Dispatcher) Dispatch(ctx context.Context, actorID string, evts []events.Event) {
	if len(evts) == 0 {
		return
	}
	for _, e := range evts {
		log.Debug().
			Str("event", string(e.Type)).
			Str("org_id", e.OrganizationID).
			Str("resource_id", e.ResourceID).
			Str("actor_id", actorID).
			Msg("domain event")
	}
	metrics.Handle(evts)
	if d.audit != nil {
		d.audit.Handle(ctx, actorID, evts)
	}
	if d.notifier != nil {
		d.notifier.Handle(evts)
	}
}
