// Package audit keeps the trail of domain events per organization.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"orgauthz/internal/engine/events"
	"orgauthz/internal/engine/invitations"
	"orgauthz/internal/platform/models"
)

type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Record stores one audit row per event. actorID is the user that triggered
// the events, empty for system operations.
func (l *Logger) Record(ctx context.Context, actorID string, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range evts {
		meta, err := json.Marshal(redact(e.Payload))
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, "audit_"+uuid.New().String(), e.OrganizationID, nullable(actorID), string(e.Type), resourceType(e.Type), e.ResourceID, string(meta), e.OccurredAt.UnixMilli())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Handle records evts and only logs failures, so request paths are never
// failed by the audit trail.
func (l *Logger) Handle(ctx context.Context, actorID string, evts []events.Event) {
	if err := l.Record(ctx, actorID, evts); err != nil {
		log.Error().Err(err).Int("events", len(evts)).Msg("failed to record audit events")
	}
}

func (l *Logger) List(ctx context.Context, orgID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, organization_id, action, resource_type, resource_id, metadata, created_at
		FROM audit_logs
		WHERE organization_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		var meta sql.NullString
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.Action, &entry.ResourceType, &entry.ResourceID, &meta, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Metadata = meta.String
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}

func resourceType(t events.Type) string {
	switch t {
	case events.RoleCreated, events.RoleUpdated, events.RoleDeleted, events.RolesProvisioned:
		return "role"
	case events.InvitationCreated, events.InvitationResent, events.InvitationCancelled, events.InvitationAccepted:
		return "invitation"
	}
	return "unknown"
}

// redact drops invitation tokens; only their hashes may be persisted.
func redact(payload interface{}) interface{} {
	if n, ok := payload.(invitations.Notification); ok {
		n.Token = ""
		return n
	}
	return payload
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
