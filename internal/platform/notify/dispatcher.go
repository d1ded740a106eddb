// Package notify delivers invitation notifications to the mail relay.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"orgauthz/internal/engine/events"
	"orgauthz/internal/engine/invitations"
	"orgauthz/internal/platform/config"
)

type message struct {
	ID        string                   `json:"id"`
	Event     events.Type              `json:"event"`
	Timestamp int64                    `json:"timestamp"`
	OrgID     string                   `json:"org_id"`
	Data      invitations.Notification `json:"data"`
}

type Dispatcher struct {
	cfg    config.NotificationsConfig
	client *http.Client
}

func NewDispatcher(cfg config.NotificationsConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// Handle delivers the notifications carried by evts in the background.
// Other event types are ignored.
func (d *Dispatcher) Handle(evts []events.Event) {
	for _, e := range evts {
		if e.Type != events.InvitationCreated && e.Type != events.InvitationResent {
			continue
		}
		go func(e events.Event) {
			if err := d.Deliver(context.Background(), e); err != nil {
				log.Error().Err(err).Str("event", string(e.Type)).Str("invitation_id", e.ResourceID).Msg("invitation notification failed")
			}
		}(e)
	}
}

// Deliver posts one notification event, retrying on transport errors and
// 5xx responses. Without a configured URL the notification is only logged.
func (d *Dispatcher) Deliver(ctx context.Context, e events.Event) error {
	note, ok := e.Payload.(invitations.Notification)
	if !ok {
		return fmt.Errorf("event %s carries no notification", e.ID)
	}
	if d.cfg.WebhookURL == "" {
		log.Info().
			Str("event", string(e.Type)).
			Str("org_id", e.OrganizationID).
			Str("invitation_id", note.InvitationID).
			Str("email", note.Email).
			Time("expires_at", note.ExpiresAt).
			Msg("no notification endpoint configured, skipping delivery")
		return nil
	}

	payload, err := json.Marshal(message{
		ID:        e.ID,
		Event:     e.Type,
		Timestamp: e.OccurredAt.Unix(),
		OrgID:     e.OrganizationID,
		Data:      note,
	})
	if err != nil {
		return err
	}
	signature := Sign(d.cfg.Secret, payload)

	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		retry, err := d.post(ctx, e, payload, signature)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return lastErr
}

func (d *Dispatcher) post(ctx context.Context, e events.Event, payload []byte, signature string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Orgauthz-Signature", signature)
	req.Header.Set("X-Orgauthz-Event", string(e.Type))
	req.Header.Set("X-Orgauthz-Delivery", e.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return false, nil
}
