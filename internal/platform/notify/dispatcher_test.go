package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"orgauthz/internal/engine/events"
	"orgauthz/internal/engine/invitations"
	"orgauthz/internal/platform/config"
)

func notificationEvent() events.Event {
	at := time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)
	return events.New(events.InvitationCreated, "org_1", "inv_1", at, invitations.Notification{
		InvitationID:     "inv_1",
		Email:            "cajero@example.com",
		OrganizationName: "Mini Uno",
		RoleID:           "role_1",
		Token:            "tok",
		ExpiresAt:        at.Add(7 * 24 * time.Hour),
	})
}

func TestDeliver_SignsPayload(t *testing.T) {
	var got message
	var signature, eventHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		signature = r.Header.Get("X-Orgauthz-Signature")
		eventHeader = r.Header.Get("X-Orgauthz-Event")
		if !Verify("s3cret", body, signature) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotificationsConfig{WebhookURL: srv.URL, Secret: "s3cret", Timeout: time.Second})
	if err := d.Deliver(context.Background(), notificationEvent()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if eventHeader != "invitation.created" {
		t.Errorf("event header = %q", eventHeader)
	}
	if got.Data.Token != "tok" || got.Data.Email != "cajero@example.com" || got.OrgID != "org_1" {
		t.Errorf("unexpected message %+v", got)
	}
}

func TestDeliver_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotificationsConfig{WebhookURL: srv.URL, Retries: 2, Timeout: time.Second})
	if err := d.Deliver(context.Background(), notificationEvent()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDeliver_ClientErrorIsFinal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotificationsConfig{WebhookURL: srv.URL, Retries: 3, Timeout: time.Second})
	if err := d.Deliver(context.Background(), notificationEvent()); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestDeliver_NoEndpoint(t *testing.T) {
	d := NewDispatcher(config.NotificationsConfig{})
	if err := d.Deliver(context.Background(), notificationEvent()); err != nil {
		t.Errorf("Deliver() without endpoint error = %v", err)
	}

	other := events.New(events.RoleCreated, "org_1", "role_1", time.Now(), nil)
	if err := d.Deliver(context.Background(), other); err == nil {
		t.Error("expected error for event without notification")
	}
}
