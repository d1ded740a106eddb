// Package invitations governs pending membership invitations.
//
// Expiry is derived at read time from the stored expiry timestamp. Writes
// that observe a stale pending row persist the expired status, and
// SweepExpired does the same in bulk, but no reader depends on either.
package invitations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"orgauthz/internal/engine/errs"
	"orgauthz/internal/engine/events"
	"orgauthz/internal/engine/tenancy"
	"orgauthz/internal/pkg/validator"
)

const (
	DefaultValidityWindow = 7 * 24 * time.Hour
	DefaultResendCap      = 5
)

type Lifecycle struct {
	store     Store
	directory tenancy.Directory
	window    time.Duration
	resendCap int
	hashCost  int
	now       func() time.Time
}

type Option func(*Lifecycle)

func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

func WithValidityWindow(d time.Duration) Option {
	return func(l *Lifecycle) {
		if d > 0 {
			l.window = d
		}
	}
}

func WithResendCap(n int) Option {
	return func(l *Lifecycle) {
		if n >= 0 {
			l.resendCap = n
		}
	}
}

// WithHashCost sets the bcrypt cost used for invitation tokens.
func WithHashCost(cost int) Option {
	return func(l *Lifecycle) { l.hashCost = cost }
}

func NewLifecycle(store Store, directory tenancy.Directory, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:     store,
		directory: directory,
		window:    DefaultValidityWindow,
		resendCap: DefaultResendCap,
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) clock() time.Time {
	return l.now().UTC().Truncate(time.Millisecond)
}

// EffectiveStatus is EffectiveStatus evaluated at the lifecycle clock.
func (l *Lifecycle) EffectiveStatus(inv *Invitation) Status {
	return EffectiveStatus(inv, l.clock())
}

func (l *Lifecycle) newToken() (token, hash string, err error) {
	token, err = generateToken()
	if err != nil {
		return "", "", fmt.Errorf("generate invitation token: %w", err)
	}
	hash, err = hashToken(token, l.hashCost)
	if err != nil {
		return "", "", fmt.Errorf("hash invitation token: %w", err)
	}
	return token, hash, nil
}

func (l *Lifecycle) notification(ctx context.Context, inv *Invitation, token string) (Notification, error) {
	org, err := l.directory.Organization(ctx, inv.OrganizationID)
	if err != nil {
		return Notification{}, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil {
		return Notification{}, &errs.NotFoundError{Resource: "organization", ID: inv.OrganizationID}
	}
	return Notification{
		InvitationID:     inv.ID,
		Email:            inv.Email,
		OrganizationName: org.Name,
		RoleID:           inv.RoleID,
		Token:            token,
		ExpiresAt:        inv.ExpiresAt,
	}, nil
}

// Create invites email to the organization under roleID.
func (l *Lifecycle) Create(ctx context.Context, orgID, email, roleID, invitedBy string) (*Invitation, []events.Event, error) {
	normalized, err := validator.NormalizeEmail(email)
	if err != nil {
		return nil, nil, &errs.InvalidInputError{Field: "email", Reason: err.Error()}
	}
	if roleID == "" {
		return nil, nil, &errs.UnknownRoleError{RoleID: roleID}
	}

	now := l.clock()
	token, hash, err := l.newToken()
	if err != nil {
		return nil, nil, err
	}

	inv := &Invitation{
		ID:             "inv_" + uuid.NewString(),
		OrganizationID: orgID,
		Email:          normalized,
		RoleID:         roleID,
		InvitedBy:      invitedBy,
		Status:         StatusPending,
		ExpiresAt:      now.Add(l.window),
		CreatedAt:      now,
		UpdatedAt:      now,
		TokenHash:      hash,
	}

	note, err := l.notification(ctx, inv, token)
	if err != nil {
		return nil, nil, err
	}
	if err := l.store.CreatePending(ctx, inv, now); err != nil {
		return nil, nil, err
	}

	return inv, []events.Event{events.New(events.InvitationCreated, orgID, inv.ID, now, note)}, nil
}

// load reads the stored row without deriving its status.
func (l *Lifecycle) load(ctx context.Context, id string) (*Invitation, error) {
	inv, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &errs.NotFoundError{Resource: "invitation", ID: id}
	}
	return inv, nil
}

// Get returns the invitation with its effective status.
func (l *Lifecycle) Get(ctx context.Context, id string) (*Invitation, error) {
	inv, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Status = l.EffectiveStatus(inv)
	return inv, nil
}

// List returns the organization's invitations, newest first, with effective
// statuses.
func (l *Lifecycle) List(ctx context.Context, orgID string) ([]*Invitation, error) {
	list, err := l.store.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := l.clock()
	for _, inv := range list {
		inv.Status = EffectiveStatus(inv, now)
	}
	return list, nil
}

// transition applies mutate to a live pending invitation and persists it
// conditionally. A concurrent change surfaces as InvalidStateError.
func (l *Lifecycle) transition(ctx context.Context, id, op string, mutate func(inv *Invitation, now time.Time) error) (*Invitation, time.Time, error) {
	inv, err := l.load(ctx, id)
	if err != nil {
		return nil, time.Time{}, err
	}

	now := l.clock()
	if status := EffectiveStatus(inv, now); status != StatusPending {
		return nil, time.Time{}, &errs.InvalidStateError{InvitationID: inv.ID, Status: string(status), Operation: op}
	}

	fromCount := inv.ResendCount
	if err := mutate(inv, now); err != nil {
		return nil, time.Time{}, err
	}
	inv.UpdatedAt = now

	ok, err := l.store.Transition(ctx, inv, StatusPending, fromCount)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !ok {
		current, err := l.load(ctx, id)
		if err != nil {
			return nil, time.Time{}, err
		}
		return nil, time.Time{}, &errs.InvalidStateError{
			InvitationID: id,
			Status:       string(EffectiveStatus(current, now)),
			Operation:    op,
		}
	}
	return inv, now, nil
}

// Resend extends a live pending invitation by a full validity window and
// rotates its token. Earlier tokens stop verifying.
func (l *Lifecycle) Resend(ctx context.Context, id string) (*Invitation, []events.Event, error) {
	var note Notification
	inv, now, err := l.transition(ctx, id, "resend", func(inv *Invitation, now time.Time) error {
		if inv.ResendCount >= l.resendCap {
			return &errs.ResendLimitExceededError{InvitationID: inv.ID, Limit: l.resendCap, Count: inv.ResendCount}
		}
		token, hash, err := l.newToken()
		if err != nil {
			return err
		}
		inv.TokenHash = hash
		inv.ResendCount++
		inv.ExpiresAt = now.Add(l.window)
		note, err = l.notification(ctx, inv, token)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, []events.Event{events.New(events.InvitationResent, inv.OrganizationID, inv.ID, now, note)}, nil
}

func (l *Lifecycle) Cancel(ctx context.Context, id string) (*Invitation, []events.Event, error) {
	inv, now, err := l.transition(ctx, id, "cancel", func(inv *Invitation, _ time.Time) error {
		inv.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, []events.Event{events.New(events.InvitationCancelled, inv.OrganizationID, inv.ID, now, map[string]string{
		"email": inv.Email,
	})}, nil
}

// Accept marks the invitation accepted by userID once token matches the row
// being written. Attaching the user to the organization is left to the caller.
func (l *Lifecycle) Accept(ctx context.Context, id, token, userID string) (*Invitation, []events.Event, error) {
	inv, now, err := l.transition(ctx, id, "accept", func(inv *Invitation, now time.Time) error {
		// the write is guarded by this row's resend count, so a token
		// rotated after this check fails the transition
		if err := VerifyToken(inv, token); err != nil {
			return err
		}
		inv.Status = StatusAccepted
		inv.AcceptedAt = &now
		inv.AcceptedBy = userID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, []events.Event{events.New(events.InvitationAccepted, inv.OrganizationID, inv.ID, now, map[string]string{
		"email":   inv.Email,
		"role_id": inv.RoleID,
		"user_id": userID,
	})}, nil
}

// SweepExpired persists the expired status of every stale pending invitation.
func (l *Lifecycle) SweepExpired(ctx context.Context) (int64, error) {
	return l.store.ExpireStale(ctx, l.clock())
}
