package authz

import (
	"context"
	"fmt"

	"orgauthz/internal/engine/errs"
	"orgauthz/internal/engine/invitations"
)

func (f *Facade) InviteMember(ctx context.Context, c Caller, email, roleID string) (Result[*invitations.Invitation], error) {
	orgID, err := scope(c)
	if err != nil {
		return Result[*invitations.Invitation]{}, err
	}
	inv, evts, err := f.invitations.Create(ctx, orgID, email, roleID, c.UserID)
	if err != nil {
		return Result[*invitations.Invitation]{}, err
	}
	return Result[*invitations.Invitation]{Value: inv, Events: evts}, nil
}

// owned loads an invitation of the caller's organization. Invitations of
// other organizations are reported as missing.
func (f *Facade) owned(ctx context.Context, c Caller, id string) (*invitations.Invitation, error) {
	orgID, err := scope(c)
	if err != nil {
		return nil, err
	}
	inv, err := f.invitations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.OrganizationID != orgID {
		return nil, &errs.NotFoundError{Resource: "invitation", ID: id}
	}
	return inv, nil
}

func (f *Facade) GetInvitation(ctx context.Context, c Caller, id string) (*invitations.Invitation, error) {
	return f.owned(ctx, c, id)
}

func (f *Facade) ResendInvitation(ctx context.Context, c Caller, id string) (Result[*invitations.Invitation], error) {
	if _, err := f.owned(ctx, c, id); err != nil {
		return Result[*invitations.Invitation]{}, err
	}
	inv, evts, err := f.invitations.Resend(ctx, id)
	if err != nil {
		return Result[*invitations.Invitation]{}, err
	}
	return Result[*invitations.Invitation]{Value: inv, Events: evts}, nil
}

func (f *Facade) CancelInvitation(ctx context.Context, c Caller, id string) (Result[*invitations.Invitation], error) {
	if _, err := f.owned(ctx, c, id); err != nil {
		return Result[*invitations.Invitation]{}, err
	}
	inv, evts, err := f.invitations.Cancel(ctx, id)
	if err != nil {
		return Result[*invitations.Invitation]{}, err
	}
	return Result[*invitations.Invitation]{Value: inv, Events: evts}, nil
}

func (f *Facade) ListInvitations(ctx context.Context, c Caller) ([]*invitations.Invitation, error) {
	orgID, err := scope(c)
	if err != nil {
		return nil, err
	}
	return f.invitations.List(ctx, orgID)
}

// AcceptInvitation is called by the invitee, who is not a member yet, so no
// caller scope applies. The token proves possession of the latest
// invitation link. Once accepted, the user is attached to the organization.
func (f *Facade) AcceptInvitation(ctx context.Context, id, token, userID string) (Result[*invitations.Invitation], error) {
	if userID == "" {
		return Result[*invitations.Invitation]{}, &errs.InvalidInputError{Field: "user_id", Reason: "must not be empty"}
	}
	accepted, evts, err := f.invitations.Accept(ctx, id, token, userID)
	if err != nil {
		return Result[*invitations.Invitation]{}, err
	}
	if err := f.members.AttachMember(ctx, accepted.OrganizationID, userID, accepted.Email, accepted.RoleID); err != nil {
		return Result[*invitations.Invitation]{Value: accepted, Events: evts}, fmt.Errorf("attach member: %w", err)
	}
	return Result[*invitations.Invitation]{Value: accepted, Events: evts}, nil
}

// SweepExpiredInvitations persists observed expiry across all organizations.
func (f *Facade) SweepExpiredInvitations(ctx context.Context) (int64, error) {
	return f.invitations.SweepExpired(ctx)
}

