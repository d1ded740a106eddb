// Package errs holds the typed errors returned by the authorization engine.
//
// Every error carries a Kind so that integrating layers can map it to a
// response without matching on message text.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindPolicy     Kind = "policy"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindUnknown    Kind = "unknown"
)

type kinded interface {
	Kind() Kind
}

// KindOf reports the category of err, or KindUnknown for errors the engine
// did not produce (persistence failures and the like).
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// MalformedTokenError is returned by strict permission token parsing.
type MalformedTokenError struct {
	Token  string
	Reason string
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("malformed permission token %q: %s", e.Token, e.Reason)
}

func (e *MalformedTokenError) Kind() Kind { return KindValidation }

// UnknownRoleError means an invitation referenced a role outside the organization.
type UnknownRoleError struct {
	RoleID string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("role %s does not exist in this organization", e.RoleID)
}

func (e *UnknownRoleError) Kind() Kind { return KindValidation }

type TemplateNotApplicableError struct {
	TemplateID string
	Category   string
}

func (e *TemplateNotApplicableError) Error() string {
	return fmt.Sprintf("template %s is not available for category %s", e.TemplateID, e.Category)
}

func (e *TemplateNotApplicableError) Kind() Kind { return KindValidation }

// InvalidInputError covers plain request validation (empty names, bad emails).
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Kind() Kind { return KindValidation }

// QuotaExceededError reports the plan limit and the number of custom roles
// already in use. Used may exceed Limit after a plan downgrade.
type QuotaExceededError struct {
	Limit int
	Used  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("custom role quota exceeded: %d of %d used", e.Used, e.Limit)
}

func (e *QuotaExceededError) Kind() Kind { return KindPolicy }

type ProtectedRoleError struct {
	RoleID string
	Name   string
}

func (e *ProtectedRoleError) Error() string {
	return fmt.Sprintf("role %q is predetermined and cannot be modified", e.Name)
}

func (e *ProtectedRoleError) Kind() Kind { return KindPolicy }

type ResendLimitExceededError struct {
	InvitationID string
	Limit        int
	Count        int
}

func (e *ResendLimitExceededError) Error() string {
	return fmt.Sprintf("invitation %s was already resent %d times (limit %d)", e.InvitationID, e.Count, e.Limit)
}

func (e *ResendLimitExceededError) Kind() Kind { return KindPolicy }

// InvalidStateError is returned when an invitation transition is not allowed
// from its current effective status.
type InvalidStateError struct {
	InvitationID string
	Status       string
	Operation    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s invitation %s in status %s", e.Operation, e.InvitationID, e.Status)
}

func (e *InvalidStateError) Kind() Kind { return KindPolicy }

// PermissionDeniedError is returned by permission checks on the caller's role.
type PermissionDeniedError struct {
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("missing permission %s", e.Permission)
}

func (e *PermissionDeniedError) Kind() Kind { return KindPolicy }

type DuplicatePendingInvitationError struct {
	Email string
}

func (e *DuplicatePendingInvitationError) Error() string {
	return fmt.Sprintf("a pending invitation for %s already exists", e.Email)
}

func (e *DuplicatePendingInvitationError) Kind() Kind { return KindConflict }

// RoleInUseError counts the references that block a role deletion.
type RoleInUseError struct {
	RoleID      string
	Members     int
	Invitations int
}

func (e *RoleInUseError) Error() string {
	return fmt.Sprintf("role %s is assigned to %d members and %d pending invitations", e.RoleID, e.Members, e.Invitations)
}

func (e *RoleInUseError) Kind() Kind { return KindConflict }

// NotFoundError is used both for missing records and for records owned by
// another organization.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }
