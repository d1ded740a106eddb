package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	apiContext "orgauthz/internal/api/context"
	"orgauthz/internal/engine/authz"
	"orgauthz/internal/engine/tenancy"
	"orgauthz/internal/pkg/errors"
	"orgauthz/internal/pkg/logger"
	"orgauthz/internal/platform/auth"
	"orgauthz/internal/platform/models"
)

// MemberLookup resolves the current membership of a token's user, so role
// changes apply without waiting for the token to expire.
type MemberLookup interface {
	GetByID(ctx context.Context, id string) (*models.Member, error)
}

type TenantMiddleware struct {
	directory tenancy.Directory
	members   MemberLookup
}

func NewTenantMiddleware(directory tenancy.Directory, members MemberLookup) *TenantMiddleware {
	return &TenantMiddleware{
		directory: directory,
		members:   members,
	}
}

// Handle resolves the organization and the caller identity from the
// authenticated claims.
func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		org, err := m.directory.Organization(r.Context(), claims.OrganizationID)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to load organization")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load organization", nil)
			return
		}
		if org == nil {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Organization not found", nil)
			return
		}

		member, err := m.members.GetByID(r.Context(), claims.UserID)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to load member")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load member", nil)
			return
		}
		if member == nil || member.OrganizationID != org.ID || member.Status != models.MemberStatusActive {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Not an active member of this organization", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Organization, org)
		ctx = context.WithValue(ctx, apiContext.Caller, authz.Caller{
			UserID:         member.ID,
			OrganizationID: org.ID,
			RoleID:         member.RoleID,
		})
		ctx = logger.WithMember(ctx, org.ID, member.ID, member.RoleID)

		next(w, r.WithContext(ctx))
	}
}
