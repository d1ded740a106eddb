package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"orgauthz/internal/engine/authz"
	"orgauthz/internal/pkg/errors"
	"orgauthz/internal/platform/models"
	"orgauthz/internal/platform/repositories"
)

type MemberHandler struct {
	facade     *authz.Facade
	memberRepo *repositories.MemberRepository
}

func NewMemberHandler(facade *authz.Facade, memberRepo *repositories.MemberRepository) *MemberHandler {
	return &MemberHandler{facade: facade, memberRepo: memberRepo}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.memberRepo.ListByOrganization(r.Context(), caller(r).OrganizationID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if members == nil {
		members = []*models.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type UpdateMemberRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemberRoleRequest
	if !decode(w, r, &req) {
		return
	}
	c := caller(r)
	userID := param(r, "user_id")
	if userID == c.UserID {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Members cannot change their own role", nil)
		return
	}
	if _, err := h.facade.GetRole(r.Context(), c, req.RoleID); err != nil {
		fail(w, err)
		return
	}

	ok, err := h.memberRepo.UpdateRole(r.Context(), c.OrganizationID, userID, req.RoleID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Member not found", nil)
		return
	}
	log.Info().Str("org_id", c.OrganizationID).Str("user_id", userID).Str("role_id", req.RoleID).Msg("member role changed")
	w.WriteHeader(http.StatusNoContent)
}

// Suspend keeps the member row but releases its hold on the role.
func (h *MemberHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	userID := param(r, "user_id")
	if userID == c.UserID {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Members cannot suspend themselves", nil)
		return
	}
	ok, err := h.memberRepo.SetStatus(r.Context(), c.OrganizationID, userID, models.MemberStatusSuspended)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Member not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
