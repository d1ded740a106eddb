package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"orgauthz/internal/engine/authz"
	"orgauthz/internal/engine/invitations"
	"orgauthz/internal/pkg/errors"
	"orgauthz/internal/platform/auth"
)

type InvitationHandler struct {
	facade   *authz.Facade
	events   EventDispatcher
	tokenSvc *auth.TokenService
}

func NewInvitationHandler(facade *authz.Facade, events EventDispatcher, tokenSvc *auth.TokenService) *InvitationHandler {
	return &InvitationHandler{facade: facade, events: events, tokenSvc: tokenSvc}
}

type CreateInvitationRequest struct {
	Email  string `json:"email"`
	RoleID string `json:"role_id"`
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvitationRequest
	if !decode(w, r, &req) {
		return
	}
	c := caller(r)
	res, err := h.facade.InviteMember(r.Context(), c, req.Email, req.RoleID)
	if err != nil {
		fail(w, err)
		return
	}
	h.events.Dispatch(r.Context(), c.UserID, res.Events)
	writeJSON(w, http.StatusCreated, res.Value)
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.facade.ListInvitations(r.Context(), caller(r))
	if err != nil {
		fail(w, err)
		return
	}
	if list == nil {
		list = []*invitations.Invitation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *InvitationHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.facade.GetInvitation(r.Context(), caller(r), param(r, "invitation_id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvitationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	res, err := h.facade.ResendInvitation(r.Context(), c, param(r, "invitation_id"))
	if err != nil {
		fail(w, err)
		return
	}
	h.events.Dispatch(r.Context(), c.UserID, res.Events)
	writeJSON(w, http.StatusOK, res.Value)
}

func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	res, err := h.facade.CancelInvitation(r.Context(), c, param(r, "invitation_id"))
	if err != nil {
		fail(w, err)
		return
	}
	h.events.Dispatch(r.Context(), c.UserID, res.Events)
	writeJSON(w, http.StatusOK, res.Value)
}

type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

type AcceptInvitationResponse struct {
	Invitation  *invitations.Invitation `json:"invitation"`
	UserID      string                  `json:"user_id"`
	AccessToken string                  `json:"access_token"`
}

// Accept is public: the invitation token stands in for authentication. The
// invitee joins as a new member and receives an access token.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req AcceptInvitationRequest
	if !decode(w, r, &req) {
		return
	}
	userID := "usr_" + uuid.NewString()
	res, err := h.facade.AcceptInvitation(r.Context(), param(r, "invitation_id"), req.Token, userID)
	// a failed attach still leaves the invitation accepted
	h.events.Dispatch(r.Context(), userID, res.Events)
	if err != nil {
		fail(w, err)
		return
	}

	inv := res.Value
	token, err := h.tokenSvc.GenerateAccessToken(userID, inv.OrganizationID, inv.RoleID, inv.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue token", nil)
		return
	}
	writeJSON(w, http.StatusOK, AcceptInvitationResponse{Invitation: inv, UserID: userID, AccessToken: token})
}
