package handlers

import (
	"net/http"

	"orgauthz/internal/engine/authz"
	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/engine/roles"
)

type RoleHandler struct {
	facade *authz.Facade
	events EventDispatcher
}

func NewRoleHandler(facade *authz.Facade, events EventDispatcher) *RoleHandler {
	return &RoleHandler{facade: facade, events: events}
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.facade.ListRoles(r.Context(), caller(r))
	if err != nil {
		fail(w, err)
		return
	}
	if list == nil {
		list = []*roles.Role{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	role, err := h.facade.GetRole(r.Context(), caller(r), param(r, "role_id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) Templates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.facade.AvailableTemplates(r.Context(), caller(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *RoleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.facade.RoleStats(r.Context(), caller(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// MyPermissions lists what the caller's role grants, as a matrix and as
// tokens.
func (h *RoleHandler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	perms, err := h.facade.Permissions(r.Context(), c)
	if err != nil {
		fail(w, err)
		return
	}
	tokens := perms.Tokens()
	if tokens == nil {
		tokens = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role_id":     c.RoleID,
		"permissions": perms,
		"tokens":      tokens,
	})
}

type CreateRoleRequest struct {
	TemplateID  string          `json:"template_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Permissions permissions.Set `json:"permissions"`
}

// Create copies a template when template_id is set, permissions then being
// added to the template grants. Otherwise it creates a custom role.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if !decode(w, r, &req) {
		return
	}
	c := caller(r)

	var res authz.Result[*roles.Role]
	var err error
	if req.TemplateID != "" {
		res, err = h.facade.CreateRoleFromTemplate(r.Context(), c, req.TemplateID, roles.CreateFromTemplateInput{
			Name:        req.Name,
			Description: req.Description,
			Overrides:   req.Permissions,
		})
	} else {
		res, err = h.facade.CreateCustomRole(r.Context(), c, roles.CustomRoleInput{
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
		})
	}
	if err != nil {
		fail(w, err)
		return
	}
	h.events.Dispatch(r.Context(), c.UserID, res.Events)
	writeJSON(w, http.StatusCreated, res.Value)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req roles.RoleUpdate
	if !decode(w, r, &req) {
		return
	}
	c := caller(r)
	res, err := h.facade.UpdateRole(r.Context(), c, param(r, "role_id"), req)
	if err != nil {
		fail(w, err)
		return
	}
	h.events.Dispatch(r.Context(), c.UserID, res.Events)
	writeJSON(w, http.StatusOK, res.Value)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	res, err := h.facade.DeleteRole(r.Context(), c, param(r, "role_id"))
	if err != nil {
		fail(w, err)
		return
	}
	h.events.Dispatch(r.Context(), c.UserID, res.Events)
	w.WriteHeader(http.StatusNoContent)
}
