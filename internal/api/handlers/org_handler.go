package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apiContext "orgauthz/internal/api/context"
	"orgauthz/internal/engine/authz"
	"orgauthz/internal/engine/catalog"
	"orgauthz/internal/engine/quota"
	"orgauthz/internal/engine/tenancy"
	"orgauthz/internal/pkg/errors"
	"orgauthz/internal/pkg/validator"
	"orgauthz/internal/platform/auth"
	"orgauthz/internal/platform/models"
	"orgauthz/internal/platform/repositories"
)

// Invalidator drops cached organization data after a change.
type Invalidator interface {
	Invalidate(id string)
}

type OrgHandler struct {
	orgRepo    *repositories.OrganizationRepository
	memberRepo *repositories.MemberRepository
	facade     *authz.Facade
	policy     *quota.Policy
	tokenSvc   *auth.TokenService
	events     EventDispatcher
	cache      Invalidator
}

func NewOrgHandler(orgRepo *repositories.OrganizationRepository, memberRepo *repositories.MemberRepository, facade *authz.Facade, policy *quota.Policy, tokenSvc *auth.TokenService, events EventDispatcher, cache Invalidator) *OrgHandler {
	return &OrgHandler{
		orgRepo:    orgRepo,
		memberRepo: memberRepo,
		facade:     facade,
		policy:     policy,
		tokenSvc:   tokenSvc,
		events:     events,
		cache:      cache,
	}
}

type CreateOrgRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PlanID     string `json:"plan_id"`
	OwnerEmail string `json:"owner_email"`
	OwnerName  string `json:"owner_name"`
}

type CreateOrgResponse struct {
	Organization *models.Organization `json:"organization"`
	Owner        *models.Member       `json:"owner"`
	AccessToken  string               `json:"access_token"`
}

// Create registers an organization, provisions its predetermined roles and
// makes the owner its first administrator.
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrgRequest
	if !decode(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Organization name is required", nil)
		return
	}
	category := tenancy.Category(req.Category)
	if !category.Valid() {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown business category", map[string]interface{}{"categories": tenancy.Categories})
		return
	}
	if req.PlanID == "" || !h.policy.Has(req.PlanID) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown plan", nil)
		return
	}
	email, err := validator.NormalizeEmail(req.OwnerEmail)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	now := time.Now().UnixMilli()
	org := &models.Organization{
		ID:        "org_" + uuid.NewString(),
		Name:      name,
		Category:  string(category),
		PlanID:    req.PlanID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := h.orgRepo.BeginTx(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to begin transaction")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create organization", nil)
		return
	}
	defer tx.Rollback()

	if err := h.orgRepo.CreateTx(r.Context(), tx, org); err != nil {
		log.Error().Err(err).Msg("failed to create organization")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create organization", nil)
		return
	}

	provisioned, err := h.facade.ProvisionOrganizationTx(r.Context(), tx, &tenancy.Organization{
		ID:       org.ID,
		Name:     org.Name,
		Category: category,
		PlanID:   org.PlanID,
	})
	if err != nil {
		log.Error().Err(err).Str("org_id", org.ID).Msg("failed to provision roles")
		fail(w, err)
		return
	}

	var adminRoleID string
	for _, role := range provisioned.Value {
		if role.OriginTemplateID != nil && *role.OriginTemplateID == catalog.AdministratorTemplateID {
			adminRoleID = role.ID
			break
		}
	}

	owner := &models.Member{
		ID:             "usr_" + uuid.NewString(),
		OrganizationID: org.ID,
		Email:          email,
		FullName:       strings.TrimSpace(req.OwnerName),
		RoleID:         adminRoleID,
		Status:         models.MemberStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.memberRepo.CreateTx(r.Context(), tx, owner); err != nil {
		log.Error().Err(err).Str("org_id", org.ID).Msg("failed to create owner")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create owner", nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Str("org_id", org.ID).Msg("failed to commit organization")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create organization", nil)
		return
	}
	h.events.Dispatch(r.Context(), owner.ID, provisioned.Events)

	token, err := h.tokenSvc.GenerateAccessToken(owner.ID, org.ID, owner.RoleID, owner.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue token", nil)
		return
	}

	log.Info().Str("org_id", org.ID).Str("category", org.Category).Str("plan", org.PlanID).Msg("organization created")
	writeJSON(w, http.StatusCreated, CreateOrgResponse{Organization: org, Owner: owner, AccessToken: token})
}

func (h *OrgHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	org := r.Context().Value(apiContext.Organization).(*tenancy.Organization)

	stats, err := h.facade.RoleStats(r.Context(), caller(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"organization": org,
		"role_stats":   stats,
	})
}

type UpdatePlanRequest struct {
	PlanID string `json:"plan_id"`
}

// UpdatePlan switches the subscription plan. Custom roles above a lower
// limit are kept; only new creations are blocked.
func (h *OrgHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlanRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.policy.Has(req.PlanID) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown plan", nil)
		return
	}
	c := caller(r)
	if _, err := h.orgRepo.UpdatePlan(r.Context(), c.OrganizationID, req.PlanID); err != nil {
		log.Error().Err(err).Str("org_id", c.OrganizationID).Msg("failed to update plan")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update plan", nil)
		return
	}
	h.cache.Invalidate(c.OrganizationID)

	stats, err := h.facade.RoleStats(r.Context(), c)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
