package handlers

import (
	"net/http"
	"strconv"

	"orgauthz/internal/pkg/errors"
	"orgauthz/internal/platform/audit"
	"orgauthz/internal/platform/models"
)

type AuditHandler struct {
	logger *audit.Logger
}

func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{logger: logger}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.logger.List(r.Context(), caller(r).OrganizationID, limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
