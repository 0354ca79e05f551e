package controllers

import (
	"net/http"
	"strconv"

	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/utils"
)

type AuditLogController struct {
	auditService services.AuditService
}

func NewAuditLogController(auditService services.AuditService) *AuditLogController {
	return &AuditLogController{auditService: auditService}
}

// GET /api/v1/logs?limit=N
func (c *AuditLogController) ListAuditLogsHandler(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultAuditLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "limit must be a positive integer", nil, err)
			return
		}
		limit = min(n, constants.MaxAuditLogLimit)
	}

	logs, err := c.auditService.List(r.Context(), limit)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not list audit logs"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, logs)
}
