package moderation

import (
	"strconv"

	"communityos/api/handlers/request"
	"communityos/internal/audit"
	"communityos/internal/common"
	"communityos/internal/metrics"
	"communityos/internal/moderation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ModerationHandler serves reports, moderator actions and the audit log.
type ModerationHandler struct {
	moderation *moderation.Service
	audit      *audit.Logger
}

// NewModerationHandler creates a moderation handler.
func NewModerationHandler(svc *moderation.Service, auditLog *audit.Logger) *ModerationHandler {
	return &ModerationHandler{moderation: svc, audit: auditLog}
}

// ReportRequest flags a post, comment or user.
type ReportRequest struct {
	TargetType string    `json:"targetType"`
	TargetID   uuid.UUID `json:"targetId"`
	Reason     string    `json:"reason"`
	Notes      *string   `json:"notes"`
}

// ActionRequest resolves a report.
type ActionRequest struct {
	ActionType string    `json:"actionType"`
	TargetType string    `json:"targetType"`
	TargetID   uuid.UUID `json:"targetId"`
	Notes      *string   `json:"notes"`
}

// CreateReport files a report.
// @Summary Report content
// @Tags Moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ReportRequest true "report"
// @Success 201 {object} moderation.Report
// @Failure 400 {object} common.ErrorBody "missing_fields, invalid_target_type"
// @Router /api/v1/reports [post]
func (h *ModerationHandler) CreateReport(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	var req ReportRequest
	if !request.BindJSON(c, &req, "missing_fields") {
		return
	}
	report, err := h.moderation.CreateReport(c.Request.Context(), actor, moderation.ReportInput{
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
		Notes:      req.Notes,
	})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction("report", "ok")
	common.ResponseCreated(c, report)
}

// ListReports returns the newest reports of the tenant.
// @Summary List reports
// @Tags Moderation
// @Security BearerAuth
// @Produce json
// @Success 200 {array} moderation.Report
// @Failure 403 {object} common.ErrorBody
// @Router /api/v1/mod/reports [get]
func (h *ModerationHandler) ListReports(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	reports, err := h.moderation.ListReports(c.Request.Context(), actor)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, reports)
}

// ActOnReport resolves a report and optionally acts on its content.
// @Summary Act on report
// @Tags Moderation
// @Security BearerAuth
// @Accept json
// @Param id path string true "report id"
// @Param request body ActionRequest true "action"
// @Success 204
// @Failure 403 {object} common.ErrorBody
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/mod/reports/{id}/action [post]
func (h *ModerationHandler) ActOnReport(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req ActionRequest
	if !request.BindJSON(c, &req, "missing_fields") {
		return
	}
	err := h.moderation.ActOnReport(c.Request.Context(), actor, id, moderation.ActionInput{
		ActionType: req.ActionType,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Notes:      req.Notes,
	})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction("moderate", "ok")
	common.ResponseNoContent(c)
}

// Suspend suspends a member.
// @Summary Suspend member
// @Tags Moderation
// @Security BearerAuth
// @Param id path string true "member id"
// @Success 204
// @Failure 403 {object} common.ErrorBody
// @Router /api/v1/mod/users/{id}/suspend [post]
func (h *ModerationHandler) Suspend(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.moderation.SuspendUser(c.Request.Context(), actor, id); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// Ban bans a member.
// @Summary Ban member
// @Tags Moderation
// @Security BearerAuth
// @Param id path string true "member id"
// @Success 204
// @Failure 403 {object} common.ErrorBody
// @Router /api/v1/mod/users/{id}/ban [post]
func (h *ModerationHandler) Ban(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.moderation.BanUser(c.Request.Context(), actor, id); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// AuditLog lists audit entries newest first.
// @Summary Audit log
// @Tags Moderation
// @Security BearerAuth
// @Produce json
// @Param action query string false "action filter"
// @Param targetId query string false "target filter"
// @Param limit query int false "max entries"
// @Success 200 {array} audit.Entry
// @Router /api/v1/mod/audit [get]
func (h *ModerationHandler) AuditLog(c *gin.Context) {
	f := audit.Filter{Action: audit.Action(c.Query("action"))}
	if raw := c.Query("targetId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.ResponseBadRequest(c, "invalid_request")
			return
		}
		f.TargetID = id
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			common.ResponseBadRequest(c, "invalid_request")
			return
		}
		f.Limit = n
	}
	entries, err := h.audit.List(c.Request.Context(), f)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, entries)
}
