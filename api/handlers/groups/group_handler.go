package groups

import (
	"communityos/api/handlers/request"
	"communityos/internal/common"
	"communityos/internal/group"
	"communityos/internal/metrics"
	"communityos/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GroupHandler serves groups and memberships.
type GroupHandler struct {
	groups *group.Service
}

// NewGroupHandler creates a group handler.
func NewGroupHandler(groups *group.Service) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// CreateGroupRequest is a new group. Visibility is Public or Private.
type CreateGroupRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Visibility  string  `json:"visibility" binding:"omitempty,oneof=Public Private public private"`
}

// Create makes a group with the caller as its moderator.
// @Summary Create group
// @Tags Groups
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateGroupRequest true "group"
// @Success 201 {object} group.View
// @Failure 400 {object} common.ErrorBody "missing_name"
// @Router /api/v1/groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	var req CreateGroupRequest
	if !request.BindJSON(c, &req, "invalid_request") {
		return
	}
	view, err := h.groups.Create(c.Request.Context(), actor, group.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction("create_group", "ok")
	common.ResponseCreated(c, view)
}

// List returns the tenant's groups by name.
// @Summary List groups
// @Tags Groups
// @Security BearerAuth
// @Produce json
// @Success 200 {array} group.View
// @Router /api/v1/groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	views, err := h.groups.List(c.Request.Context(), actor)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, views)
}

// Get returns one group.
// @Summary Get group
// @Tags Groups
// @Security BearerAuth
// @Produce json
// @Param id path string true "group id"
// @Success 200 {object} group.View
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	view, err := h.groups.Get(c.Request.Context(), actor, id)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

// Posts returns the posts of a group. Private groups answer 404 to
// non-members.
// @Summary Group posts
// @Tags Groups
// @Security BearerAuth
// @Produce json
// @Param id path string true "group id"
// @Param page query int false "page"
// @Param pageSize query int false "page size"
// @Success 200 {object} common.Page[content.PostView]
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/groups/{id}/posts [get]
func (h *GroupHandler) Posts(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	page, err := h.groups.Posts(c.Request.Context(), actor, id, request.Page(c))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, page)
}

// Join adds the caller to a public group.
// @Summary Join group
// @Tags Groups
// @Security BearerAuth
// @Param id path string true "group id"
// @Success 204
// @Failure 403 {object} common.ErrorBody "private group"
// @Router /api/v1/groups/{id}/join [post]
func (h *GroupHandler) Join(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	if err := h.groups.Join(c.Request.Context(), actor, id); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// Leave removes the caller from a group.
// @Summary Leave group
// @Tags Groups
// @Security BearerAuth
// @Param id path string true "group id"
// @Success 204
// @Router /api/v1/groups/{id}/leave [post]
func (h *GroupHandler) Leave(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	if err := h.groups.Leave(c.Request.Context(), actor, id); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

func actorAndID(c *gin.Context) (actor tenant.Actor, id uuid.UUID, ok bool) {
	if actor, ok = request.Actor(c); !ok {
		return
	}
	id, ok = request.ParamUUID(c, "id")
	return
}
