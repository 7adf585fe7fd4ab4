package notifications

import (
	"communityos/api/handlers/request"
	"communityos/internal/common"
	"communityos/internal/notification"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the caller's notifications.
type NotificationHandler struct {
	notifications *notification.Service
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(svc *notification.Service) *NotificationHandler {
	return &NotificationHandler{notifications: svc}
}

// UnreadResponse is the unread count.
type UnreadResponse struct {
	Unread int64 `json:"unread"`
}

// List returns the caller's newest notifications.
// @Summary List notifications
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Success 200 {array} notification.Notification
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	rows, err := h.notifications.List(c.Request.Context(), actor.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, rows)
}

// UnreadCount returns how many notifications are unread.
// @Summary Unread notifications
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Success 200 {object} UnreadResponse
// @Router /api/v1/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	n, err := h.notifications.UnreadCount(c.Request.Context(), actor.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, UnreadResponse{Unread: n})
}

// MarkRead marks one of the caller's notifications read.
// @Summary Mark notification read
// @Tags Notifications
// @Security BearerAuth
// @Param id path string true "notification id"
// @Success 204
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), actor.UserID, id); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseNoContent(c)
}
