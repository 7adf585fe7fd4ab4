package messages

import (
	"time"

	"communityos/api/handlers/request"
	"communityos/internal/common"
	"communityos/internal/messaging"
	"communityos/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MessageHandler serves direct conversations.
type MessageHandler struct {
	messaging *messaging.Service
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(svc *messaging.Service) *MessageHandler {
	return &MessageHandler{messaging: svc}
}

// StartRequest names the other participant.
type StartRequest struct {
	OtherUserID uuid.UUID `json:"otherUserId"`
}

// SendRequest is a message body.
type SendRequest struct {
	BodyText string `json:"bodyText"`
}

// MarkReadRequest optionally sets the read mark. It defaults to now.
type MarkReadRequest struct {
	ReadAt *time.Time `json:"readAt"`
}

// Start opens or returns the direct conversation with another member.
// @Summary Start conversation
// @Tags Messages
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body StartRequest true "other member"
// @Success 200 {object} messaging.ConversationView
// @Failure 400 {object} common.ErrorBody "invalid_other_user"
// @Failure 404 {object} common.ErrorBody "user_not_found"
// @Router /api/v1/conversations [post]
func (h *MessageHandler) Start(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	var req StartRequest
	if !request.BindJSON(c, &req, "invalid_other_user") {
		return
	}
	view, err := h.messaging.Start(c.Request.Context(), actor.UserID, req.OtherUserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

// List returns the caller's conversations by last activity.
// @Summary List conversations
// @Tags Messages
// @Security BearerAuth
// @Produce json
// @Param page query int false "page"
// @Param pageSize query int false "page size"
// @Success 200 {object} common.Page[messaging.ConversationView]
// @Router /api/v1/conversations [get]
func (h *MessageHandler) List(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	page, err := h.messaging.List(c.Request.Context(), actor.UserID, request.Page(c))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, page)
}

// Get returns one of the caller's conversations.
// @Summary Get conversation
// @Tags Messages
// @Security BearerAuth
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} messaging.ConversationView
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/conversations/{id} [get]
func (h *MessageHandler) Get(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.messaging.Get(c.Request.Context(), actor.UserID, id)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

// Messages returns the newest page of a conversation, oldest first within
// the page.
// @Summary List messages
// @Tags Messages
// @Security BearerAuth
// @Produce json
// @Param id path string true "conversation id"
// @Param page query int false "page"
// @Param pageSize query int false "page size, max 200"
// @Success 200 {object} common.Page[messaging.MessageView]
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/conversations/{id}/messages [get]
func (h *MessageHandler) Messages(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	page, err := h.messaging.Messages(c.Request.Context(), actor.UserID, id, request.Page(c))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, page)
}

// Send posts a message to a conversation.
// @Summary Send message
// @Tags Messages
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "conversation id"
// @Param request body SendRequest true "message"
// @Success 201 {object} messaging.MessageView
// @Failure 400 {object} common.ErrorBody "missing_body"
// @Router /api/v1/conversations/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req SendRequest
	if !request.BindJSON(c, &req, "missing_body") {
		return
	}
	view, err := h.messaging.Send(c.Request.Context(), actor.UserID, id, req.BodyText)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction("send_message", "ok")
	common.ResponseCreated(c, view)
}

// MarkRead moves the caller's read mark.
// @Summary Mark conversation read
// @Tags Messages
// @Security BearerAuth
// @Accept json
// @Param id path string true "conversation id"
// @Param request body MarkReadRequest false "read mark"
// @Success 204
// @Router /api/v1/conversations/{id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req MarkReadRequest
	if c.Request.ContentLength > 0 && !request.BindJSON(c, &req, "invalid_request") {
		return
	}
	if err := h.messaging.MarkRead(c.Request.Context(), actor.UserID, id, req.ReadAt); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseNoContent(c)
}
