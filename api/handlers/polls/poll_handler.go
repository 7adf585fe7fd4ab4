package polls

import (
	"communityos/api/handlers/request"
	"communityos/internal/common"
	"communityos/internal/metrics"
	"communityos/internal/poll"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PollHandler serves polls attached to posts.
type PollHandler struct {
	polls *poll.Service
}

// NewPollHandler creates a poll handler.
func NewPollHandler(polls *poll.Service) *PollHandler {
	return &PollHandler{polls: polls}
}

// CreatePollRequest is a question with 2 to 10 options.
type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// VoteRequest picks an option.
type VoteRequest struct {
	OptionID uuid.UUID `json:"optionId"`
}

// Create attaches a poll to the caller's post.
// @Summary Create poll
// @Tags Polls
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "post id"
// @Param request body CreatePollRequest true "poll"
// @Success 201 {object} poll.View
// @Failure 400 {object} common.ErrorBody "invalid_poll"
// @Failure 404 {object} common.ErrorBody "post_not_found"
// @Failure 409 {object} common.ErrorBody "poll_already_exists"
// @Router /api/v1/posts/{id}/poll [post]
func (h *PollHandler) Create(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	postID, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req CreatePollRequest
	if !request.BindJSON(c, &req, "invalid_poll") {
		return
	}
	view, err := h.polls.Create(c.Request.Context(), actor, postID, poll.CreateInput{Question: req.Question, Options: req.Options})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, view)
}

// Get returns the poll of a post with the caller's vote.
// @Summary Get poll
// @Tags Polls
// @Security BearerAuth
// @Produce json
// @Param id path string true "post id"
// @Success 200 {object} poll.View
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/posts/{id}/poll [get]
func (h *PollHandler) Get(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	postID, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.polls.ForPost(c.Request.Context(), actor, postID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

// Vote casts the caller's vote. Votes are final.
// @Summary Vote
// @Tags Polls
// @Security BearerAuth
// @Accept json
// @Param id path string true "poll id"
// @Param request body VoteRequest true "option"
// @Success 204
// @Failure 400 {object} common.ErrorBody "invalid_option"
// @Failure 409 {object} common.ErrorBody "already_voted"
// @Router /api/v1/polls/{id}/vote [post]
func (h *PollHandler) Vote(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	pollID, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req VoteRequest
	if !request.BindJSON(c, &req, "invalid_option") {
		return
	}
	if err := h.polls.Vote(c.Request.Context(), actor, pollID, req.OptionID); err != nil {
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction("vote", "ok")
	common.ResponseNoContent(c)
}
