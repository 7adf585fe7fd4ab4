package posts

import (
	"communityos/api/handlers/request"
	"communityos/internal/common"
	"communityos/internal/content"
	"communityos/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateCommentRequest is a reply to a post.
type CreateCommentRequest struct {
	Text            string     `json:"text"`
	ParentCommentID *uuid.UUID `json:"parentCommentId"`
}

// UpdateCommentRequest edits a comment.
type UpdateCommentRequest struct {
	Text string `json:"text"`
}

// ListComments returns a post's comments oldest first.
// @Summary List comments
// @Tags Comments
// @Security BearerAuth
// @Produce json
// @Param id path string true "post id"
// @Param page query int false "page"
// @Param pageSize query int false "page size, max 200"
// @Success 200 {object} common.Page[content.CommentView]
// @Failure 404 {object} common.ErrorBody "post_not_found"
// @Router /api/v1/posts/{id}/comments [get]
func (h *PostHandler) ListComments(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	page, err := h.content.ListComments(c.Request.Context(), actor, id, request.Page(c))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, page)
}

// CreateComment replies to a post.
// @Summary Create comment
// @Tags Comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "post id"
// @Param request body CreateCommentRequest true "comment"
// @Success 201 {object} content.CommentView
// @Failure 400 {object} common.ErrorBody "missing_text, commenting_disabled, invalid_parent_comment"
// @Failure 429 {object} common.ErrorBody "rate_limited"
// @Router /api/v1/posts/{id}/comments [post]
func (h *PostHandler) CreateComment(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	var req CreateCommentRequest
	if !request.BindJSON(c, &req, "missing_text") {
		return
	}
	view, err := h.content.CreateComment(c.Request.Context(), actor, id, content.CreateCommentInput{
		Text:            req.Text,
		ParentCommentID: req.ParentCommentID,
	})
	if err != nil {
		metrics.RecordAction(content.ActionCreateComment, Outcome(err))
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction(content.ActionCreateComment, "ok")
	common.ResponseCreated(c, view)
}

// UpdateComment edits the caller's own comment.
// @Summary Update comment
// @Tags Comments
// @Security BearerAuth
// @Accept json
// @Param id path string true "comment id"
// @Param request body UpdateCommentRequest true "text"
// @Success 204
// @Router /api/v1/comments/{id} [put]
func (h *PostHandler) UpdateComment(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	var req UpdateCommentRequest
	if !request.BindJSON(c, &req, "missing_text") {
		return
	}
	respondEmpty(c, h.content.UpdateComment(c.Request.Context(), actor, id, req.Text))
}

// DeleteComment soft-deletes a comment.
// @Summary Delete comment
// @Tags Comments
// @Security BearerAuth
// @Param id path string true "comment id"
// @Success 204
// @Router /api/v1/comments/{id} [delete]
func (h *PostHandler) DeleteComment(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	respondEmpty(c, h.content.DeleteComment(c.Request.Context(), actor, id))
}
