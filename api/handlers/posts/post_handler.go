package posts

import (
	"errors"

	"communityos/api/handlers/request"
	"communityos/internal/common"
	"communityos/internal/content"
	"communityos/internal/metrics"
	"communityos/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PostHandler serves posts, reactions, bookmarks and comments.
type PostHandler struct {
	content *content.Service
}

// NewPostHandler creates a post handler.
func NewPostHandler(svc *content.Service) *PostHandler {
	return &PostHandler{content: svc}
}

// CreatePostRequest is a new post.
type CreatePostRequest struct {
	BodyText        string     `json:"bodyText"`
	ImageURLs       []string   `json:"imageUrls"`
	LinkURL         *string    `json:"linkUrl"`
	LinkTitle       *string    `json:"linkTitle"`
	LinkDescription *string    `json:"linkDescription"`
	LinkImageURL    *string    `json:"linkImageUrl"`
	GroupID         *uuid.UUID `json:"groupId"`
}

// UpdatePostRequest edits a post.
type UpdatePostRequest struct {
	BodyText          string `json:"bodyText"`
	CommentingEnabled *bool  `json:"commentingEnabled"`
}

// AddImagesRequest attaches images to a post.
type AddImagesRequest struct {
	ImageURLs []string `json:"imageUrls"`
}

// Create publishes a post.
// @Summary Create post
// @Tags Posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreatePostRequest true "post"
// @Success 201 {object} content.PostView
// @Failure 400 {object} common.ErrorBody "missing_body, invalid_image_count"
// @Failure 429 {object} common.ErrorBody "rate_limited"
// @Router /api/v1/posts [post]
func (h *PostHandler) Create(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	var req CreatePostRequest
	if !request.BindJSON(c, &req, "missing_body") {
		return
	}
	view, err := h.content.CreatePost(c.Request.Context(), actor, content.CreatePostInput{
		BodyText:        req.BodyText,
		ImageURLs:       req.ImageURLs,
		LinkURL:         req.LinkURL,
		LinkTitle:       req.LinkTitle,
		LinkDescription: req.LinkDescription,
		LinkImageURL:    req.LinkImageURL,
		GroupID:         req.GroupID,
	})
	if err != nil {
		metrics.RecordAction(content.ActionCreatePost, Outcome(err))
		common.ResponseError(c, err)
		return
	}
	metrics.RecordAction(content.ActionCreatePost, "ok")
	common.ResponseCreated(c, view)
}

// Feed returns the latest posts of the tenant.
// @Summary Feed
// @Tags Posts
// @Security BearerAuth
// @Produce json
// @Success 200 {array} content.PostView
// @Router /api/v1/posts [get]
func (h *PostHandler) Feed(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	views, err := h.content.Feed(c.Request.Context(), actor)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, views)
}

// Get returns one post.
// @Summary Get post
// @Tags Posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "post id"
// @Success 200 {object} content.PostView
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/posts/{id} [get]
func (h *PostHandler) Get(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	view, err := h.content.GetPost(c.Request.Context(), actor, id)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, view)
}

// Update edits the caller's own post.
// @Summary Update post
// @Tags Posts
// @Security BearerAuth
// @Accept json
// @Param id path string true "post id"
// @Param request body UpdatePostRequest true "changes"
// @Success 204
// @Failure 403 {object} common.ErrorBody
// @Router /api/v1/posts/{id} [put]
func (h *PostHandler) Update(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	var req UpdatePostRequest
	if !request.BindJSON(c, &req, "missing_body") {
		return
	}
	err := h.content.UpdatePost(c.Request.Context(), actor, id, content.UpdatePostInput{
		BodyText:          req.BodyText,
		CommentingEnabled: req.CommentingEnabled,
	})
	respondEmpty(c, err)
}

// Delete soft-deletes a post.
// @Summary Delete post
// @Tags Posts
// @Security BearerAuth
// @Param id path string true "post id"
// @Success 204
// @Failure 403 {object} common.ErrorBody
// @Router /api/v1/posts/{id} [delete]
func (h *PostHandler) Delete(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	respondEmpty(c, h.content.DeletePost(c.Request.Context(), actor, id))
}

// AddImages attaches images to the caller's post.
// @Summary Add images
// @Tags Posts
// @Security BearerAuth
// @Accept json
// @Param id path string true "post id"
// @Param request body AddImagesRequest true "image urls"
// @Success 204
// @Failure 400 {object} common.ErrorBody "missing_images, too_many_images"
// @Router /api/v1/posts/{id}/images [post]
func (h *PostHandler) AddImages(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	var req AddImagesRequest
	if !request.BindJSON(c, &req, "missing_images") {
		return
	}
	respondEmpty(c, h.content.AddImages(c.Request.Context(), actor, id, req.ImageURLs))
}

// Like adds the caller's like. Repeating it is a no-op.
// @Summary Like post
// @Tags Posts
// @Security BearerAuth
// @Param id path string true "post id"
// @Success 204
// @Router /api/v1/posts/{id}/like [post]
func (h *PostHandler) Like(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	err := h.content.Like(c.Request.Context(), actor, id)
	if err == nil {
		metrics.RecordAction("like", "ok")
	}
	respondEmpty(c, err)
}

// Unlike removes the caller's like.
// @Summary Unlike post
// @Tags Posts
// @Security BearerAuth
// @Param id path string true "post id"
// @Success 204
// @Router /api/v1/posts/{id}/like [delete]
func (h *PostHandler) Unlike(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	respondEmpty(c, h.content.Unlike(c.Request.Context(), actor, id))
}

// Bookmark saves the post for the caller.
// @Summary Bookmark post
// @Tags Posts
// @Security BearerAuth
// @Param id path string true "post id"
// @Success 204
// @Router /api/v1/posts/{id}/bookmark [post]
func (h *PostHandler) Bookmark(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	respondEmpty(c, h.content.Bookmark(c.Request.Context(), actor, id))
}

// Unbookmark removes the caller's bookmark.
// @Summary Remove bookmark
// @Tags Posts
// @Security BearerAuth
// @Param id path string true "post id"
// @Success 204
// @Router /api/v1/posts/{id}/bookmark [delete]
func (h *PostHandler) Unbookmark(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}
	respondEmpty(c, h.content.Unbookmark(c.Request.Context(), actor, id))
}

// Bookmarks lists the caller's bookmarked posts.
// @Summary My bookmarks
// @Tags Posts
// @Security BearerAuth
// @Produce json
// @Success 200 {array} content.PostView
// @Router /api/v1/me/bookmarks [get]
func (h *PostHandler) Bookmarks(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	views, err := h.content.Bookmarked(c.Request.Context(), actor)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, views)
}

// Outcome labels a failed action for metrics.
func Outcome(err error) string {
	var rl *common.RateLimitedError
	if errors.As(err, &rl) {
		return "rate_limited"
	}
	return "rejected"
}

func actorAndID(c *gin.Context) (actor tenant.Actor, id uuid.UUID, ok bool) {
	if actor, ok = request.Actor(c); !ok {
		return
	}
	id, ok = request.ParamUUID(c, "id")
	return
}

func respondEmpty(c *gin.Context, err error) {
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseNoContent(c)
}
