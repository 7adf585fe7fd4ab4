package search

import (
	"strings"

	"communityos/api/handlers/members"
	"communityos/api/handlers/request"
	"communityos/internal/common"
	"communityos/internal/content"
	"communityos/internal/group"
	"communityos/internal/user"

	"github.com/gin-gonic/gin"
)

// SearchHandler serves tenant-wide search.
type SearchHandler struct {
	content *content.Service
	groups  *group.Service
	users   *user.Service
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(contentSvc *content.Service, groups *group.Service, users *user.Service) *SearchHandler {
	return &SearchHandler{content: contentSvc, groups: groups, users: users}
}

// Posts matches q against post text and links.
// @Summary Search posts
// @Tags Search
// @Security BearerAuth
// @Produce json
// @Param q query string true "query"
// @Param page query int false "page"
// @Param pageSize query int false "page size"
// @Success 200 {object} common.Page[content.PostView]
// @Failure 400 {object} common.ErrorBody "missing_q"
// @Router /api/v1/search/posts [get]
func (h *SearchHandler) Posts(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	q, ok := query(c)
	if !ok {
		return
	}
	page, err := h.content.SearchPosts(c.Request.Context(), actor, q, request.Page(c))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, page)
}

// Groups matches q against group names and descriptions.
// @Summary Search groups
// @Tags Search
// @Security BearerAuth
// @Produce json
// @Param q query string true "query"
// @Param page query int false "page"
// @Param pageSize query int false "page size"
// @Success 200 {object} common.Page[group.View]
// @Failure 400 {object} common.ErrorBody "missing_q"
// @Router /api/v1/search/groups [get]
func (h *SearchHandler) Groups(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	q, ok := query(c)
	if !ok {
		return
	}
	page, err := h.groups.Search(c.Request.Context(), actor, q, request.Page(c))
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, page)
}

// Members matches q against member names and emails.
// @Summary Search members
// @Tags Search
// @Security BearerAuth
// @Produce json
// @Param q query string true "query"
// @Param page query int false "page"
// @Param pageSize query int false "page size"
// @Success 200 {object} common.Page[user.Profile]
// @Failure 400 {object} common.ErrorBody "missing_q"
// @Router /api/v1/search/members [get]
func (h *SearchHandler) Members(c *gin.Context) {
	q, ok := query(c)
	if !ok {
		return
	}
	page := request.Page(c)
	rows, total, err := h.users.List(c.Request.Context(), user.ListFilter{Query: q, PaginationRequest: page})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, common.Page[user.Profile]{
		Items:    members.Profiles(rows),
		Page:     page.GetPage(),
		PageSize: page.GetPageSize(),
		HasMore:  int64(page.GetOffset()+len(rows)) < total,
	})
}

func query(c *gin.Context) (string, bool) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		common.ResponseBadRequest(c, "missing_q")
		return "", false
	}
	return q, true
}
