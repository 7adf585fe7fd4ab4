package members

import (
	"communityos/api/handlers/request"
	"communityos/internal/common"
	"communityos/internal/user"

	"github.com/gin-gonic/gin"
)

// MemberHandler serves the caller's own profile and the member directory.
type MemberHandler struct {
	users *user.Service
}

// NewMemberHandler creates a member handler.
func NewMemberHandler(users *user.Service) *MemberHandler {
	return &MemberHandler{users: users}
}

// UpdateProfileRequest changes the caller's profile. Absent fields are kept.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	City      *string `json:"city"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl" binding:"omitempty,url"`
}

// Me returns the caller's profile.
// @Summary Current member
// @Tags Members
// @Security BearerAuth
// @Produce json
// @Success 200 {object} user.Profile
// @Router /api/v1/me [get]
func (h *MemberHandler) Me(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, u.Profile())
}

// UpdateProfile edits the caller's profile.
// @Summary Update profile
// @Tags Members
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "profile fields"
// @Success 200 {object} user.Profile
// @Failure 400 {object} common.ErrorBody
// @Router /api/v1/me/profile [put]
func (h *MemberHandler) UpdateProfile(c *gin.Context) {
	actor, ok := request.Actor(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !request.BindJSON(c, &req, "invalid_request") {
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), actor.UserID, user.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		City:      req.City,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, u.Profile())
}

// List returns members of the tenant ordered by name.
// @Summary List members
// @Tags Members
// @Security BearerAuth
// @Produce json
// @Param q query string false "name or email filter"
// @Param page query int false "page"
// @Param pageSize query int false "page size"
// @Success 200 {object} common.ListResponse
// @Router /api/v1/members [get]
func (h *MemberHandler) List(c *gin.Context) {
	page := request.Page(c)
	rows, total, err := h.users.List(c.Request.Context(), user.ListFilter{Query: c.Query("q"), PaginationRequest: page})
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseList(c, Profiles(rows), page, total)
}

// Get returns one member.
// @Summary Get member
// @Tags Members
// @Security BearerAuth
// @Produce json
// @Param id path string true "member id"
// @Success 200 {object} user.Profile
// @Failure 404 {object} common.ErrorBody
// @Router /api/v1/members/{id} [get]
func (h *MemberHandler) Get(c *gin.Context) {
	id, ok := request.ParamUUID(c, "id")
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, u.Profile())
}

// Profiles maps users onto their public shape.
func Profiles(rows []user.User) []user.Profile {
	out := make([]user.Profile, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Profile())
	}
	return out
}
