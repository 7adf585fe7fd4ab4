// Package request holds the binding helpers shared by the HTTP handlers.
package request

import (
	"net/http"

	"communityos/internal/common"
	"communityos/internal/middleware"
	"communityos/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Actor returns the caller bound by the tenant gate. On failure the response
// is already written.
func Actor(c *gin.Context) (tenant.Actor, bool) {
	actor, err := middleware.CurrentActor(c)
	if err != nil {
		common.ResponseError(c, err)
		return tenant.Actor{}, false
	}
	return actor, true
}

// ParamUUID parses the path parameter name. Malformed ids answer 404, the
// same as ids that do not exist.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		common.AbortWithCode(c, http.StatusNotFound, "not_found")
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes the body into req, answering 400 with code on failure.
func BindJSON(c *gin.Context, req any, code string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		common.AbortWithCode(c, http.StatusBadRequest, code)
		return false
	}
	return true
}

// Page reads the page and pageSize query parameters. Invalid values fall
// back to the defaults.
func Page(c *gin.Context) common.PaginationRequest {
	var p common.PaginationRequest
	if err := c.ShouldBindQuery(&p); err != nil {
		return common.DefaultPagination()
	}
	return p
}
