package common

import (
	"errors"
	"net/http"
	"strconv"

	"communityos/internal/logger"
	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResponseSuccess writes data with 200.
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// ResponseCreated writes data with 201.
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// ResponseNoContent writes an empty 204.
func ResponseNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ResponseList writes a page of items.
func ResponseList(c *gin.Context, items any, req PaginationRequest, total int64) {
	c.JSON(http.StatusOK, NewListResponse(items, req, total))
}

// ResponseBadRequest writes a 400 with the given error code.
func ResponseBadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: code})
}

// AbortWithCode writes {"error": code} with status and stops the chain.
func AbortWithCode(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: code})
}

// StatusFromError maps an error onto its HTTP status and error code.
func StatusFromError(err error) (int, ErrorBody) {
	var be *BusinessError
	var rl *RateLimitedError
	switch {
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, ErrorBody{Error: "rate_limited", RetryAfterSeconds: rl.RetryAfter}
	case errors.As(err, &be):
		return be.Status, ErrorBody{Error: be.Code, Message: be.Message}
	case errors.Is(err, tenant.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorBody{Error: "unauthorized"}
	case errors.Is(err, tenant.ErrInvalidTenantClaim):
		return http.StatusBadRequest, ErrorBody{Error: "missing_or_invalid_tenant_id"}
	case errors.Is(err, tenant.ErrCrossTenantWrite):
		return http.StatusForbidden, ErrorBody{Error: "cross_tenant_write"}
	case errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound, ErrorBody{Error: "tenant_not_found"}
	case errors.Is(err, tenantdb.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: "not_found"}
	default:
		// ErrTenantNotSet lands here: it is a wiring bug, never a client error.
		return http.StatusInternalServerError, ErrorBody{Error: "internal_error"}
	}
}

// ResponseError maps err with StatusFromError and writes it. Server errors
// are logged with the request's tenant fields.
func ResponseError(c *gin.Context, err error) {
	status, body := StatusFromError(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	if body.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}
	c.AbortWithStatusJSON(status, body)
}
