package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromError(t *testing.T) {
	errTooMany := NewBusinessError(http.StatusBadRequest, "invalid_image_count", "")
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{tenant.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
		{tenant.ErrInvalidTenantClaim, http.StatusBadRequest, "missing_or_invalid_tenant_id"},
		{fmt.Errorf("update post: %w", tenant.ErrCrossTenantWrite), http.StatusForbidden, "cross_tenant_write"},
		{tenant.ErrTenantNotSet, http.StatusInternalServerError, "internal_error"},
		{tenantdb.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("create: %w", errTooMany), http.StatusBadRequest, "invalid_image_count"},
		{&RateLimitedError{Action: "create_post", RetryAfter: 12}, http.StatusTooManyRequests, "rate_limited"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, body := StatusFromError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Error)
		})
	}
}

func TestResponseErrorWritesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/posts", nil)

	ResponseError(c, &RateLimitedError{Action: "create_post", RetryAfter: 7})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "7", w.Header().Get("Retry-After"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ErrorBody{Error: "rate_limited", RetryAfterSeconds: 7}, body)
}

func TestPagination(t *testing.T) {
	req := PaginationRequest{Page: 3, PageSize: 500}
	assert.Equal(t, 50, req.GetPageSize())
	assert.Equal(t, 100, req.GetOffset())

	meta := NewPaginationMeta(1, 20, 41)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasMore)

	assert.Equal(t, 20, PaginationRequest{}.GetPageSize())
	assert.Equal(t, 1, PaginationRequest{}.GetPage())
}
