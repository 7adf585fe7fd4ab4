package common

import (
	"fmt"
	"net/http"
)

// PaginationRequest is the page/page_size query pair accepted by list endpoints.
type PaginationRequest struct {
	Page     int `json:"page" form:"page" binding:"omitempty,min=1"`
	PageSize int `json:"pageSize" form:"pageSize" binding:"omitempty,min=1"`
}

// DefaultPagination returns the first page of 20.
func DefaultPagination() PaginationRequest {
	return PaginationRequest{Page: 1, PageSize: 20}
}

// GetPage returns the page, defaulting to 1.
func (p PaginationRequest) GetPage() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

// GetOffset returns the row offset of the page.
func (p PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// GetPageSize returns the page size clamped to 1..50, defaulting to 20.
func (p PaginationRequest) GetPageSize() int {
	if p.PageSize < 1 {
		return 20
	}
	if p.PageSize > 50 {
		return 50
	}
	return p.PageSize
}

// PaginationMeta describes the page returned by a list endpoint.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// NewPaginationMeta computes page counts for total rows.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	m := PaginationMeta{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		m.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	m.HasMore = m.Page < m.TotalPages
	return m
}

// ListResponse is a page of items.
type ListResponse struct {
	Items      any            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewListResponse builds a ListResponse for req.
func NewListResponse(items any, req PaginationRequest, total int64) ListResponse {
	return ListResponse{
		Items:      items,
		Pagination: NewPaginationMeta(req.GetPage(), req.GetPageSize(), total),
	}
}

// Page is one page of a list that reports whether more items follow instead
// of a total count.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasMore  bool `json:"hasMore"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error             string `json:"error"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// BusinessError is an error with a fixed HTTP status and a stable snake_case
// code that clients switch on.
type BusinessError struct {
	Status  int
	Code    string
	Message string
}

func (e *BusinessError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBusinessError declares a business error. Packages keep the result in a
// package-level variable and compare with errors.Is.
func NewBusinessError(status int, code, message string) *BusinessError {
	return &BusinessError{Status: status, Code: code, Message: message}
}

// Shared business errors.
var (
	ErrBadRequest   = NewBusinessError(http.StatusBadRequest, "invalid_request", "")
	ErrUnauthorized = NewBusinessError(http.StatusUnauthorized, "unauthorized", "")
	ErrForbidden    = NewBusinessError(http.StatusForbidden, "forbidden", "")
	ErrNotFound     = NewBusinessError(http.StatusNotFound, "not_found", "")
	ErrConflict     = NewBusinessError(http.StatusConflict, "conflict", "")
	ErrInternal     = NewBusinessError(http.StatusInternalServerError, "internal_error", "")
)

// RateLimitedError is returned when an action is throttled.
type RateLimitedError struct {
	Action     string
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %ds", e.Action, e.RetryAfter)
}
