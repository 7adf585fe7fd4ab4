package tenant

import "errors"

var (
	// ErrTenantNotSet means tenant-scoped data was touched before any tenant
	// was resolved for the unit of work. It always indicates a wiring bug.
	ErrTenantNotSet = errors.New("tenant: tenant is not set for the current unit of work")
	// ErrInvalidTenantClaim means the caller's tenant claim is missing or malformed.
	ErrInvalidTenantClaim = errors.New("tenant: missing or invalid tenant id claim")
	// ErrUnauthenticated means no verified identity accompanied the request.
	ErrUnauthenticated = errors.New("tenant: caller is not authenticated")
	// ErrCrossTenantWrite means a write targeted a row owned by another tenant.
	ErrCrossTenantWrite = errors.New("tenant: cross-tenant write is not allowed")
	// ErrTenantNotFound means no tenant matches the requested code.
	ErrTenantNotFound = errors.New("tenant: tenant not found")
)
