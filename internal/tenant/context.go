package tenant

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TenantContext is the per unit-of-work tenant holder. One instance belongs to
// exactly one HTTP request, background task or bootstrap routine; it is set
// once by whoever resolves the caller identity and read by the persistence
// layer on every statement.
//
// The zero value is an unset holder.
type TenantContext struct {
	mu            sync.RWMutex
	tenantID      uuid.UUID
	hasTenant     bool
	platformOwner bool
}

// Info is a read-only snapshot of a TenantContext, used for diagnostics.
type Info struct {
	TenantID        uuid.UUID `json:"tenantId"`
	HasTenant       bool      `json:"hasTenant"`
	IsPlatformOwner bool      `json:"isPlatformOwner"`
}

// NewTenantContext returns an empty holder.
func NewTenantContext() *TenantContext {
	return &TenantContext{}
}

// Set replaces the held tenant and bypass flag. It performs no validation of
// tenantID; that is the request gate's job.
func (tc *TenantContext) Set(tenantID uuid.UUID, isPlatformOwner bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tenantID = tenantID
	tc.hasTenant = true
	tc.platformOwner = isPlatformOwner
}

// CurrentTenantID returns the held tenant or ErrTenantNotSet.
func (tc *TenantContext) CurrentTenantID() (uuid.UUID, error) {
	if tc == nil {
		return uuid.Nil, ErrTenantNotSet
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if !tc.hasTenant {
		return uuid.Nil, ErrTenantNotSet
	}
	return tc.tenantID, nil
}

// HasTenant reports whether Set has been called since creation or the last Clear.
func (tc *TenantContext) HasTenant() bool {
	if tc == nil {
		return false
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.hasTenant
}

// IsPlatformOwner returns the last-set bypass flag.
func (tc *TenantContext) IsPlatformOwner() bool {
	if tc == nil {
		return false
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.platformOwner
}

// Clear resets the holder to the unset state. Only bootstrap and migration
// routines that walk several tenants in sequence call it.
func (tc *TenantContext) Clear() {
	if tc == nil {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.tenantID = uuid.Nil
	tc.hasTenant = false
	tc.platformOwner = false
}

// Info returns a snapshot of the current values.
func (tc *TenantContext) Info() Info {
	if tc == nil {
		return Info{}
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return Info{TenantID: tc.tenantID, HasTenant: tc.hasTenant, IsPlatformOwner: tc.platformOwner}
}

type tenantContextKey struct{}

// WithTenantContext attaches tc to ctx. Callers should use this helper instead
// of storing the holder under arbitrary keys.
func WithTenantContext(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// FromContext returns the holder attached to ctx, if any.
func FromContext(ctx context.Context) (*TenantContext, bool) {
	if ctx == nil {
		return nil, false
	}
	tc, ok := ctx.Value(tenantContextKey{}).(*TenantContext)
	if !ok || tc == nil {
		return nil, false
	}
	return tc, true
}

// Current returns the holder attached to ctx. A context without one yields a
// nil holder, which behaves as an unset one.
func Current(ctx context.Context) *TenantContext {
	tc, _ := FromContext(ctx)
	return tc
}

// BeginUnit starts a unit of work: it attaches a fresh, empty holder to ctx.
func BeginUnit(ctx context.Context) (context.Context, *TenantContext) {
	tc := NewTenantContext()
	return WithTenantContext(ctx, tc), tc
}

// ForTenant starts a unit of work already bound to tenantID. Background task
// handlers use it with the tenant carried in their payload.
func ForTenant(ctx context.Context, tenantID uuid.UUID, isPlatformOwner bool) context.Context {
	ctx, tc := BeginUnit(ctx)
	tc.Set(tenantID, isPlatformOwner)
	return ctx
}
