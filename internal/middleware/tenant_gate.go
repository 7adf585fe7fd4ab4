package middleware

import (
	"net/http"
	"strings"

	"communityos/internal/common"
	"communityos/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// gin context keys published by the gate
const (
	ContextKeyUserID   = "user_id"
	ContextKeyTenantID = "tenant_id"
	ContextKeyRole     = "role"
)

// Identity is what a resolver learned about the caller. Claims are passed
// through raw; the gate validates the tenant claim itself.
type Identity struct {
	Authenticated bool
	UserID        string
	TenantIDClaim string
	RoleClaim     string
}

// IdentityResolver extracts the caller identity from a request.
type IdentityResolver interface {
	Resolve(c *gin.Context) Identity
}

// IdentityResolverFunc adapts a function to IdentityResolver.
type IdentityResolverFunc func(c *gin.Context) Identity

func (f IdentityResolverFunc) Resolve(c *gin.Context) Identity {
	return f(c)
}

// GateConfig configures TenantGate.
type GateConfig struct {
	// ExemptPaths match exactly, or by prefix when they end in "*".
	ExemptPaths       []string
	PlatformOwnerRole string
}

func (g GateConfig) exempt(path string) bool {
	for _, p := range g.ExemptPaths {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		} else if path == p {
			return true
		}
	}
	return false
}

func (g GateConfig) isPlatformOwner(role string) bool {
	owner := g.PlatformOwnerRole
	if owner == "" {
		owner = string(tenant.RolePlatformOwner)
	}
	return strings.EqualFold(strings.TrimSpace(role), owner)
}

// TenantGate binds every non-exempt request to the tenant of its caller. It
// starts a fresh unit of work per request, so no tenant state outlives the
// request that set it.
func TenantGate(resolver IdentityResolver, cfg GateConfig, logger *zap.Logger) gin.HandlerFunc {
	log := logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if cfg.exempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		id := resolver.Resolve(c)
		if !id.Authenticated {
			common.AbortWithCode(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		tenantID, err := tenant.ParseTenantClaim(id.TenantIDClaim)
		if err != nil {
			log.Warn("rejected tenant claim",
				zap.String("path", c.Request.URL.Path),
				zap.String("user_id", id.UserID),
			)
			common.AbortWithCode(c, http.StatusBadRequest, "missing_or_invalid_tenant_id")
			return
		}
		owner := cfg.isPlatformOwner(id.RoleClaim)

		ctx, tc := tenant.BeginUnit(c.Request.Context())
		tc.Set(tenantID, owner)
		c.Request = c.Request.WithContext(ctx)

		c.Set(ContextKeyUserID, id.UserID)
		c.Set(ContextKeyTenantID, tenantID.String())
		c.Set(ContextKeyRole, id.RoleClaim)

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("tenant.id", tenantID.String()),
			attribute.Bool("tenant.platform_owner", owner),
			attribute.String("enduser.id", id.UserID),
		)

		c.Next()
	}
}

// CurrentActor returns the principal the gate published for c.
func CurrentActor(c *gin.Context) (tenant.Actor, error) {
	userID, err := uuid.Parse(c.GetString(ContextKeyUserID))
	if err != nil {
		return tenant.Actor{}, tenant.ErrUnauthenticated
	}
	role, ok := tenant.ParseRole(c.GetString(ContextKeyRole))
	if !ok {
		role = tenant.RoleGuest
	}
	return tenant.Actor{UserID: userID, Role: role}, nil
}
