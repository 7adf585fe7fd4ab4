package auth

import (
	"net/http"

	"communityos/internal/common"
	"communityos/internal/middleware"
	"communityos/internal/tenant"

	"github.com/gin-gonic/gin"
)

// ginKeyClaims holds the validated claims of the request's bearer token.
const ginKeyClaims = "auth_claims"

// JWTResolver resolves the caller from the Authorization bearer token.
type JWTResolver struct {
	jwt *JWTService
}

// NewJWTResolver wraps service.
func NewJWTResolver(service *JWTService) *JWTResolver {
	return &JWTResolver{jwt: service}
}

// Resolve implements middleware.IdentityResolver. Any token problem yields
// an unauthenticated identity.
func (r *JWTResolver) Resolve(c *gin.Context) middleware.Identity {
	token := ExtractTokenFromBearer(c.GetHeader("Authorization"))
	if token == "" {
		return middleware.Identity{}
	}
	claims, err := r.jwt.Validate(c.Request.Context(), token)
	if err != nil {
		return middleware.Identity{}
	}
	c.Set(ginKeyClaims, claims)
	return middleware.Identity{
		Authenticated: true,
		UserID:        claims.Subject,
		TenantIDClaim: claims.TenantID,
		RoleClaim:     claims.Role,
	}
}

// ClaimsFromGin returns the claims stored by Resolve.
func ClaimsFromGin(c *gin.Context) (*TokenClaims, bool) {
	v, ok := c.Get(ginKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*TokenClaims)
	return claims, ok
}

// RequireModerator stops callers below moderator with 403 forbidden. It runs
// after the tenant gate.
func RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := tenant.ParseRole(c.GetString(middleware.ContextKeyRole))
		if !role.AtLeastModerator() {
			common.AbortWithCode(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

var _ middleware.IdentityResolver = (*JWTResolver)(nil)
