package tenant

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the role claim carried in access tokens.
type Role string

const (
	RolePlatformOwner Role = "PlatformOwner"
	RoleTenantOwner   Role = "TenantOwner"
	RoleAdmin         Role = "Admin"
	RoleModerator     Role = "Moderator"
	RoleMember        Role = "Member"
	RoleGuest         Role = "Guest"
)

// ParseRole maps a claim string onto a known role, case-insensitively.
func ParseRole(raw string) (Role, bool) {
	for _, r := range []Role{RolePlatformOwner, RoleTenantOwner, RoleAdmin, RoleModerator, RoleMember, RoleGuest} {
		if strings.EqualFold(strings.TrimSpace(raw), string(r)) {
			return r, true
		}
	}
	return "", false
}

// IsPlatformOwnerRole reports whether a role claim grants the tenant bypass.
// The claim is trusted as issued by the token service.
func IsPlatformOwnerRole(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), string(RolePlatformOwner))
}

// AtLeastModerator reports whether r may moderate content in its tenant.
func (r Role) AtLeastModerator() bool {
	switch r {
	case RolePlatformOwner, RoleTenantOwner, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// ParseTenantClaim validates a raw tenant id claim. Empty strings, non-UUID
// values and the nil UUID are all rejected with ErrInvalidTenantClaim.
func ParseTenantClaim(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, ErrInvalidTenantClaim
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidTenantClaim
	}
	return id, nil
}

// Actor is the authenticated principal acting in a unit of work.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// CanModerate reports whether the actor may moderate content in its tenant.
func (a Actor) CanModerate() bool {
	return a.Role.AtLeastModerator()
}
