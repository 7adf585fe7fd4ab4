package group

import (
	"strings"
	"time"

	"communityos/internal/tenantdb"

	"github.com/google/uuid"
)

// Visibility controls who may read a group's posts.
type Visibility string

const (
	VisibilityPublic  Visibility = "Public"
	VisibilityPrivate Visibility = "Private"
)

// ParseVisibility maps a request value onto a visibility. Anything other
// than "private" is public.
func ParseVisibility(raw string) Visibility {
	if strings.EqualFold(strings.TrimSpace(raw), string(VisibilityPrivate)) {
		return VisibilityPrivate
	}
	return VisibilityPublic
}

// Group is a community subgroup.
type Group struct {
	tenantdb.Model
	Name        string     `json:"name" gorm:"size:200;not null;index"`
	Description *string    `json:"description,omitempty" gorm:"size:2000"`
	Visibility  Visibility `json:"visibility" gorm:"size:16;not null"`
	CreatedByID uuid.UUID  `json:"createdById" gorm:"type:uuid;not null"`
}

func (Group) TableName() string {
	return "groups"
}

// MemberRole is a member's role inside a group.
type MemberRole string

const (
	MemberRoleMember    MemberRole = "Member"
	MemberRoleModerator MemberRole = "Moderator"
)

// Member is a user's membership in a group.
type Member struct {
	tenantdb.Model
	GroupID  uuid.UUID  `json:"groupId" gorm:"type:uuid;not null;index"`
	UserID   uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index"`
	Role     MemberRole `json:"role" gorm:"size:16;not null"`
	JoinedAt time.Time  `json:"joinedAt" gorm:"not null"`
}

func (Member) TableName() string {
	return "group_members"
}

// View is a group as shown to one viewer.
type View struct {
	ID          uuid.UUID  `json:"groupId"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Visibility  Visibility `json:"visibility"`
	CreatedByID uuid.UUID  `json:"createdById"`
	CreatedAt   time.Time  `json:"createdAt"`
	MemberCount int        `json:"memberCount"`
	IsMember    bool       `json:"isMember"`
}

// Models lists the tables of this package for migration.
func Models() []any {
	return []any{&Group{}, &Member{}}
}
