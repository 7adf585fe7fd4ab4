package notification

import (
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Type is the kind of a notification.
type Type string

const (
	TypeMention Type = "Mention"
)

// Notification is an in-app notice addressed to one member.
type Notification struct {
	tenantdb.Model
	UserID  uuid.UUID      `json:"userId" gorm:"type:uuid;not null;index"`
	Type    Type           `json:"type" gorm:"size:32;not null"`
	Payload datatypes.JSON `json:"payload"`
	IsRead  bool           `json:"isRead" gorm:"not null"`
}

func (Notification) TableName() string {
	return "notifications"
}

// MentionPayload is the payload of a TypeMention notification.
type MentionPayload struct {
	ActorUserID uuid.UUID `json:"actorUserId"`
	TargetType  string    `json:"targetType"`
	TargetID    uuid.UUID `json:"targetId"`
}
