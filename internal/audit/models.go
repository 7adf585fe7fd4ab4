package audit

import (
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Entry is one audit log row. Entries belong to the tenant in which the
// action happened.
type Entry struct {
	tenantdb.Model
	ActorID    uuid.UUID      `json:"actorId" gorm:"type:uuid;not null;index"`
	Action     Action         `json:"actionType" gorm:"size:64;not null;index"`
	TargetType string         `json:"targetType" gorm:"size:32;not null"`
	TargetID   uuid.UUID      `json:"targetId" gorm:"type:uuid;not null"`
	Metadata   datatypes.JSON `json:"metadata"`
}

func (Entry) TableName() string {
	return "audit_logs"
}
