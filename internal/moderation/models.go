package moderation

import (
	"strings"

	"communityos/internal/tenantdb"

	"github.com/google/uuid"
)

// TargetType is what a report points at.
type TargetType string

const (
	TargetPost    TargetType = "Post"
	TargetComment TargetType = "Comment"
	TargetUser    TargetType = "User"
)

// ParseTargetType maps a request value onto a target type, case-insensitively.
func ParseTargetType(raw string) (TargetType, bool) {
	raw = strings.TrimSpace(raw)
	for _, t := range []TargetType{TargetPost, TargetComment, TargetUser} {
		if strings.EqualFold(raw, string(t)) {
			return t, true
		}
	}
	return "", false
}

// ReportStatus is the review state of a report.
type ReportStatus string

const (
	ReportOpen     ReportStatus = "Open"
	ReportReviewed ReportStatus = "Reviewed"
	ReportActioned ReportStatus = "Actioned"
)

// Report is a member's complaint about a post, comment or user.
type Report struct {
	tenantdb.Model
	ReporterID uuid.UUID    `json:"reporterId" gorm:"type:uuid;not null;index"`
	TargetType TargetType   `json:"targetType" gorm:"size:16;not null"`
	TargetID   uuid.UUID    `json:"targetId" gorm:"type:uuid;not null;index"`
	Reason     string       `json:"reason" gorm:"size:500;not null"`
	Notes      *string      `json:"notes"`
	Status     ReportStatus `json:"status" gorm:"size:16;not null;index"`
}

func (Report) TableName() string {
	return "reports"
}

// Models lists the tables of this package for migration.
func Models() []any {
	return []any{&Report{}}
}
