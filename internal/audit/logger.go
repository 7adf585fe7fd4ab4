package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"communityos/internal/logger"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Logger writes audit entries into the current tenant.
type Logger struct {
	entries *tenantdb.Repository[Entry]
}

// NewLogger creates an audit logger backed by db.
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{entries: tenantdb.NewRepository[Entry](db)}
}

// Log records that actor performed action on a target. metadata is stored as
// JSON; nil is stored as {}.
func (l *Logger) Log(ctx context.Context, actor uuid.UUID, action Action, targetType string, targetID uuid.UUID, metadata any) error {
	raw := []byte("{}")
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("audit: encode metadata: %w", err)
		}
		raw = b
	}
	entry := &Entry{
		ActorID:    actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   datatypes.JSON(raw),
	}
	if err := l.entries.Create(ctx, entry); err != nil {
		logger.WithContext(ctx).Error("audit write failed",
			zap.String("action", string(action)),
			zap.String("target_type", targetType),
			zap.String("target_id", targetID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Action   Action
	TargetID uuid.UUID
	Limit    int
}

// List returns the newest entries first.
func (l *Logger) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := l.entries.Query(ctx)
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.TargetID != uuid.Nil {
		q = q.Where("target_id = ?", f.TargetID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	var rows []Entry
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
