package notification

import (
	"context"
	"encoding/json"
	"errors"

	"communityos/internal/tenantdb"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const listLimit = 100

// Service stores and reads notifications of the current tenant.
type Service struct {
	notifications *tenantdb.Repository[Notification]
}

// NewService creates a notification service.
func NewService(db *gorm.DB) *Service {
	return &Service{notifications: tenantdb.NewRepository[Notification](db)}
}

// CreateMentions notifies each recipient that actor mentioned them. The
// actor is never notified about their own mention. All rows are written in
// one statement.
func (s *Service) CreateMentions(ctx context.Context, actor uuid.UUID, targetType string, targetID uuid.UUID, recipients []uuid.UUID) (int, error) {
	payload, err := json.Marshal(MentionPayload{ActorUserID: actor, TargetType: targetType, TargetID: targetID})
	if err != nil {
		return 0, err
	}
	seen := make(map[uuid.UUID]struct{}, len(recipients))
	rows := make([]*Notification, 0, len(recipients))
	for _, id := range recipients {
		if id == actor || id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, &Notification{UserID: id, Type: TypeMention, Payload: datatypes.JSON(payload)})
	}
	if err := s.notifications.Create(ctx, rows...); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// List returns the newest notifications of user.
func (s *Service) List(ctx context.Context, user uuid.UUID) ([]Notification, error) {
	var rows []Notification
	err := s.notifications.Query(ctx).
		Where("user_id = ?", user).
		Order("created_at DESC").
		Limit(listLimit).
		Find(&rows).Error
	return rows, err
}

// UnreadCount counts unread notifications of user.
func (s *Service) UnreadCount(ctx context.Context, user uuid.UUID) (int64, error) {
	var n int64
	err := s.notifications.Query(ctx).Where("user_id = ? AND is_read = ?", user, false).Count(&n).Error
	return n, err
}

// MarkRead marks one of user's notifications read. Another member's
// notification is reported as not found.
func (s *Service) MarkRead(ctx context.Context, user, id uuid.UUID) error {
	var n Notification
	err := s.notifications.Query(ctx).Where("id = ? AND user_id = ?", id, user).Take(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenantdb.ErrNotFound
	}
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	return s.notifications.UpdateFields(ctx, &n, map[string]any{"is_read": true})
}
