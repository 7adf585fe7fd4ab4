package notification

import (
	"context"

	"communityos/internal/logger"
	"communityos/internal/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MentionEvent is a piece of content that may mention members.
type MentionEvent struct {
	ActorID    uuid.UUID `json:"actorId"`
	TargetType string    `json:"targetType"`
	TargetID   uuid.UUID `json:"targetId"`
	Handles    []string  `json:"handles"`
}

// MentionDispatcher hands mention events to whoever creates the
// notifications: inline in the request, or as a background task.
type MentionDispatcher interface {
	DispatchMentions(ctx context.Context, ev MentionEvent) error
}

// UserLookup resolves @handles to members of the current tenant.
type UserLookup interface {
	FindByHandles(ctx context.Context, handles []string) ([]user.User, error)
}

// MentionProcessor turns a mention event into notifications.
type MentionProcessor struct {
	users         UserLookup
	notifications *Service
}

// NewMentionProcessor creates a processor.
func NewMentionProcessor(users UserLookup, notifications *Service) *MentionProcessor {
	return &MentionProcessor{users: users, notifications: notifications}
}

// Process resolves the handles of ev in the tenant of ctx and notifies the
// matching members.
func (p *MentionProcessor) Process(ctx context.Context, ev MentionEvent) (int, error) {
	if len(ev.Handles) == 0 {
		return 0, nil
	}
	members, err := p.users.FindByHandles(ctx, ev.Handles)
	if err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for i := range members {
		ids = append(ids, members[i].ID)
	}
	n, err := p.notifications.CreateMentions(ctx, ev.ActorID, ev.TargetType, ev.TargetID, ids)
	if err != nil {
		return 0, err
	}
	logger.WithContext(ctx).Debug("mention notifications created",
		zap.String("target_type", ev.TargetType),
		zap.String("target_id", ev.TargetID.String()),
		zap.Int("count", n))
	return n, nil
}

// InlineDispatcher processes mentions synchronously in the caller's unit of
// work. It serves deployments without a task queue.
type InlineDispatcher struct {
	processor *MentionProcessor
}

// NewInlineDispatcher wraps processor.
func NewInlineDispatcher(processor *MentionProcessor) *InlineDispatcher {
	return &InlineDispatcher{processor: processor}
}

func (d *InlineDispatcher) DispatchMentions(ctx context.Context, ev MentionEvent) error {
	_, err := d.processor.Process(ctx, ev)
	return err
}
