package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"communityos/internal/notification"
	"communityos/internal/tenant"
	"communityos/internal/worker/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// MentionProcessor turns a mention event into notifications in the tenant
// bound to ctx.
type MentionProcessor interface {
	Process(ctx context.Context, ev notification.MentionEvent) (int, error)
}

type MentionHandler struct {
	processor MentionProcessor
	logger    *zap.Logger
}

func NewMentionHandler(processor MentionProcessor, logger *zap.Logger) *MentionHandler {
	return &MentionHandler{processor: processor, logger: logger}
}

// HandleMentionNotify runs each task as its own unit of work bound to the
// tenant in the payload. Malformed payloads are not retried.
func (h *MentionHandler) HandleMentionNotify(ctx context.Context, t *asynq.Task) error {
	var p tasks.MentionNotifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.TenantID == uuid.Nil {
		return fmt.Errorf("mention task without tenant: %w", asynq.SkipRetry)
	}

	ctx = tenant.ForTenant(ctx, p.TenantID, false)
	n, err := h.processor.Process(ctx, p.Event)
	if err != nil {
		h.logger.Error("mention notification failed",
			zap.String("tenant_id", p.TenantID.String()),
			zap.String("target_id", p.Event.TargetID.String()),
			zap.Error(err),
		)
		return err
	}

	h.logger.Debug("mention notifications sent",
		zap.String("tenant_id", p.TenantID.String()),
		zap.String("target_type", p.Event.TargetType),
		zap.Int("count", n),
	)
	return nil
}
