package tasks

import (
	"communityos/internal/notification"

	"github.com/google/uuid"
)

// Task types
const (
	TypeMentionNotify = "notification:mention"
)

// MentionNotifyPayload carries a mention event together with the tenant it
// happened in. Handlers bind their unit of work to TenantID before touching
// any tenant data.
type MentionNotifyPayload struct {
	TenantID uuid.UUID                 `json:"tenant_id"`
	Event    notification.MentionEvent `json:"event"`
}
