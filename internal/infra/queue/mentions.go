package queue

import (
	"context"
	"fmt"
	"time"

	"communityos/internal/notification"
	"communityos/internal/tenant"
	"communityos/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of Client the mention dispatcher needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any, opts *TaskOptions) (*asynq.TaskInfo, error)
}

// MentionDispatcher defers mention notifications to the worker. The task
// carries the tenant of the enqueuing unit of work.
type MentionDispatcher struct {
	queue Enqueuer
}

// NewMentionDispatcher wraps q.
func NewMentionDispatcher(q Enqueuer) *MentionDispatcher {
	return &MentionDispatcher{queue: q}
}

func (d *MentionDispatcher) DispatchMentions(ctx context.Context, ev notification.MentionEvent) error {
	if len(ev.Handles) == 0 {
		return nil
	}
	tenantID, err := tenant.Current(ctx).CurrentTenantID()
	if err != nil {
		return err
	}
	payload := tasks.MentionNotifyPayload{TenantID: tenantID, Event: ev}
	_, err = d.queue.Enqueue(ctx, tasks.TypeMentionNotify, payload, &TaskOptions{
		Priority:  PriorityNormal,
		MaxRetry:  3,
		Timeout:   30 * time.Second,
		TaskID:    fmt.Sprintf("mention:%s:%s", tenantID, ev.TargetID),
		Retention: time.Hour,
	})
	return err
}

var _ notification.MentionDispatcher = (*MentionDispatcher)(nil)
