package queue

import (
	"time"

	"github.com/hibiken/asynq"
)

// Priority selects the queue a task is enqueued on.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 20
)

// Queue names, highest weight first.
var Queues = []string{"critical", "high", "default", "low"}

// Weights returns the asynq server weight of each queue.
func Weights() map[string]int {
	return map[string]int{
		"critical": 6,
		"high":     4,
		"default":  2,
		"low":      1,
	}
}

// QueueFor maps a priority onto its queue name.
func QueueFor(p Priority) string {
	switch {
	case p >= PriorityCritical:
		return "critical"
	case p >= PriorityHigh:
		return "high"
	case p >= PriorityNormal:
		return "default"
	default:
		return "low"
	}
}

// TaskOptions tunes one enqueue.
type TaskOptions struct {
	Priority  Priority
	MaxRetry  int
	Timeout   time.Duration
	Unique    time.Duration // dedup window
	TaskID    string
	ProcessAt time.Time
	Retention time.Duration // how long a finished task stays inspectable
}

// DefaultTaskOptions returns normal-priority options with three retries.
func DefaultTaskOptions() *TaskOptions {
	return &TaskOptions{
		Priority: PriorityNormal,
		MaxRetry: 3,
		Timeout:  time.Minute,
	}
}

func (o *TaskOptions) asynqOptions() []asynq.Option {
	opts := []asynq.Option{asynq.Queue(QueueFor(o.Priority))}
	if o.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(o.MaxRetry))
	}
	if o.Timeout > 0 {
		opts = append(opts, asynq.Timeout(o.Timeout))
	}
	if o.Unique > 0 {
		opts = append(opts, asynq.Unique(o.Unique))
	}
	if o.TaskID != "" {
		opts = append(opts, asynq.TaskID(o.TaskID))
	}
	if !o.ProcessAt.IsZero() {
		opts = append(opts, asynq.ProcessAt(o.ProcessAt))
	}
	if o.Retention > 0 {
		opts = append(opts, asynq.Retention(o.Retention))
	}
	return opts
}
