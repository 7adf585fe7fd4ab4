package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"communityos/internal/config"

	"github.com/hibiken/asynq"
)

// ConnOpt builds the asynq connection for the configured redis mode.
func ConnOpt(cfg config.RedisConfig) (asynq.RedisConnOpt, error) {
	switch cfg.Mode {
	case "", "standalone":
		return asynq.RedisClientOpt{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB, PoolSize: cfg.PoolSize}, nil
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
			PoolSize:         cfg.PoolSize,
		}, nil
	case "cluster":
		return asynq.RedisClusterClientOpt{Addrs: cfg.ClusterAddrs, Password: cfg.Password}, nil
	}
	return nil, fmt.Errorf("unsupported redis mode %q", cfg.Mode)
}

// Client enqueues background tasks and inspects their queues.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewClient connects to the task queue.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	opt, err := ConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(opt), inspector: asynq.NewInspector(opt)}, nil
}

// Enqueue JSON-encodes payload into a task of taskType. nil opts selects
// DefaultTaskOptions.
func (c *Client) Enqueue(ctx context.Context, taskType string, payload any, opts *TaskOptions) (*asynq.TaskInfo, error) {
	if opts == nil {
		opts = DefaultTaskOptions()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts.asynqOptions()...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return info, nil
}

// QueueStats is the state of one queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// Stats reports every known queue. Queues that have never held a task are
// omitted.
func (c *Client) Stats() ([]QueueStats, error) {
	stats := make([]QueueStats, 0, len(Queues))
	for _, q := range Queues {
		info, err := c.inspector.GetQueueInfo(q)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("inspect queue %s: %w", q, err)
		}
		stats = append(stats, QueueStats{
			Queue:     q,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Processed: info.Processed,
			Failed:    info.Failed,
		})
	}
	return stats, nil
}

// Close releases the redis connections.
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
