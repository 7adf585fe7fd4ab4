package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"
)

// SystemCollector samples pool and runtime gauges on an interval.
type SystemCollector struct {
	db       *sql.DB
	interval time.Duration
}

// NewSystemCollector creates a collector. db may be nil.
func NewSystemCollector(db *sql.DB, interval time.Duration) *SystemCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SystemCollector{db: db, interval: interval}
}

// Run samples until ctx is done.
func (c *SystemCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.CollectOnce()
	for {
		select {
		case <-ticker.C:
			c.CollectOnce()
		case <-ctx.Done():
			return
		}
	}
}

// CollectOnce takes one sample.
func (c *SystemCollector) CollectOnce() {
	if c.db != nil {
		stats := c.db.Stats()
		DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
		DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
		DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryInUse.Set(float64(m.HeapInuse))
	Goroutines.Set(float64(runtime.NumGoroutine()))
}
