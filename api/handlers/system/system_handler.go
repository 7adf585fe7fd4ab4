package system

import (
	"context"
	"net/http"
	"time"

	"communityos/internal/common"
	"communityos/internal/infra/queue"
	"communityos/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SystemHandler serves liveness, readiness and the tenant debug view.
type SystemHandler struct {
	db    *gorm.DB
	redis redis.UniversalClient
	queue *queue.Client
}

// NewSystemHandler creates a system handler. redisClient and queueClient
// may be nil.
func NewSystemHandler(db *gorm.DB, redisClient redis.UniversalClient, queueClient *queue.Client) *SystemHandler {
	return &SystemHandler{db: db, redis: redisClient, queue: queueClient}
}

// HealthResponse is the health probe result.
type HealthResponse struct {
	Status   string             `json:"status"`
	Database string             `json:"database,omitempty"`
	Redis    string             `json:"redis,omitempty"`
	Queues   []queue.QueueStats `json:"queues,omitempty"`
}

// Root answers the bare liveness probe.
// @Summary Root
// @Tags System
// @Produce plain
// @Success 200 {string} string
// @Router / [get]
func (h *SystemHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "CommunityOS API is running")
}

// Health checks the database and, when configured, redis and the task queues.
// @Summary Health
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if err := ping(ctx, h.db); err != nil {
		resp.Status, resp.Database, status = "degraded", "unavailable", http.StatusServiceUnavailable
	}
	if h.redis != nil {
		resp.Redis = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			resp.Status, resp.Redis, status = "degraded", "unavailable", http.StatusServiceUnavailable
		}
	}
	if h.queue != nil {
		if stats, err := h.queue.Stats(); err == nil {
			resp.Queues = stats
		}
	}
	c.JSON(status, resp)
}

// DebugTenant returns the request's tenant binding.
// @Summary Tenant binding
// @Tags System
// @Security BearerAuth
// @Produce json
// @Success 200 {object} tenant.Info
// @Router /api/v1/debug/tenant [get]
func (h *SystemHandler) DebugTenant(c *gin.Context) {
	common.ResponseSuccess(c, tenant.Current(c.Request.Context()).Info())
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
