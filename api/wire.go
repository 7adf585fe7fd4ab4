package api

import (
	"context"
	"time"

	"communityos/internal/audit"
	"communityos/internal/auth"
	"communityos/internal/cache"
	"communityos/internal/config"
	"communityos/internal/content"
	"communityos/internal/group"
	"communityos/internal/infra/queue"
	"communityos/internal/messaging"
	"communityos/internal/metrics"
	"communityos/internal/middleware"
	"communityos/internal/moderation"
	"communityos/internal/notification"
	"communityos/internal/poll"
	"communityos/internal/tenant"
	"communityos/internal/user"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the infrastructure clients built by the caller. Redis and Queue
// are nil when redis is disabled.
type Deps struct {
	Redis  redis.UniversalClient
	Queue  *queue.Client
	Logger *zap.Logger
}

// AppContainer holds every service of the application.
type AppContainer struct {
	DB          *gorm.DB
	Config      *config.Config
	RedisClient redis.UniversalClient
	QueueClient *queue.Client
	Logger      *zap.Logger

	JWTService  *auth.JWTService
	Auth        *auth.Service
	Tenants     tenant.Repository
	RateLimiter *middleware.RateLimiter

	Users         *user.Service
	Audit         *audit.Logger
	Notifications *notification.Service
	Mentions      *notification.MentionProcessor
	Throttle      cache.ActionThrottle
	GroupAccess   *group.Access
	Content       *content.Service
	Groups        *group.Service
	Messaging     *messaging.Service
	Polls         *poll.Service
	Moderation    *moderation.Service
}

// InitContainer wires the services on top of db.
func InitContainer(db *gorm.DB, cfg *config.Config, deps Deps) *AppContainer {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &AppContainer{
		DB:          db,
		Config:      cfg,
		RedisClient: deps.Redis,
		QueueClient: deps.Queue,
		Logger:      log,
	}

	c.initAuth(cfg)
	c.initCoreServices(db, cfg)

	limits := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
	}
	if cfg.RateLimit.Burst > 0 {
		limits.BurstSize = cfg.RateLimit.Burst
	}
	c.RateLimiter = middleware.NewRateLimiter(limits)
	return c
}

func (c *AppContainer) initAuth(cfg *config.Config) {
	c.JWTService = auth.NewJWTService(auth.JWTConfig{
		Secret:    cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.JWTIssuer,
		Audience:  cfg.Auth.JWTAudience,
		AccessTTL: cfg.Auth.AccessTTL,
	}, c.RedisClient)
	c.Tenants = tenant.NewRepository(c.DB)
	c.Users = user.NewService(c.DB, cfg.Auth.BcryptCost)
	c.Auth = auth.NewService(c.Tenants, c.Users, c.JWTService)
}

func (c *AppContainer) initCoreServices(db *gorm.DB, cfg *config.Config) {
	c.Audit = audit.NewLogger(db)
	c.Notifications = notification.NewService(db)
	c.Mentions = notification.NewMentionProcessor(c.Users, c.Notifications)

	if c.RedisClient != nil {
		c.Throttle = cache.NewRedisThrottle(c.RedisClient)
	} else {
		c.Throttle = cache.NewMemoryThrottle()
	}

	c.GroupAccess = group.NewAccess(db)
	c.Content = content.NewService(db, c.Users,
		content.WithThrottle(c.Throttle, cfg.RateLimit.PostCooldown, cfg.RateLimit.CommentCooldown),
		content.WithGroupAccess(c.GroupAccess),
		content.WithMentions(c.mentionDispatcher(cfg)),
	)
	c.Groups = group.NewService(db, c.GroupAccess, c.Content)
	c.Messaging = messaging.NewService(db, c.Users)
	c.Polls = poll.NewService(db, c.Content)
	c.Moderation = moderation.NewService(db, c.Content, c.Users, c.Audit)
}

// mentionDispatcher defers mentions to the worker when it runs and
// processes them inline otherwise.
func (c *AppContainer) mentionDispatcher(cfg *config.Config) notification.MentionDispatcher {
	if cfg.Worker.Enabled && c.QueueClient != nil {
		c.Logger.Info("mentions dispatched through the task queue")
		return countedDispatcher{mode: "queued", next: queue.NewMentionDispatcher(c.QueueClient)}
	}
	return countedDispatcher{mode: "inline", next: notification.NewInlineDispatcher(c.Mentions)}
}

// RunMaintenance sweeps in-process state until ctx ends.
func (c *AppContainer) RunMaintenance(ctx context.Context) {
	mem, ok := c.Throttle.(*cache.MemoryThrottle)
	if !ok {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mem.Sweep(time.Hour)
		}
	}
}

// Close releases the container's background resources.
func (c *AppContainer) Close() {
	if c.RateLimiter != nil {
		c.RateLimiter.Stop()
	}
}

type countedDispatcher struct {
	mode string
	next notification.MentionDispatcher
}

func (d countedDispatcher) DispatchMentions(ctx context.Context, ev notification.MentionEvent) error {
	if len(ev.Handles) == 0 {
		return nil
	}
	err := d.next.DispatchMentions(ctx, ev)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MentionsDispatched.WithLabelValues(d.mode, status).Inc()
	return err
}
