package api

import (
	_ "communityos/api/docs"
	authHandlers "communityos/api/handlers/auth"
	"communityos/api/handlers/groups"
	"communityos/api/handlers/members"
	"communityos/api/handlers/messages"
	moderationHandlers "communityos/api/handlers/moderation"
	"communityos/api/handlers/notifications"
	"communityos/api/handlers/polls"
	"communityos/api/handlers/posts"
	"communityos/api/handlers/search"
	"communityos/api/handlers/system"
	"communityos/internal/metrics"
	"communityos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers groups the HTTP handlers.
type Handlers struct {
	Auth          *authHandlers.AuthHandler
	Members       *members.MemberHandler
	Search        *search.SearchHandler
	Posts         *posts.PostHandler
	Polls         *polls.PollHandler
	Groups        *groups.GroupHandler
	Messages      *messages.MessageHandler
	Notifications *notifications.NotificationHandler
	Moderation    *moderationHandlers.ModerationHandler
	System        *system.SystemHandler
}

// InitHandlers builds the handlers over the container's services.
func (c *AppContainer) InitHandlers() *Handlers {
	return &Handlers{
		Auth:          authHandlers.NewAuthHandler(c.Auth, c.Logger),
		Members:       members.NewMemberHandler(c.Users),
		Search:        search.NewSearchHandler(c.Content, c.Groups, c.Users),
		Posts:         posts.NewPostHandler(c.Content),
		Polls:         polls.NewPollHandler(c.Polls),
		Groups:        groups.NewGroupHandler(c.Groups),
		Messages:      messages.NewMessageHandler(c.Messaging),
		Notifications: notifications.NewNotificationHandler(c.Notifications),
		Moderation:    moderationHandlers.NewModerationHandler(c.Moderation, c.Audit),
		System:        system.NewSystemHandler(c.DB, c.RedisClient, c.QueueClient),
	}
}

// SetupRouter builds the gin engine with its middleware chain and routes.
func SetupRouter(c *AppContainer) *gin.Engine {
	if mode := c.Config.Server.Mode; mode != "" {
		gin.SetMode(mode)
	}

	router := gin.New()
	router.Use(
		Recovery(c.Logger),
		Tracing(),
		middleware.RequestIDMiddleware(),
		RequestLogger(c.Logger),
		CORS(c.Config.Server.CORSOrigins),
		metrics.PrometheusMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if c.Config.Server.EnableDocs {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	RegisterRoutes(router, c, c.InitHandlers())
	return router
}
