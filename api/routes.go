package api

import (
	"communityos/internal/auth"
	"communityos/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the public, tenant-gated and moderator routes.
func RegisterRoutes(router *gin.Engine, c *AppContainer, h *Handlers) {
	router.GET("/", h.System.Root)
	router.GET("/api/health", h.System.Health)

	gate := middleware.TenantGate(auth.NewJWTResolver(c.JWTService), middleware.GateConfig{
		ExemptPaths:       c.Config.Tenancy.ExemptPaths,
		PlatformOwnerRole: c.Config.Tenancy.PlatformOwnerRole,
	}, c.Logger)

	v1 := router.Group("/api/v1")
	registerAuthRoutes(v1, h, gate)

	protected := v1.Group("")
	protected.Use(gate, middleware.RateLimitMiddleware(c.RateLimiter))
	registerMemberRoutes(protected, h)
	registerSearchRoutes(protected, h)
	registerPostRoutes(protected, h)
	registerGroupRoutes(protected, h)
	registerMessageRoutes(protected, h)
	registerNotificationRoutes(protected, h)
	protected.POST("/reports", h.Moderation.CreateReport)
	protected.GET("/debug/tenant", h.System.DebugTenant)

	mod := protected.Group("/mod")
	mod.Use(auth.RequireModerator())
	registerModerationRoutes(mod, h)
}

// registerAuthRoutes mounts sign-up and sign-in, which run before any tenant
// is known, and logout, which needs the caller's token.
func registerAuthRoutes(v1 *gin.RouterGroup, h *Handlers, gate gin.HandlerFunc) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", gate, h.Auth.Logout)
	}
}

func registerMemberRoutes(g *gin.RouterGroup, h *Handlers) {
	g.GET("/me", h.Members.Me)
	g.PUT("/me/profile", h.Members.UpdateProfile)
	g.GET("/me/bookmarks", h.Posts.Bookmarks)

	members := g.Group("/members")
	{
		members.GET("", h.Members.List)
		members.GET("/:id", h.Members.Get)
	}
}

func registerSearchRoutes(g *gin.RouterGroup, h *Handlers) {
	search := g.Group("/search")
	{
		search.GET("/posts", h.Search.Posts)
		search.GET("/members", h.Search.Members)
		search.GET("/groups", h.Search.Groups)
	}
}

func registerPostRoutes(g *gin.RouterGroup, h *Handlers) {
	posts := g.Group("/posts")
	{
		posts.GET("", h.Posts.Feed)
		posts.POST("", h.Posts.Create)
		posts.GET("/:id", h.Posts.Get)
		posts.PUT("/:id", h.Posts.Update)
		posts.DELETE("/:id", h.Posts.Delete)
		posts.POST("/:id/images", h.Posts.AddImages)
		posts.POST("/:id/like", h.Posts.Like)
		posts.DELETE("/:id/like", h.Posts.Unlike)
		posts.POST("/:id/bookmark", h.Posts.Bookmark)
		posts.DELETE("/:id/bookmark", h.Posts.Unbookmark)
		posts.GET("/:id/comments", h.Posts.ListComments)
		posts.POST("/:id/comments", h.Posts.CreateComment)
		posts.GET("/:id/poll", h.Polls.Get)
		posts.POST("/:id/poll", h.Polls.Create)
	}

	comments := g.Group("/comments")
	{
		comments.PUT("/:id", h.Posts.UpdateComment)
		comments.DELETE("/:id", h.Posts.DeleteComment)
	}

	g.POST("/polls/:id/vote", h.Polls.Vote)
}

func registerGroupRoutes(g *gin.RouterGroup, h *Handlers) {
	groups := g.Group("/groups")
	{
		groups.GET("", h.Groups.List)
		groups.POST("", h.Groups.Create)
		groups.GET("/:id", h.Groups.Get)
		groups.GET("/:id/posts", h.Groups.Posts)
		groups.POST("/:id/join", h.Groups.Join)
		groups.POST("/:id/leave", h.Groups.Leave)
	}
}

func registerMessageRoutes(g *gin.RouterGroup, h *Handlers) {
	conversations := g.Group("/conversations")
	{
		conversations.GET("", h.Messages.List)
		conversations.POST("", h.Messages.Start)
		conversations.GET("/:id", h.Messages.Get)
		conversations.GET("/:id/messages", h.Messages.Messages)
		conversations.POST("/:id/messages", h.Messages.Send)
		conversations.POST("/:id/read", h.Messages.MarkRead)
	}
}

func registerNotificationRoutes(g *gin.RouterGroup, h *Handlers) {
	notifications := g.Group("/notifications")
	{
		notifications.GET("", h.Notifications.List)
		notifications.GET("/unread-count", h.Notifications.UnreadCount)
		notifications.POST("/:id/read", h.Notifications.MarkRead)
	}
}

func registerModerationRoutes(mod *gin.RouterGroup, h *Handlers) {
	mod.GET("/reports", h.Moderation.ListReports)
	mod.POST("/reports/:id/action", h.Moderation.ActOnReport)
	mod.POST("/users/:id/suspend", h.Moderation.Suspend)
	mod.POST("/users/:id/ban", h.Moderation.Ban)
	mod.GET("/audit", h.Moderation.AuditLog)
}
