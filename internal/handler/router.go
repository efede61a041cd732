package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/news-api/internal/middleware"
	"github.com/noah-isme/news-api/internal/service"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes. Digest may be
// nil when the weekly digest is disabled.
type Handlers struct {
	Auth     *AuthHandler
	Users    *UserHandler
	News     *NewsHandler
	Comments *CommentHandler
	Metrics  *MetricsHandler
	Digest   *DigestHandler
}

// RegisterRoutes mounts the observability endpoints on r and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, access *service.AccessService) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	r.GET("/metrics/export", h.Metrics.Export)

	authRequired := middleware.Authenticate(access)
	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/github", h.Auth.GitHubLogin)
	auth.GET("/github/callback", h.Auth.GitHubCallback)
	auth.GET("/sessions", authRequired, h.Auth.Sessions)
	auth.GET("/me", authRequired, h.Auth.Me)

	users := api.Group("/users", authRequired)
	users.GET("", h.Users.List)
	users.GET("/:id", h.Users.Get)

	news := api.Group("/news")
	news.GET("", h.News.List)
	news.GET("/:id", h.News.Get)
	news.POST("", authRequired, middleware.RequireVerifiedAuthor(access), h.News.Create)
	news.PUT("/:id", authRequired, h.News.Update)
	news.DELETE("/:id", authRequired, h.News.Delete)
	news.GET("/:id/comments", h.Comments.ListByNews)
	news.POST("/:id/comments", authRequired, h.Comments.Create)

	comments := api.Group("/comments")
	comments.GET("", h.Comments.List)
	comments.PUT("/:id", authRequired, h.Comments.Update)
	comments.DELETE("/:id", authRequired, h.Comments.Delete)

	if h.Digest != nil {
		api.GET("/admin/digests/latest", authRequired, middleware.RequireAdmin(access), h.Digest.Latest)
		api.GET("/digests/download", h.Digest.Download)
	}
}
