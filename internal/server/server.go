package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/config"
	"github.com/pubshark/backend/internal/database"
	"github.com/pubshark/backend/internal/handlers"
	"github.com/pubshark/backend/internal/middleware"
)

type Server struct {
	cfg     config.HTTPConfig
	db      database.Service
	handler *handlers.Handler
	authn   *middleware.Authenticator
	policy  *auth.Policy
	log     *zap.Logger
}

func New(cfg config.HTTPConfig, db database.Service, handler *handlers.Handler, authn *middleware.Authenticator, policy *auth.Policy, log *zap.Logger) *Server {
	return &Server{cfg: cfg, db: db, handler: handler, authn: authn, policy: policy, log: log}
}

// HTTPServer builds the configured http.Server around the router.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  s.cfg.IdleTimeout,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(s.log), middleware.Recovery(s.log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})

	api := r.Group("/api")
	{
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)

		api.POST("/newsletter/subscribe", s.handler.Newsletter.Subscribe)
		api.GET("/newsletter/confirm", s.handler.Newsletter.Confirm)

		// Public reads; a valid token widens what is visible
		public := api.Group("", s.authn.Optional())
		{
			public.GET("/articles", s.handler.Article.GetArticles)
			public.GET("/articles/:id", s.handler.Article.GetArticle)
			public.GET("/articles/:id/comments", s.handler.Comment.GetComments)
		}

		// Protected routes (authentication required)
		protected := api.Group("", s.authn.Required())
		{
			protected.GET("/me", s.handler.Auth.GetMe)
			protected.GET("/me/articles", s.handler.Article.GetMyArticles)

			protected.POST("/articles", s.handler.Article.CreateArticle)
			protected.PATCH("/articles/:id", s.handler.Article.UpdateArticle)
			protected.PATCH("/articles/:id/review", s.handler.Article.ReviewArticle)
			protected.POST("/articles/:id/resubmit", s.handler.Article.ResubmitArticle)
			protected.DELETE("/articles/:id", s.handler.Article.DeleteArticle)
			protected.POST("/articles/:id/like", s.handler.Article.LikeArticle)

			protected.POST("/articles/:id/comments", s.handler.Comment.CreateComment)
			protected.PUT("/comments/:commentId", s.handler.Comment.UpdateComment)
			protected.DELETE("/comments/:commentId", s.handler.Comment.DeleteComment)
			protected.POST("/comments/:commentId/like", s.handler.Comment.LikeComment)
			protected.POST("/comments/:commentId/dislike", s.handler.Comment.DislikeComment)

			protected.GET("/notifications", s.handler.Notification.GetNotifications)
			protected.PATCH("/notifications/:id/read", s.handler.Notification.MarkRead)
			protected.DELETE("/notifications", s.handler.Notification.ClearAll)
		}

		admin := api.Group("/admin", s.authn.Required())
		{
			admin.DELETE("/notifications",
				middleware.Authorize(s.policy, auth.ObjNotification, auth.ActPurge),
				s.handler.Notification.Purge)
			admin.GET("/users",
				middleware.Authorize(s.policy, auth.ObjUser, auth.ActManage),
				s.handler.User.GetUsers)
			admin.PATCH("/users/:id/role",
				middleware.Authorize(s.policy, auth.ObjUser, auth.ActManage),
				s.handler.User.UpdateUserRole)
		}
	}

	return r
}
