package handler

import (
	"chat_backend/internal/config"
	"chat_backend/internal/middleware"
	"chat_backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

func NewRouter(
	handlers *Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Chat.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("/auth")
		{
			public.POST("/register", rateLimitMiddleware.Limit(), handlers.Auth.Register)
			public.POST("/login", rateLimitMiddleware.Limit(), handlers.Auth.Login)
			public.POST("/refresh", handlers.Auth.RefreshToken)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			protected.GET("/users/me", handlers.User.GetMe)

			// живые комнаты
			protected.GET("/rooms/:id/messages", handlers.Message.RoomMessages)
			protected.GET("/rooms/:id/unread", handlers.Message.Unread)
			protected.GET("/messages/:id/reads", handlers.Message.Reads)
			protected.POST("/messages/:id/read", handlers.Message.MarkRead)

			groups := protected.Group("/group-rooms")
			{
				groups.POST("", handlers.GroupRoom.Create)
				groups.GET("", handlers.GroupRoom.ListMine)
				groups.GET("/search", handlers.GroupRoom.Search)
				groups.PUT("/:id", handlers.GroupRoom.Update)
				groups.DELETE("/:id", handlers.GroupRoom.Delete)
				groups.GET("/:id/members", handlers.GroupRoom.Members)
				groups.POST("/:id/members", handlers.GroupRoom.AddMember)
				groups.DELETE("/:id/members/:userId", handlers.GroupRoom.RemoveMember)
				groups.POST("/:id/members/:userId/mute", handlers.GroupRoom.MuteMember)
				groups.POST("/:id/members/:userId/promote", handlers.GroupRoom.PromoteMember)
				groups.POST("/:id/leave", handlers.GroupRoom.Leave)
				groups.GET("/:id/messages", handlers.GroupRoom.Messages)
				groups.POST("/:id/messages", handlers.GroupRoom.SendMessage)
				groups.POST("/:id/read", handlers.GroupRoom.MarkAsRead)
			}
		}
	}

	router.GET("/ws/chat", handlers.WebSocket.HandleChat)

	return router
}
