package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telecare_rtc/internal/api/handlers"
	"telecare_rtc/internal/middleware"
	"telecare_rtc/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	conversationHandler := handlers.NewConversationHandler(services.Chat)
	consultationHandler := handlers.NewConsultationHandler(services.Consultation)
	notificationHandler := handlers.NewNotificationHandler(services.Notification)
	wsHandler := handlers.NewWebSocketHandler(services.Hub, services.User)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// WebSocket 連接點，認證在 handler 內完成（token 可由查詢參數帶入）
		api.GET("/ws", wsHandler.HandleWebSocket)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware())
	{
		// 對話相關
		conversations := authorized.Group("/conversations")
		{
			conversations.GET("", conversationHandler.ListConversations)
			conversations.POST("", conversationHandler.CreateConversation)
			conversations.GET("/:id/messages", conversationHandler.GetMessages)
		}

		// 視訊諮詢場次相關
		consultations := authorized.Group("/consultations")
		{
			consultations.POST("", consultationHandler.ScheduleSession)
			consultations.GET("/:id", consultationHandler.GetSession)
		}

		// 通知列表
		authorized.GET("/notifications", notificationHandler.ListNotifications)
	}
}
