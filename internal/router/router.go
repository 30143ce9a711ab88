package router

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"
	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/gateway"
	"github.com/parley-im/parley/internal/handler"
	"github.com/parley-im/parley/internal/middleware"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
}

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, handlers *Handlers, wsServer *gateway.WsServer) {
	cfg := config.GlobalConfig

	h.Use(middleware.CORS())

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	// Conversation directory (auth required)
	convGroup := h.Group("/conversations", middleware.JWTAuth())
	{
		convGroup.POST("", handlers.Conversation.CreateConversation)
		convGroup.GET("", handlers.Conversation.ListConversations)
		convGroup.GET("/:conversation_id", handlers.Conversation.GetConversation)
		convGroup.PUT("/:conversation_id", handlers.Conversation.UpdateSettings)
		convGroup.GET("/:conversation_id/participants", handlers.Conversation.GetRoster)
		convGroup.POST("/:conversation_id/participants", handlers.Conversation.AddParticipant)
		convGroup.DELETE("/:conversation_id/participants/:user_id", handlers.Conversation.RemoveParticipant)
		convGroup.POST("/:conversation_id/leave", handlers.Conversation.LeaveConversation)
		convGroup.POST("/:conversation_id/read", handlers.Conversation.MarkRead)
		convGroup.POST("/:conversation_id/messages", handlers.Message.SendMessage)
		convGroup.GET("/:conversation_id/messages", handlers.Message.SyncMessages)
	}

	// Message operations (auth required)
	msgGroup := h.Group("/messages", middleware.JWTAuth())
	{
		msgGroup.PUT("/:message_id", handlers.Message.EditMessage)
		msgGroup.DELETE("/:message_id", handlers.Message.DeleteMessage)
		msgGroup.POST("/:message_id/reactions", handlers.Message.AddReaction)
		msgGroup.DELETE("/:message_id/reactions", handlers.Message.RemoveReaction)
		msgGroup.GET("/:message_id/receipts", handlers.Message.ListReceipts)
	}

	// WebSocket route using hertz-contrib/websocket with origin validation
	allowedOrigins := cfg.Server.AllowedOrigins
	upgrader := &websocket.HertzUpgrader{
		CheckOrigin: func(ctx *app.RequestContext) bool {
			return checkOrigin(ctx, allowedOrigins)
		},
	}

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleHertzConnection(ctx, c, upgrader)
	})
}

// checkOrigin validates the Origin header against allowed origins
func checkOrigin(ctx *app.RequestContext, allowedOrigins []string) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))

	// No origin header: same-origin request or non-browser client
	if origin == "" {
		return true
	}

	if len(allowedOrigins) == 0 {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}

	return false
}
