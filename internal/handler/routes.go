package handler

import (
	"github.com/gin-gonic/gin"

	"xuanji-chat-go/internal/middleware"
	"xuanji-chat-go/internal/service"
)

// RegisterRoutes 在 /api/v1/chat 下注册全部对话接口。historyService 为 nil 时不注册分析历史接口。
func RegisterRoutes(r *gin.Engine, sessionService service.SessionService, historyService service.AnalysisHistoryService) {
	conversation := NewConversationHandler(sessionService)

	chat := r.Group("/api/v1/chat")
	chat.Use(middleware.UserIdentity())
	{
		chat.POST("/message", conversation.SendMessage)
		chat.POST("/manual-input", conversation.SubmitManualInput)
		chat.GET("/session", conversation.GetSession)
		chat.DELETE("/session", conversation.ResetSession)
		chat.GET("/ws/:sessionId", NewChatHandler(sessionService).Handle)

		if historyService != nil {
			chat.GET("/analyses", NewAnalysisHandler(historyService).ListAnalyses)
		}
	}
}
