package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"xuanji-chat-go/internal/middleware"
	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/internal/service"
)

// ConversationHandler 处理对话相关的 REST 请求。
type ConversationHandler struct {
	sessionService service.SessionService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(sessionService service.SessionService) *ConversationHandler {
	return &ConversationHandler{sessionService: sessionService}
}

// SendMessageRequest 定义了发送消息 API 的请求体结构。
type SendMessageRequest struct {
	SessionID   string            `json:"sessionId" binding:"required"`
	Message     string            `json:"message" binding:"required"`
	Locale      string            `json:"locale"`
	Attachments []string          `json:"attachments"`
	Metadata    map[string]string `json:"metadata"`
}

// SendMessage 处理一轮用户消息。
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载：sessionId 与 message 不能为空", nil)
		return
	}

	res, err := h.sessionService.HandleUserMessage(c.Request.Context(), service.UserMessageRequest{
		SessionID:   req.SessionID,
		UserID:      middleware.UserID(c),
		Message:     req.Message,
		Locale:      req.Locale,
		Attachments: req.Attachments,
		Metadata:    req.Metadata,
		TraceID:     middleware.TraceID(c),
	})
	if err != nil {
		writeError(c, "SendMessage", err)
		return
	}
	success(c, res)
}

// ManualInputRequest 定义了手动输入 API 的请求体结构。
type ManualInputRequest struct {
	SessionID string                    `json:"sessionId" binding:"required"`
	Input     model.ManualInputEnvelope `json:"input"`
}

// SubmitManualInput 提交手动输入（四柱、朝向度数或罗盘读数）。
func (h *ConversationHandler) SubmitManualInput(c *gin.Context) {
	var req ManualInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载：sessionId 不能为空", nil)
		return
	}

	res, err := h.sessionService.SubmitManualInput(c.Request.Context(), service.ManualInputRequest{
		SessionID: req.SessionID,
		UserID:    middleware.UserID(c),
		Input:     req.Input,
		TraceID:   middleware.TraceID(c),
	})
	if err != nil {
		writeError(c, "SubmitManualInput", err)
		return
	}
	success(c, res)
}

// GetSession 返回会话当前状态。
func (h *ConversationHandler) GetSession(c *gin.Context) {
	state, err := h.sessionService.GetSession(c.Request.Context(), c.Query("sessionId"), middleware.UserID(c))
	if err != nil {
		writeError(c, "GetSession", err)
		return
	}
	success(c, state)
}

// ResetSession 删除会话。
func (h *ConversationHandler) ResetSession(c *gin.Context) {
	if err := h.sessionService.ResetSession(c.Request.Context(), c.Query("sessionId"), middleware.UserID(c)); err != nil {
		writeError(c, "ResetSession", err)
		return
	}
	success(c, nil)
}
