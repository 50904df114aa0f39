package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"xuanji-chat-go/internal/middleware"
	"xuanji-chat-go/internal/model"
	"xuanji-chat-go/internal/service"
	"xuanji-chat-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// 客户端帧类型
const (
	frameMessage     = "message"
	frameManualInput = "manual_input"
	frameReset       = "reset"
)

// clientFrame 是客户端发来的一帧。非 JSON 文本按普通消息处理。
type clientFrame struct {
	Type    string                    `json:"type"`
	Message string                    `json:"message,omitempty"`
	Locale  string                    `json:"locale,omitempty"`
	Input   model.ManualInputEnvelope `json:"input"`
}

// ChatHandler 负责处理 WebSocket 对话连接，每个连接绑定一个会话。
type ChatHandler struct {
	sessionService service.SessionService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(sessionService service.SessionService) *ChatHandler {
	return &ChatHandler{sessionService: sessionService}
}

// Handle 处理一个传入的 WebSocket 连接，逐帧执行对话回合。
func (h *ChatHandler) Handle(c *gin.Context) {
	sessionID := c.Param("sessionId")
	userID := middleware.UserID(c)
	traceID := middleware.TraceID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infow("WebSocket 连接已建立", "sessionId", sessionID, "userId", userID, "traceId", traceID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		frame := parseFrame(raw)
		ctx := c.Request.Context()
		var data interface{}
		switch frame.Type {
		case frameReset:
			err = h.sessionService.ResetSession(ctx, sessionID, userID)
		case frameManualInput:
			data, err = h.sessionService.SubmitManualInput(ctx, service.ManualInputRequest{
				SessionID: sessionID, UserID: userID, Input: frame.Input, TraceID: traceID,
			})
		default:
			frame.Type = frameMessage
			data, err = h.sessionService.HandleUserMessage(ctx, service.UserMessageRequest{
				SessionID: sessionID, UserID: userID, Message: frame.Message, Locale: frame.Locale, TraceID: traceID,
			})
		}

		if err != nil {
			status, message, detail := statusFor(err)
			log.Warnw("WebSocket 回合处理失败", "sessionId", sessionID, "type", frame.Type, "error", err)
			writeFrame(conn, gin.H{"type": "error", "code": status, "message": message, "data": detail})
		} else {
			writeFrame(conn, gin.H{"type": frame.Type, "data": data})
		}
		// 每个回合结束都发送 completion 通知，前端据此结束等待状态
		writeFrame(conn, gin.H{
			"type":      "completion",
			"status":    "finished",
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

func parseFrame(raw []byte) clientFrame {
	var frame clientFrame
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &frame); err == nil && frame.Type != "" {
			return frame
		}
	}
	return clientFrame{Type: frameMessage, Message: string(raw)}
}

func writeFrame(conn *websocket.Conn, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("序列化 WebSocket 帧失败: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 帧失败: %v", err)
	}
}
