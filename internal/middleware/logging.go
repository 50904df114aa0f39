// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"xuanji-chat-go/pkg/log"
)

const (
	// TraceHeader 是请求链路 ID 的请求/响应头。
	TraceHeader = "X-Trace-ID"
	// TraceIDKey 是 trace id 在 gin.Context 中的键。
	TraceIDKey = "traceId"
)

// 请求体或响应体超过该长度时日志中只记录前缀
const maxLoggedBody = 2048

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 同时写入 gin.ResponseWriter 和内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger 为每个请求分配或沿用 X-Trace-ID，并记录请求与响应日志。
// WebSocket 升级请求不捕获响应体。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(TraceIDKey, traceID)
		c.Header(TraceHeader, traceID)

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		// 将请求体放回，后续处理函数仍可读取
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		var blw *bodyLogWriter
		if c.GetHeader("Upgrade") == "" {
			blw = &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
			c.Writer = blw
		}

		c.Next()

		responseBody := ""
		if blw != nil {
			responseBody = truncate(blw.body.String())
		}
		log.Infow("HTTP Request Log",
			"traceId", traceID,
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", truncate(string(requestBody)),
			"responseBody", responseBody,
		)
	}
}

// TraceID 返回 RequestLogger 为当前请求分配的 trace id。
func TraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}
