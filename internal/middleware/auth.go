package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserHeader 携带调用方已认证的用户 ID，由上游网关写入。
	UserHeader = "X-User-ID"
	// UserIDKey 是用户 ID 在 gin.Context 中的键。
	UserIDKey = "userId"
)

// UserIdentity 从 X-User-ID 请求头读取用户 ID 并存入上下文。
// 浏览器建立 WebSocket 时无法自定义请求头，此时退回到 userId 查询参数。
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" {
			userID = strings.TrimSpace(c.Query("userId"))
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "缺少用户标识", "data": nil})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID 返回 UserIdentity 写入的用户 ID。
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
