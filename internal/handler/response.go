// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"xuanji-chat-go/internal/degradation"
	"xuanji-chat-go/internal/repository"
	"xuanji-chat-go/internal/service"
	"xuanji-chat-go/pkg/log"
)

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func fail(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

// statusFor 把业务错误映射为 HTTP 状态码与提示。
func statusFor(err error) (int, string, interface{}) {
	var verr *degradation.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr.Error(), gin.H{"field": verr.Field, "reason": verr.Reason}
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, err.Error(), nil
	case errors.Is(err, repository.ErrPersistence):
		return http.StatusInternalServerError, "会话存储暂时不可用，请稍后重试", nil
	}
	return http.StatusInternalServerError, "服务器内部错误", nil
}

func writeError(c *gin.Context, op string, err error) {
	status, message, data := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s 失败: %v", op, err)
	} else {
		log.Warnf("%s 失败: %v", op, err)
	}
	fail(c, status, message, data)
}
