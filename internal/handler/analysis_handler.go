package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"xuanji-chat-go/internal/middleware"
	"xuanji-chat-go/internal/service"
	"xuanji-chat-go/pkg/log"
)

// AnalysisHandler 提供分析历史查询。
type AnalysisHandler struct {
	historyService service.AnalysisHistoryService
}

// NewAnalysisHandler 创建一个新的 AnalysisHandler。
func NewAnalysisHandler(historyService service.AnalysisHistoryService) *AnalysisHandler {
	return &AnalysisHandler{historyService: historyService}
}

// ListAnalyses 分页返回当前用户的分析记录，page 从 1 开始。
// 带 sessionId 参数时不分页，返回该会话内的全部记录。
func (h *AnalysisHandler) ListAnalyses(c *gin.Context) {
	if sessionID := c.Query("sessionId"); sessionID != "" {
		records, err := h.historyService.ListBySession(middleware.UserID(c), sessionID)
		if err != nil {
			log.Errorf("ListAnalyses 按会话查询失败: %v", err)
			fail(c, http.StatusInternalServerError, "获取分析历史失败", nil)
			return
		}
		success(c, records)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := h.historyService.ListByUser(middleware.UserID(c), page, size)
	if err != nil {
		log.Errorf("ListAnalyses 失败: %v", err)
		fail(c, http.StatusInternalServerError, "获取分析历史失败", nil)
		return
	}
	success(c, res)
}
