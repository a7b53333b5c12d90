package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pmatch-go/internal/model"
	"pmatch-go/internal/service"
)

// MatchHandler 负责处理研究者匹配相关的 API 请求。
type MatchHandler struct {
	matchService service.MatchService
	defaultTopK  int
}

// NewMatchHandler 创建一个新的 MatchHandler 实例。
func NewMatchHandler(matchService service.MatchService, defaultTopK int) *MatchHandler {
	return &MatchHandler{matchService: matchService, defaultTopK: defaultTopK}
}

type matchTextRequest struct {
	Query       string `json:"query"`
	TopK        int    `json:"topK"`
	Institution string `json:"institution"`
}

type matchUserRequest struct {
	TopK        int    `json:"topK"`
	Institution string `json:"institution"`
}

// MatchByText 处理按自由文本匹配研究者的请求。
func (h *MatchHandler) MatchByText(c *gin.Context) {
	var req matchTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "error": "请求体格式错误"})
		return
	}

	if req.TopK == 0 {
		req.TopK = h.defaultTopK
	}
	hits, err := h.matchService.MatchByText(c.Request.Context(), req.Query, req.TopK,
		model.SearchFilters{Institution: req.Institution})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "匹配成功", hits)
}

// MatchByUser 处理按当前会话用户文档匹配研究者的请求。
// 用户 ID 由会话中间件写入上下文。
func (h *MatchHandler) MatchByUser(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "error": "缺少有效会话"})
		return
	}

	var req matchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "error": "请求体格式错误"})
		return
	}

	if req.TopK == 0 {
		req.TopK = h.defaultTopK
	}
	hits, err := h.matchService.MatchByUser(c.Request.Context(), userID, req.TopK,
		model.SearchFilters{Institution: req.Institution})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "匹配成功", hits)
}
