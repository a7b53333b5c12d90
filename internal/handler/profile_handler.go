package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pmatch-go/internal/model"
	"pmatch-go/internal/service"
)

// ProfileHandler 负责处理画像摄入与查询相关的 API 请求。
type ProfileHandler struct {
	ingestService service.IngestService
	searchService service.SearchService
}

// NewProfileHandler 创建一个新的 ProfileHandler 实例。
func NewProfileHandler(ingestService service.IngestService, searchService service.SearchService) *ProfileHandler {
	return &ProfileHandler{
		ingestService: ingestService,
		searchService: searchService,
	}
}

// IngestProfile 处理单条画像摄入的请求。
func (h *ProfileHandler) IngestProfile(c *gin.Context) {
	var req model.IngestProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "error": "请求体格式错误"})
		return
	}

	id, err := h.ingestService.IngestProfile(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "画像已摄入", gin.H{"profileId": id})
}

// ListInstitutions 返回当前可用作过滤条件的机构列表。
func (h *ProfileHandler) ListInstitutions(c *gin.Context) {
	institutions, err := h.searchService.ListInstitutions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "获取机构列表成功", institutions)
}
