package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pmatch-go/internal/service"
	"pmatch-go/pkg/log"
)

// 上传文档大小上限
const maxUploadSize = 20 << 20

// UploadHandler 负责处理用户文档上传的 API 请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadDocument 处理 multipart 文档上传。
// 已有会话的用户携带 token 时复用原有用户 ID，文档覆盖旧内容。
func (h *UploadHandler) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "error": "缺少上传文件"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"code":  http.StatusRequestEntityTooLarge,
			"error": "文件超出大小限制",
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		log.Errorf("[UploadHandler] 打开上传文件失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "error": "读取上传文件失败"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Errorf("[UploadHandler] 读取上传文件失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "error": "读取上传文件失败"})
		return
	}

	// 会话中间件是可选的：未登录用户开启新会话
	userID := c.GetString("userID")
	contentType := fileHeader.Header.Get("Content-Type")

	result, err := h.uploadService.ProcessDocument(c.Request.Context(), userID, fileHeader.Filename, contentType, data)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "文档处理完成", result)
}
