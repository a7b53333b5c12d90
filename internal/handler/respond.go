// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pmatch-go/internal/apperr"
	"pmatch-go/pkg/log"
)

// respondError 将业务错误映射为统一的 HTTP 响应。
// 错误附带的细节（如可用机构列表）会平铺进响应体。
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindEmptyInput, apperr.KindInvalidArgument, apperr.KindInvalidFilter:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindNoEmbedding:
		status = http.StatusConflict
	case apperr.KindDegenerateWeights:
		status = http.StatusUnprocessableEntity
	case apperr.KindEmbeddingUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Errorf("[Handler] 请求处理失败: %v", err)
	}

	body := gin.H{
		"code":  status,
		"error": err.Error(),
	}
	for k, v := range apperr.DetailOf(err) {
		body[k] = v
	}
	c.JSON(status, body)
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": message,
		"data":    data,
	})
}
