package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health 是存活探针，仅确认进程可以响应请求，不探测下游依赖。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
