package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pmatch-go/pkg/token"
)

const bearerPrefix = "Bearer "

// SessionAuth 创建一个 Gin 中间件，用于校验上传会话 token。
// 校验通过后将用户 ID 写入上下文，供后续处理函数读取。
func SessionAuth(sessionManager *token.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含有效的授权头"})
			return
		}

		userID, err := sessionManager.Verify(strings.TrimPrefix(authHeader, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的会话"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// OptionalSessionAuth 与 SessionAuth 类似，但缺少或无效的 token 不会中止请求，
// 用于首次上传（此时尚无会话）。
func OptionalSessionAuth(sessionManager *token.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, bearerPrefix) {
			if userID, err := sessionManager.Verify(strings.TrimPrefix(authHeader, bearerPrefix)); err == nil {
				c.Set("userID", userID)
			}
		}
		c.Next()
	}
}
