// Package token 提供上传会话令牌的签发与验证。
// 会话 ID 本身是 UUID，但只有持有签名令牌的一方才能用它发起匹配，
// 避免会话句柄被枚举或冒用。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionManager 负责管理会话令牌的生成和验证。
type SessionManager struct {
	secretKey  []byte        // 用于签名和验证 token 的密钥
	sessionDur time.Duration // 会话令牌的有效期
}

// SessionClaims 定义了会话令牌中携带的数据。
// 嵌入 jwt.RegisteredClaims 以包含标准声明（如过期时间）。
type SessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// NewSessionManager 创建一个新的 SessionManager 实例。
// secret: 签名密钥；expireHours: 会话令牌过期时间（小时）。
func NewSessionManager(secret string, expireHours int) *SessionManager {
	return &SessionManager{
		secretKey:  []byte(secret),
		sessionDur: time.Duration(expireHours) * time.Hour,
	}
}

// Issue 为指定的会话 ID 生成一个新的令牌。
func (m *SessionManager) Issue(userID string) (string, error) {
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.sessionDur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify 验证令牌并返回其中的会话 ID。
func (m *SessionManager) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid session token claims")
	}
	if claims.UserID == "" {
		return "", errors.New("session token carries no user id")
	}
	return claims.UserID, nil
}
