package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"pmatch-go/pkg/log"
)

// NewRedis 建立 Redis 连接并验证连通性，返回可注入的 *redis.Client。
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis client connected successfully")
	return rdb, nil
}
