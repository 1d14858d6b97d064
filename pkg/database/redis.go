// Package database 提供数据存储客户端的初始化。
package database

import (
	"context"

	"ecommerce-search-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// NewRedis 初始化 Redis 客户端连接并验证连通性。
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("Redis client connected successfully")
	return client, nil
}
