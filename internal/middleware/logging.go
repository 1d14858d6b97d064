// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"time"

	"ecommerce-search-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// RequestLogger 是一个 Gin 中间件，用于记录请求日志。
// /metrics 的抓取请求不记录，避免日志被采集器刷屏。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		path := c.Request.URL.Path
		if path == "/metrics" {
			return
		}

		latency := time.Since(startTime)
		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
		)
	}
}
