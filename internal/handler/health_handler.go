package handler

import (
	"net/http"

	"ecommerce-search-go/internal/service"
	"ecommerce-search-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// HealthHandler 结构体定义了健康检查与统计相关的处理器。
type HealthHandler struct {
	healthService service.HealthService
	statsService  service.StatsService
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
func NewHealthHandler(healthService service.HealthService, statsService service.StatsService) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
		statsService:  statsService,
	}
}

// Health 是处理健康检查请求的 Gin 处理函数。
// 无论依赖状态如何都返回 200，结论在响应体中。
func (h *HealthHandler) Health(c *gin.Context) {
	resp := h.healthService.Check(c.Request.Context())
	c.JSON(http.StatusOK, resp)
}

// Categories 是处理分类列表请求的 Gin 处理函数。
func (h *HealthHandler) Categories(c *gin.Context) {
	resp, err := h.statsService.Categories(c.Request.Context())
	if err != nil {
		log.Errorf("[HealthHandler] 查询分类失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Stats 是处理索引统计请求的 Gin 处理函数。
func (h *HealthHandler) Stats(c *gin.Context) {
	resp, err := h.statsService.Stats(c.Request.Context())
	if err != nil {
		log.Errorf("[HealthHandler] 查询统计失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
