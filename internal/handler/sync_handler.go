package handler

import (
	"net/http"

	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/internal/service"
	"ecommerce-search-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SyncHandler 结构体定义了商品同步相关的处理器。
type SyncHandler struct {
	syncService service.SyncService
}

// NewSyncHandler 创建一个新的 SyncHandler 实例。
func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// Sync 是处理商品目录同步请求的 Gin 处理函数。
func (h *SyncHandler) Sync(c *gin.Context) {
	var req model.SyncRequest
	// 请求体可为空，等价于默认参数
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Warnf("[SyncHandler] 请求体解析失败: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
			return
		}
	}
	log.Infof("[SyncHandler] 收到同步请求, force_reindex: %v", req.ForceReindex)

	resp, err := h.syncService.Sync(c.Request.Context(), req.ForceReindex)
	if err != nil {
		log.Errorf("[SyncHandler] 同步服务返回错误: %v", err)
		respondError(c, err)
		return
	}

	log.Infof("[SyncHandler] 同步完成, 索引 %d 条, 失败 %d 条", resp.ProductsIndexed, resp.Errors)
	c.JSON(http.StatusOK, resp)
}
