package handler

import (
	"net/http"
	"time"

	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/internal/metrics"
	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/internal/service"
	"ecommerce-search-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search 是处理语义搜索请求的 Gin 处理函数。
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SearchHandler] 请求体解析失败: %v", err)
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	log.Infof("[SearchHandler] 收到搜索请求, query: '%s', top_k: %d", req.Query, req.TopK)

	start := time.Now()
	resp, err := h.searchService.Search(c.Request.Context(), req)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Errorf("[SearchHandler] 搜索服务返回错误: %v", err)
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		respondError(c, err)
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	log.Infof("[SearchHandler] 搜索成功, query: '%s', 返回 %d 条结果", resp.Query, len(resp.Results))
	c.JSON(http.StatusOK, resp)
}

// respondError 将服务层错误映射为 HTTP 响应。
// 内部错误不向客户端透出细节。
func respondError(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errs.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errs.KindServiceUnavailable, errs.KindModelUnavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部服务错误"})
	}
}
