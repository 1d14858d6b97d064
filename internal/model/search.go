package model

import (
	"strings"
	"time"

	"ecommerce-search-go/internal/errs"
)

// top_k 的边界值与默认值。
const (
	MinTopK     = 1
	MaxTopK     = 50
	DefaultTopK = 5
)

// 相关性标签的固定阈值，由归一化后的得分纯函数推导。
const (
	RelevanceHigh   = "high"
	RelevanceMedium = "medium"
	RelevanceLow    = "low"
)

// SearchRequest 语义搜索请求。
type SearchRequest struct {
	Query             string   `json:"query"`
	TopK              int      `json:"top_k"`
	Category          string   `json:"category,omitempty"`
	PriceMin          *float64 `json:"price_min,omitempty"`
	PriceMax          *float64 `json:"price_max,omitempty"`
	IncludeOutOfStock bool     `json:"include_out_of_stock"`
}

// Normalize 填充缺省值。TopK 为 0 视为未提供。
func (r *SearchRequest) Normalize() {
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	r.Query = strings.TrimSpace(r.Query)
}

// Validate 在任何外部调用之前校验请求参数。
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return errs.New(errs.KindValidation, "query 不能为空")
	}
	if r.TopK < MinTopK || r.TopK > MaxTopK {
		return errs.Newf(errs.KindValidation, "top_k 必须在 [%d, %d] 范围内", MinTopK, MaxTopK)
	}
	if r.PriceMin != nil && *r.PriceMin < 0 {
		return errs.New(errs.KindValidation, "price_min 不能为负数")
	}
	if r.PriceMax != nil && *r.PriceMax <= 0 {
		return errs.New(errs.KindValidation, "price_max 必须大于 0")
	}
	if r.PriceMin != nil && r.PriceMax != nil && *r.PriceMax <= *r.PriceMin {
		return errs.New(errs.KindValidation, "price_max 必须大于 price_min")
	}
	return nil
}

// NormalizeScore 将引擎原始得分归一化到 [0,1]。
// 语义项经过 +1.0 平移后原始得分大致落在 [0,2]，固定除以 2.0 再截断。
// 相关性阈值依赖这个常数，不可改动。
func NormalizeScore(raw float64) float64 {
	normalized := raw / 2.0
	if normalized < 0 {
		return 0
	}
	if normalized > 1 {
		return 1
	}
	return normalized
}

// RelevanceLabel 由归一化得分推导相关性标签。≥0.8 high，≥0.6 medium，其余 low。
func RelevanceLabel(score float64) string {
	switch {
	case score >= 0.8:
		return RelevanceHigh
	case score >= 0.6:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// ScoredProduct 带搜索得分与相关性标签的商品，仅按查询构建，从不持久化。
type ScoredProduct struct {
	Product
	Score     float64 `json:"score"`
	Relevance string  `json:"relevance"`
}

// NewScoredProduct 对原始得分做归一化并推导相关性标签。
func NewScoredProduct(p Product, rawScore float64) ScoredProduct {
	score := NormalizeScore(rawScore)
	return ScoredProduct{
		Product:   p,
		Score:     score,
		Relevance: RelevanceLabel(score),
	}
}

// PriceRange 实际生效的价格过滤范围。
type PriceRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// SearchFilters 回显给调用方的过滤条件，反映实际应用的过滤，而非原始请求。
// 没有给出任何价格边界时 price_range 为 null，不是零值。
type SearchFilters struct {
	Category    *string     `json:"category"`
	PriceRange  *PriceRange `json:"price_range"`
	InStockOnly bool        `json:"in_stock_only"`
}

// SearchResponse 搜索接口的响应。
type SearchResponse struct {
	Query          string          `json:"query"`
	TotalResults   int64           `json:"total_results"`
	SearchTimeMs   int64           `json:"search_time_ms"`
	FiltersApplied SearchFilters   `json:"filters_applied"`
	Results        []ScoredProduct `json:"results"`
}

// SyncRequest 同步接口的请求。
type SyncRequest struct {
	ForceReindex bool `json:"force_reindex"`
}

// SyncResponse 同步接口的响应。
type SyncResponse struct {
	Message         string `json:"message"`
	ProductsIndexed int    `json:"products_indexed"`
	Errors          int    `json:"errors"`
	TimeMs          int64  `json:"time_ms"`
}

// ServiceStatus 单个依赖服务的探测结果。
type ServiceStatus struct {
	Status         string `json:"status"`
	ResponseTimeMs *int64 `json:"response_time_ms,omitempty"`
	ClusterHealth  string `json:"cluster_health,omitempty"`
	Model          string `json:"model,omitempty"`
	Error          string `json:"error,omitempty"`
}

// IndexStats 索引的派生统计信息。
type IndexStats struct {
	TotalProducts int64      `json:"total_products"`
	IndexSizeMB   float64    `json:"index_size_mb"`
	LastSync      *time.Time `json:"last_sync"`
}

// HealthResponse 健康检查的汇总结果。
type HealthResponse struct {
	Status     string                   `json:"status"`
	Timestamp  time.Time                `json:"timestamp"`
	Services   map[string]ServiceStatus `json:"services"`
	IndexStats IndexStats               `json:"index_stats"`
}

// CategoryInfo 某个分类及其文档数。
type CategoryInfo struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// CategoriesResponse 分类列表接口的响应。
type CategoriesResponse struct {
	Categories []CategoryInfo `json:"categories"`
	Total      int            `json:"total"`
}

// SearchTerm 搜索频次最高的词条。
type SearchTerm struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// StatsResponse 索引与使用统计接口的响应。
type StatsResponse struct {
	IndexSizeMB       float64      `json:"index_size_mb"`
	TotalDocuments    int64        `json:"total_documents"`
	AvgSearchTimeMs   int64        `json:"avg_search_time_ms"`
	Last24hSearches   int64        `json:"last_24h_searches"`
	MostSearchedTerms []SearchTerm `json:"most_searched_terms"`
}
