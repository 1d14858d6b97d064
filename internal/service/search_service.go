// Package service 提供了搜索、同步与健康检查的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/internal/repository"
	"ecommerce-search-go/pkg/embedding"
	"ecommerce-search-go/pkg/es"
	"ecommerce-search-go/pkg/log"
	"ecommerce-search-go/pkg/monitor"
)

// SearchService 接口定义了语义搜索操作。
type SearchService interface {
	Search(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error)
}

type searchService struct {
	embedder  embedding.Provider
	esClient  *es.Client
	statsRepo repository.SearchStatsRepository
	sink      monitor.Sink
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(
	embedder embedding.Provider,
	esClient *es.Client,
	statsRepo repository.SearchStatsRepository,
	sink monitor.Sink,
) SearchService {
	return &searchService{
		embedder:  embedder,
		esClient:  esClient,
		statsRepo: statsRepo,
		sink:      sink,
	}
}

// Search 执行语义与词法混合搜索。
// 评分混合中的常数（语义项 +1.0 平移、词法 0.3 倍 boost、除以 2.0 归一化）
// 是排序与相关性标签的约定基准，不可改动。
func (s *searchService) Search(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return model.SearchResponse{}, err
	}

	start := time.Now()
	log.Infof("[SearchService] 开始执行混合搜索, query: '%s', topK: %d", req.Query, req.TopK)

	// 1. 向量化查询
	queryVector, err := s.embedder.EmbedOne(ctx, req.Query)
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		s.emitTelemetry(req, nil, nil, time.Since(start), err)
		return model.SearchResponse{}, err
	}
	log.Infof("[SearchService] 向量化查询成功, 向量维度: %d", len(queryVector))

	// 2. 构建混合查询：语义相似度与模糊词法匹配按 should 组合
	relevanceQuery := map[string]interface{}{
		"bool": map[string]interface{}{
			"should": []map[string]interface{}{
				// 语义项：cosine 相似度平移到非负区间，作为主要排序信号
				{
					"script_score": map[string]interface{}{
						"query": map[string]interface{}{"match_all": map[string]interface{}{}},
						"script": map[string]interface{}{
							"source": "cosineSimilarity(params.query_vector, 'embedding') + 1.0",
							"params": map[string]interface{}{"query_vector": queryVector},
						},
					},
				},
				// 词法项：仅作为补召回与平分打破，boost 远小于语义项
				{
					"multi_match": map[string]interface{}{
						"query":     req.Query,
						"fields":    []string{"name^2", "description"},
						"fuzziness": "AUTO",
						"boost":     0.3,
					},
				},
			},
		},
	}

	// 3. 过滤条件是硬性排除，包在外层 bool 的 filter 中，不影响评分
	filters := buildFilters(req)
	query := relevanceQuery
	if len(filters) > 0 {
		query = map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   []map[string]interface{}{relevanceQuery},
				"filter": filters,
			},
		}
	}

	body := map[string]interface{}{
		"query": query,
		"size":  req.TopK,
		"_source": map[string]interface{}{
			// 原始向量不得泄露给调用方
			"excludes": []string{"embedding"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return model.SearchResponse{}, fmt.Errorf("序列化搜索查询失败: %w", err)
	}

	// 4. 执行搜索
	res, err := s.esClient.Search(ctx, &buf)
	if err != nil {
		wrapped := errs.Wrap(errs.KindServiceUnavailable, "搜索请求失败", err)
		log.Errorf("[SearchService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		s.emitTelemetry(req, queryVector, nil, time.Since(start), wrapped)
		return model.SearchResponse{}, wrapped
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		wrapped := errs.Newf(errs.KindInternal, "搜索时 Elasticsearch 返回错误: %s", res.Status())
		s.emitTelemetry(req, queryVector, nil, time.Since(start), wrapped)
		return model.SearchResponse{}, wrapped
	}

	// 5. 解析结果并归一化评分
	var esResponse struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source model.Product `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return model.SearchResponse{}, fmt.Errorf("解析搜索响应失败: %w", err)
	}

	results := make([]model.ScoredProduct, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.NewScoredProduct(hit.Source, hit.Score))
	}

	elapsed := time.Since(start)
	response := model.SearchResponse{
		Query:          req.Query,
		TotalResults:   esResponse.Hits.Total.Value,
		SearchTimeMs:   elapsed.Milliseconds(),
		FiltersApplied: buildAppliedFilters(req),
		Results:        results,
	}

	log.Infof("[SearchService] 混合搜索完成, query: '%s', 命中 %d 条, 耗时 %dms",
		req.Query, response.TotalResults, response.SearchTimeMs)

	// 6. 即发即弃：遥测与使用统计都不进入响应路径
	s.emitTelemetry(req, queryVector, results, elapsed, nil)
	s.recordStats(req.Query, elapsed.Milliseconds())

	return response, nil
}

// buildFilters 组装硬过滤条件。
func buildFilters(req model.SearchRequest) []map[string]interface{} {
	var filters []map[string]interface{}

	if req.Category != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category": req.Category},
		})
	}
	if req.PriceMin != nil {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"price": map[string]interface{}{"gte": *req.PriceMin}},
		})
	}
	if req.PriceMax != nil {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"price": map[string]interface{}{"lte": *req.PriceMax}},
		})
	}
	if !req.IncludeOutOfStock {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"stock": map[string]interface{}{"gt": 0}},
		})
	}
	return filters
}

// buildAppliedFilters 回显实际生效的过滤条件。
// 未给出价格边界时 price_range 保持为 null，而非零值。
func buildAppliedFilters(req model.SearchRequest) model.SearchFilters {
	applied := model.SearchFilters{
		InStockOnly: !req.IncludeOutOfStock,
	}
	if req.Category != "" {
		category := req.Category
		applied.Category = &category
	}
	if req.PriceMin != nil || req.PriceMax != nil {
		applied.PriceRange = &model.PriceRange{
			Min: req.PriceMin,
			Max: req.PriceMax,
		}
	}
	return applied
}

// emitTelemetry 组装并发布遥测事件，Publish 本身永不阻塞。
func (s *searchService) emitTelemetry(
	req model.SearchRequest,
	queryVector []float32,
	results []model.ScoredProduct,
	elapsed time.Duration,
	searchErr error,
) {
	event := monitor.SearchEvent{
		Query:       req.Query,
		QueryLength: len(req.Query),
		NumResults:  len(results),
		PriceMin:    req.PriceMin,
		PriceMax:    req.PriceMax,
		LatencyMs:   float64(elapsed.Milliseconds()),
	}
	if req.Category != "" {
		category := req.Category
		event.CategoryFilter = &category
	}
	if queryVector != nil {
		norm := vectorNorm(queryVector)
		event.EmbeddingNorm = &norm
	}
	if len(results) > 0 {
		top := results[0].Score
		var sum float64
		for _, r := range results {
			if r.Score > top {
				top = r.Score
			}
			sum += r.Score
		}
		avg := sum / float64(len(results))
		event.TopScore = &top
		event.AvgScore = &avg
	}
	if searchErr != nil {
		msg := searchErr.Error()
		event.Error = &msg
	}
	s.sink.Publish(event)
}

// recordStats 异步记录使用统计，失败只记日志。
func (s *searchService) recordStats(query string, latencyMs int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.statsRepo.RecordSearch(ctx, query, latencyMs); err != nil {
			log.Warnf("[SearchService] 记录搜索统计失败: %v", err)
		}
	}()
}

// vectorNorm 计算向量的 L2 范数。
func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
