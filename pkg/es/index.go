package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/pkg/embedding"
	"ecommerce-search-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// BatchResult 批量写入的每项结果计数。部分失败不是错误，成功的条目保持提交状态。
type BatchResult struct {
	Indexed int `json:"indexed"`
	Errors  int `json:"errors"`
}

// UpsertOne 将单个商品向量化后写入索引，按 id upsert，写入后立即可见。
func (c *Client) UpsertOne(ctx context.Context, product model.Product) error {
	text := embedding.PrepareProductText(product.Name, product.Description)
	vector, err := c.embedder.EmbedOne(ctx, text)
	if err != nil {
		return err
	}

	doc := model.NewProductDocument(product, vector)
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("序列化索引文档失败: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.indexName,
		DocumentID: product.ID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "索引文档失败", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("[ES] 索引商品 %s 出错: %s", product.ID, res.String())
		return errs.Newf(errs.KindInternal, "索引文档时 Elasticsearch 返回错误: %s", res.Status())
	}
	return nil
}

// UpsertBatch 批量写入商品。先通过一次批量调用生成所有向量（与输入同序），
// 再发出单次 bulk 请求，最后同步刷新索引保证读己之写。
// 空输入直接返回零计数，不发起任何网络调用。单项失败计入 Errors，不中断整批。
func (c *Client) UpsertBatch(ctx context.Context, products []model.Product) (BatchResult, error) {
	if len(products) == 0 {
		return BatchResult{}, nil
	}

	log.Infof("[ES] 准备批量索引 %d 个商品", len(products))

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = embedding.PrepareProductText(p.Name, p.Description)
	}

	vectors, err := c.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return BatchResult{}, err
	}

	var buf bytes.Buffer
	for i, p := range products {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": c.indexName,
				"_id":    p.ID,
			},
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return BatchResult{}, fmt.Errorf("编码 bulk action 失败: %w", err)
		}
		doc := model.NewProductDocument(p, vectors[i])
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return BatchResult{}, fmt.Errorf("编码 bulk 文档失败: %w", err)
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return BatchResult{}, errs.Wrap(errs.KindServiceUnavailable, "bulk 写入失败", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[ES] bulk 写入返回错误, status: %s, body: %s", res.Status(), string(body))
		return BatchResult{}, errs.Newf(errs.KindInternal, "bulk 写入时 Elasticsearch 返回错误: %s", res.Status())
	}

	var bulkResp struct {
		Items []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return BatchResult{}, fmt.Errorf("解析 bulk 响应失败: %w", err)
	}

	var result BatchResult
	for _, item := range bulkResp.Items {
		for _, op := range item {
			if op.Status == 200 || op.Status == 201 {
				result.Indexed++
			} else {
				result.Errors++
			}
		}
	}

	log.Infof("[ES] 批量索引完成: %d 成功, %d 失败", result.Indexed, result.Errors)

	// 同步刷新，保证返回后立即可搜。刷新失败意味着读己之写不成立，
	// 必须让调用方感知，不能按成功返回。
	if err := c.Refresh(ctx); err != nil {
		log.Errorf("[ES] 批量写入后刷新索引失败: %v", err)
		return result, fmt.Errorf("批量写入后刷新索引失败: %w", err)
	}

	return result, nil
}

// Refresh 强制新写入的文档对后续读立即可见。
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.indexName),
	)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "刷新索引失败", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errs.Newf(errs.KindInternal, "刷新索引时 Elasticsearch 返回错误: %s", res.Status())
	}
	return nil
}

// Search 在商品索引上执行调用方构建好的查询体，返回原始响应由调用方解码。
func (c *Client) Search(ctx context.Context, body io.Reader) (*esapi.Response, error) {
	return c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indexName),
		c.es.Search.WithBody(body),
		c.es.Search.WithTrackTotalHits(true),
	)
}

// Count 返回索引中的文档总数。
func (c *Client) Count(ctx context.Context) (int64, error) {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(c.indexName),
	)
	if err != nil {
		return 0, errs.Wrap(errs.KindServiceUnavailable, "统计文档数失败", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, errs.Newf(errs.KindInternal, "统计文档数时 Elasticsearch 返回错误: %s", res.Status())
	}

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("解析 count 响应失败: %w", err)
	}
	return countResp.Count, nil
}

// Stats 返回索引的文档总数与磁盘占用（MB）。
func (c *Client) Stats(ctx context.Context) (model.IndexStats, error) {
	count, err := c.Count(ctx)
	if err != nil {
		return model.IndexStats{}, err
	}

	res, err := c.es.Indices.Stats(
		c.es.Indices.Stats.WithContext(ctx),
		c.es.Indices.Stats.WithIndex(c.indexName),
	)
	if err != nil {
		return model.IndexStats{}, errs.Wrap(errs.KindServiceUnavailable, "获取索引统计失败", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return model.IndexStats{}, errs.Newf(errs.KindInternal, "获取索引统计时 Elasticsearch 返回错误: %s", res.Status())
	}

	var statsResp struct {
		Indices map[string]struct {
			Total struct {
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
			} `json:"total"`
		} `json:"indices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&statsResp); err != nil {
		return model.IndexStats{}, fmt.Errorf("解析索引统计响应失败: %w", err)
	}

	var sizeMB float64
	if idx, ok := statsResp.Indices[c.indexName]; ok {
		sizeMB = float64(idx.Total.Store.SizeInBytes) / (1024 * 1024)
	}

	return model.IndexStats{
		TotalProducts: count,
		IndexSizeMB:   sizeMB,
	}, nil
}

// Categories 通过 terms 聚合返回各分类及其文档数。
func (c *Client) Categories(ctx context.Context) ([]model.CategoryInfo, error) {
	body := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"categories": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "category",
					"size":  100,
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("编码聚合查询失败: %w", err)
	}

	res, err := c.Search(ctx, &buf)
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "分类聚合查询失败", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errs.Newf(errs.KindInternal, "分类聚合时 Elasticsearch 返回错误: %s", res.Status())
	}

	var aggResp struct {
		Aggregations struct {
			Categories struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"categories"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&aggResp); err != nil {
		return nil, fmt.Errorf("解析聚合响应失败: %w", err)
	}

	categories := make([]model.CategoryInfo, 0, len(aggResp.Aggregations.Categories.Buckets))
	for _, bucket := range aggResp.Aggregations.Categories.Buckets {
		categories = append(categories, model.CategoryInfo{
			Name:  bucket.Key,
			Count: bucket.DocCount,
		})
	}
	return categories, nil
}
