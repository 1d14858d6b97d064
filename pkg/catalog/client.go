// Package catalog 提供了访问上游商品目录 API 的客户端。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecommerce-search-go/internal/config"
	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/pkg/log"
)

// defaultPageSize 分页拉取时每页的商品数。
const defaultPageSize = 100

// pagePause 相邻分页请求间的礼貌性停顿，避免压垮上游。
const pagePause = 100 * time.Millisecond

// Client 上游商品目录的 HTTP 客户端，无共享可变状态，可并发使用。
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

// FetchResult 一次完整拉取的结果，解析失败的条目被跳过并计数。
type FetchResult struct {
	Products    []model.Product
	ParseErrors int
}

// NewClient 创建一个新的目录客户端。
func NewClient(cfg config.CatalogConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetProducts 按 skip/limit 拉取一页商品。单个条目解析失败被跳过并计数，不影响整页。
func (c *Client) GetProducts(ctx context.Context, skip, limit int) ([]model.Product, int, error) {
	url := fmt.Sprintf("%s/?skip=%d&limit=%d", c.baseURL, skip, limit)
	log.Infof("[CatalogClient] 拉取商品: skip=%d, limit=%d", skip, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("创建目录请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindServiceUnavailable, "调用商品目录 API 失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, errs.Newf(errs.KindServiceUnavailable, "商品目录 API 返回非 200 状态码: %s", resp.Status)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, 0, fmt.Errorf("解析商品目录响应失败: %w", err)
	}

	products := make([]model.Product, 0, len(items))
	parseErrors := 0
	for _, item := range items {
		var p model.Product
		if err := json.Unmarshal(item, &p); err != nil {
			log.Warnf("[CatalogClient] 跳过无法解析的商品: %v", err)
			parseErrors++
			continue
		}
		if err := p.Validate(); err != nil {
			log.Warnf("[CatalogClient] 跳过校验失败的商品: %v", err)
			parseErrors++
			continue
		}
		products = append(products, p)
	}

	log.Infof("[CatalogClient] 本页拉取成功: %d 个商品, %d 个解析失败", len(products), parseErrors)
	return products, parseErrors, nil
}

// GetAllProducts 通过自动分页拉取全部商品，直到某页返回数量不足或为空。
// 首页失败视为致命错误；已累计到部分商品后再失败则降级返回已获取的部分。
func (c *Client) GetAllProducts(ctx context.Context) (FetchResult, error) {
	var result FetchResult
	skip := 0

	log.Info("[CatalogClient] 开始拉取全部商品")

	for {
		batch, parseErrors, err := c.GetProducts(ctx, skip, c.pageSize)
		if err != nil {
			if len(result.Products) == 0 {
				log.Errorf("[CatalogClient] 首页拉取失败: %v", err)
				return result, err
			}
			// 已有部分数据，降级返回
			log.Warnf("[CatalogClient] skip=%d 处拉取失败, 以已获取的 %d 个商品继续: %v", skip, len(result.Products), err)
			break
		}

		result.ParseErrors += parseErrors
		if len(batch)+parseErrors == 0 {
			break
		}

		result.Products = append(result.Products, batch...)
		skip += len(batch) + parseErrors

		// 本页不足一整页说明已到末尾
		if len(batch)+parseErrors < c.pageSize {
			break
		}

		log.Infof("[CatalogClient] 已累计拉取 %d 个商品", len(result.Products))

		select {
		case <-time.After(pagePause):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}

	log.Infof("[CatalogClient] 拉取完成: 共 %d 个商品, %d 个解析失败", len(result.Products), result.ParseErrors)
	return result, nil
}

// GetProductByID 按 id 查询单个商品，404 表示不存在，返回 (nil, nil) 而非错误。
func (c *Client) GetProductByID(ctx context.Context, productID string) (*model.Product, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建目录请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindServiceUnavailable, "调用商品目录 API 失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.KindServiceUnavailable, "商品目录 API 返回非 200 状态码: %s", resp.Status)
	}

	var p model.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("解析商品响应失败: %w", err)
	}
	return &p, nil
}

// CheckHealth 以最小代价探测上游目录的可用性与延迟，探测失败不返回 error。
func (c *Client) CheckHealth(ctx context.Context) model.ServiceStatus {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, _, err := c.GetProducts(probeCtx, 0, 1)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return model.ServiceStatus{
			Status:         "down",
			ResponseTimeMs: &elapsed,
			Error:          err.Error(),
		}
	}
	return model.ServiceStatus{
		Status:         "up",
		ResponseTimeMs: &elapsed,
	}
}
