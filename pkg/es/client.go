// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"ecommerce-search-go/internal/config"
	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/pkg/embedding"
	"ecommerce-search-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// productMapping 商品索引的映射：384 维 cosine 稠密向量，
// 文本字段使用带词干还原的 spanish 分析器，category 为精确匹配字段。
const productMapping = `{
	"settings": {
		"analysis": {
			"analyzer": {
				"spanish": {
					"tokenizer": "standard",
					"filter": ["lowercase", "spanish_stemmer"]
				}
			},
			"filter": {
				"spanish_stemmer": {
					"type": "stemmer",
					"language": "spanish"
				}
			}
		}
	},
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"name": {
				"type": "text",
				"analyzer": "spanish",
				"fields": {
					"keyword": { "type": "keyword" }
				}
			},
			"description": {
				"type": "text",
				"analyzer": "spanish"
			},
			"category": { "type": "keyword" },
			"price": { "type": "float" },
			"stock": { "type": "integer" },
			"image_url": { "type": "keyword" },
			"embedding": {
				"type": "dense_vector",
				"dims": 384,
				"index": true,
				"similarity": "cosine"
			},
			"created_at": { "type": "date" },
			"updated_at": { "type": "date" }
		}
	}
}`

// Client 封装索引的生命周期与读写操作。除注入的依赖外不持有共享可变状态，
// 可以被多个调用方并发使用。
type Client struct {
	es        *elasticsearch.Client
	indexName string
	embedder  embedding.Provider
}

// ConnectionStatus 集群连通性探测结果。
type ConnectionStatus struct {
	Status        string `json:"status"`
	ClusterHealth string `json:"cluster_health,omitempty"`
	NumberOfNodes int    `json:"number_of_nodes,omitempty"`
	Error         string `json:"error,omitempty"`
}

// NewClient 初始化 Elasticsearch 客户端。
// 连接与等待响应头都受配置的超时约束，连接挂死时请求在超时后失败，
// 而不是无限期阻塞调用方。
func NewClient(cfg config.ElasticsearchConfig, embedder embedding.Provider) (*Client, error) {
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	esCfg := elasticsearch.Config{
		Addresses: strings.Split(cfg.Addresses, ","),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			ResponseHeaderTimeout: timeout,
		},
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}
	return &Client{
		es:        client,
		indexName: cfg.IndexName,
		embedder:  embedder,
	}, nil
}

// IndexName 返回受管理的索引名。
func (c *Client) IndexName() string { return c.indexName }

// CheckConnection 探测集群连通性与健康状态，失败不返回 error 而是 down 状态。
func (c *Client) CheckConnection(ctx context.Context) ConnectionStatus {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("[ES] 检查集群健康失败: %v", err)
		return ConnectionStatus{Status: "down", Error: err.Error()}
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("[ES] 集群健康检查返回错误: %s", res.String())
		return ConnectionStatus{Status: "down", Error: res.Status()}
	}

	var health struct {
		Status        string `json:"status"`
		NumberOfNodes int    `json:"number_of_nodes"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return ConnectionStatus{Status: "down", Error: err.Error()}
	}

	return ConnectionStatus{
		Status:        "up",
		ClusterHealth: health.Status,
		NumberOfNodes: health.NumberOfNodes,
	}
}

// EnsureIndex 检查索引是否存在，不存在则按文档映射创建。幂等且从不破坏已有数据。
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists(
		[]string{c.indexName},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "检查索引是否存在时出错", err)
	}
	res.Body.Close()

	// 200 说明索引已存在
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("[ES] 索引 '%s' 已存在", c.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return errs.Newf(errs.KindInternal, "检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	log.Infof("[ES] 创建索引 '%s'", c.indexName)
	createRes, err := c.es.Indices.Create(
		c.indexName,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(productMapping)),
	)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "创建索引失败", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		log.Errorf("[ES] 创建索引 '%s' 时返回错误: %s", c.indexName, createRes.String())
		return errs.Newf(errs.KindInternal, "创建索引时 Elasticsearch 返回错误: %s", createRes.Status())
	}

	log.Infof("[ES] 索引 '%s' 创建成功", c.indexName)
	return nil
}

// DropIndex 删除索引，索引不存在时同样视为成功。
func (c *Client) DropIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete(
		[]string{c.indexName},
		c.es.Indices.Delete.WithContext(ctx),
		c.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "删除索引失败", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return errs.Newf(errs.KindInternal, "删除索引时 Elasticsearch 返回错误: %s", res.Status())
	}

	log.Infof("[ES] 索引 '%s' 已删除", c.indexName)
	return nil
}
