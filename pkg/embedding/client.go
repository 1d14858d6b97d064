// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ecommerce-search-go/internal/config"
	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/pkg/log"

	"github.com/panjf2000/ants/v2"
)

// maxInputChars 是送入模型前文本的字符预算，超出部分截断，与模型输入上限对齐。
const maxInputChars = 512

// defaultBatchSize 批量向量化时每个子批次的文本数。
const defaultBatchSize = 32

// defaultPoolSize 推理调度工作池的默认容量。
const defaultPoolSize = 4

// ModelInfo describes the embedding model served behind the client.
type ModelInfo struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Loaded    bool   `json:"loaded"`
}

// Provider defines the interface for an embedding provider.
type Provider interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	ModelInfo() ModelInfo
}

type loadState int

const (
	stateUnloaded loadState = iota
	stateLoading
	stateReady
)

// Client calls an OpenAI-compatible embeddings API. The model behind the API is
// warmed up lazily exactly once; concurrent callers during the warmup block on
// the load guard instead of triggering duplicate loads.
type Client struct {
	cfg        config.EmbeddingConfig
	httpClient *http.Client
	pool       *ants.Pool

	mu        sync.Mutex
	state     loadState
	loading   chan struct{}
	loadErr   error
	dimension int

	loadCount int64
}

// NewClient creates a new embedding client based on the config.
func NewClient(cfg config.EmbeddingConfig) (*Client, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("创建 embedding 工作池失败: %w", err)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		pool:       pool,
	}, nil
}

// Close releases the worker pool.
func (c *Client) Close() {
	c.pool.Release()
}

// PrepareProductText 将商品名称与描述拼成送入模型的文本，并按字符预算截断。
func PrepareProductText(name, description string) string {
	combined := name + ". " + description
	runes := []rune(combined)
	if len(runes) > maxInputChars {
		combined = string(runes[:maxInputChars-3]) + "..."
	}
	return combined
}

// ensureLoaded 保证模型完成过一次预热。首个调用者触发加载，
// 加载期间到达的调用者阻塞等待本次加载的结果，失败后状态可重试。
func (c *Client) ensureLoaded(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateReady:
		c.mu.Unlock()
		return nil
	case stateLoading:
		done := c.loading
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return errs.Wrap(errs.KindModelUnavailable, "等待模型加载超时", ctx.Err())
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == stateReady {
			return nil
		}
		return errs.Wrap(errs.KindModelUnavailable, "embedding 模型加载失败", c.loadErr)
	}

	// stateUnloaded，由当前调用者执行加载
	c.state = stateLoading
	c.loading = make(chan struct{})
	c.mu.Unlock()

	err := c.load(ctx)

	c.mu.Lock()
	if err != nil {
		c.state = stateUnloaded
		c.loadErr = err
	} else {
		c.state = stateReady
		c.loadErr = nil
	}
	close(c.loading)
	c.mu.Unlock()

	if err != nil {
		return errs.Wrap(errs.KindModelUnavailable, "embedding 模型加载失败", err)
	}
	return nil
}

// load 通过一次预热调用确认模型可用并固定向量维度。
func (c *Client) load(ctx context.Context) error {
	atomic.AddInt64(&c.loadCount, 1)
	log.Infof("[EmbeddingClient] 开始预热 embedding 模型: %s", c.cfg.Model)

	vectors, err := c.doEmbed(ctx, []string{"warmup"})
	if err != nil {
		log.Errorf("[EmbeddingClient] 模型预热失败: %v", err)
		return err
	}

	dim := len(vectors[0])
	if c.cfg.Dimensions > 0 && dim != c.cfg.Dimensions {
		log.Warnf("[EmbeddingClient] 模型实际维度 %d 与配置 %d 不一致, 以实际为准", dim, c.cfg.Dimensions)
	}

	c.mu.Lock()
	c.dimension = dim
	c.mu.Unlock()

	log.Infof("[EmbeddingClient] 模型预热成功, model: %s, 维度: %d", c.cfg.Model, dim)
	return nil
}

// EmbedOne 为单个文本生成向量。模型不可用时返回 ModelUnavailable，绝不返回截断的向量。
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	vectors, err := c.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, errs.Wrap(errs.KindModelUnavailable, "生成向量失败", err)
	}
	return vectors[0], nil
}

// EmbedMany 为多个文本批量生成向量，返回值与输入同序同长。
// 空输入直接返回空结果，不触发模型调用。内部按批次切分并提交到有界工作池。
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	log.Infof("[EmbeddingClient] 开始批量向量化, 共 %d 条文本", len(texts))

	results := make([][]float32, len(texts))
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		offset := start
		batch := texts[start:end]

		wg.Add(1)
		submitErr := c.pool.Submit(func() {
			defer wg.Done()
			vectors, err := c.doEmbed(ctx, batch)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			for i, vec := range vectors {
				results[offset+i] = vec
			}
		})
		if submitErr != nil {
			wg.Done()
			errMu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			errMu.Unlock()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, errs.Wrap(errs.KindModelUnavailable, "批量生成向量失败", firstErr)
	}

	log.Infof("[EmbeddingClient] 批量向量化完成, 共 %d 条", len(results))
	return results, nil
}

// ModelInfo 返回当前模型信息。维度在进程生命周期内固定。
func (c *Client) ModelInfo() ModelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ModelInfo{
		Model:     c.cfg.Model,
		Dimension: c.dimension,
		Loaded:    c.state == stateReady,
	}
}

// LoadCount 返回模型加载被触发的次数。
func (c *Client) LoadCount() int64 {
	return atomic.LoadInt64(&c.loadCount)
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// doEmbed calls the OpenAI-compatible API to get vectors for the given texts.
func (c *Client) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      texts,
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding api 返回数量不匹配: 期望 %d, 实际 %d", len(texts), len(embeddingResp.Data))
	}

	vectors := make([][]float32, len(texts))
	for i, item := range embeddingResp.Data {
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("embedding api 返回了空向量 (第 %d 条)", i)
		}
		c.mu.Lock()
		dim := c.dimension
		c.mu.Unlock()
		if dim > 0 && len(item.Embedding) != dim {
			return nil, fmt.Errorf("embedding 维度不一致: 期望 %d, 实际 %d", dim, len(item.Embedding))
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
