package service

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/pkg/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCatalog 返回固定商品集合的假目录源。
type stubCatalog struct {
	products []model.Product
	err      error
	health   model.ServiceStatus
	calls    int64
}

func (s *stubCatalog) GetAllProducts(ctx context.Context) (catalog.FetchResult, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return catalog.FetchResult{}, s.err
	}
	return catalog.FetchResult{Products: s.products}, nil
}

func (s *stubCatalog) CheckHealth(ctx context.Context) model.ServiceStatus {
	return s.health
}

// bulkOK 按请求体中的文档数返回全部成功的 bulk 响应。
func bulkOK(w http.ResponseWriter, r *http.Request) {
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	docs := lines / 2 // action 行与文档行成对出现

	var b strings.Builder
	b.WriteString(`{"errors": false, "items": [`)
	for i := 0; i < docs; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"index": {"status": 201}}`)
	}
	b.WriteString(`]}`)
	fmt.Fprint(w, b.String())
}

// syncESHandler 满足同步路径所需的全部 Elasticsearch 端点。
type syncESHandler struct {
	healthy   bool
	bulkCalls int64
	deletes   int64
	bulk      http.HandlerFunc
}

func (h *syncESHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/_cluster/health"):
		if !h.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status": "green", "number_of_nodes": 1}`)
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		atomic.AddInt64(&h.deletes, 1)
		fmt.Fprint(w, `{"acknowledged": true}`)
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		atomic.AddInt64(&h.bulkCalls, 1)
		if h.bulk != nil {
			h.bulk(w, r)
			return
		}
		bulkOK(w, r)
	case strings.HasSuffix(r.URL.Path, "/_refresh"):
		fmt.Fprint(w, `{}`)
	default:
		fmt.Fprint(w, `{}`)
	}
}

func makeProducts(n int) []model.Product {
	products := make([]model.Product, n)
	for i := range products {
		products[i] = model.Product{
			ID:    fmt.Sprintf("p-%d", i),
			Name:  fmt.Sprintf("Producto %d", i),
			Price: 10,
			Stock: 1,
		}
	}
	return products
}

func TestSyncHappyPath(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	handler := &syncESHandler{healthy: true}
	esClient := newFakeESClient(t, embedder, handler.ServeHTTP)
	catalog := &stubCatalog{products: makeProducts(120)}
	statsRepo := newStubStatsRepo()

	svc := NewSyncService(catalog, esClient, statsRepo)

	resp, err := svc.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 120, resp.ProductsIndexed)
	assert.Equal(t, 0, resp.Errors)
	assert.Equal(t, "同步完成", resp.Message)
	// 120 个商品按 50 一批 => 3 个 bulk 请求
	assert.Equal(t, int64(3), atomic.LoadInt64(&handler.bulkCalls))
	assert.Equal(t, int64(0), atomic.LoadInt64(&handler.deletes))

	// 记录了同步时间
	last, err := statsRepo.GetLastSync(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, last)
}

func TestSyncForceReindexDropsIndexFirst(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	handler := &syncESHandler{healthy: true}
	esClient := newFakeESClient(t, embedder, handler.ServeHTTP)
	catalog := &stubCatalog{products: makeProducts(10)}

	svc := NewSyncService(catalog, esClient, newStubStatsRepo())

	resp, err := svc.Sync(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 10, resp.ProductsIndexed)
	assert.Equal(t, int64(1), atomic.LoadInt64(&handler.deletes))
}

func TestSyncESUnavailable(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	handler := &syncESHandler{healthy: false}
	esClient := newFakeESClient(t, embedder, handler.ServeHTTP)
	catalog := &stubCatalog{products: makeProducts(10)}

	svc := NewSyncService(catalog, esClient, newStubStatsRepo())

	_, err := svc.Sync(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, errs.KindServiceUnavailable, errs.KindOf(err))
	// 存储不可用时不触达上游目录
	assert.Equal(t, int64(0), atomic.LoadInt64(&catalog.calls))
}

func TestSyncCatalogFailurePropagates(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	handler := &syncESHandler{healthy: true}
	esClient := newFakeESClient(t, embedder, handler.ServeHTTP)
	catalog := &stubCatalog{err: errs.New(errs.KindServiceUnavailable, "目录不可达")}

	svc := NewSyncService(catalog, esClient, newStubStatsRepo())

	_, err := svc.Sync(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, errs.KindServiceUnavailable, errs.KindOf(err))
	assert.Equal(t, int64(0), atomic.LoadInt64(&handler.bulkCalls))
}

func TestSyncEmptyCatalog(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	handler := &syncESHandler{healthy: true}
	esClient := newFakeESClient(t, embedder, handler.ServeHTTP)
	catalog := &stubCatalog{}

	svc := NewSyncService(catalog, esClient, newStubStatsRepo())

	resp, err := svc.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.ProductsIndexed)
	assert.Equal(t, "没有找到可同步的商品", resp.Message)
	assert.Equal(t, int64(0), atomic.LoadInt64(&handler.bulkCalls))
}

func TestSyncChunkFailureCountsWholeChunk(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	var bulkSeen int64
	handler := &syncESHandler{healthy: true}
	handler.bulk = func(w http.ResponseWriter, r *http.Request) {
		// 第二个批次整体失败
		if atomic.AddInt64(&bulkSeen, 1) == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": "rejected"}`)
			return
		}
		bulkOK(w, r)
	}
	esClient := newFakeESClient(t, embedder, handler.ServeHTTP)
	catalog := &stubCatalog{products: makeProducts(120)}

	svc := NewSyncService(catalog, esClient, newStubStatsRepo())

	resp, err := svc.Sync(context.Background(), false)
	require.NoError(t, err)
	// 批次为 50/50/20: 第二批整批计入错误, 其余继续
	assert.Equal(t, 70, resp.ProductsIndexed)
	assert.Equal(t, 50, resp.Errors)
}
