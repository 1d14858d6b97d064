package service

import (
	"context"
	"time"

	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/internal/repository"
	"ecommerce-search-go/pkg/embedding"
	"ecommerce-search-go/pkg/es"
	"ecommerce-search-go/pkg/log"

	"golang.org/x/sync/errgroup"
)

// HealthService 接口定义了系统健康检查操作。
type HealthService interface {
	Check(ctx context.Context) model.HealthResponse
}

type healthService struct {
	esClient      *es.Client
	catalogClient CatalogSource
	embedder      embedding.Provider
	statsRepo     repository.SearchStatsRepository
}

// NewHealthService 创建一个新的 HealthService 实例。
func NewHealthService(
	esClient *es.Client,
	catalogClient CatalogSource,
	embedder embedding.Provider,
	statsRepo repository.SearchStatsRepository,
) HealthService {
	return &healthService{
		esClient:      esClient,
		catalogClient: catalogClient,
		embedder:      embedder,
		statsRepo:     statsRepo,
	}
}

// Check 并发探测三个依赖并汇总整体结论。
// 只有全部依赖正常才是 healthy，否则 degraded；探测本身无法进行时返回
// unhealthy 与 unknown 子状态。健康检查绝不向调用方抛出错误。
func (s *healthService) Check(ctx context.Context) (resp model.HealthResponse) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[HealthService] 健康检查意外失败: %v", r)
			resp = model.HealthResponse{
				Status:    "unhealthy",
				Timestamp: time.Now().UTC(),
				Services: map[string]model.ServiceStatus{
					"elasticsearch":   {Status: "unknown"},
					"catalog_api":     {Status: "unknown"},
					"embedding_model": {Status: "unknown"},
				},
			}
		}
	}()

	log.Info("[HealthService] 执行健康检查")

	var esStatus, catalogStatus, embeddingStatus model.ServiceStatus

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conn := s.esClient.CheckConnection(gctx)
		esStatus = model.ServiceStatus{
			Status:        conn.Status,
			ClusterHealth: conn.ClusterHealth,
			Error:         conn.Error,
		}
		return nil
	})
	g.Go(func() error {
		catalogStatus = s.catalogClient.CheckHealth(gctx)
		return nil
	})
	g.Go(func() error {
		embeddingStatus = s.checkEmbedding(gctx)
		return nil
	})
	// 所有探测自身吞掉错误，这里不会返回非 nil
	_ = g.Wait()

	// 索引统计是附加信息，失败不影响健康结论
	indexStats, err := s.esClient.Stats(ctx)
	if err != nil {
		log.Warnf("[HealthService] 获取索引统计失败: %v", err)
		indexStats = model.IndexStats{}
	}
	if lastSync, err := s.statsRepo.GetLastSync(ctx); err == nil {
		indexStats.LastSync = lastSync
	} else {
		log.Warnf("[HealthService] 读取 last_sync 失败: %v", err)
	}

	overall := "healthy"
	if esStatus.Status != "up" || catalogStatus.Status != "up" || embeddingStatus.Status != "loaded" {
		overall = "degraded"
	}

	return model.HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Services: map[string]model.ServiceStatus{
			"elasticsearch":   esStatus,
			"catalog_api":     catalogStatus,
			"embedding_model": embeddingStatus,
		},
		IndexStats: indexStats,
	}
}

// checkEmbedding 探测模型状态，未加载时触发一次预热再确认。
func (s *healthService) checkEmbedding(ctx context.Context) model.ServiceStatus {
	info := s.embedder.ModelInfo()
	if !info.Loaded {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := s.embedder.EmbedOne(probeCtx, "health probe"); err != nil {
			return model.ServiceStatus{
				Status: "error",
				Model:  info.Model,
				Error:  err.Error(),
			}
		}
		info = s.embedder.ModelInfo()
	}
	return model.ServiceStatus{
		Status: "loaded",
		Model:  info.Model,
	}
}
