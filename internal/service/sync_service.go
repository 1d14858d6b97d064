package service

import (
	"context"
	"time"

	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/internal/metrics"
	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/internal/repository"
	"ecommerce-search-go/pkg/catalog"
	"ecommerce-search-go/pkg/es"
	"ecommerce-search-go/pkg/log"
)

// syncChunkSize 每个批次写入索引的商品数。
const syncChunkSize = 50

// CatalogSource 同步所依赖的上游目录能力。
type CatalogSource interface {
	GetAllProducts(ctx context.Context) (catalog.FetchResult, error)
	CheckHealth(ctx context.Context) model.ServiceStatus
}

// SyncService 接口定义了目录同步操作。
type SyncService interface {
	Sync(ctx context.Context, forceReindex bool) (model.SyncResponse, error)
}

type syncService struct {
	catalogClient CatalogSource
	esClient      *es.Client
	statsRepo     repository.SearchStatsRepository
}

// NewSyncService 创建一个新的 SyncService 实例。
func NewSyncService(catalogClient CatalogSource, esClient *es.Client, statsRepo repository.SearchStatsRepository) SyncService {
	return &syncService{
		catalogClient: catalogClient,
		esClient:      esClient,
		statsRepo:     statsRepo,
	}
}

// Sync 从上游目录拉取全部商品并分批写入索引。
// 单个批次失败按整批计入错误数，不中断剩余批次。
func (s *syncService) Sync(ctx context.Context, forceReindex bool) (model.SyncResponse, error) {
	start := time.Now()
	log.Infof("[SyncService] 开始同步商品, forceReindex: %v", forceReindex)

	// 先确认索引存储可用
	conn := s.esClient.CheckConnection(ctx)
	if conn.Status != "up" {
		return model.SyncResponse{}, errs.Newf(errs.KindServiceUnavailable, "Elasticsearch 不可用: %s", conn.Error)
	}

	if forceReindex {
		log.Info("[SyncService] 强制重建索引")
		if err := s.esClient.DropIndex(ctx); err != nil {
			return model.SyncResponse{}, err
		}
	}
	if err := s.esClient.EnsureIndex(ctx); err != nil {
		return model.SyncResponse{}, err
	}

	// 拉取全部商品
	fetched, err := s.catalogClient.GetAllProducts(ctx)
	if err != nil {
		return model.SyncResponse{}, err
	}
	if fetched.ParseErrors > 0 {
		log.Warnf("[SyncService] 拉取期间有 %d 个商品解析失败被跳过", fetched.ParseErrors)
	}

	if len(fetched.Products) == 0 {
		log.Warnf("[SyncService] 没有找到可同步的商品")
		return model.SyncResponse{
			Message: "没有找到可同步的商品",
			TimeMs:  time.Since(start).Milliseconds(),
		}, nil
	}

	// 分批写入索引
	totalIndexed := 0
	totalErrors := 0
	for i := 0; i < len(fetched.Products); i += syncChunkSize {
		end := i + syncChunkSize
		if end > len(fetched.Products) {
			end = len(fetched.Products)
		}
		chunk := fetched.Products[i:end]
		log.Infof("[SyncService] 处理批次 %d (%d 个商品)", i/syncChunkSize+1, len(chunk))

		result, err := s.esClient.UpsertBatch(ctx, chunk)
		if err != nil {
			// 整批失败计入错误数，继续处理剩余批次
			log.Errorf("[SyncService] 批次写入失败, 整批计入错误: %v", err)
			totalErrors += len(chunk)
			continue
		}
		totalIndexed += result.Indexed
		totalErrors += result.Errors
	}

	metrics.SyncProductsIndexed.Add(float64(totalIndexed))
	metrics.SyncErrorsTotal.Add(float64(totalErrors))

	// 记录同步时间，失败只记日志
	if err := s.statsRepo.SetLastSync(ctx, time.Now()); err != nil {
		log.Warnf("[SyncService] 记录 last_sync 失败: %v", err)
	}

	elapsed := time.Since(start).Milliseconds()
	log.Infof("[SyncService] 同步完成: %d 个已索引, %d 个错误, 耗时 %dms", totalIndexed, totalErrors, elapsed)

	return model.SyncResponse{
		Message:         "同步完成",
		ProductsIndexed: totalIndexed,
		Errors:          totalErrors,
		TimeMs:          elapsed,
	}, nil
}
