package service

import (
	"context"

	"ecommerce-search-go/internal/model"
	"ecommerce-search-go/internal/repository"
	"ecommerce-search-go/pkg/es"
	"ecommerce-search-go/pkg/log"
)

// StatsService 接口定义了分类列表与使用统计查询操作。
type StatsService interface {
	Categories(ctx context.Context) (model.CategoriesResponse, error)
	Stats(ctx context.Context) (model.StatsResponse, error)
}

type statsService struct {
	esClient  *es.Client
	statsRepo repository.SearchStatsRepository
}

// NewStatsService 创建一个新的 StatsService 实例。
func NewStatsService(esClient *es.Client, statsRepo repository.SearchStatsRepository) StatsService {
	return &statsService{
		esClient:  esClient,
		statsRepo: statsRepo,
	}
}

// Categories 返回索引中所有商品分类及各自的商品数。
func (s *statsService) Categories(ctx context.Context) (model.CategoriesResponse, error) {
	categories, err := s.esClient.Categories(ctx)
	if err != nil {
		log.Error("[StatsService] 查询分类聚合失败", err)
		return model.CategoriesResponse{}, err
	}
	return model.CategoriesResponse{
		Categories: categories,
		Total:      len(categories),
	}, nil
}

// Stats 汇总索引规模与最近 24 小时的搜索使用情况。
func (s *statsService) Stats(ctx context.Context) (model.StatsResponse, error) {
	indexStats, err := s.esClient.Stats(ctx)
	if err != nil {
		log.Error("[StatsService] 查询索引统计失败", err)
		return model.StatsResponse{}, err
	}

	resp := model.StatsResponse{
		IndexSizeMB:    indexStats.IndexSizeMB,
		TotalDocuments: indexStats.TotalProducts,
	}

	// 使用统计失败时退化为只返回索引信息
	snapshot, err := s.statsRepo.Snapshot(ctx)
	if err != nil {
		log.Warnf("[StatsService] 读取使用统计失败: %v", err)
		return resp, nil
	}
	resp.AvgSearchTimeMs = snapshot.AvgSearchTimeMs
	resp.Last24hSearches = snapshot.Last24hSearches
	resp.MostSearchedTerms = snapshot.TopTerms
	return resp, nil
}
