// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ecommerce-search-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// hourBucketLayout 按小时分桶统计，保留 25 小时覆盖完整的 24 小时窗口。
const hourBucketLayout = "2006010215"

const bucketTTL = 25 * time.Hour

// UsageSnapshot 搜索使用情况的汇总快照。
type UsageSnapshot struct {
	Last24hSearches int64
	AvgSearchTimeMs int64
	TopTerms        []model.SearchTerm
}

// SearchStatsRepository 定义了搜索使用统计的操作接口。
type SearchStatsRepository interface {
	RecordSearch(ctx context.Context, query string, latencyMs int64) error
	SetLastSync(ctx context.Context, t time.Time) error
	GetLastSync(ctx context.Context) (*time.Time, error)
	Snapshot(ctx context.Context) (UsageSnapshot, error)
}

type redisSearchStatsRepository struct {
	redisClient *redis.Client
}

// NewSearchStatsRepository 创建一个新的 SearchStatsRepository 实例。
func NewSearchStatsRepository(redisClient *redis.Client) SearchStatsRepository {
	return &redisSearchStatsRepository{redisClient: redisClient}
}

// RecordSearch 记录一次搜索：小时桶计数、延迟累计和热词榜。
func (r *redisSearchStatsRepository) RecordSearch(ctx context.Context, query string, latencyMs int64) error {
	bucket := time.Now().UTC().Format(hourBucketLayout)
	countKey := fmt.Sprintf("search:count:%s", bucket)
	latencyKey := fmt.Sprintf("search:latency_ms:%s", bucket)
	latencyNKey := fmt.Sprintf("search:latency_n:%s", bucket)

	pipe := r.redisClient.Pipeline()
	pipe.Incr(ctx, countKey)
	pipe.Expire(ctx, countKey, bucketTTL)
	pipe.IncrBy(ctx, latencyKey, latencyMs)
	pipe.Expire(ctx, latencyKey, bucketTTL)
	pipe.Incr(ctx, latencyNKey)
	pipe.Expire(ctx, latencyNKey, bucketTTL)

	term := strings.ToLower(strings.TrimSpace(query))
	if term != "" {
		pipe.ZIncrBy(ctx, "search:terms", 1, term)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("记录搜索统计失败: %w", err)
	}
	return nil
}

// SetLastSync 记录最近一次同步完成的时间。
func (r *redisSearchStatsRepository) SetLastSync(ctx context.Context, t time.Time) error {
	if err := r.redisClient.Set(ctx, "search:last_sync", t.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("记录 last_sync 失败: %w", err)
	}
	return nil
}

// GetLastSync 返回最近一次同步时间，从未同步过时返回 nil。
func (r *redisSearchStatsRepository) GetLastSync(ctx context.Context) (*time.Time, error) {
	val, err := r.redisClient.Get(ctx, "search:last_sync").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取 last_sync 失败: %w", err)
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, fmt.Errorf("解析 last_sync 失败: %w", err)
	}
	return &t, nil
}

// Snapshot 汇总最近 24 个小时桶并读取热词榜前 10。
func (r *redisSearchStatsRepository) Snapshot(ctx context.Context) (UsageSnapshot, error) {
	now := time.Now().UTC()
	countKeys := make([]string, 0, 24)
	latencyKeys := make([]string, 0, 24)
	latencyNKeys := make([]string, 0, 24)
	for i := 0; i < 24; i++ {
		bucket := now.Add(-time.Duration(i) * time.Hour).Format(hourBucketLayout)
		countKeys = append(countKeys, fmt.Sprintf("search:count:%s", bucket))
		latencyKeys = append(latencyKeys, fmt.Sprintf("search:latency_ms:%s", bucket))
		latencyNKeys = append(latencyNKeys, fmt.Sprintf("search:latency_n:%s", bucket))
	}

	var snapshot UsageSnapshot

	counts, err := r.redisClient.MGet(ctx, countKeys...).Result()
	if err != nil {
		return snapshot, fmt.Errorf("读取搜索计数失败: %w", err)
	}
	snapshot.Last24hSearches = sumValues(counts)

	latencySums, err := r.redisClient.MGet(ctx, latencyKeys...).Result()
	if err != nil {
		return snapshot, fmt.Errorf("读取延迟累计失败: %w", err)
	}
	latencyCounts, err := r.redisClient.MGet(ctx, latencyNKeys...).Result()
	if err != nil {
		return snapshot, fmt.Errorf("读取延迟计数失败: %w", err)
	}
	totalLatency := sumValues(latencySums)
	totalN := sumValues(latencyCounts)
	if totalN > 0 {
		snapshot.AvgSearchTimeMs = totalLatency / totalN
	}

	top, err := r.redisClient.ZRevRangeWithScores(ctx, "search:terms", 0, 9).Result()
	if err != nil {
		return snapshot, fmt.Errorf("读取热词榜失败: %w", err)
	}
	for _, z := range top {
		term, ok := z.Member.(string)
		if !ok {
			continue
		}
		snapshot.TopTerms = append(snapshot.TopTerms, model.SearchTerm{
			Term:  term,
			Count: int64(z.Score),
		})
	}

	return snapshot, nil
}

func sumValues(values []interface{}) int64 {
	var sum int64
	for _, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				sum += n
			}
		}
	}
	return sum
}
