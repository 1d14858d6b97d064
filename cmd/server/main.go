// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecommerce-search-go/internal/config"
	"ecommerce-search-go/internal/handler"
	"ecommerce-search-go/internal/metrics"
	"ecommerce-search-go/internal/middleware"
	"ecommerce-search-go/internal/repository"
	"ecommerce-search-go/internal/service"
	"ecommerce-search-go/pkg/catalog"
	"ecommerce-search-go/pkg/database"
	"ecommerce-search-go/pkg/embedding"
	"ecommerce-search-go/pkg/es"
	"ecommerce-search-go/pkg/log"
	"ecommerce-search-go/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化指标与基础设施客户端
	metrics.Register()

	redisClient, err := database.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}

	embeddingClient, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		log.Fatalf("Embedding 客户端初始化失败: %v", err)
	}
	defer embeddingClient.Close()

	esClient, err := es.NewClient(cfg.Elasticsearch, embeddingClient)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	catalogClient := catalog.NewClient(cfg.Catalog)
	sink := monitor.NewSink(cfg.Monitoring)
	defer sink.Close()

	// 启动时保证索引存在，失败不中止服务（健康检查会暴露问题）
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := esClient.EnsureIndex(startupCtx); err != nil {
		log.Warnf("启动时创建索引失败: %v", err)
	}
	cancelStartup()

	// 4. 初始化 Repository
	statsRepo := repository.NewSearchStatsRepository(redisClient)

	// 5. 初始化 Service (依赖注入)
	searchService := service.NewSearchService(embeddingClient, esClient, statsRepo, sink)
	syncService := service.NewSyncService(catalogClient, esClient, statsRepo)
	healthService := service.NewHealthService(esClient, catalogClient, embeddingClient, statsRepo)
	statsService := service.NewStatsService(esClient, statsRepo)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/search", handler.NewSearchHandler(searchService).Search)
		apiV1.POST("/sync", handler.NewSyncHandler(syncService).Sync)

		healthHandler := handler.NewHealthHandler(healthService, statsService)
		apiV1.GET("/health", healthHandler.Health)
		apiV1.GET("/categories", healthHandler.Categories)
		apiV1.GET("/stats", healthHandler.Stats)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// 8. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
