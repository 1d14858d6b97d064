// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses      string `mapstructure:"addresses"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	IndexName      string `mapstructure:"index_name"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// EmbeddingConfig 存储 Embedding 模型服务相关的配置。
type EmbeddingConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	Dimensions     int    `mapstructure:"dimensions"`
	BatchSize      int    `mapstructure:"batch_size"`
	PoolSize       int    `mapstructure:"pool_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CatalogConfig 存储上游商品目录 API 相关的配置。
type CatalogConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	PageSize       int    `mapstructure:"page_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MonitoringConfig 存储搜索遥测上报的配置。
// Transport 可选 "kafka" 或 "http"；Enabled 为 false 时完全关闭上报。
type MonitoringConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Transport      string `mapstructure:"transport"`
	Brokers        string `mapstructure:"brokers"`
	Topic          string `mapstructure:"topic"`
	Endpoint       string `mapstructure:"endpoint"`
	QueueSize      int    `mapstructure:"queue_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
