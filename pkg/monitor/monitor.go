// Package monitor 实现搜索遥测的即发即弃上报。
// 上报失败只记录日志，绝不影响主请求路径的结果与延迟。
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecommerce-search-go/internal/config"
	"ecommerce-search-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// defaultQueueSize 事件队列的默认容量，入队从不阻塞，队列满则丢弃。
const defaultQueueSize = 256

// defaultTimeout 单次投递的超时时间。
const defaultTimeout = 2 * time.Second

// SearchEvent 每次搜索之后上报的遥测事件。
type SearchEvent struct {
	Query          string   `json:"query"`
	QueryLength    int      `json:"query_length"`
	EmbeddingNorm  *float64 `json:"embedding_norm,omitempty"`
	NumResults     int      `json:"num_results"`
	TopScore       *float64 `json:"top_score,omitempty"`
	AvgScore       *float64 `json:"avg_score,omitempty"`
	CategoryFilter *string  `json:"category_filter,omitempty"`
	PriceMin       *float64 `json:"price_min,omitempty"`
	PriceMax       *float64 `json:"price_max,omitempty"`
	LatencyMs      float64  `json:"latency_ms"`
	Error          *string  `json:"error,omitempty"`
}

// Sink 接收遥测事件的出口。Publish 永不阻塞、永不失败。
type Sink interface {
	Publish(event SearchEvent)
	Close()
}

// transport 负责单个事件的实际投递。
type transport interface {
	send(ctx context.Context, event SearchEvent) error
	close()
}

// NewSink 按配置构建遥测出口。关闭上报时返回空实现。
func NewSink(cfg config.MonitoringConfig) Sink {
	if !cfg.Enabled {
		return noopSink{}
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	var tr transport
	switch cfg.Transport {
	case "http":
		tr = &httpTransport{
			endpoint: cfg.Endpoint,
			client:   &http.Client{Timeout: timeout},
		}
	default:
		tr = &kafkaTransport{
			writer: &kafka.Writer{
				Addr:     kafka.TCP(brokerList(cfg.Brokers)...),
				Topic:    cfg.Topic,
				Balancer: &kafka.LeastBytes{},
			},
		}
	}

	s := &asyncSink{
		queue:   make(chan SearchEvent, queueSize),
		done:    make(chan struct{}),
		tr:      tr,
		timeout: timeout,
	}
	go s.run()

	log.Infof("[Monitor] 遥测上报已启用, transport: %s", cfg.Transport)
	return s
}

// brokerList 将逗号分隔的 broker 配置拆成地址列表。
func brokerList(brokers string) []string {
	parts := strings.Split(brokers, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if addr := strings.TrimSpace(p); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

type asyncSink struct {
	queue   chan SearchEvent
	done    chan struct{}
	tr      transport
	timeout time.Duration
}

// Publish 将事件放入有界队列，队列满时丢弃并记录日志。
func (s *asyncSink) Publish(event SearchEvent) {
	select {
	case s.queue <- event:
	default:
		log.Warnf("[Monitor] 遥测队列已满, 丢弃事件, query: '%s'", event.Query)
	}
}

// run 由后台工作协程排空队列，所有投递失败都被吞掉。
func (s *asyncSink) run() {
	defer close(s.done)
	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.tr.send(ctx, event); err != nil {
			log.Warnf("[Monitor] 遥测事件投递失败: %v", err)
		}
		cancel()
	}
}

// Close 停止接收新事件并等待队列排空。
func (s *asyncSink) Close() {
	close(s.queue)
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		log.Warnf("[Monitor] 等待遥测队列排空超时")
	}
	s.tr.close()
}

// kafkaTransport 将事件写入 Kafka 主题。
type kafkaTransport struct {
	writer *kafka.Writer
}

func (t *kafkaTransport) send(ctx context.Context, event SearchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化遥测事件失败: %w", err)
	}
	return t.writer.WriteMessages(ctx, kafka.Message{Value: payload})
}

func (t *kafkaTransport) close() {
	if err := t.writer.Close(); err != nil {
		log.Warnf("[Monitor] 关闭 Kafka writer 失败: %v", err)
	}
}

// httpTransport 将事件 POST 到遥测服务。
type httpTransport struct {
	endpoint string
	client   *http.Client
}

func (t *httpTransport) send(ctx context.Context, event SearchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化遥测事件失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("遥测服务返回状态码 %d", resp.StatusCode)
	}
	return nil
}

func (t *httpTransport) close() {}

type noopSink struct{}

func (noopSink) Publish(SearchEvent) {}
func (noopSink) Close()              {}
