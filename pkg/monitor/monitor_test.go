package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ecommerce-search-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSinkDisabled(t *testing.T) {
	sink := NewSink(config.MonitoringConfig{Enabled: false})
	// 空实现可以安全地发布与关闭
	sink.Publish(SearchEvent{Query: "zapatos"})
	sink.Close()
}

func TestHTTPSinkDeliversEvents(t *testing.T) {
	var received int64
	var lastQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event SearchEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		lastQuery.Store(event.Query)
		atomic.AddInt64(&received, 1)
	}))
	defer srv.Close()

	sink := NewSink(config.MonitoringConfig{
		Enabled:   true,
		Transport: "http",
		Endpoint:  srv.URL,
	})

	sink.Publish(SearchEvent{Query: "zapatos", QueryLength: 7, NumResults: 3, LatencyMs: 12.5})
	sink.Close() // Close 排空队列后返回

	assert.Equal(t, int64(1), atomic.LoadInt64(&received))
	assert.Equal(t, "zapatos", lastQuery.Load())
}

func TestHTTPSinkSwallowsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewSink(config.MonitoringConfig{
		Enabled:   true,
		Transport: "http",
		Endpoint:  srv.URL,
	})

	// 投递失败不可感知，Publish 与 Close 均正常返回
	sink.Publish(SearchEvent{Query: "zapatos"})
	sink.Close()
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	sink := NewSink(config.MonitoringConfig{
		Enabled:        true,
		Transport:      "http",
		Endpoint:       srv.URL,
		QueueSize:      1,
		TimeoutSeconds: 1,
	})

	// 第一条事件占住工作协程，其余填满并溢出队列；Publish 始终立即返回
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			sink.Publish(SearchEvent{Query: "zapatos"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish 在队列满时发生了阻塞")
	}
}

func TestBrokerList(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		assert.Equal(t, []string{"localhost:9092"}, brokerList("localhost:9092"))
	})

	t.Run("comma separated", func(t *testing.T) {
		assert.Equal(t,
			[]string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"},
			brokerList("kafka-1:9092, kafka-2:9092,kafka-3:9092"))
	})

	t.Run("empty entries dropped", func(t *testing.T) {
		assert.Equal(t, []string{"kafka-1:9092"}, brokerList("kafka-1:9092,, "))
	})
}

func TestSearchEventOmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(SearchEvent{Query: "zapatos", QueryLength: 7})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "query")
	assert.Contains(t, raw, "latency_ms")
	assert.NotContains(t, raw, "embedding_norm")
	assert.NotContains(t, raw, "top_score")
	assert.NotContains(t, raw, "error")
}
