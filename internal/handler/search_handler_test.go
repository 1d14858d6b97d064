package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ecommerce-search-go/internal/errs"
	"ecommerce-search-go/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSearchService 返回固定响应或固定错误。
type stubSearchService struct {
	resp model.SearchResponse
	err  error
}

func (s *stubSearchService) Search(ctx context.Context, req model.SearchRequest) (model.SearchResponse, error) {
	if s.err != nil {
		return model.SearchResponse{}, s.err
	}
	resp := s.resp
	resp.Query = req.Query
	return resp, nil
}

func performSearch(svc *stubSearchService, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/api/v1/search", NewSearchHandler(svc).Search)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearchHandlerSuccess(t *testing.T) {
	svc := &stubSearchService{
		resp: model.SearchResponse{
			TotalResults: 1,
			Results: []model.ScoredProduct{
				{
					Product:   model.Product{ID: "p-1", Name: "Camiseta", Price: 10},
					Score:     0.85,
					Relevance: model.RelevanceHigh,
				},
			},
		},
	}

	w := performSearch(svc, `{"query": "camiseta", "top_k": 3}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "camiseta", resp["query"])
	assert.Equal(t, float64(1), resp["total_results"])
	results := resp["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "high", first["relevance"])
	// 向量不得出现在响应中
	assert.NotContains(t, first, "embedding")
}

func TestSearchHandlerMalformedBody(t *testing.T) {
	w := performSearch(&stubSearchService{}, `{"query": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", errs.New(errs.KindValidation, "query 不能为空"), http.StatusBadRequest},
		{"not found", errs.New(errs.KindNotFound, "不存在"), http.StatusNotFound},
		{"storage down", errs.New(errs.KindServiceUnavailable, "es 不可达"), http.StatusServiceUnavailable},
		{"model down", errs.New(errs.KindModelUnavailable, "模型不可用"), http.StatusServiceUnavailable},
		{"internal", errs.New(errs.KindInternal, "数组越界"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performSearch(&stubSearchService{err: tc.err}, `{"query": "zapatos"}`)
			assert.Equal(t, tc.code, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tc.code == http.StatusInternalServerError {
				// 内部错误不向客户端透出细节
				assert.Equal(t, "内部服务错误", resp["error"])
				assert.NotContains(t, resp["error"], "数组越界")
			} else {
				assert.NotEmpty(t, resp["error"])
			}
		})
	}
}
