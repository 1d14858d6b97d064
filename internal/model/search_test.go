package model

import (
	"testing"

	"ecommerce-search-go/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestSearchRequestNormalize(t *testing.T) {
	t.Run("defaults top_k", func(t *testing.T) {
		r := SearchRequest{Query: "zapatos"}
		r.Normalize()
		assert.Equal(t, DefaultTopK, r.TopK)
	})

	t.Run("keeps explicit top_k", func(t *testing.T) {
		r := SearchRequest{Query: "zapatos", TopK: 20}
		r.Normalize()
		assert.Equal(t, 20, r.TopK)
	})

	t.Run("trims query", func(t *testing.T) {
		r := SearchRequest{Query: "  zapatos  ", TopK: 5}
		r.Normalize()
		assert.Equal(t, "zapatos", r.Query)
	})
}

func TestSearchRequestValidate(t *testing.T) {
	base := SearchRequest{Query: "zapatos", TopK: 5}

	t.Run("valid", func(t *testing.T) {
		r := base
		assert.NoError(t, r.Validate())
	})

	t.Run("empty query", func(t *testing.T) {
		r := base
		r.Query = ""
		err := r.Validate()
		require.Error(t, err)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	})

	t.Run("top_k below minimum", func(t *testing.T) {
		r := base
		r.TopK = 0
		assert.Error(t, r.Validate())
	})

	t.Run("top_k above maximum", func(t *testing.T) {
		r := base
		r.TopK = 51
		assert.Error(t, r.Validate())
	})

	t.Run("top_k at bounds", func(t *testing.T) {
		r := base
		r.TopK = 1
		assert.NoError(t, r.Validate())
		r.TopK = 50
		assert.NoError(t, r.Validate())
	})

	t.Run("negative price_min", func(t *testing.T) {
		r := base
		r.PriceMin = floatPtr(-1)
		assert.Error(t, r.Validate())
	})

	t.Run("zero price_max", func(t *testing.T) {
		r := base
		r.PriceMax = floatPtr(0)
		assert.Error(t, r.Validate())
	})

	t.Run("price_max equal to price_min rejected", func(t *testing.T) {
		r := base
		r.PriceMin = floatPtr(10)
		r.PriceMax = floatPtr(10)
		assert.Error(t, r.Validate())
	})

	t.Run("price_max below price_min rejected", func(t *testing.T) {
		r := base
		r.PriceMin = floatPtr(100)
		r.PriceMax = floatPtr(50)
		assert.Error(t, r.Validate())
	})

	t.Run("consistent range accepted", func(t *testing.T) {
		r := base
		r.PriceMin = floatPtr(10)
		r.PriceMax = floatPtr(100)
		assert.NoError(t, r.Validate())
	})
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeScore(0))
	assert.Equal(t, 0.5, NormalizeScore(1.0))
	assert.Equal(t, 1.0, NormalizeScore(2.0))
	// 词法加权项可能把原始分推到 2.0 以上，截断到 1
	assert.Equal(t, 1.0, NormalizeScore(2.6))
	assert.Equal(t, 0.0, NormalizeScore(-0.5))
}

func TestRelevanceLabel(t *testing.T) {
	assert.Equal(t, RelevanceHigh, RelevanceLabel(0.85))
	assert.Equal(t, RelevanceHigh, RelevanceLabel(0.8))
	assert.Equal(t, RelevanceMedium, RelevanceLabel(0.65))
	assert.Equal(t, RelevanceMedium, RelevanceLabel(0.6))
	assert.Equal(t, RelevanceLow, RelevanceLabel(0.59))
	assert.Equal(t, RelevanceLow, RelevanceLabel(0))
}

func TestNewScoredProduct(t *testing.T) {
	p := Product{ID: "p-1", Name: "Camiseta"}

	sp := NewScoredProduct(p, 1.7)
	assert.InDelta(t, 0.85, sp.Score, 1e-9)
	assert.Equal(t, RelevanceHigh, sp.Relevance)

	sp = NewScoredProduct(p, 1.3)
	assert.InDelta(t, 0.65, sp.Score, 1e-9)
	assert.Equal(t, RelevanceMedium, sp.Relevance)

	sp = NewScoredProduct(p, 0.4)
	assert.InDelta(t, 0.2, sp.Score, 1e-9)
	assert.Equal(t, RelevanceLow, sp.Relevance)
}
