package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceUnmarshal(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		var p Price
		require.NoError(t, json.Unmarshal([]byte(`19.99`), &p))
		assert.Equal(t, Price(19.99), p)
	})

	t.Run("numeric string", func(t *testing.T) {
		var p Price
		require.NoError(t, json.Unmarshal([]byte(`"19.99"`), &p))
		assert.Equal(t, Price(19.99), p)
	})

	t.Run("string with spaces", func(t *testing.T) {
		var p Price
		require.NoError(t, json.Unmarshal([]byte(`" 42 "`), &p))
		assert.Equal(t, Price(42), p)
	})

	t.Run("non numeric string rejected", func(t *testing.T) {
		var p Price
		assert.Error(t, json.Unmarshal([]byte(`"gratis"`), &p))
	})

	t.Run("object rejected", func(t *testing.T) {
		var p Price
		assert.Error(t, json.Unmarshal([]byte(`{"amount": 5}`), &p))
	})
}

func TestTimestampUnmarshal(t *testing.T) {
	t.Run("rfc3339 with zone", func(t *testing.T) {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(`"2024-05-01T10:30:00Z"`), &ts))
		assert.Equal(t, 2024, ts.Time().Year())
	})

	t.Run("without zone", func(t *testing.T) {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(`"2024-05-01T10:30:00"`), &ts))
		assert.Equal(t, time.May, ts.Time().Month())
	})

	t.Run("space separated", func(t *testing.T) {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(`"2024-05-01 10:30:00"`), &ts))
		assert.Equal(t, 10, ts.Time().Hour())
	})

	t.Run("garbage rejected", func(t *testing.T) {
		var ts Timestamp
		assert.Error(t, json.Unmarshal([]byte(`"ayer"`), &ts))
	})
}

func TestProductUnmarshal(t *testing.T) {
	raw := `{
		"id": "p-1",
		"name": "Auriculares inalámbricos",
		"description": "Bluetooth 5.0 con cancelación de ruido",
		"price": "59.90",
		"image_url": "https://example.com/p1.jpg",
		"category": "electronica",
		"stock": 12,
		"created_at": "2024-01-15T09:00:00",
		"updated_at": "2024-03-20T18:45:00Z"
	}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, Price(59.90), p.Price)
	assert.Equal(t, 12, p.Stock)
	require.NoError(t, p.Validate())
}

func TestProductValidate(t *testing.T) {
	valid := Product{ID: "p-1", Name: "Camiseta", Price: 10, Stock: 3}

	t.Run("valid", func(t *testing.T) {
		p := valid
		assert.NoError(t, p.Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		p := valid
		p.ID = ""
		assert.Error(t, p.Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		p := valid
		p.Name = ""
		assert.Error(t, p.Validate())
	})

	t.Run("negative price", func(t *testing.T) {
		p := valid
		p.Price = -1
		assert.Error(t, p.Validate())
	})

	t.Run("negative stock", func(t *testing.T) {
		p := valid
		p.Stock = -1
		assert.Error(t, p.Validate())
	})

	t.Run("zero stock allowed", func(t *testing.T) {
		p := valid
		p.Stock = 0
		assert.NoError(t, p.Validate())
	})
}

func TestNewProductDocument(t *testing.T) {
	p := Product{ID: "p-1", Name: "Camiseta", Price: 10}
	vec := []float32{0.1, 0.2, 0.3}

	doc := NewProductDocument(p, vec)
	assert.Equal(t, p.ID, doc.ID)
	assert.Equal(t, vec, doc.Embedding)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"embedding"`)
	assert.Contains(t, string(data), `"id":"p-1"`)
}
