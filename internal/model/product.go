// Package model 定义了商品、搜索请求与各 API 响应的结构体。
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Price 商品价格。上游目录会把价格序列化成数字或数字字符串，
// 在边界处统一强制转换为 float64，不合规的输入直接拒绝。
type Price float64

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *Price) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*p = Price(num)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("price 必须是数字或数字字符串: %s", string(data))
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return fmt.Errorf("无法将 price '%s' 解析为数字: %w", str, err)
	}
	*p = Price(num)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(p))
}

// Timestamp 兼容带时区与不带时区的 ISO 时间串。
type Timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, str); err == nil {
			*t = Timestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("无法解析时间字符串: %s", str)
}

// MarshalJSON implements the json.Marshaler interface.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339))
}

// Time 返回底层的 time.Time。
func (t Timestamp) Time() time.Time { return time.Time(t) }

// Product 上游目录中的商品实体。对搜索引擎而言只读，仅在重建索引时被写入索引。
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       Price     `json:"price"`
	ImageURL    string    `json:"image_url"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// Validate 校验商品字段是否满足索引要求。
func (p *Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("商品缺少 id")
	}
	if p.Name == "" {
		return fmt.Errorf("商品 %s 缺少 name", p.ID)
	}
	if p.Price < 0 {
		return fmt.Errorf("商品 %s 的价格为负数: %v", p.ID, float64(p.Price))
	}
	if p.Stock < 0 {
		return fmt.Errorf("商品 %s 的库存为负数: %d", p.ID, p.Stock)
	}
	return nil
}

// ProductDocument 写入 Elasticsearch 的文档结构：商品字段加上派生的 embedding 向量。
// embedding 永远在索引时由当前的 name/description 重新生成，不继承旧版本。
type ProductDocument struct {
	Product
	Embedding []float32 `json:"embedding"`
}

// NewProductDocument 由商品和它的向量构建索引文档。
func NewProductDocument(p Product, embedding []float32) ProductDocument {
	return ProductDocument{Product: p, Embedding: embedding}
}
