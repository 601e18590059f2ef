// Package domain 包含行情服务的领域模型：现价快照、日线收盘序列与市场情绪
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrUnknownAsset     = errors.New("unknown asset")
)

// Quote 标的资产在某一时刻的价格观测
// 由外部行情源提供，系统内部从不计算价格
type Quote struct {
	Asset     string          `json:"asset"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"` // 24 小时涨跌幅（百分比）
	AsOf      time.Time       `json:"as_of"`
	Source    string          `json:"source"`
	Fallback  bool            `json:"fallback"` // 行情源不可用时的兜底报价
}

// NewQuote 创建行情快照
func NewQuote(asset string, price, change24h decimal.Decimal, asOf time.Time, source string) Quote {
	return Quote{
		Asset:     NormalizeAsset(asset),
		Price:     price,
		Change24h: change24h,
		AsOf:      asOf,
		Source:    source,
	}
}

// IsStale 报价是否超出调用方的陈旧容忍度
func (q Quote) IsStale(now time.Time, tolerance time.Duration) bool {
	if tolerance <= 0 {
		return false
	}
	return now.Sub(q.AsOf) > tolerance
}

// PricePoint 日线收盘点
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// NormalizeAsset 统一资产代码格式
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// PriceSource 外部行情源
type PriceSource interface {
	// FetchQuote 获取现价与 24h 涨跌幅
	FetchQuote(ctx context.Context, asset string) (Quote, error)
	// FetchHistory 获取最近 days 天的日线收盘价
	FetchHistory(ctx context.Context, asset string, days int) ([]PricePoint, error)
}

// QuoteCache 最新报价与历史序列缓存
type QuoteCache interface {
	SaveQuote(ctx context.Context, q Quote) error
	// GetQuote 未命中时返回 (nil, nil)
	GetQuote(ctx context.Context, asset string) (*Quote, error)
	SaveHistory(ctx context.Context, asset string, points []PricePoint) error
	GetHistory(ctx context.Context, asset string) ([]PricePoint, error)
}
