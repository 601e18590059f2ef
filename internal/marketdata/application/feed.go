// Package application 行情应用服务：带缓存与兜底的报价、后台轮询、日线与情绪
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
	"github.com/wyfcoding/optionsdesk/pkg/config"
	"github.com/wyfcoding/optionsdesk/pkg/metrics"
)

// FallbackSource 兜底报价的来源标识
const FallbackSource = "fallback"

// 指标中的报价结果
const (
	resultLive     = "live"
	resultCache    = "cache"
	resultFallback = "fallback"
	resultError    = "error"
)

// Feed 报价服务
// 查询顺序：新鲜缓存 -> 实时行情源 -> 任意缓存 -> 配置的兜底报价
type Feed struct {
	source    domain.PriceSource
	cache     domain.QuoteCache
	collector metrics.Collector
	logger    *slog.Logger

	fallbackPrice  decimal.Decimal
	fallbackChange decimal.Decimal
	// 缓存报价在该时长内视为新鲜，直接返回
	freshFor time.Duration
	now      func() time.Time
}

// NewFeed 创建报价服务
func NewFeed(source domain.PriceSource, cache domain.QuoteCache, cfg config.PriceFeedConfig, collector metrics.Collector, logger *slog.Logger) (*Feed, error) {
	price, err := decimal.NewFromString(cfg.FallbackPrice)
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("invalid fallback price %q", cfg.FallbackPrice)
	}
	change, err := decimal.NewFromString(cfg.FallbackChange24h)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback 24h change %q: %w", cfg.FallbackChange24h, err)
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Feed{
		source:         source,
		cache:          cache,
		collector:      collector,
		logger:         logger,
		fallbackPrice:  price,
		fallbackChange: change,
		freshFor:       cfg.PollInterval,
		now:            time.Now,
	}, nil
}

// Latest 获取最新报价
// 只有未配置的资产返回 ErrQuoteUnavailable，其余故障均降级为缓存或兜底报价
func (f *Feed) Latest(ctx context.Context, asset string) (domain.Quote, error) {
	asset = domain.NormalizeAsset(asset)

	cached := f.cached(ctx, asset)
	if cached != nil && !cached.IsStale(f.now(), f.freshFor) {
		f.collector.RecordPriceFetch(asset, resultCache)
		return *cached, nil
	}

	q, err := f.Refresh(ctx, asset)
	if err == nil {
		return q, nil
	}
	if errors.Is(err, domain.ErrUnknownAsset) {
		return domain.Quote{}, fmt.Errorf("%w: %w", domain.ErrQuoteUnavailable, err)
	}

	if cached != nil {
		f.logger.WarnContext(ctx, "price feed unavailable, serving cached quote", "asset", asset, "as_of", cached.AsOf, "error", err)
		f.collector.RecordPriceFetch(asset, resultCache)
		return *cached, nil
	}

	f.logger.WarnContext(ctx, "price feed unavailable, serving fallback quote", "asset", asset, "error", err)
	f.collector.RecordPriceFetch(asset, resultFallback)
	return f.Fallback(asset), nil
}

// Refresh 从行情源拉取并写入缓存，不做降级
func (f *Feed) Refresh(ctx context.Context, asset string) (domain.Quote, error) {
	q, err := f.source.FetchQuote(ctx, asset)
	if err != nil {
		f.collector.RecordPriceFetch(domain.NormalizeAsset(asset), resultError)
		return domain.Quote{}, err
	}

	f.collector.RecordPriceFetch(q.Asset, resultLive)
	f.collector.SetSpotPrice(q.Asset, q.Price.InexactFloat64())
	if err := f.cache.SaveQuote(ctx, q); err != nil {
		f.logger.WarnContext(ctx, "failed to cache quote", "asset", q.Asset, "error", err)
	}
	return q, nil
}

// Fallback 构造兜底报价
func (f *Feed) Fallback(asset string) domain.Quote {
	q := domain.NewQuote(asset, f.fallbackPrice, f.fallbackChange, f.now(), FallbackSource)
	q.Fallback = true
	return q
}

func (f *Feed) cached(ctx context.Context, asset string) *domain.Quote {
	q, err := f.cache.GetQuote(ctx, asset)
	if err != nil {
		f.logger.WarnContext(ctx, "failed to read cached quote", "asset", asset, "error", err)
		return nil
	}
	return q
}
