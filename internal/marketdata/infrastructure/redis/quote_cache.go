// Package redis 行情读模型缓存：最新报价与日线序列
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
)

// QuoteCache 基于 Redis 的行情缓存，实现 domain.QuoteCache
type QuoteCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewQuoteCache 创建行情缓存，ttl <= 0 时默认 24h
func NewQuoteCache(client redis.UniversalClient, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &QuoteCache{
		client: client,
		prefix: "optionsdesk:marketdata:",
		ttl:    ttl,
	}
}

func (c *QuoteCache) quoteKey(asset string) string {
	return c.prefix + "quote:" + domain.NormalizeAsset(asset)
}

func (c *QuoteCache) historyKey(asset string) string {
	return c.prefix + "history:" + domain.NormalizeAsset(asset)
}

func (c *QuoteCache) SaveQuote(ctx context.Context, q domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	return c.client.Set(ctx, c.quoteKey(q.Asset), data, c.ttl).Err()
}

func (c *QuoteCache) GetQuote(ctx context.Context, asset string) (*domain.Quote, error) {
	data, err := c.client.Get(ctx, c.quoteKey(asset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quote from redis: %w", err)
	}
	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &q, nil
}

// SaveHistory 整体覆盖日线序列
func (c *QuoteCache) SaveHistory(ctx context.Context, asset string, points []domain.PricePoint) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return c.client.Set(ctx, c.historyKey(asset), data, c.ttl).Err()
}

// GetHistory 未命中时返回空切片
func (c *QuoteCache) GetHistory(ctx context.Context, asset string) ([]domain.PricePoint, error) {
	data, err := c.client.Get(ctx, c.historyKey(asset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history from redis: %w", err)
	}
	var points []domain.PricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return points, nil
}
