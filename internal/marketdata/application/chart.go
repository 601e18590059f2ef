package application

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
)

// DefaultHistoryDays 默认日线天数
const DefaultHistoryDays = 7

// ChartView 日线图与情绪
type ChartView struct {
	Asset     string              `json:"asset"`
	Days      int                 `json:"days"`
	Quote     domain.Quote        `json:"quote"`
	Points    []domain.PricePoint `json:"points"`
	Sentiment domain.Sentiment    `json:"sentiment"`
	// 日线来自缓存而非实时行情源
	FromCache bool `json:"from_cache"`
}

// ChartService 日线图服务
type ChartService struct {
	feed   *Feed
	source domain.PriceSource
	cache  domain.QuoteCache
	logger *slog.Logger
}

// NewChartService 创建日线图服务
func NewChartService(feed *Feed, source domain.PriceSource, cache domain.QuoteCache, logger *slog.Logger) *ChartService {
	return &ChartService{feed: feed, source: source, cache: cache, logger: logger}
}

// Chart 返回最近 days 天日线、现价与情绪
// 行情源失败时依次使用缓存日线、空序列
func (s *ChartService) Chart(ctx context.Context, asset string, days int) (*ChartView, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	asset = domain.NormalizeAsset(asset)

	quote, err := s.feed.Latest(ctx, asset)
	if err != nil {
		return nil, err
	}

	view := &ChartView{Asset: asset, Days: days, Quote: quote}

	points, err := s.RefreshHistory(ctx, asset, days)
	if err != nil {
		s.logger.WarnContext(ctx, "price history unavailable, trying cache", "asset", asset, "error", err)
		cached, cacheErr := s.cache.GetHistory(ctx, asset)
		if cacheErr != nil {
			s.logger.WarnContext(ctx, "failed to read cached history", "asset", asset, "error", cacheErr)
		}
		points = tail(cached, days)
		view.FromCache = len(points) > 0
	}
	if points == nil {
		points = []domain.PricePoint{}
	}

	view.Points = points
	view.Sentiment = domain.AnalyzeSentiment(quote.Change24h, points)
	return view, nil
}

// RefreshHistory 从行情源拉取日线并写入缓存
func (s *ChartService) RefreshHistory(ctx context.Context, asset string, days int) ([]domain.PricePoint, error) {
	points, err := s.source.FetchHistory(ctx, asset, days)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SaveHistory(ctx, asset, points); err != nil {
		s.logger.WarnContext(ctx, "failed to cache history", "asset", asset, "error", err)
	}
	return points, nil
}

func tail(points []domain.PricePoint, n int) []domain.PricePoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
