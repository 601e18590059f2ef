package application

import (
	"context"
	"log/slog"
	"time"
)

// Poller 定时刷新报价与日线缓存
type Poller struct {
	feed          *Feed
	chart         *ChartService
	assets        []string
	interval      time.Duration
	chartInterval time.Duration
	historyDays   int
	logger        *slog.Logger
}

// NewPoller 创建轮询器
func NewPoller(feed *Feed, chart *ChartService, assets []string, interval, chartInterval time.Duration, historyDays int, logger *slog.Logger) *Poller {
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	return &Poller{
		feed:          feed,
		chart:         chart,
		assets:        assets,
		interval:      interval,
		chartInterval: chartInterval,
		historyDays:   historyDays,
		logger:        logger,
	}
}

// Run 阻塞运行直到 ctx 取消，启动时立即刷新一次
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "price poller started", "assets", p.assets, "interval", p.interval, "chart_interval", p.chartInterval)

	quoteTicker := time.NewTicker(p.interval)
	defer quoteTicker.Stop()
	chartTicker := time.NewTicker(p.chartInterval)
	defer chartTicker.Stop()

	p.refreshQuotes(ctx)
	p.refreshHistory(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "price poller stopped")
			return nil
		case <-quoteTicker.C:
			p.refreshQuotes(ctx)
		case <-chartTicker.C:
			p.refreshHistory(ctx)
		}
	}
}

func (p *Poller) refreshQuotes(ctx context.Context) {
	for _, asset := range p.assets {
		if ctx.Err() != nil {
			return
		}
		q, err := p.feed.Refresh(ctx, asset)
		if err != nil {
			p.logger.WarnContext(ctx, "quote refresh failed", "asset", asset, "error", err)
			continue
		}
		p.logger.DebugContext(ctx, "quote refreshed", "asset", q.Asset, "price", q.Price.String(), "change_24h", q.Change24h.String())
	}
}

func (p *Poller) refreshHistory(ctx context.Context) {
	for _, asset := range p.assets {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.chart.RefreshHistory(ctx, asset, p.historyDays); err != nil {
			p.logger.WarnContext(ctx, "history refresh failed", "asset", asset, "error", err)
		}
	}
}
