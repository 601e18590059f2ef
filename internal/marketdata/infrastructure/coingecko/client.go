// Package coingecko 通过 CoinGecko 公共 API 获取现价与日线收盘价
package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
	"github.com/wyfcoding/optionsdesk/pkg/config"
)

// SourceName 报价来源标识
const SourceName = "coingecko"

type simplePrice struct {
	USD          decimal.Decimal `json:"usd"`
	USD24hChange decimal.Decimal `json:"usd_24h_change"`
}

type marketChart struct {
	// 每个点为 [毫秒时间戳, 价格]
	Prices [][]decimal.Decimal `json:"prices"`
}

// Client CoinGecko 行情源
type Client struct {
	http     *resty.Client
	assetIDs map[string]string
	now      func() time.Time
}

// NewClient 创建客户端
func NewClient(cfg config.PriceFeedConfig) *Client {
	ids := make(map[string]string, len(cfg.AssetIDs))
	for asset, id := range cfg.AssetIDs {
		ids[domain.NormalizeAsset(asset)] = id
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &Client{http: rc, assetIDs: ids, now: time.Now}
}

func (c *Client) coinID(asset string) (string, error) {
	id, ok := c.assetIDs[domain.NormalizeAsset(asset)]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownAsset, asset)
	}
	return id, nil
}

// FetchQuote 获取现价与 24h 涨跌幅
func (c *Client) FetchQuote(ctx context.Context, asset string) (domain.Quote, error) {
	id, err := c.coinID(asset)
	if err != nil {
		return domain.Quote{}, err
	}

	var body map[string]simplePrice
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":                 id,
			"vs_currencies":       "usd",
			"include_24hr_change": "true",
		}).
		SetResult(&body).
		Get("/simple/price")
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: coingecko request: %v", domain.ErrQuoteUnavailable, err)
	}
	if resp.IsError() {
		return domain.Quote{}, fmt.Errorf("%w: coingecko status %d", domain.ErrQuoteUnavailable, resp.StatusCode())
	}

	p, ok := body[id]
	if !ok || !p.USD.IsPositive() {
		return domain.Quote{}, fmt.Errorf("%w: no usd price for %s", domain.ErrQuoteUnavailable, id)
	}
	return domain.NewQuote(asset, p.USD, p.USD24hChange.Round(4), c.now(), SourceName), nil
}

// FetchHistory 获取最近 days 天的日线收盘价，按时间升序
func (c *Client) FetchHistory(ctx context.Context, asset string, days int) ([]domain.PricePoint, error) {
	id, err := c.coinID(asset)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}

	var body marketChart
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"days":        strconv.Itoa(days),
			"interval":    "daily",
		}).
		SetResult(&body).
		Get("/coins/{id}/market_chart")
	if err != nil {
		return nil, fmt.Errorf("%w: coingecko request: %v", domain.ErrQuoteUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: coingecko status %d", domain.ErrQuoteUnavailable, resp.StatusCode())
	}

	points := make([]domain.PricePoint, 0, len(body.Prices))
	for _, raw := range body.Prices {
		if len(raw) < 2 {
			continue
		}
		points = append(points, domain.PricePoint{
			Timestamp: time.UnixMilli(raw[0].IntPart()).UTC(),
			Price:     raw[1],
		})
	}
	return points, nil
}
