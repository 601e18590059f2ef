// Package http 行情 HTTP 接口
package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionsdesk/internal/marketdata/application"
	"github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
	"github.com/wyfcoding/optionsdesk/pkg/response"
)

// DefaultAsset 未指定资产时的默认标的
const DefaultAsset = "ADA"

// QuoteProvider 报价查询
type QuoteProvider interface {
	Latest(ctx context.Context, asset string) (domain.Quote, error)
}

// ChartProvider 日线图查询
type ChartProvider interface {
	Chart(ctx context.Context, asset string, days int) (*application.ChartView, error)
}

// QuoteView 报价响应，附带陈旧标记
type QuoteView struct {
	domain.Quote
	Stale bool `json:"stale"`
}

var errorRules = []response.StatusRule{
	{Err: domain.ErrQuoteUnavailable, Status: http.StatusBadGateway},
}

type MarketDataHandler struct {
	quotes     QuoteProvider
	charts     ChartProvider
	staleAfter time.Duration
	now        func() time.Time
}

func NewMarketDataHandler(quotes QuoteProvider, charts ChartProvider, staleAfter time.Duration) *MarketDataHandler {
	return &MarketDataHandler{quotes: quotes, charts: charts, staleAfter: staleAfter, now: time.Now}
}

func (h *MarketDataHandler) RegisterRoutes(r *gin.RouterGroup) {
	market := r.Group("/market")
	{
		market.GET("/quote", h.GetQuote)
		market.GET("/chart", h.GetChart)
	}
}

// GetQuote GET /market/quote?asset=ADA
func (h *MarketDataHandler) GetQuote(c *gin.Context) {
	asset := c.DefaultQuery("asset", DefaultAsset)

	q, err := h.quotes.Latest(c.Request.Context(), asset)
	if err != nil {
		response.Error(c, err, errorRules)
		return
	}
	response.Success(c, QuoteView{Quote: q, Stale: q.IsStale(h.now(), h.staleAfter)})
}

// GetChart GET /market/chart?asset=ADA&days=7
func (h *MarketDataHandler) GetChart(c *gin.Context) {
	asset := c.DefaultQuery("asset", DefaultAsset)
	days := application.DefaultHistoryDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 365 {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid days", raw)
			return
		}
		days = n
	}

	view, err := h.charts.Chart(c.Request.Context(), asset, days)
	if err != nil {
		response.Error(c, err, errorRules)
		return
	}
	response.Success(c, view)
}
