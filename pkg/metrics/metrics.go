// Package metrics 提供 Prometheus 指标集合与采集 HTTP 服务
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/optionsdesk/pkg/logger"
)

const namespace = "optionsdesk"

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数，按 method/path/status 区分
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// gRPC 请求计数
	GRPCRequestsTotal *prometheus.CounterVec

	// 行情源拉取计数，result: live / cache / fallback / error
	PriceFetchTotal *prometheus.CounterVec
	// 最新现价
	SpotPrice *prometheus.GaugeVec

	// 业务指标
	OptionsMintedTotal *prometheus.CounterVec
	// 行权尝试，按结果区分
	ExerciseAttemptsTotal *prometheus.CounterVec
	// 挂单事件：created / filled / cancelled
	ListingEventsTotal *prometheus.CounterVec
	// 钱包调用失败计数，按原因区分
	WalletErrorsTotal *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC requests",
		}, []string{"method", "code"}),

		PriceFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "price_fetch_total",
			Help:      "Price feed lookups by asset and result",
		}, []string{"asset", "result"}),
		SpotPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "spot_price_usd",
			Help:      "Latest spot price in USD",
		}, []string{"asset"}),

		OptionsMintedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "options_minted_total",
			Help:      "Total option NFTs minted",
		}, []string{"option_type", "asset"}),
		ExerciseAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "exercise_attempts_total",
			Help:      "Option exercise attempts by outcome",
		}, []string{"outcome"}),
		ListingEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "listing_events_total",
			Help:      "Marketplace listing lifecycle events",
		}, []string{"event"}),
		WalletErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "wallet_errors_total",
			Help:      "Wallet bridge failures by reason",
		}, []string{"reason"}),
	}
}

// Register 注册所有指标，reg 为空时使用默认注册器
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.PriceFetchTotal,
		m.SpotPrice,
		m.OptionsMintedTotal,
		m.ExerciseAttemptsTotal,
		m.ListingEventsTotal,
		m.WalletErrorsTotal,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// NewServer 创建 Prometheus 采集 HTTP 服务，由调用方负责启动与关闭
func NewServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve 启动采集服务直到 ctx 取消
func Serve(ctx context.Context, srv *http.Server) error {
	logger.Info(ctx, "Starting Prometheus HTTP server", "addr", srv.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Collector 业务代码使用的指标收集器接口
type Collector interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	RecordGRPCRequest(method, code string)
	RecordPriceFetch(asset, result string)
	SetSpotPrice(asset string, price float64)
	RecordMint(optionType, asset string)
	RecordExercise(outcome string)
	RecordListingEvent(event string)
	RecordWalletError(reason string)
}

// DefaultCollector 基于 Metrics 的收集器实现
type DefaultCollector struct {
	metrics *Metrics
}

// NewCollector 创建收集器
func NewCollector(m *Metrics) *DefaultCollector {
	return &DefaultCollector{metrics: m}
}

func (c *DefaultCollector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	c.metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (c *DefaultCollector) RecordGRPCRequest(method, code string) {
	c.metrics.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}

func (c *DefaultCollector) RecordPriceFetch(asset, result string) {
	c.metrics.PriceFetchTotal.WithLabelValues(asset, result).Inc()
}

func (c *DefaultCollector) SetSpotPrice(asset string, price float64) {
	c.metrics.SpotPrice.WithLabelValues(asset).Set(price)
}

func (c *DefaultCollector) RecordMint(optionType, asset string) {
	c.metrics.OptionsMintedTotal.WithLabelValues(optionType, asset).Inc()
}

func (c *DefaultCollector) RecordExercise(outcome string) {
	c.metrics.ExerciseAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (c *DefaultCollector) RecordListingEvent(event string) {
	c.metrics.ListingEventsTotal.WithLabelValues(event).Inc()
}

func (c *DefaultCollector) RecordWalletError(reason string) {
	c.metrics.WalletErrorsTotal.WithLabelValues(reason).Inc()
}

// NopCollector 丢弃所有指标，用于测试与命令行工具
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordGRPCRequest(string, string)                     {}
func (NopCollector) RecordPriceFetch(string, string)                      {}
func (NopCollector) SetSpotPrice(string, float64)                         {}
func (NopCollector) RecordMint(string, string)                            {}
func (NopCollector) RecordExercise(string)                                {}
func (NopCollector) RecordListingEvent(string)                            {}
func (NopCollector) RecordWalletError(string)                             {}
