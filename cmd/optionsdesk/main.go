package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	mdapp "github.com/wyfcoding/optionsdesk/internal/marketdata/application"
	"github.com/wyfcoding/optionsdesk/internal/marketdata/infrastructure/coingecko"
	mdredis "github.com/wyfcoding/optionsdesk/internal/marketdata/infrastructure/redis"
	mdhttp "github.com/wyfcoding/optionsdesk/internal/marketdata/interfaces/http"
	mpapp "github.com/wyfcoding/optionsdesk/internal/marketplace/application"
	mpmessaging "github.com/wyfcoding/optionsdesk/internal/marketplace/infrastructure/messaging"
	mpmysql "github.com/wyfcoding/optionsdesk/internal/marketplace/infrastructure/persistence/mysql"
	mphttp "github.com/wyfcoding/optionsdesk/internal/marketplace/interfaces/http"
	optionapp "github.com/wyfcoding/optionsdesk/internal/option/application"
	optionmessaging "github.com/wyfcoding/optionsdesk/internal/option/infrastructure/messaging"
	optionmysql "github.com/wyfcoding/optionsdesk/internal/option/infrastructure/persistence/mysql"
	"github.com/wyfcoding/optionsdesk/internal/option/infrastructure/wallet"
	optionhttp "github.com/wyfcoding/optionsdesk/internal/option/interfaces/http"
	"github.com/wyfcoding/optionsdesk/pkg/cache"
	"github.com/wyfcoding/optionsdesk/pkg/config"
	"github.com/wyfcoding/optionsdesk/pkg/db"
	"github.com/wyfcoding/optionsdesk/pkg/logger"
	"github.com/wyfcoding/optionsdesk/pkg/metrics"
	"github.com/wyfcoding/optionsdesk/pkg/middleware"
	"github.com/wyfcoding/optionsdesk/pkg/mq"
	"github.com/wyfcoding/optionsdesk/pkg/ratelimit"
	"github.com/wyfcoding/optionsdesk/pkg/response"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var configPath = flag.String("config", "configs/optionsdesk.toml", "config file path")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		slog.Error("optionsdesk exited with error", "error", err)
		os.Exit(1)
	}
}

// run 返回前执行全部 defer，保证数据库、Redis 与 Kafka 连接被关闭
func run() error {
	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Logger
	log, err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	})
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	log = log.With("service", cfg.ServiceName, "version", cfg.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Metrics
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(nil); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	collector := metrics.NewCollector(m)

	// 4. Infrastructure
	database, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer database.Close()

	if err := optionmysql.AutoMigrate(database.DB); err != nil {
		return fmt.Errorf("failed to migrate options: %w", err)
	}
	if err := mpmysql.AutoMigrate(database.DB); err != nil {
		return fmt.Errorf("failed to migrate listings: %w", err)
	}

	redisCache, err := cache.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer redisCache.Close()

	producer := mq.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 5. Market data
	source := coingecko.NewClient(cfg.PriceFeed)
	quoteCache := mdredis.NewQuoteCache(redisCache.Client(), cfg.PriceFeed.CacheTTL)
	mdLog := log.With("module", "marketdata")
	feed, err := mdapp.NewFeed(source, quoteCache, cfg.PriceFeed, collector, mdLog)
	if err != nil {
		return fmt.Errorf("failed to create price feed: %w", err)
	}
	charts := mdapp.NewChartService(feed, source, quoteCache, mdLog)
	poller := mdapp.NewPoller(feed, charts, cfg.PriceFeed.Assets(),
		cfg.PriceFeed.PollInterval, cfg.PriceFeed.ChartInterval, cfg.PriceFeed.HistoryDays, mdLog)

	// 6. Options & marketplace
	bridge := wallet.NewBridge(cfg.Wallet)
	optionRepo := optionmysql.NewOptionRepository(database.DB)
	optionSvc := optionapp.NewOptionAppService(
		optionRepo,
		feed,
		bridge,
		optionmessaging.NewEventPublisher(producer, cfg.Kafka.TopicPrefix),
		collector,
		log.With("module", "option"),
		cfg.PriceFeed.Assets(),
		cfg.PriceFeed.StaleAfter,
	)
	marketplaceSvc := mpapp.NewMarketplaceService(
		mpmysql.NewListingRepository(database),
		optionRepo,
		feed,
		bridge,
		mpmessaging.NewEventPublisher(producer, cfg.Kafka.TopicPrefix),
		collector,
		log.With("module", "marketplace"),
	)
	optionSvc.UseListingCloser(marketplaceSvc)

	// 7. HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinMetricsMiddleware(collector),
		middleware.GinCORSMiddleware(),
	)
	r.GET("/health", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(checkCtx); err != nil {
			response.ErrorWithStatus(c, http.StatusServiceUnavailable, "database unavailable", err.Error())
			return
		}
		if err := redisCache.Ping(checkCtx); err != nil {
			response.ErrorWithStatus(c, http.StatusServiceUnavailable, "redis unavailable", err.Error())
			return
		}
		response.Success(c, gin.H{"status": "ok", "service": cfg.ServiceName, "version": cfg.Version})
	})

	api := r.Group("/api/v1")
	var limiter ratelimit.RateLimiter = ratelimit.NewRedisRateLimiter(redisCache.Client())
	if cfg.RateLimit.Backend == "local" {
		limiter = ratelimit.NewLocalRateLimiter(ratelimit.DefaultIdleTTL)
	}
	api.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	optionhttp.NewOptionHandler(optionSvc).RegisterRoutes(api)
	mdhttp.NewMarketDataHandler(feed, charts, cfg.PriceFeed.StaleAfter).RegisterRoutes(api)
	mphttp.NewMarketplaceHandler(marketplaceSvc).RegisterRoutes(api)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 8. gRPC health + reflection
	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(collector),
	))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// 9. Start
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("price poller starting", "assets", cfg.PriceFeed.Assets(), "interval", cfg.PriceFeed.PollInterval)
		return poller.Run(gctx)
	})

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		log.Info("gRPC server starting", "addr", addr)
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		log.Info("HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers...")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP shutdown failed", "error", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	log.Info("server stopped")
	return nil
}
