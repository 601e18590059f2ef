// Package grpcclient 提供 gRPC 客户端工厂，带连接退避、keepalive 与一元调用重试
package grpcclient

import (
	"context"
	"time"

	"github.com/wyfcoding/optionsdesk/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

// ClientConfig gRPC 客户端配置
type ClientConfig struct {
	// 目标地址
	Target string
	// 连接超时
	ConnTimeout time.Duration
	// 单次请求超时，包含全部重试
	RequestTimeout time.Duration
	// 最大重试次数
	MaxRetries int
	// 重试间隔
	RetryDelay time.Duration
	// Keepalive 间隔，0 表示不启用
	KeepaliveInterval time.Duration
}

// NewClient 创建 gRPC 客户端连接，连接在首次调用时建立
func NewClient(cfg ClientConfig) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(unaryClientInterceptor(cfg)),
	}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  100 * time.Millisecond,
				MaxDelay:   cfg.ConnTimeout,
				Multiplier: 1.6,
				Jitter:     0.2,
			},
			MinConnectTimeout: cfg.ConnTimeout,
		}))
	}

	if cfg.KeepaliveInterval > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveInterval,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}))
	}

	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		logger.Error(context.Background(), "Failed to create gRPC client", "target", cfg.Target, "error", err)
		return nil, err
	}
	return conn, nil
}

// unaryClientInterceptor 一元 RPC 拦截器：超时与可重试错误码重试
func unaryClientInterceptor(cfg ClientConfig) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
		}

		start := time.Now()
		var lastErr error
		for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
			err := invoker(ctx, method, req, reply, cc, opts...)
			if err == nil {
				logger.Debug(ctx, "gRPC request succeeded", "method", method, "duration", time.Since(start))
				return nil
			}

			lastErr = err
			st, ok := status.FromError(err)
			if !ok || !shouldRetry(st.Code()) || attempt >= cfg.MaxRetries {
				break
			}

			select {
			case <-time.After(cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		logger.Warn(ctx, "gRPC request failed", "method", method, "duration", time.Since(start), "error", lastErr)
		return lastErr
	}
}

// shouldRetry 判断是否应该重试
func shouldRetry(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
