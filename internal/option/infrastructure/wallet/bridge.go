// Package wallet 通过本地钱包桥接服务完成地址查询、余额查询与交易签名提交
package wallet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionsdesk/internal/option/domain"
	"github.com/wyfcoding/optionsdesk/pkg/config"
)

// lovelaceDecimals 1 ADA = 10^6 lovelace
const lovelaceDecimals = 6

type addressResponse struct {
	Address string `json:"address"`
}

type balanceResponse struct {
	Lovelace decimal.Decimal `json:"lovelace"`
}

type submitResponse struct {
	TxID string `json:"tx_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Bridge 钱包桥接客户端，实现 domain.Wallet
type Bridge struct {
	http *resty.Client
}

// NewBridge 创建钱包桥接客户端
// 提交交易不做重试，避免重复签名
func NewBridge(cfg config.WalletConfig) *Bridge {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BridgeURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Bridge{http: rc}
}

// GetAddress 当前连接钱包的收款地址
func (b *Bridge) GetAddress(ctx context.Context) (string, error) {
	var body addressResponse
	if err := b.do(ctx, http.MethodGet, "/address", nil, &body); err != nil {
		return "", err
	}
	if body.Address == "" {
		return "", fmt.Errorf("%w: bridge returned empty address", domain.ErrNotConnected)
	}
	return body.Address, nil
}

// GetBalance 钱包余额，单位 ADA
func (b *Bridge) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var body balanceResponse
	if err := b.do(ctx, http.MethodGet, "/balance", nil, &body); err != nil {
		return decimal.Zero, err
	}
	return body.Lovelace.Shift(-lovelaceDecimals), nil
}

// SignAndSubmit 提交意图由钱包签名上链，返回交易哈希
func (b *Bridge) SignAndSubmit(ctx context.Context, intent domain.Intent) (string, error) {
	var body submitResponse
	if err := b.do(ctx, http.MethodPost, "/submit", intent, &body); err != nil {
		return "", err
	}
	if body.TxID == "" {
		return "", fmt.Errorf("%w: bridge returned empty tx id", domain.ErrNetwork)
	}
	return body.TxID, nil
}

func (b *Bridge) do(ctx context.Context, method, path string, payload, result any) error {
	req := b.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&errorResponse{})
	if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrNetwork, method, path, err)
	}
	if !resp.IsError() {
		return nil
	}

	detail := resp.Status()
	if e, ok := resp.Error().(*errorResponse); ok && e.Error != "" {
		detail = e.Error
	}
	switch resp.StatusCode() {
	case http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUserRejected, detail)
	default:
		return fmt.Errorf("%w: %s %s returned %d: %s", domain.ErrNetwork, method, path, resp.StatusCode(), detail)
	}
}
