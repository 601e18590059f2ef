// Package http 期权 NFT HTTP 接口
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	marketdomain "github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
	"github.com/wyfcoding/optionsdesk/internal/option/application"
	"github.com/wyfcoding/optionsdesk/internal/option/domain"
	"github.com/wyfcoding/optionsdesk/pkg/response"
)

// OptionService 期权用例
type OptionService interface {
	Mint(ctx context.Context, cmd application.MintCommand) (*application.MintResult, error)
	Get(ctx context.Context, id string) (*domain.OptionContract, error)
	Valuation(ctx context.Context, id string) (*application.OptionView, error)
	Exercise(ctx context.Context, id string) (*application.ExerciseResult, error)
	Portfolio(ctx context.Context, owner string) (*application.PortfolioView, error)
	Wallet(ctx context.Context) (*application.WalletInfo, error)
}

// ErrorRules 期权相关错误的状态码映射，市场模块复用
var ErrorRules = []response.StatusRule{
	{Err: domain.ErrInvalidContract, Status: http.StatusBadRequest},
	{Err: domain.ErrOptionNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrNotExercisable, Status: http.StatusConflict},
	{Err: domain.ErrAlreadyExercised, Status: http.StatusConflict},
	{Err: domain.ErrOptionChanged, Status: http.StatusConflict},
	{Err: domain.ErrUnreliableQuote, Status: http.StatusServiceUnavailable},
	{Err: domain.ErrNotConnected, Status: http.StatusPreconditionFailed},
	{Err: domain.ErrUserRejected, Status: http.StatusForbidden},
	{Err: domain.ErrNetwork, Status: http.StatusBadGateway},
	{Err: marketdomain.ErrQuoteUnavailable, Status: http.StatusBadGateway},
}

// MintRequest 铸造请求，数值字段使用字符串避免精度丢失，省略的字段取默认值
type MintRequest struct {
	Owner           string     `json:"owner"`
	OptionType      string     `json:"option_type"`
	StrikePrice     string     `json:"strike_price"`
	Premium         string     `json:"premium"`
	UnderlyingAsset string     `json:"underlying_asset"`
	ExpiryAt        *time.Time `json:"expiry_at"`
}

type OptionHandler struct {
	svc OptionService
}

func NewOptionHandler(svc OptionService) *OptionHandler {
	return &OptionHandler{svc: svc}
}

func (h *OptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	options := r.Group("/options")
	{
		options.POST("", h.Mint)
		options.GET("/:id", h.GetOption)
		options.GET("/:id/valuation", h.GetValuation)
		options.POST("/:id/exercise", h.Exercise)
	}
	r.GET("/portfolio/:owner", h.GetPortfolio)
	r.GET("/wallet", h.GetWallet)
}

// Mint POST /options
func (h *OptionHandler) Mint(c *gin.Context) {
	var req MintRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	res, err := h.svc.Mint(c.Request.Context(), application.MintCommand{
		Owner:           req.Owner,
		OptionType:      req.OptionType,
		StrikePrice:     req.StrikePrice,
		Premium:         req.Premium,
		UnderlyingAsset: req.UnderlyingAsset,
		ExpiryAt:        req.ExpiryAt,
	})
	if err != nil {
		response.Error(c, err, ErrorRules)
		return
	}
	response.Created(c, res)
}

// GetOption GET /options/:id
func (h *OptionHandler) GetOption(c *gin.Context) {
	opt, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err, ErrorRules)
		return
	}
	response.Success(c, opt)
}

// GetValuation GET /options/:id/valuation
func (h *OptionHandler) GetValuation(c *gin.Context) {
	view, err := h.svc.Valuation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err, ErrorRules)
		return
	}
	response.Success(c, view)
}

// Exercise POST /options/:id/exercise
func (h *OptionHandler) Exercise(c *gin.Context) {
	res, err := h.svc.Exercise(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err, ErrorRules)
		return
	}
	response.Success(c, res)
}

// GetPortfolio GET /portfolio/:owner
func (h *OptionHandler) GetPortfolio(c *gin.Context) {
	view, err := h.svc.Portfolio(c.Request.Context(), c.Param("owner"))
	if err != nil {
		response.Error(c, err, ErrorRules)
		return
	}
	response.Success(c, view)
}

// GetWallet GET /wallet
func (h *OptionHandler) GetWallet(c *gin.Context) {
	info, err := h.svc.Wallet(c.Request.Context())
	if err != nil {
		response.Error(c, err, ErrorRules)
		return
	}
	response.Success(c, info)
}
