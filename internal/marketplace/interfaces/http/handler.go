// Package http 二级市场 HTTP 接口
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionsdesk/internal/marketplace/application"
	"github.com/wyfcoding/optionsdesk/internal/marketplace/domain"
	optionhttp "github.com/wyfcoding/optionsdesk/internal/option/interfaces/http"
	"github.com/wyfcoding/optionsdesk/pkg/response"
)

// MarketplaceService 二级市场用例
type MarketplaceService interface {
	ListOption(ctx context.Context, cmd application.ListCommand) (*domain.Listing, error)
	Buy(ctx context.Context, listingID, buyer string) (*application.BuyResult, error)
	Cancel(ctx context.Context, listingID, seller string) (*domain.Listing, error)
	Open(ctx context.Context, asset string) ([]application.ListingView, error)
}

var errorRules = append([]response.StatusRule{
	{Err: domain.ErrListingNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrListingClosed, Status: http.StatusConflict},
	{Err: domain.ErrNotListable, Status: http.StatusConflict},
	{Err: domain.ErrSelfPurchase, Status: http.StatusConflict},
	{Err: domain.ErrNotSeller, Status: http.StatusForbidden},
}, optionhttp.ErrorRules...)

// ListRequest 挂单请求
type ListRequest struct {
	OptionID   string `json:"option_id" binding:"required"`
	Seller     string `json:"seller" binding:"required"`
	AskPremium string `json:"ask_premium" binding:"required"`
}

// BuyRequest 成交请求，buyer 为空时使用钱包当前地址
type BuyRequest struct {
	Buyer string `json:"buyer"`
}

type MarketplaceHandler struct {
	svc MarketplaceService
}

func NewMarketplaceHandler(svc MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{svc: svc}
}

func (h *MarketplaceHandler) RegisterRoutes(r *gin.RouterGroup) {
	listings := r.Group("/marketplace/listings")
	{
		listings.POST("", h.CreateListing)
		listings.GET("", h.ListOpen)
		listings.POST("/:id/buy", h.Buy)
		listings.DELETE("/:id", h.Cancel)
	}
}

// CreateListing POST /marketplace/listings
func (h *MarketplaceHandler) CreateListing(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	l, err := h.svc.ListOption(c.Request.Context(), application.ListCommand{
		OptionID:   req.OptionID,
		Seller:     req.Seller,
		AskPremium: req.AskPremium,
	})
	if err != nil {
		response.Error(c, err, errorRules)
		return
	}
	response.Created(c, l)
}

// ListOpen GET /marketplace/listings?asset=ADA
func (h *MarketplaceHandler) ListOpen(c *gin.Context) {
	views, err := h.svc.Open(c.Request.Context(), c.Query("asset"))
	if err != nil {
		response.Error(c, err, errorRules)
		return
	}
	response.Success(c, views)
}

// Buy POST /marketplace/listings/:id/buy
func (h *MarketplaceHandler) Buy(c *gin.Context) {
	var req BuyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	res, err := h.svc.Buy(c.Request.Context(), c.Param("id"), req.Buyer)
	if err != nil {
		response.Error(c, err, errorRules)
		return
	}
	response.Success(c, res)
}

// Cancel DELETE /marketplace/listings/:id?seller=addr...
func (h *MarketplaceHandler) Cancel(c *gin.Context) {
	seller := c.Query("seller")
	if seller == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "seller is required", "")
		return
	}

	l, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), seller)
	if err != nil {
		response.Error(c, err, errorRules)
		return
	}
	response.Success(c, l)
}
