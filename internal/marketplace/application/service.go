// Package application 挂单、成交、撤单与在售列表
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	marketdomain "github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
	"github.com/wyfcoding/optionsdesk/internal/marketplace/domain"
	optiondomain "github.com/wyfcoding/optionsdesk/internal/option/domain"
	"github.com/wyfcoding/optionsdesk/pkg/metrics"
)

// ListCommand 挂单请求
type ListCommand struct {
	OptionID   string
	Seller     string
	AskPremium string
}

// ListingView 在售挂单及合约当前估值
type ListingView struct {
	Listing   domain.Listing              `json:"listing"`
	Option    optiondomain.OptionContract `json:"option"`
	Valuation optiondomain.Valuation      `json:"valuation"`
}

// BuyResult 成交结果
type BuyResult struct {
	Listing domain.Listing              `json:"listing"`
	Option  optiondomain.OptionContract `json:"option"`
	TxID    string                      `json:"tx_id"`
}

// MarketplaceService 二级市场应用服务
type MarketplaceService struct {
	listings  domain.ListingRepository
	options   optiondomain.OptionRepository
	feed      optiondomain.PriceFeed
	wallet    optiondomain.Wallet
	publisher domain.EventPublisher
	collector metrics.Collector
	logger    *slog.Logger

	clock optiondomain.Clock
	newID func() string
}

func NewMarketplaceService(
	listings domain.ListingRepository,
	options optiondomain.OptionRepository,
	feed optiondomain.PriceFeed,
	wallet optiondomain.Wallet,
	publisher domain.EventPublisher,
	collector metrics.Collector,
	logger *slog.Logger,
) *MarketplaceService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &MarketplaceService{
		listings:  listings,
		options:   options,
		feed:      feed,
		wallet:    wallet,
		publisher: publisher,
		collector: collector,
		logger:    logger,
		clock:     time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// ListOption 挂单出售，同一合约同时只能有一个在售挂单
func (s *MarketplaceService) ListOption(ctx context.Context, cmd ListCommand) (*domain.Listing, error) {
	ask, err := decimal.NewFromString(strings.TrimSpace(cmd.AskPremium))
	if err != nil {
		return nil, fmt.Errorf("%w: ask premium %q is not a number", domain.ErrNotListable, cmd.AskPremium)
	}

	option, err := s.options.Get(ctx, cmd.OptionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.listings.FindOpenByOption(ctx, option.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open listings: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s already listed as %s", domain.ErrNotListable, option.ID, existing.ID)
	}

	listing, err := domain.NewListing(s.newID(), *option, cmd.Seller, ask, s.clock().UTC())
	if err != nil {
		s.logger.WarnContext(ctx, "listing rejected", "option_id", cmd.OptionID, "seller", cmd.Seller, "error", err)
		return nil, err
	}
	if err := s.listings.Save(ctx, &listing); err != nil {
		return nil, fmt.Errorf("failed to save listing: %w", err)
	}

	s.collector.RecordListingEvent("listed")
	s.logger.InfoContext(ctx, "option listed",
		"listing_id", listing.ID,
		"option_id", listing.OptionID,
		"seller", listing.Seller,
		"ask", listing.AskPremium.String(),
	)
	return &listing, nil
}

// Buy 成交：钱包提交转移意图成功后，挂单置为 FILLED 且合约换主
// buyer 为空时使用钱包当前地址
func (s *MarketplaceService) Buy(ctx context.Context, listingID, buyer string) (*BuyResult, error) {
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}

	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		if buyer, err = s.wallet.GetAddress(ctx); err != nil {
			s.collector.RecordWalletError(optiondomain.WalletErrorReason(err))
			return nil, err
		}
	}
	if err := listing.CheckBuyable(buyer); err != nil {
		return nil, err
	}

	option, err := s.options.Get(ctx, listing.OptionID)
	if err != nil {
		return nil, err
	}
	if err := listing.CheckTransferable(*option, s.clock()); err != nil {
		s.logger.WarnContext(ctx, "buy rejected", "listing_id", listingID, "error", err)
		s.withdraw(ctx, listing, "option not transferable")
		return nil, err
	}

	txID, err := s.wallet.SignAndSubmit(ctx, listing.TransferIntent(*option, buyer))
	if err != nil {
		s.collector.RecordWalletError(optiondomain.WalletErrorReason(err))
		s.logger.WarnContext(ctx, "transfer submit failed", "listing_id", listingID, "error", err)
		return nil, err
	}

	now := s.clock().UTC()
	filled, err := listing.Fill(buyer, txID, now)
	if err != nil {
		return nil, err
	}
	transferred := option.WithOwner(buyer)
	if err := s.listings.Fill(ctx, &filled, &transferred); err != nil {
		s.logger.ErrorContext(ctx, "transfer submitted but listing not filled",
			"listing_id", listingID, "tx_id", txID, "error", err)
		return nil, err
	}

	s.collector.RecordListingEvent("filled")
	s.logger.InfoContext(ctx, "listing filled",
		"listing_id", filled.ID,
		"option_id", filled.OptionID,
		"seller", filled.Seller,
		"buyer", buyer,
		"tx_id", txID,
	)

	if s.publisher != nil {
		err := s.publisher.PublishListingFilled(ctx, domain.ListingFilledEvent{
			ListingID:  filled.ID,
			OptionID:   filled.OptionID,
			AssetName:  option.AssetName,
			Seller:     filled.Seller,
			Buyer:      buyer,
			AskPremium: filled.AskPremium,
			TxID:       txID,
			OccurredOn: now,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to publish event", "topic", "listing.filled", "error", err)
		}
	}

	return &BuyResult{Listing: filled, Option: transferred, TxID: txID}, nil
}

// Cancel 撤单
func (s *MarketplaceService) Cancel(ctx context.Context, listingID, seller string) (*domain.Listing, error) {
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	cancelled, err := listing.Cancel(strings.TrimSpace(seller), s.clock().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.listings.Close(ctx, &cancelled); err != nil {
		return nil, err
	}

	s.collector.RecordListingEvent("cancelled")
	s.logger.InfoContext(ctx, "listing cancelled", "listing_id", cancelled.ID, "seller", cancelled.Seller)
	return &cancelled, nil
}

// CloseListings 撤下合约的在售挂单，合约行权后调用
func (s *MarketplaceService) CloseListings(ctx context.Context, optionID string) error {
	listing, err := s.listings.FindOpenByOption(ctx, optionID)
	if err != nil {
		return fmt.Errorf("failed to find open listing: %w", err)
	}
	if listing == nil {
		return nil
	}
	return s.withdraw(ctx, listing, "option exercised")
}

// withdraw 系统撤单；并发成交或撤单导致挂单已关闭时视为成功
func (s *MarketplaceService) withdraw(ctx context.Context, listing *domain.Listing, reason string) error {
	withdrawn, err := listing.Withdraw(s.clock().UTC())
	if err != nil {
		return nil
	}
	if err := s.listings.Close(ctx, &withdrawn); err != nil {
		if errors.Is(err, domain.ErrListingClosed) {
			return nil
		}
		s.logger.ErrorContext(ctx, "failed to withdraw listing", "listing_id", listing.ID, "error", err)
		return err
	}
	s.collector.RecordListingEvent("withdrawn")
	s.logger.InfoContext(ctx, "listing withdrawn", "listing_id", listing.ID, "option_id", listing.OptionID, "reason", reason)
	return nil
}

// Open 在售挂单，asset 非空时按标的过滤，并按当前现价估值
func (s *MarketplaceService) Open(ctx context.Context, asset string) ([]ListingView, error) {
	listings, err := s.listings.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open listings: %w", err)
	}

	asset = marketdomain.NormalizeAsset(asset)
	now := s.clock()
	spots := make(map[string]decimal.Decimal)
	views := make([]ListingView, 0, len(listings))
	for _, l := range listings {
		option, err := s.options.Get(ctx, l.OptionID)
		if err != nil {
			return nil, err
		}
		if asset != "" && option.UnderlyingAsset != asset {
			continue
		}
		spot, ok := spots[option.UnderlyingAsset]
		if !ok {
			q, err := s.feed.Latest(ctx, option.UnderlyingAsset)
			if err != nil {
				return nil, err
			}
			spot = q.Price
			spots[option.UnderlyingAsset] = spot
		}
		views = append(views, ListingView{Listing: *l, Option: *option, Valuation: option.Value(spot, now)})
	}
	return views, nil
}
