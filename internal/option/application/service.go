// Package application 期权 NFT 用例：铸造、查询估值、行权与持仓
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
	"github.com/wyfcoding/optionsdesk/internal/option/domain"
	"github.com/wyfcoding/optionsdesk/pkg/metrics"
)

// 行权结果指标标签
const (
	outcomeSettled          = "settled"
	outcomeNotExercisable   = "not_exercisable"
	outcomeAlreadyExercised = "already_exercised"
	outcomeOwnerChanged     = "owner_changed"
	outcomeUnreliableQuote  = "unreliable_quote"
	outcomeWalletError      = "wallet_error"
	outcomeError            = "error"
)

// OptionAppService 期权应用服务
type OptionAppService struct {
	repo      domain.OptionRepository
	feed      domain.PriceFeed
	wallet    domain.Wallet
	publisher domain.EventPublisher
	listings  domain.ListingCloser
	collector metrics.Collector
	logger    *slog.Logger

	assets     map[string]struct{}
	// 行权报价的最大年龄，<= 0 时只拒绝兜底报价
	staleAfter time.Duration
	clock      domain.Clock
	newID      func() string
}

// NewOptionAppService 创建期权应用服务
// assets 为允许的标的资产，staleAfter 为行权可接受的报价年龄
func NewOptionAppService(
	repo domain.OptionRepository,
	feed domain.PriceFeed,
	wallet domain.Wallet,
	publisher domain.EventPublisher,
	collector metrics.Collector,
	logger *slog.Logger,
	assets []string,
	staleAfter time.Duration,
) *OptionAppService {
	allowed := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		allowed[marketdomain.NormalizeAsset(a)] = struct{}{}
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &OptionAppService{
		repo:      repo,
		feed:      feed,
		wallet:    wallet,
		publisher: publisher,
		collector: collector,
		logger:    logger,
		assets:     allowed,
		staleAfter: staleAfter,
		clock:      time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// UseListingCloser 行权成功后撤下该合约的在售挂单
func (s *OptionAppService) UseListingCloser(c domain.ListingCloser) {
	s.listings = c
}

// Mint 铸造期权 NFT
// 钱包提交失败时不落库
func (s *OptionAppService) Mint(ctx context.Context, cmd MintCommand) (*MintResult, error) {
	now := s.clock().UTC()

	terms, err := s.mintTerms(cmd, now)
	if err != nil {
		return nil, err
	}

	owner := strings.TrimSpace(cmd.Owner)
	if owner == "" {
		if owner, err = s.wallet.GetAddress(ctx); err != nil {
			s.walletFailed(ctx, "get address", err)
			return nil, err
		}
	}

	contract, err := domain.NewOptionContract(s.newID(), owner, terms)
	if err != nil {
		return nil, err
	}

	intent := domain.MintIntent(contract)
	txID, err := s.wallet.SignAndSubmit(ctx, intent)
	if err != nil {
		s.walletFailed(ctx, "mint", err)
		return nil, err
	}
	contract.MintTxID = txID

	if err := s.repo.Save(ctx, &contract); err != nil {
		return nil, fmt.Errorf("failed to save option: %w", err)
	}

	s.collector.RecordMint(string(contract.OptionType), contract.UnderlyingAsset)
	s.logger.InfoContext(ctx, "option minted",
		"id", contract.ID,
		"asset_name", contract.AssetName,
		"owner", contract.Owner,
		"type", contract.OptionType,
		"strike", contract.StrikePrice.String(),
		"tx_id", txID,
	)

	s.publish(ctx, "option.minted", func() error {
		return s.publisher.PublishOptionMinted(ctx, domain.OptionMintedEvent{
			OptionID:        contract.ID,
			AssetName:       contract.AssetName,
			Owner:           contract.Owner,
			OptionType:      contract.OptionType,
			UnderlyingAsset: contract.UnderlyingAsset,
			StrikePrice:     contract.StrikePrice,
			Premium:         contract.Premium,
			ExpiryAt:        contract.ExpiryAt,
			TxID:            txID,
			OccurredOn:      now,
		})
	})

	return &MintResult{Contract: contract, Metadata: *intent.Metadata, TxID: txID}, nil
}

func (s *OptionAppService) mintTerms(cmd MintCommand, now time.Time) (domain.ContractTerms, error) {
	typ, err := domain.ParseOptionType(orDefault(cmd.OptionType, string(DefaultOptionType)))
	if err != nil {
		return domain.ContractTerms{}, fmt.Errorf("%w: %w", domain.ErrInvalidContract, err)
	}
	strike, err := parseDecimal("strike price", orDefault(cmd.StrikePrice, DefaultStrikePrice))
	if err != nil {
		return domain.ContractTerms{}, err
	}
	premium, err := parseDecimal("premium", orDefault(cmd.Premium, DefaultPremium))
	if err != nil {
		return domain.ContractTerms{}, err
	}

	asset := marketdomain.NormalizeAsset(orDefault(cmd.UnderlyingAsset, DefaultAsset))
	if _, ok := s.assets[asset]; !ok {
		return domain.ContractTerms{}, fmt.Errorf("%w: unsupported underlying asset %q", domain.ErrInvalidContract, asset)
	}

	expiry := now.Add(DefaultExpiry)
	if cmd.ExpiryAt != nil {
		expiry = cmd.ExpiryAt.UTC()
	}

	return domain.ContractTerms{
		OptionType:      typ,
		StrikePrice:     strike,
		Premium:         premium,
		UnderlyingAsset: asset,
		CreatedAt:       now,
		ExpiryAt:        expiry,
	}, nil
}

// Get 查询合约
func (s *OptionAppService) Get(ctx context.Context, id string) (*domain.OptionContract, error) {
	return s.repo.Get(ctx, id)
}

// Valuation 以当前现价估值
func (s *OptionAppService) Valuation(ctx context.Context, id string) (*OptionView, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := s.feed.Latest(ctx, c.UnderlyingAsset)
	if err != nil {
		return nil, err
	}
	return &OptionView{Contract: *c, Valuation: c.Value(q.Price, s.clock()), Quote: q}, nil
}

// Exercise 行权
// 顺序：报价校验 -> 估值校验 -> 条件占用行权状态 -> 钱包提交结算意图 -> 撤下挂单 -> 发布事件
// 钱包提交失败时释放占用，合约保持未行权
func (s *OptionAppService) Exercise(ctx context.Context, id string) (*ExerciseResult, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := s.feed.Latest(ctx, c.UnderlyingAsset)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if q.Fallback || q.IsStale(now, s.staleAfter) {
		s.collector.RecordExercise(outcomeUnreliableQuote)
		s.logger.WarnContext(ctx, "exercise rejected", "id", id, "source", q.Source, "as_of", q.AsOf, "fallback", q.Fallback)
		return nil, fmt.Errorf("%w: %s quote from %s as of %s", domain.ErrUnreliableQuote,
			q.Asset, q.Source, q.AsOf.Format(time.RFC3339))
	}

	effect, exercised, err := c.Exercise(q.Price, now)
	if err != nil {
		s.rejectExercise(ctx, id, q, err)
		return nil, err
	}

	if err := s.repo.ClaimExercise(ctx, id, c.Owner, now); err != nil {
		s.rejectExercise(ctx, id, q, err)
		return nil, err
	}

	txID, err := s.wallet.SignAndSubmit(ctx, effect.Intent())
	if err != nil {
		s.collector.RecordExercise(outcomeWalletError)
		s.walletFailed(ctx, "settle", err)
		if relErr := s.repo.ReleaseExercise(ctx, id, s.clock()); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release exercise claim", "id", id, "error", relErr)
		}
		return nil, err
	}

	s.collector.RecordExercise(outcomeSettled)
	s.logger.InfoContext(ctx, "option exercised",
		"id", id,
		"holder", effect.Holder,
		"spot", q.Price.String(),
		"intrinsic", effect.IntrinsicValue.String(),
		"pnl", effect.ProfitLoss.String(),
		"tx_id", txID,
	)

	if s.listings != nil {
		if err := s.listings.CloseListings(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to close listings of exercised option", "id", id, "error", err)
		}
	}

	s.publish(ctx, "option.exercised", func() error {
		return s.publisher.PublishOptionExercised(ctx, domain.OptionExercisedEvent{
			Effect:     effect,
			TxID:       txID,
			OccurredOn: now,
		})
	})

	return &ExerciseResult{Contract: exercised, Effect: effect, TxID: txID, Quote: q}, nil
}

func (s *OptionAppService) rejectExercise(ctx context.Context, id string, q marketdomain.Quote, err error) {
	outcome := outcomeError
	switch {
	case errors.Is(err, domain.ErrNotExercisable):
		outcome = outcomeNotExercisable
	case errors.Is(err, domain.ErrAlreadyExercised):
		outcome = outcomeAlreadyExercised
	case errors.Is(err, domain.ErrOptionChanged):
		outcome = outcomeOwnerChanged
	}
	s.collector.RecordExercise(outcome)
	s.logger.WarnContext(ctx, "exercise rejected", "id", id, "spot", q.Price.String(), "error", err)
}

// Portfolio 对持有人全部合约估值
// 每个标的资产只取一次报价
func (s *OptionAppService) Portfolio(ctx context.Context, owner string) (*PortfolioView, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidContract)
	}

	contracts, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}

	now := s.clock()
	spots := make(map[string]decimal.Decimal)
	positions := make([]domain.Position, 0, len(contracts))
	for _, c := range contracts {
		spot, ok := spots[c.UnderlyingAsset]
		if !ok {
			q, err := s.feed.Latest(ctx, c.UnderlyingAsset)
			if err != nil {
				return nil, err
			}
			spot = q.Price
			spots[c.UnderlyingAsset] = spot
		}
		positions = append(positions, domain.Position{Contract: *c, Valuation: c.Value(spot, now)})
	}

	return &PortfolioView{
		Owner:     owner,
		Positions: positions,
		Summary:   domain.Summarize(positions),
		AsOf:      now,
	}, nil
}

// Wallet 当前钱包地址与余额
func (s *OptionAppService) Wallet(ctx context.Context) (*WalletInfo, error) {
	addr, err := s.wallet.GetAddress(ctx)
	if err != nil {
		s.walletFailed(ctx, "get address", err)
		return nil, err
	}
	balance, err := s.wallet.GetBalance(ctx)
	if err != nil {
		s.walletFailed(ctx, "get balance", err)
		return nil, err
	}
	return &WalletInfo{
		Address:      addr,
		ShortAddress: domain.ShortenAddress(addr),
		Balance:      balance.StringFixed(6),
	}, nil
}

func (s *OptionAppService) walletFailed(ctx context.Context, op string, err error) {
	reason := domain.WalletErrorReason(err)
	s.collector.RecordWalletError(reason)
	s.logger.WarnContext(ctx, "wallet call failed", "op", op, "reason", reason, "error", err)
}

// publish 事件发布失败只记录日志，链上交易已完成不可回滚
func (s *OptionAppService) publish(ctx context.Context, topic string, fn func() error) {
	if s.publisher == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", domain.ErrInvalidContract, field, raw)
	}
	return v, nil
}
