// Package domain 期权 NFT 二级市场挂单
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	optiondomain "github.com/wyfcoding/optionsdesk/internal/option/domain"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrListingClosed   = errors.New("listing is not open")
	ErrNotListable     = errors.New("option cannot be listed")
	ErrSelfPurchase    = errors.New("seller cannot buy own listing")
	ErrNotSeller       = errors.New("only the seller can cancel a listing")
)

type ListingStatus string

const (
	ListingOpen      ListingStatus = "OPEN"
	ListingFilled    ListingStatus = "FILLED"
	ListingCancelled ListingStatus = "CANCELLED"
)

// Listing 挂单，以卖方要价出售一枚期权 NFT
type Listing struct {
	ID         string          `json:"id"`
	OptionID   string          `json:"option_id"`
	Seller     string          `json:"seller"`
	AskPremium decimal.Decimal `json:"ask_premium"`
	Status     ListingStatus   `json:"status"`
	Buyer      string          `json:"buyer,omitempty"`
	TxID       string          `json:"tx_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewListing 创建挂单
// 合约须归卖方所有、未过期、未行权，要价为正
func NewListing(id string, option optiondomain.OptionContract, seller string, ask decimal.Decimal, now time.Time) (Listing, error) {
	seller = strings.TrimSpace(seller)
	switch {
	case seller == "" || option.Owner != seller:
		return Listing{}, fmt.Errorf("%w: %s is not owned by %q", ErrNotListable, option.ID, seller)
	case option.Exercised:
		return Listing{}, fmt.Errorf("%w: %s already exercised", ErrNotListable, option.ID)
	case option.IsExpired(now):
		return Listing{}, fmt.Errorf("%w: %s expired", ErrNotListable, option.ID)
	case !ask.IsPositive():
		return Listing{}, fmt.Errorf("%w: ask premium must be positive, got %s", ErrNotListable, ask)
	}

	return Listing{
		ID:         id,
		OptionID:   option.ID,
		Seller:     seller,
		AskPremium: ask,
		Status:     ListingOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (l Listing) IsOpen() bool {
	return l.Status == ListingOpen
}

// CheckBuyable 成交前校验，不改变挂单
func (l Listing) CheckBuyable(buyer string) error {
	if !l.IsOpen() {
		return fmt.Errorf("%w: %s is %s", ErrListingClosed, l.ID, l.Status)
	}
	if buyer == l.Seller {
		return fmt.Errorf("%w: %s", ErrSelfPurchase, l.ID)
	}
	return nil
}

// Fill 成交，返回 FILLED 状态的新挂单
func (l Listing) Fill(buyer, txID string, now time.Time) (Listing, error) {
	if err := l.CheckBuyable(buyer); err != nil {
		return l, err
	}
	l.Status = ListingFilled
	l.Buyer = buyer
	l.TxID = txID
	l.UpdatedAt = now
	return l, nil
}

// Cancel 撤单，仅卖方可撤
func (l Listing) Cancel(seller string, now time.Time) (Listing, error) {
	if !l.IsOpen() {
		return l, fmt.Errorf("%w: %s is %s", ErrListingClosed, l.ID, l.Status)
	}
	if seller != l.Seller {
		return l, fmt.Errorf("%w: %s", ErrNotSeller, l.ID)
	}
	return l.Withdraw(now)
}

// Withdraw 系统撤单（合约已行权、过期或易主），不校验卖方
func (l Listing) Withdraw(now time.Time) (Listing, error) {
	if !l.IsOpen() {
		return l, fmt.Errorf("%w: %s is %s", ErrListingClosed, l.ID, l.Status)
	}
	l.Status = ListingCancelled
	l.UpdatedAt = now
	return l, nil
}

// CheckTransferable 成交前校验合约：仍归卖方所有、未行权、未过期
func (l Listing) CheckTransferable(option optiondomain.OptionContract, now time.Time) error {
	switch {
	case option.Owner != l.Seller:
		return fmt.Errorf("%w: %s is no longer owned by the seller", ErrNotListable, option.ID)
	case option.Exercised:
		return fmt.Errorf("%w: %s already exercised", ErrNotListable, option.ID)
	case option.IsExpired(now):
		return fmt.Errorf("%w: %s expired", ErrNotListable, option.ID)
	}
	return nil
}

// TransferIntent 成交意图：买方向卖方支付要价，NFT 转给买方
func (l Listing) TransferIntent(option optiondomain.OptionContract, buyer string) optiondomain.Intent {
	return optiondomain.Intent{
		Kind:      optiondomain.IntentTransfer,
		OptionID:  option.ID,
		AssetName: option.AssetName,
		From:      l.Seller,
		To:        buyer,
		Amount:    l.AskPremium,
		Memo:      fmt.Sprintf("buy listing %s: %s for %s ADA", l.ID, option.AssetName, l.AskPremium),
	}
}
