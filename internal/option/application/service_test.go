package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	marketdomain "github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
	"github.com/wyfcoding/optionsdesk/internal/option/domain"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

const holder = "addr_test1qpz7u3k0lmnopqrstuvw9xyzabcd"

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Save(ctx context.Context, c *domain.OptionContract) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*domain.OptionContract, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*domain.OptionContract)
	return c, args.Error(1)
}

func (m *mockRepo) ListByOwner(ctx context.Context, owner string) ([]*domain.OptionContract, error) {
	args := m.Called(ctx, owner)
	cs, _ := args.Get(0).([]*domain.OptionContract)
	return cs, args.Error(1)
}

func (m *mockRepo) ClaimExercise(ctx context.Context, id, owner string, at time.Time) error {
	return m.Called(ctx, id, owner, at).Error(0)
}

func (m *mockRepo) ReleaseExercise(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockFeed struct{ mock.Mock }

func (m *mockFeed) Latest(ctx context.Context, asset string) (marketdomain.Quote, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(marketdomain.Quote), args.Error(1)
}

type mockWallet struct{ mock.Mock }

func (m *mockWallet) GetAddress(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockWallet) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockWallet) SignAndSubmit(ctx context.Context, intent domain.Intent) (string, error) {
	args := m.Called(ctx, intent)
	return args.String(0), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishOptionMinted(ctx context.Context, ev domain.OptionMintedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *mockPublisher) PublishOptionExercised(ctx context.Context, ev domain.OptionExercisedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type mockCloser struct{ mock.Mock }

func (m *mockCloser) CloseListings(ctx context.Context, optionID string) error {
	return m.Called(ctx, optionID).Error(0)
}

type fixture struct {
	repo   *mockRepo
	feed   *mockFeed
	wallet *mockWallet
	pub    *mockPublisher
	svc    *OptionAppService
}

func newFixture() *fixture {
	f := &fixture{repo: &mockRepo{}, feed: &mockFeed{}, wallet: &mockWallet{}, pub: &mockPublisher{}}
	f.svc = NewOptionAppService(f.repo, f.feed, f.wallet, f.pub, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)), []string{"ADA", "btc"}, 5*time.Minute)
	f.svc.clock = func() time.Time { return now }
	f.svc.newID = func() string { return "opt-1" }
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quote(price string) marketdomain.Quote {
	return marketdomain.NewQuote("ADA", d(price), d("1.5"), now, "coingecko")
}

func contract(typ domain.OptionType, strike, premium string) *domain.OptionContract {
	c, err := domain.NewOptionContract("opt-1", holder, domain.ContractTerms{
		OptionType:      typ,
		StrikePrice:     d(strike),
		Premium:         d(premium),
		UnderlyingAsset: "ADA",
		CreatedAt:       now.Add(-time.Hour),
		ExpiryAt:        now.Add(23 * time.Hour),
	})
	if err != nil {
		panic(err)
	}
	return &c
}

func TestMintAppliesDefaults(t *testing.T) {
	f := newFixture()
	f.wallet.On("GetAddress", mock.Anything).Return(holder, nil)
	f.wallet.On("SignAndSubmit", mock.Anything, mock.MatchedBy(func(i domain.Intent) bool {
		return i.Kind == domain.IntentMint && i.Label == domain.MetadataLabel && i.To == holder
	})).Return("tx-mint", nil)
	f.repo.On("Save", mock.Anything, mock.MatchedBy(func(c *domain.OptionContract) bool {
		return c.MintTxID == "tx-mint" && !c.Exercised
	})).Return(nil)
	f.pub.On("PublishOptionMinted", mock.Anything, mock.AnythingOfType("domain.OptionMintedEvent")).Return(nil)

	res, err := f.svc.Mint(context.Background(), MintCommand{})
	require.NoError(t, err)

	c := res.Contract
	assert.Equal(t, "opt-1", c.ID)
	assert.Equal(t, holder, c.Owner)
	assert.Equal(t, domain.OptionTypeCall, c.OptionType)
	assert.Equal(t, "0.4", c.StrikePrice.String())
	assert.Equal(t, "0.1", c.Premium.String())
	assert.Equal(t, "ADA", c.UnderlyingAsset)
	assert.Equal(t, now.Add(24*time.Hour), c.ExpiryAt)
	assert.Equal(t, fmt.Sprintf("CardanoOption%d", now.UnixMilli()), c.AssetName)
	assert.Equal(t, "tx-mint", res.TxID)
	assert.Equal(t, "CALL Option - ADA", res.Metadata.Name)
	f.repo.AssertExpectations(t)
	f.pub.AssertExpectations(t)
}

func TestMintRejectsInvalidTerms(t *testing.T) {
	past := now.Add(-time.Minute)
	tests := map[string]MintCommand{
		"bad type":          {Owner: holder, OptionType: "straddle"},
		"bad strike":        {Owner: holder, StrikePrice: "abc"},
		"zero strike":       {Owner: holder, StrikePrice: "0"},
		"negative premium":  {Owner: holder, Premium: "-0.5"},
		"unsupported asset": {Owner: holder, UnderlyingAsset: "DOGE"},
		"expiry in past":    {Owner: holder, ExpiryAt: &past},
	}
	for name, cmd := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Mint(context.Background(), cmd)
			assert.ErrorIs(t, err, domain.ErrInvalidContract)
			f.wallet.AssertNotCalled(t, "SignAndSubmit", mock.Anything, mock.Anything)
			f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestMintWalletRejectionNotPersisted(t *testing.T) {
	f := newFixture()
	f.wallet.On("SignAndSubmit", mock.Anything, mock.Anything).Return("", fmt.Errorf("%w: declined", domain.ErrUserRejected))

	_, err := f.svc.Mint(context.Background(), MintCommand{Owner: holder, OptionType: "PUT", StrikePrice: "0.35"})
	assert.ErrorIs(t, err, domain.ErrUserRejected)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.pub.AssertNotCalled(t, "PublishOptionMinted", mock.Anything, mock.Anything)
}

func TestMintWithoutConnectedWallet(t *testing.T) {
	f := newFixture()
	f.wallet.On("GetAddress", mock.Anything).Return("", domain.ErrNotConnected)

	_, err := f.svc.Mint(context.Background(), MintCommand{})
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestValuation(t *testing.T) {
	f := newFixture()
	f.repo.On("Get", mock.Anything, "opt-1").Return(contract(domain.OptionTypeCall, "0.40", "0.10"), nil)
	f.feed.On("Latest", mock.Anything, "ADA").Return(quote("0.55"), nil)

	view, err := f.svc.Valuation(context.Background(), "opt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInTheMoney, view.Valuation.Status)
	assert.Equal(t, "0.15", view.Valuation.IntrinsicValue.String())
	assert.Equal(t, "0.05", view.Valuation.ProfitLoss.String())
	assert.True(t, view.Valuation.Exercisable)
	assert.Equal(t, "23h", view.Valuation.Countdown)
}

func TestValuationNotFound(t *testing.T) {
	f := newFixture()
	f.repo.On("Get", mock.Anything, "missing").Return(nil, domain.ErrOptionNotFound)

	_, err := f.svc.Valuation(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOptionNotFound)
}

func TestExerciseSettlesAndPersists(t *testing.T) {
	f := newFixture()
	f.repo.On("Get", mock.Anything, "opt-1").Return(contract(domain.OptionTypePut, "0.50", "0.05"), nil)
	f.feed.On("Latest", mock.Anything, "ADA").Return(quote("0.42"), nil)
	f.wallet.On("SignAndSubmit", mock.Anything, mock.MatchedBy(func(i domain.Intent) bool {
		return i.Kind == domain.IntentSettle && i.To == holder && i.Amount.Equal(d("0.08"))
	})).Return("tx-settle", nil)
	f.repo.On("ClaimExercise", mock.Anything, "opt-1", holder, now).Return(nil)
	f.pub.On("PublishOptionExercised", mock.Anything, mock.MatchedBy(func(ev domain.OptionExercisedEvent) bool {
		return ev.TxID == "tx-settle" && ev.Effect.ProfitLoss.Equal(d("0.03"))
	})).Return(nil)

	res, err := f.svc.Exercise(context.Background(), "opt-1")
	require.NoError(t, err)
	assert.True(t, res.Contract.Exercised)
	assert.Equal(t, "tx-settle", res.TxID)
	assert.Equal(t, "0.08", res.Effect.IntrinsicValue.String())
	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.pub.AssertExpectations(t)
}

func TestExerciseRejections(t *testing.T) {
	exercised := contract(domain.OptionTypeCall, "0.40", "0.10")
	exercised.Exercised = true
	expired := contract(domain.OptionTypeCall, "0.40", "0.10")
	expired.ExpiryAt = now.Add(-time.Second)

	tests := []struct {
		name     string
		contract *domain.OptionContract
		spot     string
		wantErr  error
	}{
		{"out of the money", contract(domain.OptionTypeCall, "0.40", "0.10"), "0.35", domain.ErrNotExercisable},
		{"at the money", contract(domain.OptionTypeCall, "0.40", "0.10"), "0.40", domain.ErrNotExercisable},
		{"expired", expired, "0.90", domain.ErrNotExercisable},
		{"already exercised", exercised, "0.90", domain.ErrAlreadyExercised},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("Get", mock.Anything, "opt-1").Return(tt.contract, nil)
			f.feed.On("Latest", mock.Anything, "ADA").Return(quote(tt.spot), nil)

			_, err := f.svc.Exercise(context.Background(), "opt-1")
			assert.ErrorIs(t, err, tt.wantErr)
			f.wallet.AssertNotCalled(t, "SignAndSubmit", mock.Anything, mock.Anything)
			f.repo.AssertNotCalled(t, "ClaimExercise", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestExerciseRejectsUnreliableQuote(t *testing.T) {
	fallback := quote("0.90")
	fallback.Fallback = true
	old := quote("0.90")
	old.AsOf = now.Add(-72 * time.Hour)

	for name, q := range map[string]marketdomain.Quote{"fallback": fallback, "stale": old} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("Get", mock.Anything, "opt-1").Return(contract(domain.OptionTypeCall, "0.40", "0.10"), nil)
			f.feed.On("Latest", mock.Anything, "ADA").Return(q, nil)

			_, err := f.svc.Exercise(context.Background(), "opt-1")
			assert.ErrorIs(t, err, domain.ErrUnreliableQuote)
			f.repo.AssertNotCalled(t, "ClaimExercise", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.wallet.AssertNotCalled(t, "SignAndSubmit", mock.Anything, mock.Anything)
		})
	}
}

func TestExerciseClaimConflict(t *testing.T) {
	for name, claimErr := range map[string]error{
		"already exercised": fmt.Errorf("%w: opt-1", domain.ErrAlreadyExercised),
		"owner changed":     fmt.Errorf("%w: opt-1", domain.ErrOptionChanged),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("Get", mock.Anything, "opt-1").Return(contract(domain.OptionTypeCall, "0.40", "0.10"), nil)
			f.feed.On("Latest", mock.Anything, "ADA").Return(quote("0.60"), nil)
			f.repo.On("ClaimExercise", mock.Anything, "opt-1", holder, now).Return(claimErr)

			_, err := f.svc.Exercise(context.Background(), "opt-1")
			assert.ErrorIs(t, err, claimErr)
			f.wallet.AssertNotCalled(t, "SignAndSubmit", mock.Anything, mock.Anything)
		})
	}
}

func TestExerciseWalletFailureLeavesContractUnexercised(t *testing.T) {
	f := newFixture()
	c := contract(domain.OptionTypeCall, "0.40", "0.10")
	f.repo.On("Get", mock.Anything, "opt-1").Return(c, nil)
	f.feed.On("Latest", mock.Anything, "ADA").Return(quote("0.60"), nil)
	f.repo.On("ClaimExercise", mock.Anything, "opt-1", holder, now).Return(nil)
	f.wallet.On("SignAndSubmit", mock.Anything, mock.Anything).Return("", fmt.Errorf("%w: timeout", domain.ErrNetwork))
	f.repo.On("ReleaseExercise", mock.Anything, "opt-1", now).Return(nil)

	_, err := f.svc.Exercise(context.Background(), "opt-1")
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.False(t, c.Exercised)
	f.repo.AssertExpectations(t)
}

func TestExercisePublishFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.repo.On("Get", mock.Anything, "opt-1").Return(contract(domain.OptionTypeCall, "0.40", "0.10"), nil)
	f.feed.On("Latest", mock.Anything, "ADA").Return(quote("0.60"), nil)
	f.repo.On("ClaimExercise", mock.Anything, "opt-1", holder, now).Return(nil)
	f.wallet.On("SignAndSubmit", mock.Anything, mock.Anything).Return("tx-1", nil)
	f.pub.On("PublishOptionExercised", mock.Anything, mock.Anything).Return(fmt.Errorf("broker down"))

	res, err := f.svc.Exercise(context.Background(), "opt-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", res.TxID)
}

func TestExerciseClosesOpenListings(t *testing.T) {
	f := newFixture()
	closer := &mockCloser{}
	f.svc.UseListingCloser(closer)
	f.repo.On("Get", mock.Anything, "opt-1").Return(contract(domain.OptionTypeCall, "0.40", "0.10"), nil)
	f.feed.On("Latest", mock.Anything, "ADA").Return(quote("0.60"), nil)
	f.repo.On("ClaimExercise", mock.Anything, "opt-1", holder, now).Return(nil)
	f.wallet.On("SignAndSubmit", mock.Anything, mock.Anything).Return("tx-1", nil)
	closer.On("CloseListings", mock.Anything, "opt-1").Return(fmt.Errorf("db down")).Once()
	f.pub.On("PublishOptionExercised", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Exercise(context.Background(), "opt-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", res.TxID)
	closer.AssertExpectations(t)
}

// memRepo 以互斥锁模拟数据库的条件更新
type memRepo struct {
	mu        sync.Mutex
	contracts map[string]domain.OptionContract
}

func (r *memRepo) Save(_ context.Context, c *domain.OptionContract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[c.ID] = *c
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*domain.OptionContract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok {
		return nil, domain.ErrOptionNotFound
	}
	return &c, nil
}

func (r *memRepo) ListByOwner(context.Context, string) ([]*domain.OptionContract, error) {
	return nil, nil
}

func (r *memRepo) ClaimExercise(_ context.Context, id, owner string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.contracts[id]
	switch {
	case c.Exercised:
		return domain.ErrAlreadyExercised
	case c.Owner != owner:
		return domain.ErrOptionChanged
	}
	c.Exercised = true
	r.contracts[id] = c
	return nil
}

func (r *memRepo) ReleaseExercise(_ context.Context, id string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.contracts[id]
	c.Exercised = false
	r.contracts[id] = c
	return nil
}

// gateWallet 在 SignAndSubmit 中阻塞，直到 release 关闭
type gateWallet struct {
	mockWallet
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	submits int
}

func (w *gateWallet) SignAndSubmit(context.Context, domain.Intent) (string, error) {
	w.mu.Lock()
	w.submits++
	w.mu.Unlock()
	w.entered <- struct{}{}
	<-w.release
	return "tx-settle", nil
}

func TestConcurrentExerciseSettlesOnce(t *testing.T) {
	repo := &memRepo{contracts: map[string]domain.OptionContract{"opt-1": *contract(domain.OptionTypeCall, "0.40", "0.10")}}
	feed := &mockFeed{}
	feed.On("Latest", mock.Anything, "ADA").Return(quote("0.60"), nil)
	wallet := &gateWallet{entered: make(chan struct{}, 2), release: make(chan struct{})}

	svc := NewOptionAppService(repo, feed, wallet, nil, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)), []string{"ADA"}, 5*time.Minute)
	svc.clock = func() time.Time { return now }

	first := make(chan error, 1)
	go func() {
		_, err := svc.Exercise(context.Background(), "opt-1")
		first <- err
	}()

	select {
	case <-wallet.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first exercise never reached the wallet")
	}

	// 第一笔结算尚未返回时，第二次行权必须被拒绝
	_, err := svc.Exercise(context.Background(), "opt-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyExercised)

	close(wallet.release)
	require.NoError(t, <-first)
	assert.Equal(t, 1, wallet.submits)

	stored, err := repo.Get(context.Background(), "opt-1")
	require.NoError(t, err)
	assert.True(t, stored.Exercised)
}

func TestPortfolio(t *testing.T) {
	f := newFixture()
	itm := contract(domain.OptionTypeCall, "0.40", "0.10")
	otm := contract(domain.OptionTypePut, "0.35", "0.05")
	otm.ID = "opt-2"
	old := contract(domain.OptionTypePut, "0.50", "0.02")
	old.ID = "opt-3"
	old.ExpiryAt = now.Add(-time.Hour)

	f.repo.On("ListByOwner", mock.Anything, holder).Return([]*domain.OptionContract{itm, otm, old}, nil)
	f.feed.On("Latest", mock.Anything, "ADA").Return(quote("0.45"), nil).Once()

	view, err := f.svc.Portfolio(context.Background(), holder)
	require.NoError(t, err)
	require.Len(t, view.Positions, 3)
	assert.Equal(t, 3, view.Summary.Total)
	assert.Equal(t, 1, view.Summary.InTheMoney)
	assert.Equal(t, 1, view.Summary.Expired)
	assert.Equal(t, "-0.07", view.Summary.TotalProfitLoss.String())
	assert.Equal(t, domain.StatusExpired, view.Positions[2].Valuation.Status)
	f.feed.AssertExpectations(t)
}

func TestPortfolioRequiresOwner(t *testing.T) {
	_, err := newFixture().svc.Portfolio(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidContract)
}

func TestWalletInfo(t *testing.T) {
	f := newFixture()
	f.wallet.On("GetAddress", mock.Anything).Return(holder, nil)
	f.wallet.On("GetBalance", mock.Anything).Return(d("125.5"), nil)

	info, err := f.svc.Wallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "addr_test1...9xyzabcd", info.ShortAddress)
	assert.Equal(t, "125.500000", info.Balance)
}
