package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
	"github.com/wyfcoding/optionsdesk/pkg/config"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type mockSource struct{ mock.Mock }

func (m *mockSource) FetchQuote(ctx context.Context, asset string) (domain.Quote, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(domain.Quote), args.Error(1)
}

func (m *mockSource) FetchHistory(ctx context.Context, asset string, days int) ([]domain.PricePoint, error) {
	args := m.Called(ctx, asset, days)
	points, _ := args.Get(0).([]domain.PricePoint)
	return points, args.Error(1)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) SaveQuote(ctx context.Context, q domain.Quote) error {
	return m.Called(ctx, q).Error(0)
}

func (m *mockCache) GetQuote(ctx context.Context, asset string) (*domain.Quote, error) {
	args := m.Called(ctx, asset)
	q, _ := args.Get(0).(*domain.Quote)
	return q, args.Error(1)
}

func (m *mockCache) SaveHistory(ctx context.Context, asset string, points []domain.PricePoint) error {
	return m.Called(ctx, asset, points).Error(0)
}

func (m *mockCache) GetHistory(ctx context.Context, asset string) ([]domain.PricePoint, error) {
	args := m.Called(ctx, asset)
	points, _ := args.Get(0).([]domain.PricePoint)
	return points, args.Error(1)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestFeed(t *testing.T, src *mockSource, cache *mockCache) *Feed {
	t.Helper()
	f, err := NewFeed(src, cache, config.PriceFeedConfig{
		FallbackPrice:     "0.45",
		FallbackChange24h: "2.5",
		PollInterval:      30 * time.Second,
	}, nil, discard)
	require.NoError(t, err)
	f.now = func() time.Time { return now }
	return f
}

func TestNewFeedRejectsBadFallback(t *testing.T) {
	_, err := NewFeed(&mockSource{}, &mockCache{}, config.PriceFeedConfig{FallbackPrice: "zero", FallbackChange24h: "0"}, nil, discard)
	assert.Error(t, err)
	_, err = NewFeed(&mockSource{}, &mockCache{}, config.PriceFeedConfig{FallbackPrice: "0", FallbackChange24h: "0"}, nil, discard)
	assert.Error(t, err)
}

func TestLatestServesFreshCacheWithoutFetching(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	fresh := domain.NewQuote("ADA", d("0.50"), d("1"), now.Add(-10*time.Second), "coingecko")
	cache.On("GetQuote", mock.Anything, "ADA").Return(&fresh, nil)

	q, err := newTestFeed(t, src, cache).Latest(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, fresh, q)
	src.AssertNotCalled(t, "FetchQuote", mock.Anything, mock.Anything)
}

func TestLatestFetchesLiveWhenCacheStale(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	stale := domain.NewQuote("ADA", d("0.50"), d("1"), now.Add(-time.Hour), "coingecko")
	live := domain.NewQuote("ADA", d("0.52"), d("4"), now, "coingecko")
	cache.On("GetQuote", mock.Anything, "ADA").Return(&stale, nil)
	src.On("FetchQuote", mock.Anything, "ADA").Return(live, nil)
	cache.On("SaveQuote", mock.Anything, live).Return(nil)

	q, err := newTestFeed(t, src, cache).Latest(context.Background(), "ADA")
	require.NoError(t, err)
	assert.Equal(t, live, q)
	cache.AssertExpectations(t)
}

func TestLatestFallsBackToStaleCache(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	stale := domain.NewQuote("ADA", d("0.50"), d("1"), now.Add(-time.Hour), "coingecko")
	cache.On("GetQuote", mock.Anything, "ADA").Return(&stale, nil)
	src.On("FetchQuote", mock.Anything, "ADA").Return(domain.Quote{}, fmt.Errorf("%w: timeout", domain.ErrQuoteUnavailable))

	q, err := newTestFeed(t, src, cache).Latest(context.Background(), "ADA")
	require.NoError(t, err)
	assert.Equal(t, stale, q)
	assert.False(t, q.Fallback)
}

func TestLatestFallsBackToConfiguredQuote(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	cache.On("GetQuote", mock.Anything, "ADA").Return(nil, errors.New("redis down"))
	src.On("FetchQuote", mock.Anything, "ADA").Return(domain.Quote{}, errors.New("connection refused"))

	q, err := newTestFeed(t, src, cache).Latest(context.Background(), "ADA")
	require.NoError(t, err)
	assert.True(t, q.Fallback)
	assert.Equal(t, FallbackSource, q.Source)
	assert.Equal(t, "0.45", q.Price.String())
	assert.Equal(t, "2.5", q.Change24h.String())
	assert.Equal(t, now, q.AsOf)
}

func TestLatestUnknownAsset(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	cache.On("GetQuote", mock.Anything, "DOGE").Return(nil, nil)
	src.On("FetchQuote", mock.Anything, "DOGE").Return(domain.Quote{}, fmt.Errorf("%w: DOGE", domain.ErrUnknownAsset))

	_, err := newTestFeed(t, src, cache).Latest(context.Background(), "doge")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)
}
