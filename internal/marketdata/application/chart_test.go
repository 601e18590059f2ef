package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/optionsdesk/internal/marketdata/domain"
)

func closes(prices ...string) []domain.PricePoint {
	out := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = domain.PricePoint{Timestamp: now.AddDate(0, 0, i-len(prices)), Price: d(p)}
	}
	return out
}

func freshQuote(change string) *domain.Quote {
	q := domain.NewQuote("ADA", d("0.45"), d(change), now, "coingecko")
	return &q
}

func TestChartLiveHistory(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	history := closes("0.40", "0.41", "0.42", "0.41", "0.43", "0.44", "0.45")
	cache.On("GetQuote", mock.Anything, "ADA").Return(freshQuote("1.2"), nil)
	src.On("FetchHistory", mock.Anything, "ADA", 7).Return(history, nil)
	cache.On("SaveHistory", mock.Anything, "ADA", history).Return(nil)

	svc := NewChartService(newTestFeed(t, src, cache), src, cache, discard)
	view, err := svc.Chart(context.Background(), "ada", 0)
	require.NoError(t, err)

	assert.Equal(t, "ADA", view.Asset)
	assert.Equal(t, 7, view.Days)
	assert.Len(t, view.Points, 7)
	assert.False(t, view.FromCache)
	assert.Equal(t, domain.SentimentBullish, view.Sentiment.Sentiment)
	assert.Equal(t, []string{"7-day upward trend"}, view.Sentiment.Signals)
	cache.AssertExpectations(t)
}

func TestChartUsesCachedHistoryWhenSourceFails(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	cached := closes("0.50", "0.49", "0.48", "0.47", "0.46", "0.45", "0.44", "0.43", "0.42")
	cache.On("GetQuote", mock.Anything, "ADA").Return(freshQuote("-7"), nil)
	src.On("FetchHistory", mock.Anything, "ADA", 7).Return(nil, errors.New("429"))
	cache.On("GetHistory", mock.Anything, "ADA").Return(cached, nil)

	view, err := NewChartService(newTestFeed(t, src, cache), src, cache, discard).Chart(context.Background(), "ADA", 7)
	require.NoError(t, err)

	assert.True(t, view.FromCache)
	require.Len(t, view.Points, 7)
	assert.Equal(t, "0.48", view.Points[0].Price.String())
	assert.Equal(t, domain.SentimentBearish, view.Sentiment.Sentiment)
	assert.Equal(t, 67, view.Sentiment.Confidence)
}

func TestChartEmptySeriesWithFallbackQuote(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	cache.On("GetQuote", mock.Anything, "ADA").Return(nil, nil)
	src.On("FetchQuote", mock.Anything, "ADA").Return(domain.Quote{}, errors.New("offline"))
	src.On("FetchHistory", mock.Anything, "ADA", 7).Return(nil, errors.New("offline"))
	cache.On("GetHistory", mock.Anything, "ADA").Return(nil, nil)

	view, err := NewChartService(newTestFeed(t, src, cache), src, cache, discard).Chart(context.Background(), "ADA", 7)
	require.NoError(t, err)

	assert.True(t, view.Quote.Fallback)
	assert.NotNil(t, view.Points)
	assert.Empty(t, view.Points)
	assert.False(t, view.FromCache)
	assert.Equal(t, domain.SentimentNeutral, view.Sentiment.Sentiment)
}

func TestPollerRefreshesUntilCancelled(t *testing.T) {
	src, cache := &mockSource{}, &mockCache{}
	live := domain.NewQuote("ADA", d("0.46"), d("0.5"), now, "coingecko")
	history := closes("0.44", "0.45")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src.On("FetchQuote", mock.Anything, "ADA").Return(live, nil).Once()
	cache.On("SaveQuote", mock.Anything, live).Return(nil).Once()
	src.On("FetchHistory", mock.Anything, "ADA", 7).Return(history, nil).Once()
	cache.On("SaveHistory", mock.Anything, "ADA", history).Return(nil).Once().
		Run(func(mock.Arguments) { cancel() })

	feed := newTestFeed(t, src, cache)
	p := NewPoller(feed, NewChartService(feed, src, cache, discard), []string{"ADA"}, time.Hour, time.Hour, 0, discard)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	src.AssertExpectations(t)
	cache.AssertExpectations(t)
}
