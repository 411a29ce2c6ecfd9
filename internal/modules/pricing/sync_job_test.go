package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookman/portfolio-service/internal/clients/pricefeed"
)

type stubFeed struct {
	quotes  []pricefeed.Quote
	err     error
	fetched [][]string
}

func (s *stubFeed) FetchQuotes(ctx context.Context, symbols []string) ([]pricefeed.Quote, error) {
	s.fetched = append(s.fetched, symbols)
	return s.quotes, s.err
}

func TestSyncJob_Run(t *testing.T) {
	f := newSyncFixture(t)
	p := f.createPortfolioWithAsset(t, "BTC")

	feed := &stubFeed{quotes: []pricefeed.Quote{
		{Symbol: "BTC", Price: decimal.NewFromInt(45000)},
	}}
	assets := f.sync.assets

	job := NewSyncJob(feed, assets, f.sync, zerolog.Nop())
	require.NoError(t, job.Run())

	require.Len(t, feed.fetched, 1)
	assert.Equal(t, []string{"BTC"}, feed.fetched[0])

	got, err := f.svc.GetPortfolio(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, got.Assets[0].CurrentPrice.Equal(decimal.NewFromInt(45000)))
}

func TestSyncJob_NoHoldingsSkipsFetch(t *testing.T) {
	f := newSyncFixture(t)

	feed := &stubFeed{}
	job := NewSyncJob(feed, f.sync.assets, f.sync, zerolog.Nop())
	require.NoError(t, job.Run())

	assert.Empty(t, feed.fetched, "no symbols held, no feed call")
}

func TestSyncJob_FeedErrorPropagates(t *testing.T) {
	f := newSyncFixture(t)
	f.createPortfolioWithAsset(t, "BTC")

	feed := &stubFeed{err: errors.New("feed down")}
	job := NewSyncJob(feed, f.sync.assets, f.sync, zerolog.Nop())
	assert.Error(t, job.Run())
}

func TestSyncJob_Name(t *testing.T) {
	job := NewSyncJob(&stubFeed{}, nil, nil, zerolog.Nop())
	assert.Equal(t, "price_sync", job.Name())
}
