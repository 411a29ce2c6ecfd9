package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookman/portfolio-service/internal/clients/pricefeed"
	"github.com/bookman/portfolio-service/internal/modules/portfolio"
)

// QuoteSource produces current quotes for a set of symbols
type QuoteSource interface {
	FetchQuotes(ctx context.Context, symbols []string) ([]pricefeed.Quote, error)
}

// SyncJob periodically pulls quotes for every held symbol and applies them.
// Runs on the scheduler, off the request-serving path.
type SyncJob struct {
	feed    QuoteSource
	assets  *portfolio.AssetRepository
	sync    *Synchronizer
	timeout time.Duration
	log     zerolog.Logger
}

// NewSyncJob creates a new price sync job
func NewSyncJob(feed QuoteSource, assets *portfolio.AssetRepository, sync *Synchronizer, log zerolog.Logger) *SyncJob {
	return &SyncJob{
		feed:    feed,
		assets:  assets,
		sync:    sync,
		timeout: 2 * time.Minute,
		log:     log.With().Str("job", "price_sync").Logger(),
	}
}

// Name implements scheduler.Job
func (j *SyncJob) Name() string {
	return "price_sync"
}

// Run implements scheduler.Job
func (j *SyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	symbols, err := j.assets.HeldSymbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return nil
	}

	quotes, err := j.feed.FetchQuotes(ctx, symbols)
	if err != nil {
		return err
	}

	applied := 0
	for _, q := range quotes {
		tick := Tick{Symbol: q.Symbol, Price: q.Price, Timestamp: q.Timestamp}
		if err := j.sync.ApplyTick(ctx, tick); err != nil {
			j.log.Error().Err(err).Str("symbol", q.Symbol).Msg("Failed to apply quote")
			continue
		}
		applied++
	}

	j.log.Info().
		Int("symbols", len(symbols)).
		Int("applied", applied).
		Msg("Price sync completed")

	return nil
}
