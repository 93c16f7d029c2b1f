package market

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vaultfunk/vaultfunk/internal/metrics"
)

const minFetchInterval = 100 * time.Millisecond

// QuoteSource is the upstream the fetcher polls. Satisfied by *Client.
type QuoteSource interface {
	GetQuote(ctx context.Context, pair Pair) (*Quote, error)
	GetPrices(ctx context.Context, mints []solana.PublicKey) (map[solana.PublicKey]float64, error)
}

// FetcherStats is a point-in-time snapshot of fetcher counters.
type FetcherStats struct {
	Ticks           uint64 `json:"ticks"`
	QuotesPublished uint64 `json:"quotes_published"`
	FetchErrors     uint64 `json:"fetch_errors"`
	LastTickMS      int64  `json:"last_tick_ms"`
}

// Fetcher polls the quote API for a fixed pair list on an interval and
// publishes every successfully fetched quote to the cache and the quotes
// channel. On the same tick it refreshes the price cache for the union of
// mints in the pair list. A failed pair never blocks the others.
type Fetcher struct {
	source   QuoteSource
	cache    *Cache
	pairs    []Pair
	mints    []solana.PublicKey
	interval time.Duration
	out      chan<- Quote
	log      zerolog.Logger

	ticks      atomic.Uint64
	published  atomic.Uint64
	errors     atomic.Uint64
	lastTickMS atomic.Int64
}

// NewFetcher validates the pair list and interval. Errors here are
// configuration errors; the agent refuses to start on them.
func NewFetcher(source QuoteSource, cache *Cache, pairs []Pair, interval time.Duration, out chan<- Quote, log zerolog.Logger) (*Fetcher, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("fetcher: pair list must be non-empty")
	}
	if interval < minFetchInterval {
		return nil, fmt.Errorf("fetcher: interval %v below minimum %v", interval, minFetchInterval)
	}
	for i, p := range pairs {
		if p.Amount == 0 {
			return nil, fmt.Errorf("fetcher: pair %d (%s) amount must be > 0", i, p.Key())
		}
		if p.InputMint.Equals(p.OutputMint) {
			return nil, fmt.Errorf("fetcher: pair %d input and output mint must differ", i)
		}
	}

	seen := make(map[solana.PublicKey]bool)
	var mints []solana.PublicKey
	for _, p := range pairs {
		for _, m := range []solana.PublicKey{p.InputMint, p.OutputMint} {
			if !seen[m] {
				seen[m] = true
				mints = append(mints, m)
			}
		}
	}

	return &Fetcher{
		source:   source,
		cache:    cache,
		pairs:    pairs,
		mints:    mints,
		interval: interval,
		out:      out,
		log:      log,
	}, nil
}

// Run polls until ctx is cancelled. The first tick fires immediately.
func (f *Fetcher) Run(ctx context.Context) {
	f.log.Info().
		Int("pairs", len(f.pairs)).
		Dur("interval", f.interval).
		Msg("fetcher started")

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			f.log.Info().Msg("fetcher stopped")
			return
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *Fetcher) tick(ctx context.Context) {
	start := time.Now()
	f.ticks.Add(1)

	g, gctx := errgroup.WithContext(ctx)
	for _, pair := range f.pairs {
		g.Go(func() error {
			q, err := f.source.GetQuote(gctx, pair)
			if err != nil {
				f.errors.Add(1)
				metrics.FetchErrors.Inc()
				f.log.Warn().Err(err).Str("pair", pair.Key().String()).Msg("quote fetch failed")
				return nil
			}
			q.Timestamp = time.Now()
			f.cache.PutQuote(*q)
			f.publish(ctx, *q)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	f.refreshPrices(ctx)

	elapsed := time.Since(start)
	f.lastTickMS.Store(elapsed.Milliseconds())
	f.log.Debug().Dur("elapsed", elapsed).Msg("fetch tick complete")
}

func (f *Fetcher) publish(ctx context.Context, q Quote) {
	select {
	case f.out <- q:
		f.published.Add(1)
		metrics.QuotesFetched.Inc()
	case <-ctx.Done():
		f.log.Warn().Str("pair", q.Key().String()).Msg("quote dropped: receiver gone")
	}
}

func (f *Fetcher) refreshPrices(ctx context.Context) {
	prices, err := f.source.GetPrices(ctx, f.mints)
	if err != nil {
		f.errors.Add(1)
		metrics.FetchErrors.Inc()
		f.log.Warn().Err(err).Msg("price fetch failed")
		return
	}
	for mint, price := range prices {
		f.cache.PutPrice(mint, price)
	}
}

// Stats returns a snapshot of fetcher counters.
func (f *Fetcher) Stats() FetcherStats {
	return FetcherStats{
		Ticks:           f.ticks.Load(),
		QuotesPublished: f.published.Load(),
		FetchErrors:     f.errors.Load(),
		LastTickMS:      f.lastTickMS.Load(),
	}
}
