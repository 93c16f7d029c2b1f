package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaultfunk/vaultfunk/internal/market"
	"github.com/vaultfunk/vaultfunk/internal/metrics"
	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

const (
	historyCap       = 10_000
	historyDropBatch = 1_000
	positionMaxAge   = 7 * 24 * time.Hour
)

// PortfolioStore supplies the tracked-token list for periodic
// monitoring.
type PortfolioStore interface {
	FetchTokenMints(ctx context.Context, portfolioID uuid.UUID) ([]solana.PublicKey, error)
}

// EventPublisher fans executions and feedback out to the event bus.
type EventPublisher interface {
	Publish(subject string, payload any)
}

// Notifier raises human-facing alerts and reports.
type Notifier interface {
	Alert(msg string)
	Report(msg string)
}

// ObserverStats is a snapshot of observer state.
type ObserverStats struct {
	Performance   PerformanceMetrics `json:"performance"`
	HistoryLen    int                `json:"history_len"`
	OpenPositions int                `json:"open_positions"`
}

// Observer consumes execution results, maintains the bounded history,
// the cumulative performance metrics, and the positions map, and emits
// learning feedback. It owns positions; the planner only ever sees
// copied snapshots through the single-slot positions channel.
type Observer struct {
	results      <-chan ExecutionResult
	feedback     chan<- Feedback
	positionsOut chan map[string]strategy.Position

	store       PortfolioStore // nil disables monitoring refresh
	cache       *market.Cache
	events      EventPublisher // nil disables event publishing
	notifier    Notifier       // nil disables notifications
	portfolioID uuid.UUID
	interval    time.Duration
	log         zerolog.Logger
	now         func() time.Time

	mu        sync.Mutex
	history   []ExecutionResult
	perf      PerformanceMetrics
	slipCount uint64
	positions map[string]strategy.Position
}

// NewObserver wires an observer. positionsOut must have capacity 1: the
// observer keeps only the latest snapshot in it.
func NewObserver(
	results <-chan ExecutionResult,
	feedback chan<- Feedback,
	positionsOut chan map[string]strategy.Position,
	store PortfolioStore,
	cache *market.Cache,
	events EventPublisher,
	notifier Notifier,
	portfolioID uuid.UUID,
	interval time.Duration,
	log zerolog.Logger,
) *Observer {
	return &Observer{
		results:      results,
		feedback:     feedback,
		positionsOut: positionsOut,
		store:        store,
		cache:        cache,
		events:       events,
		notifier:     notifier,
		portfolioID:  portfolioID,
		interval:     interval,
		log:          log,
		now:          time.Now,
		positions:    make(map[string]strategy.Position),
	}
}

// Run consumes results and monitoring ticks until ctx is cancelled.
func (o *Observer) Run(ctx context.Context) {
	o.log.Info().Dur("monitoring_interval", o.interval).Msg("observer started")

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info().Msg("observer stopped")
			return
		case result, ok := <-o.results:
			if !ok {
				o.log.Info().Msg("result channel closed, observer stopping")
				return
			}
			o.processResult(ctx, result)
		case <-ticker.C:
			o.monitor(ctx)
		}
	}
}

// processResult appends to the bounded history, updates metrics and
// positions, and emits feedback plus the latest positions snapshot.
func (o *Observer) processResult(ctx context.Context, result ExecutionResult) {
	o.log.Info().
		Str("plan_id", result.PlanID.String()).
		Bool("success", result.Success).
		Uint64("execution_time_ms", result.ExecutionTimeMS).
		Msg("processing execution result")

	o.mu.Lock()
	o.history = append(o.history, result)
	if len(o.history) > historyCap {
		o.history = o.history[historyDropBatch:]
	}
	o.updateMetricsLocked(result)
	o.updatePositionLocked(result)
	o.mu.Unlock()

	metrics.WinRate.Set(o.Stats().Performance.WinRate)

	if o.events != nil {
		o.events.Publish("vaultfunk.results", result)
	}

	o.emitFeedback(ctx, result)
	o.pushPositions()
}

func (o *Observer) updateMetricsLocked(result ExecutionResult) {
	o.perf.TotalTrades++
	if result.Success {
		o.perf.SuccessfulTrades++
	}
	o.perf.WinRate = float64(o.perf.SuccessfulTrades) / float64(o.perf.TotalTrades)

	x := float64(result.ExecutionTimeMS)
	o.perf.MeanExecutionMS += (x - o.perf.MeanExecutionMS) / float64(o.perf.TotalTrades)

	if result.SlippageBps != nil {
		o.slipCount++
		s := float64(*result.SlippageBps)
		o.perf.MeanSlippageBps += (s - o.perf.MeanSlippageBps) / float64(o.slipCount)
	}
	o.perf.TotalGasUsed += result.GasUsed
}

// updatePositionLocked upserts the position a successful trade opened
// or grew, keyed by output mint.
func (o *Observer) updatePositionLocked(result ExecutionResult) {
	if !result.Success || result.ObservedOut == 0 {
		return
	}

	key := result.OutputMint.String()
	price, _ := o.cache.GetPrice(result.OutputMint)

	pos, exists := o.positions[key]
	if !exists {
		pos = strategy.Position{
			TokenMint:  result.OutputMint,
			EntryPrice: price,
			OpenedAt:   result.Timestamp,
		}
	}
	pos.Amount += result.ObservedOut
	if price > 0 {
		pos.CurrentPrice = price
	}
	if pos.EntryPrice > 0 {
		pos.UnrealizedPL = float64(pos.Amount) * pos.EntryPrice * (pos.CurrentPrice/pos.EntryPrice - 1.0)
	}
	o.positions[key] = pos
	metrics.OpenPositions.Set(float64(len(o.positions)))
}

// emitFeedback derives the quality bucket and parameter adjustments for
// one result and sends them to the supervisor.
func (o *Observer) emitFeedback(ctx context.Context, result ExecutionResult) {
	quality := AssessQuality(result)

	if quality == QualityPoor && o.notifier != nil {
		o.notifier.Alert(fmt.Sprintf("poor execution for plan %s: %s (%d ms)",
			result.PlanID, result.ErrorMessage, result.ExecutionTimeMS))
	}

	perf := o.Stats().Performance
	winRateDelta := o.winRateDelta(result, perf)

	pnlDelta := 100.0
	riskDelta := -0.01
	if !result.Success {
		pnlDelta = -10.0
		riskDelta = 0.05
	}

	fb := Feedback{
		Strategy: result.Strategy,
		Result:   result,
		Impact: PerformanceImpact{
			PnLDelta:     pnlDelta,
			WinRateDelta: winRateDelta,
			RiskDelta:    riskDelta,
			Quality:      quality,
		},
		Adjustments: quality.Adjustments(),
	}

	if o.events != nil {
		o.events.Publish("vaultfunk.feedback", fb)
	}

	select {
	case o.feedback <- fb:
	case <-ctx.Done():
	}
}

func (o *Observer) winRateDelta(result ExecutionResult, perf PerformanceMetrics) float64 {
	if perf.TotalTrades <= 1 {
		return perf.WinRate
	}
	prevSuccesses := perf.SuccessfulTrades
	if result.Success {
		prevSuccesses--
	}
	prev := float64(prevSuccesses) / float64(perf.TotalTrades-1)
	return perf.WinRate - prev
}

// pushPositions replaces the snapshot in the single-slot positions
// channel. Never blocks; a stale unread snapshot is discarded.
func (o *Observer) pushPositions() {
	o.mu.Lock()
	snapshot := make(map[string]strategy.Position, len(o.positions))
	for k, v := range o.positions {
		snapshot[k] = v
	}
	o.mu.Unlock()

	for {
		select {
		case o.positionsOut <- snapshot:
			return
		default:
		}
		select {
		case <-o.positionsOut:
		default:
		}
	}
}

// monitor refreshes the tracked-token list from the store, re-prices
// positions from the cache, evicts stale positions, and logs a report.
func (o *Observer) monitor(ctx context.Context) {
	if o.store != nil {
		mints, err := o.store.FetchTokenMints(ctx, o.portfolioID)
		if err != nil {
			o.log.Warn().Err(err).Msg("failed to refresh portfolio token list")
		} else {
			o.log.Debug().Int("tokens", len(mints)).Msg("monitoring portfolio tokens")
		}
	}

	now := o.now()
	cutoff := now.Add(-positionMaxAge)

	o.mu.Lock()
	for key, pos := range o.positions {
		if pos.OpenedAt.Before(cutoff) {
			delete(o.positions, key)
			o.log.Info().Str("mint", key).Msg("evicting stale position")
			continue
		}
		if price, ok := o.cache.GetPrice(pos.TokenMint); ok && price > 0 {
			pos.CurrentPrice = price
			if pos.EntryPrice > 0 {
				pos.UnrealizedPL = float64(pos.Amount) * pos.EntryPrice * (pos.CurrentPrice/pos.EntryPrice - 1.0)
			}
			o.positions[key] = pos
		}
	}
	perf := o.perf
	openPositions := len(o.positions)
	o.mu.Unlock()

	metrics.OpenPositions.Set(float64(openPositions))

	report := fmt.Sprintf("trades=%d win_rate=%.1f%% positions=%d mean_execution=%.0fms",
		perf.TotalTrades, perf.WinRate*100, openPositions, perf.MeanExecutionMS)
	o.log.Info().
		Uint64("trades", perf.TotalTrades).
		Float64("win_rate", perf.WinRate).
		Int("positions", openPositions).
		Float64("mean_execution_ms", perf.MeanExecutionMS).
		Msg("performance report")

	if o.notifier != nil && perf.TotalTrades > 0 {
		o.notifier.Report(report)
	}

	o.pushPositions()
}

// Stats returns a snapshot of observer state.
func (o *Observer) Stats() ObserverStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return ObserverStats{
		Performance:   o.perf,
		HistoryLen:    len(o.history),
		OpenPositions: len(o.positions),
	}
}
