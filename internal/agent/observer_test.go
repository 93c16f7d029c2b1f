package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultfunk/vaultfunk/internal/market"
	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

var obsMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

type observerHarness struct {
	observer  *Observer
	feedback  chan Feedback
	positions chan map[string]strategy.Position
	cache     *market.Cache
	events    *recordingPublisher
	notifier  *recordingNotifier
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, _ any) {
	p.mu.Lock()
	p.subjects = append(p.subjects, subject)
	p.mu.Unlock()
}

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.subjects))
	copy(out, p.subjects)
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	alerts  []string
	reports []string
}

func (n *recordingNotifier) Alert(msg string) {
	n.mu.Lock()
	n.alerts = append(n.alerts, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Report(msg string) {
	n.mu.Lock()
	n.reports = append(n.reports, msg)
	n.mu.Unlock()
}

func newObserverHarness(t *testing.T) *observerHarness {
	t.Helper()
	results := make(chan ExecutionResult, 16)
	feedback := make(chan Feedback, 16_384)
	positions := make(chan map[string]strategy.Position, 1)
	cache := market.NewCache(nil, zerolog.Nop())
	events := &recordingPublisher{}
	notifier := &recordingNotifier{}

	o := NewObserver(results, feedback, positions, nil, cache, events, notifier,
		uuid.New(), time.Minute, zerolog.Nop())

	return &observerHarness{
		observer:  o,
		feedback:  feedback,
		positions: positions,
		cache:     cache,
		events:    events,
		notifier:  notifier,
	}
}

func successResult(timeMS uint64, slip *uint16) ExecutionResult {
	sig := solana.Signature{1}
	return ExecutionResult{
		PlanID:          uuid.New(),
		Strategy:        strategy.Arbitrage,
		Success:         true,
		Signature:       &sig,
		OutputMint:      obsMint,
		ObservedOut:     1_000_000,
		ExecutionTimeMS: timeMS,
		SlippageBps:     slip,
		GasUsed:         5000,
		Timestamp:       time.Now(),
	}
}

func TestObserverFeedbackQualityBuckets(t *testing.T) {
	h := newObserverHarness(t)
	ctx := context.Background()

	inputs := []ExecutionResult{
		successResult(1500, slippage(20)),
		successResult(2500, slippage(80)),
		successResult(6000, slippage(200)),
		successResult(900, nil),
	}
	want := []Quality{QualityExcellent, QualityGood, QualityPoor, QualityExcellent}

	for i, r := range inputs {
		h.observer.processResult(ctx, r)
		fb := <-h.feedback
		assert.Equal(t, want[i], fb.Impact.Quality, "result %d", i)
		assert.Equal(t, strategy.Arbitrage, fb.Strategy)
		assert.Equal(t, 100.0, fb.Impact.PnLDelta)
	}

	perf := h.observer.Stats().Performance
	assert.Equal(t, uint64(4), perf.TotalTrades)
	assert.Equal(t, uint64(4), perf.SuccessfulTrades)
	assert.Equal(t, 1.0, perf.WinRate)
}

func TestObserverWinRate(t *testing.T) {
	h := newObserverHarness(t)
	ctx := context.Background()

	failure := ExecutionResult{
		PlanID:          uuid.New(),
		Strategy:        strategy.DCA,
		Success:         false,
		ExecutionTimeMS: 500,
		ErrorMessage:    "engine rejected plan",
		Timestamp:       time.Now(),
	}

	successes, failures := 7, 3
	for i := 0; i < successes; i++ {
		h.observer.processResult(ctx, successResult(1000, slippage(10)))
	}
	for i := 0; i < failures; i++ {
		h.observer.processResult(ctx, failure)
	}

	perf := h.observer.Stats().Performance
	assert.Equal(t, uint64(10), perf.TotalTrades)
	assert.InDelta(t, 0.7, perf.WinRate, 1e-9)
	assert.InDelta(t, 850, perf.MeanExecutionMS, 1e-6)
}

func TestObserverFailureFeedback(t *testing.T) {
	h := newObserverHarness(t)

	h.observer.processResult(context.Background(), ExecutionResult{
		PlanID:          uuid.New(),
		Strategy:        strategy.Arbitrage,
		Success:         false,
		ExecutionTimeMS: 100,
		ErrorMessage:    "slippage exceeded",
		Timestamp:       time.Now(),
	})

	fb := <-h.feedback
	assert.Equal(t, QualityPoor, fb.Impact.Quality)
	assert.Equal(t, -10.0, fb.Impact.PnLDelta)
	assert.Equal(t, 0.05, fb.Impact.RiskDelta)

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	require.Len(t, h.notifier.alerts, 1, "poor executions alert the notifier")
	assert.Contains(t, h.notifier.alerts[0], "slippage exceeded")
}

func TestObserverHistoryTrim(t *testing.T) {
	h := newObserverHarness(t)
	ctx := context.Background()

	r := successResult(1000, slippage(10))
	for i := 0; i < historyCap+1; i++ {
		h.observer.processResult(ctx, r)
	}

	stats := h.observer.Stats()
	assert.Equal(t, historyCap+1-historyDropBatch, stats.HistoryLen)
	assert.Equal(t, uint64(historyCap+1), stats.Performance.TotalTrades,
		"metrics are cumulative across trims")
}

func TestObserverPositionTracking(t *testing.T) {
	h := newObserverHarness(t)
	h.cache.PutPrice(obsMint, 2.0)
	ctx := context.Background()

	h.observer.processResult(ctx, successResult(1000, slippage(10)))
	h.observer.processResult(ctx, successResult(1000, slippage(10)))

	snapshot := <-h.positions
	pos, ok := snapshot[obsMint.String()]
	require.True(t, ok)
	assert.Equal(t, uint64(2_000_000), pos.Amount, "repeat buys grow the position")
	assert.Equal(t, 2.0, pos.EntryPrice)
	assert.Equal(t, 2.0, pos.CurrentPrice)

	// Failures never touch positions.
	h.observer.processResult(ctx, ExecutionResult{
		PlanID:          uuid.New(),
		Success:         false,
		ErrorMessage:    "boom",
		ExecutionTimeMS: 100,
		Timestamp:       time.Now(),
	})
	assert.Equal(t, 1, h.observer.Stats().OpenPositions)
}

func TestObserverPositionsChannelKeepsLatest(t *testing.T) {
	h := newObserverHarness(t)
	h.cache.PutPrice(obsMint, 1.0)
	ctx := context.Background()

	// Nobody reads between results; the single-slot channel must hold the
	// latest snapshot, not the first.
	h.observer.processResult(ctx, successResult(1000, slippage(10)))
	h.observer.processResult(ctx, successResult(1000, slippage(10)))
	h.observer.processResult(ctx, successResult(1000, slippage(10)))

	snapshot := <-h.positions
	assert.Equal(t, uint64(3_000_000), snapshot[obsMint.String()].Amount)
}

func TestObserverMonitorRepricesAndEvicts(t *testing.T) {
	h := newObserverHarness(t)
	h.cache.PutPrice(obsMint, 2.0)
	ctx := context.Background()

	h.observer.processResult(ctx, successResult(1000, slippage(10)))
	require.Equal(t, 1, h.observer.Stats().OpenPositions)

	// Reprice on monitor tick. The single-slot channel holds only the
	// refreshed snapshot.
	h.cache.PutPrice(obsMint, 3.0)
	h.observer.monitor(ctx)
	snapshot := <-h.positions
	pos := snapshot[obsMint.String()]
	assert.Equal(t, 3.0, pos.CurrentPrice)
	assert.Greater(t, pos.UnrealizedPL, 0.0)

	// Positions older than the max age are evicted.
	h.observer.now = func() time.Time { return time.Now().Add(positionMaxAge + time.Hour) }
	h.observer.monitor(ctx)
	assert.Zero(t, h.observer.Stats().OpenPositions)
}

func TestObserverPublishesEvents(t *testing.T) {
	h := newObserverHarness(t)

	h.observer.processResult(context.Background(), successResult(1000, slippage(10)))

	subjects := h.events.Subjects()
	assert.Contains(t, subjects, "vaultfunk.results")
	assert.Contains(t, subjects, "vaultfunk.feedback")
}
