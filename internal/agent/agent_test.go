package agent

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultfunk/vaultfunk/internal/chain"
	"github.com/vaultfunk/vaultfunk/internal/market"
	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// agentQuoteSource serves a fixed wide-spread quote for every pair.
type agentQuoteSource struct{}

func (agentQuoteSource) GetQuote(_ context.Context, pair market.Pair) (*market.Quote, error) {
	return &market.Quote{
		InputMint:   pair.InputMint,
		OutputMint:  pair.OutputMint,
		InAmount:    pair.Amount,
		OutAmount:   pair.Amount * 11 / 10,
		SlippageBps: 50,
	}, nil
}

func (agentQuoteSource) GetPrices(_ context.Context, mints []solana.PublicKey) (map[solana.PublicKey]float64, error) {
	out := make(map[solana.PublicKey]float64, len(mints))
	for _, m := range mints {
		out[m] = 1.0
	}
	return out, nil
}

func agentConfig() Config {
	return Config{
		PortfolioID:             uuid.New(),
		Pairs:                   []market.Pair{{InputMint: plannerUSDC, OutputMint: obsMint, Amount: 1_000_000}},
		FetchInterval:           100 * time.Millisecond,
		EvaluationInterval:      100 * time.Millisecond,
		MonitoringInterval:      time.Minute,
		MaxConcurrentExecutions: 2,
		LearningEnabled:         true,
		SubmitTimeout:           time.Second,
		Strategies: []strategy.Config{{
			Strategy: strategy.Arbitrage,
			Params:   strategy.Params{MinSpreadBps: 500, MaxSlippageBps: 50},
		}},
	}
}

func agentDeps() Deps {
	return Deps{
		QuoteSource: agentQuoteSource{},
		Chain:       chain.NewMock(),
		Cache:       market.NewCache(nil, zerolog.Nop()),
		Log:         zerolog.Nop(),
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config, *Deps)
	}{
		{"zero concurrency", func(c *Config, _ *Deps) { c.MaxConcurrentExecutions = 0 }},
		{"evaluation interval too short", func(c *Config, _ *Deps) { c.EvaluationInterval = 50 * time.Millisecond }},
		{"missing cache", func(_ *Config, d *Deps) { d.Cache = nil }},
		{"missing chain client", func(_ *Config, d *Deps) { d.Chain = nil }},
		{"no strategies", func(c *Config, _ *Deps) { c.Strategies = nil }},
		{"reserved strategy", func(c *Config, _ *Deps) {
			c.Strategies = []strategy.Config{{Strategy: strategy.MeanReversion}}
		}},
		{"no pairs", func(c *Config, _ *Deps) { c.Pairs = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, deps := agentConfig(), agentDeps()
			tt.mutate(&cfg, &deps)
			_, err := New(cfg, deps)
			assert.Error(t, err)
		})
	}
}

func TestNewDefaultsRetryAndMonitoring(t *testing.T) {
	cfg := agentConfig()
	cfg.Retry = RetryConfig{}
	cfg.MonitoringInterval = 0

	a, err := New(cfg, agentDeps())
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryConfig(), a.cfg.Retry)
	assert.Equal(t, time.Minute, a.cfg.MonitoringInterval)
	assert.Equal(t, DefaultLearnedParams(), a.LearnedParams())
}

func TestAgentPipelineEndToEnd(t *testing.T) {
	a, err := New(agentConfig(), agentDeps())
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	assert.True(t, a.Running())
	assert.Error(t, a.Start(context.Background()), "double start is refused")

	// Quotes flow through planning and execution into applied feedback.
	require.Eventually(t, func() bool {
		return a.Stats().FeedbackApplied >= 1
	}, 5*time.Second, 10*time.Millisecond)

	stats := a.Stats()
	assert.GreaterOrEqual(t, stats.Planner.PlansEmitted, uint64(1))
	assert.GreaterOrEqual(t, stats.Executor.Succeeded, uint64(1))
	assert.GreaterOrEqual(t, stats.Observer.Performance.TotalTrades, uint64(1))

	// Mock executions are fast and tight, so feedback is excellent and
	// the learned parameters drift from their defaults.
	require.Eventually(t, func() bool {
		return a.LearnedParams().PositionSizeMultiplier > 1.0
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, a.LearnedParams().InBounds())

	a.Stop()
	assert.False(t, a.Running())
}

func TestAgentLearningDisabled(t *testing.T) {
	cfg := agentConfig()
	cfg.LearningEnabled = false

	a, err := New(cfg, agentDeps())
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	require.Eventually(t, func() bool {
		return a.Stats().Observer.Performance.TotalTrades >= 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, DefaultLearnedParams(), a.LearnedParams())
	assert.Zero(t, a.Stats().FeedbackApplied)
}

func TestAgentStopIsIdempotent(t *testing.T) {
	a, err := New(agentConfig(), agentDeps())
	require.NoError(t, err)

	a.Stop() // never started

	require.NoError(t, a.Start(context.Background()))
	a.Stop()
	a.Stop()
	assert.False(t, a.Running())
}

func TestAgentUpdateStrategyConfig(t *testing.T) {
	a, err := New(agentConfig(), agentDeps())
	require.NoError(t, err)

	valid := strategy.Config{
		Strategy: strategy.DCA,
		Params:   strategy.Params{MaxSlippageBps: 50, PositionSizeUSD: 5},
	}
	assert.NoError(t, a.UpdateStrategyConfig(valid))

	reserved := strategy.Config{Strategy: strategy.TrendFollowing}
	assert.Error(t, a.UpdateStrategyConfig(reserved))

	badRisk := valid
	badRisk.Risk.MaxDailyLossPct = 150
	assert.Error(t, a.UpdateStrategyConfig(badRisk))
}
