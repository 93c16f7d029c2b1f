package agent

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/vaultfunk/vaultfunk/internal/advisor"
	"github.com/vaultfunk/vaultfunk/internal/market"
	"github.com/vaultfunk/vaultfunk/internal/metrics"
	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

const (
	quoteWindowSize = 100
	advisorTimeout  = 30 * time.Second
	trendThreshold  = 0.02
)

// priorityBase orders strategies within one evaluation cycle.
var priorityBase = map[strategy.Tag]float64{
	strategy.Arbitrage:      0.9,
	strategy.TrendFollowing: 0.8,
	strategy.MeanReversion:  0.7,
	strategy.GridTrading:    0.6,
	strategy.DCA:            0.5,
}

// PlannerStats is a point-in-time snapshot of planner counters.
type PlannerStats struct {
	QuotesSeen      uint64                    `json:"quotes_seen"`
	EvalTicks       uint64                    `json:"eval_ticks"`
	PlansEmitted    uint64                    `json:"plans_emitted"`
	StrategyErrors  uint64                    `json:"strategy_errors"`
	AdvisorFailures uint64                    `json:"advisor_failures"`
	Conditions      strategy.MarketConditions `json:"market_conditions"`
}

// Planner consumes quotes, maintains a rolling window and a
// market-conditions estimate, and emits at most one plan per strategy
// per evaluation cycle. Arbitrage additionally runs against every
// incoming quote because its edge decays in seconds.
type Planner struct {
	strategies map[strategy.Tag]strategy.Strategy
	configs    map[strategy.Tag]strategy.Config
	advisor    advisor.Advisor // nil disables guidance
	bucket     solana.PublicKey
	params     *atomic.Pointer[LearnedParams]

	quotes       <-chan market.Quote
	positionsIn  <-chan map[string]strategy.Position
	plans        chan<- *strategy.Plan
	evalInterval time.Duration
	log          zerolog.Logger
	now          func() time.Time

	window    []market.Quote
	positions map[string]strategy.Position

	cfgMu sync.RWMutex // guards strategies and configs for runtime updates

	condMu     sync.RWMutex
	conditions strategy.MarketConditions

	quotesSeen      atomic.Uint64
	evalTicks       atomic.Uint64
	plansEmitted    atomic.Uint64
	strategyErrors  atomic.Uint64
	advisorFailures atomic.Uint64
}

// NewPlanner wires a planner. strategies and configs must share keys;
// adv may be nil.
func NewPlanner(
	strategies map[strategy.Tag]strategy.Strategy,
	configs map[strategy.Tag]strategy.Config,
	adv advisor.Advisor,
	bucket solana.PublicKey,
	params *atomic.Pointer[LearnedParams],
	quotes <-chan market.Quote,
	positionsIn <-chan map[string]strategy.Position,
	plans chan<- *strategy.Plan,
	evalInterval time.Duration,
	log zerolog.Logger,
) *Planner {
	return &Planner{
		strategies:   strategies,
		configs:      configs,
		advisor:      adv,
		bucket:       bucket,
		params:       params,
		quotes:       quotes,
		positionsIn:  positionsIn,
		plans:        plans,
		evalInterval: evalInterval,
		log:          log,
		now:          time.Now,
		conditions:   strategy.MarketConditions{Trend: strategy.Sideways, LiquidityScore: 1.0},
		positions:    map[string]strategy.Position{},
	}
}

// Run consumes quotes and evaluation ticks until ctx is cancelled.
func (p *Planner) Run(ctx context.Context) {
	p.log.Info().
		Int("strategies", len(p.strategies)).
		Dur("eval_interval", p.evalInterval).
		Msg("planner started")

	ticker := time.NewTicker(p.evalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("planner stopped")
			return
		case q, ok := <-p.quotes:
			if !ok {
				p.log.Info().Msg("quote channel closed, planner stopping")
				return
			}
			p.onQuote(ctx, q)
		case snapshot := <-p.positionsIn:
			p.positions = snapshot
		case <-ticker.C:
			p.onTick(ctx)
		}
	}
}

// onQuote appends to the window, refreshes the conditions estimate, and
// runs the time-sensitive strategies against this single quote.
func (p *Planner) onQuote(ctx context.Context, q market.Quote) {
	p.quotesSeen.Add(1)

	p.window = append(p.window, q)
	if len(p.window) > quoteWindowSize {
		p.window = p.window[len(p.window)-quoteWindowSize:]
	}
	p.setConditions(deriveConditions(p.window))

	p.cfgMu.RLock()
	s, ok := p.strategies[strategy.Arbitrage]
	p.cfgMu.RUnlock()
	if !ok {
		return
	}
	p.evaluate(ctx, s, q, nil)
}

// onTick runs the full strategy set, highest priority first, with
// optional advisor guidance.
func (p *Planner) onTick(ctx context.Context) {
	if len(p.window) == 0 {
		return
	}
	p.evalTicks.Add(1)

	guidance := p.askAdvisor(ctx)
	newest := p.window[len(p.window)-1]

	for _, tag := range p.prioritized(guidance) {
		p.cfgMu.RLock()
		s := p.strategies[tag]
		p.cfgMu.RUnlock()
		if s != nil {
			p.evaluate(ctx, s, newest, guidance)
		}
	}
}

// evaluate runs one strategy against one quote and emits the plan, if
// any. Strategy errors are logged and contained.
func (p *Planner) evaluate(ctx context.Context, s strategy.Strategy, q market.Quote, guidance *advisor.Guidance) {
	p.cfgMu.RLock()
	cfg, ok := p.configs[s.Tag()]
	p.cfgMu.RUnlock()
	if !ok {
		return
	}

	plan, err := s.Evaluate(strategy.EvalInput{
		Quote:      q,
		Conditions: p.Conditions(),
		Positions:  p.positions,
		Config:     p.effectiveConfig(cfg),
		Bucket:     p.bucket,
		Now:        p.now(),
	})
	if err != nil {
		p.strategyErrors.Add(1)
		p.log.Warn().Err(err).Str("strategy", string(s.Tag())).Msg("strategy evaluation failed")
		return
	}
	if plan == nil {
		return
	}

	if guidance != nil {
		plan.Confidence *= guidance.Confidence
		if guidance.Reasoning != "" {
			if plan.Context.Reasoning != "" {
				plan.Context.Reasoning += "; "
			}
			plan.Context.Reasoning += "advisor: " + guidance.Reasoning
		}
	}

	if err := plan.CheckInvariants(); err != nil {
		p.log.Error().Err(err).Str("strategy", string(s.Tag())).Msg("dropping plan violating invariants")
		return
	}

	select {
	case p.plans <- plan:
		p.plansEmitted.Add(1)
		metrics.PlansEmitted.WithLabelValues(string(plan.Strategy)).Inc()
		p.log.Info().
			Str("plan_id", plan.ID.String()).
			Str("strategy", string(plan.Strategy)).
			Uint64("input_amount", plan.InputAmount).
			Float64("confidence", plan.Confidence).
			Msg("plan emitted")
	case <-ctx.Done():
	}
}

// askAdvisor fetches guidance for this tick, or nil when the advisor is
// unset, throttled, or failing. Never on the critical path.
func (p *Planner) askAdvisor(ctx context.Context) *advisor.Guidance {
	if p.advisor == nil {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()

	newest := p.window
	if len(newest) > 5 {
		newest = newest[len(newest)-5:]
	}
	positions := make([]strategy.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		positions = append(positions, pos)
	}
	tags := p.configuredTags()

	guidance, err := p.advisor.Advise(reqCtx, advisor.Request{
		Conditions: p.Conditions(),
		Quotes:     newest,
		Positions:  positions,
		Strategies: tags,
	})
	if err != nil {
		p.advisorFailures.Add(1)
		p.log.Debug().Err(err).Msg("advisor unavailable, continuing without guidance")
		return nil
	}
	return guidance
}

// prioritized orders the configured strategies by base priority,
// adjusted multiplicatively by advisor confidence and risk when
// guidance is available. Stable on ties.
func (p *Planner) prioritized(guidance *advisor.Guidance) []strategy.Tag {
	tags := p.configuredTags()
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	score := func(tag strategy.Tag) float64 {
		s := priorityBase[tag]
		if guidance != nil {
			s *= guidance.Confidence * (1.0 - guidance.Risk.RiskScore)
		}
		return s
	}
	sort.SliceStable(tags, func(i, j int) bool { return score(tags[i]) > score(tags[j]) })
	return tags
}

// effectiveConfig overlays the learned parameters onto a strategy
// config. The stored configs are never mutated.
func (p *Planner) effectiveConfig(cfg strategy.Config) strategy.Config {
	learned := p.params.Load()
	if learned == nil {
		return cfg
	}
	cfg.Params.MaxSlippageBps = uint16(learned.MaxSlippageBps)
	cfg.Params.PositionSizeUSD *= learned.PositionSizeMultiplier
	cfg.Execution.PriorityFeePercentile = uint8(learned.PriorityFeePercentile)
	return cfg
}

// deriveConditions computes the planner's market estimate from the
// quote window: population volatility of per-quote prices, summed input
// volume, a ±2 % first-to-last trend, and liquidity as the complement
// of mean price impact.
func deriveConditions(window []market.Quote) strategy.MarketConditions {
	if len(window) == 0 {
		return strategy.MarketConditions{Trend: strategy.Sideways, LiquidityScore: 1.0}
	}

	prices := make([]float64, 0, len(window))
	var volume, impactSum float64
	for _, q := range window {
		if price := q.Price(); price > 0 {
			prices = append(prices, price)
		}
		volume += float64(q.InAmount)
		impactSum += q.PriceImpactPct
	}

	var volatility float64
	if len(prices) > 1 {
		var mean float64
		for _, p := range prices {
			mean += p
		}
		mean /= float64(len(prices))
		var variance float64
		for _, p := range prices {
			variance += (p - mean) * (p - mean)
		}
		variance /= float64(len(prices))
		volatility = math.Sqrt(variance)
	}

	trend := strategy.Sideways
	if len(prices) > 1 {
		change := prices[len(prices)-1]/prices[0] - 1.0
		if change > trendThreshold {
			trend = strategy.Bullish
		} else if change < -trendThreshold {
			trend = strategy.Bearish
		}
	}

	liquidity := 1.0 - impactSum/float64(len(window))
	if liquidity < 0 {
		liquidity = 0
	}
	if liquidity > 1 {
		liquidity = 1
	}

	return strategy.MarketConditions{
		Volatility:     volatility,
		Volume24h:      volume,
		Trend:          trend,
		LiquidityScore: liquidity,
	}
}

// Stats returns a snapshot of planner counters.
func (p *Planner) Stats() PlannerStats {
	return PlannerStats{
		QuotesSeen:      p.quotesSeen.Load(),
		EvalTicks:       p.evalTicks.Load(),
		PlansEmitted:    p.plansEmitted.Load(),
		StrategyErrors:  p.strategyErrors.Load(),
		AdvisorFailures: p.advisorFailures.Load(),
		Conditions:      p.Conditions(),
	}
}

func (p *Planner) configuredTags() []strategy.Tag {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	tags := make([]strategy.Tag, 0, len(p.strategies))
	for tag := range p.strategies {
		tags = append(tags, tag)
	}
	return tags
}

// UpdateConfig swaps the config for one strategy at runtime. The caller
// validates before calling; unknown tags get a fresh strategy instance.
func (p *Planner) UpdateConfig(cfg strategy.Config) error {
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	if _, ok := p.strategies[cfg.Strategy]; !ok {
		s, err := strategy.New(cfg.Strategy)
		if err != nil {
			return err
		}
		p.strategies[cfg.Strategy] = s
	}
	p.configs[cfg.Strategy] = cfg
	return nil
}

// Conditions returns the current market-conditions estimate.
func (p *Planner) Conditions() strategy.MarketConditions {
	p.condMu.RLock()
	defer p.condMu.RUnlock()
	return p.conditions
}

func (p *Planner) setConditions(c strategy.MarketConditions) {
	p.condMu.Lock()
	p.conditions = c
	p.condMu.Unlock()
}
