package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaultfunk/vaultfunk/internal/advisor"
	"github.com/vaultfunk/vaultfunk/internal/chain"
	"github.com/vaultfunk/vaultfunk/internal/market"
	"github.com/vaultfunk/vaultfunk/internal/metrics"
	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// Channel capacities. The plan channel is the single point of
// back-pressure, sized off the execution bound.
const (
	quoteChanCap    = 256
	resultChanCap   = 256
	feedbackChanCap = 64
)

// Config is everything the supervisor needs to assemble the pipeline.
type Config struct {
	PortfolioID             uuid.UUID
	Bucket                  solana.PublicKey
	Pairs                   []market.Pair
	FetchInterval           time.Duration
	EvaluationInterval      time.Duration
	MonitoringInterval      time.Duration
	MaxConcurrentExecutions int
	LearningEnabled         bool
	SubmitTimeout           time.Duration
	Retry                   RetryConfig
	Strategies              []strategy.Config
}

// Deps are the external collaborators the agent talks to.
type Deps struct {
	QuoteSource market.QuoteSource
	Chain       chain.Client
	Advisor     advisor.Advisor // nil disables guidance
	Store       PortfolioStore  // nil disables monitoring refresh
	Cache       *market.Cache
	Events      EventPublisher // nil disables event publishing
	Notifier    Notifier       // nil disables notifications
	Log         zerolog.Logger
}

// AgentStats aggregates per-stage snapshots for the status API.
type AgentStats struct {
	Running         bool                `json:"running"`
	Fetcher         market.FetcherStats `json:"fetcher"`
	Planner         PlannerStats        `json:"planner"`
	Executor        ExecutorStats       `json:"executor"`
	Observer        ObserverStats       `json:"observer"`
	Learned         LearnedParams       `json:"learned_params"`
	FeedbackApplied uint64              `json:"feedback_applied"`
}

// Agent owns the four pipeline stages and every channel between them.
// Stages receive senders/receivers plus the shared context; no stage
// reaches into another's state.
type Agent struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	params   atomic.Pointer[LearnedParams]
	fetcher  *market.Fetcher
	planner  *Planner
	executor *Executor
	observer *Observer

	feedback chan Feedback

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	feedbackApplied atomic.Uint64
}

// New validates the configuration and assembles the pipeline. Any
// validation failure is a configuration error: the agent refuses to
// start.
func New(cfg Config, deps Deps) (*Agent, error) {
	if cfg.MaxConcurrentExecutions < 1 {
		return nil, strategy.Configf("max_concurrent_executions must be >= 1, got %d", cfg.MaxConcurrentExecutions)
	}
	if cfg.EvaluationInterval < 100*time.Millisecond {
		return nil, strategy.Configf("evaluation_interval must be >= 100ms, got %v", cfg.EvaluationInterval)
	}
	if cfg.MonitoringInterval <= 0 {
		cfg.MonitoringInterval = time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if deps.Cache == nil {
		return nil, strategy.Configf("market cache is required")
	}
	if deps.Chain == nil {
		return nil, strategy.Configf("chain client is required")
	}

	strategies, configs, err := strategy.BuildSet(cfg.Strategies)
	if err != nil {
		return nil, err
	}
	if len(strategies) == 0 {
		return nil, strategy.Configf("at least one strategy is required")
	}

	a := &Agent{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Log.With().Str("component", "agent").Logger(),
		feedback: make(chan Feedback, feedbackChanCap),
	}
	defaults := DefaultLearnedParams()
	a.params.Store(&defaults)

	quotes := make(chan market.Quote, quoteChanCap)
	plans := make(chan *strategy.Plan, 4*cfg.MaxConcurrentExecutions)
	results := make(chan ExecutionResult, resultChanCap)
	positions := make(chan map[string]strategy.Position, 1)

	a.fetcher, err = market.NewFetcher(
		deps.QuoteSource, deps.Cache, cfg.Pairs, cfg.FetchInterval, quotes,
		deps.Log.With().Str("component", "fetcher").Logger(),
	)
	if err != nil {
		return nil, strategy.Configf("%v", err)
	}

	a.planner = NewPlanner(
		strategies, configs, deps.Advisor, cfg.Bucket, &a.params,
		quotes, positions, plans, cfg.EvaluationInterval,
		deps.Log.With().Str("component", "planner").Logger(),
	)

	a.executor = NewExecutor(
		deps.Chain, int64(cfg.MaxConcurrentExecutions), plans, results,
		cfg.Retry, cfg.SubmitTimeout,
		deps.Log.With().Str("component", "executor").Logger(),
	)

	a.observer = NewObserver(
		results, a.feedback, positions,
		deps.Store, deps.Cache, deps.Events, deps.Notifier,
		cfg.PortfolioID, cfg.MonitoringInterval,
		deps.Log.With().Str("component", "observer").Logger(),
	)

	return a, nil
}

// Start launches all pipeline stages and the learning loop.
func (a *Agent) Start(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return fmt.Errorf("agent already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	a.log.Info().
		Str("portfolio_id", a.cfg.PortfolioID.String()).
		Int("pairs", len(a.cfg.Pairs)).
		Int("max_concurrent", a.cfg.MaxConcurrentExecutions).
		Bool("learning", a.cfg.LearningEnabled).
		Msg("starting trading agent")

	for name, run := range map[string]func(context.Context){
		"fetcher":  a.fetcher.Run,
		"planner":  a.planner.Run,
		"executor": a.executor.Run,
		"observer": a.observer.Run,
		"learning": a.learningLoop,
	} {
		a.wg.Add(1)
		go func(name string, run func(context.Context)) {
			defer a.wg.Done()
			run(runCtx)
		}(name, run)
	}

	return nil
}

// Stop cancels all stages and waits for in-flight work to drain.
func (a *Agent) Stop() {
	if !a.running.Load() {
		return
	}
	a.log.Info().Msg("stopping trading agent")

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.running.Store(false)
	a.log.Info().Msg("trading agent stopped")
}

// EmergencyStop halts the pipeline immediately. In-flight submissions
// are cancelled rather than drained.
func (a *Agent) EmergencyStop(reason string) {
	a.log.Error().Str("reason", reason).Msg("EMERGENCY STOP")
	a.Stop()
}

// learningLoop applies observer feedback to the learned parameters.
// Application is read, copy, clamp, store on an atomic pointer; stages
// pick the new values up on their next iteration. With learning
// disabled the loop still drains the channel.
func (a *Agent) learningLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fb := <-a.feedback:
			if !a.cfg.LearningEnabled {
				continue
			}
			cur := a.params.Load()
			next := cur.Apply(fb.Adjustments)
			a.params.Store(&next)
			a.feedbackApplied.Add(1)
			metrics.FeedbackApplied.WithLabelValues(string(fb.Impact.Quality)).Inc()

			a.log.Info().
				Str("strategy", string(fb.Strategy)).
				Str("quality", string(fb.Impact.Quality)).
				Float64("priority_fee_percentile", next.PriorityFeePercentile).
				Float64("max_slippage_bps", next.MaxSlippageBps).
				Float64("position_size_multiplier", next.PositionSizeMultiplier).
				Msg("applied learning feedback")
		}
	}
}

// UpdateStrategyConfig validates and swaps one strategy config while
// the pipeline runs.
func (a *Agent) UpdateStrategyConfig(cfg strategy.Config) error {
	s, err := strategy.New(cfg.Strategy)
	if err != nil {
		return err
	}
	if err := cfg.ValidateCommon(); err != nil {
		return err
	}
	if err := s.Validate(cfg); err != nil {
		return err
	}
	if err := a.planner.UpdateConfig(cfg); err != nil {
		return err
	}
	a.log.Info().Str("strategy", string(cfg.Strategy)).Msg("strategy config updated")
	return nil
}

// LearnedParams returns the current learned parameter values.
func (a *Agent) LearnedParams() LearnedParams {
	return *a.params.Load()
}

// Running reports whether the pipeline is up.
func (a *Agent) Running() bool {
	return a.running.Load()
}

// Stats aggregates per-stage snapshots.
func (a *Agent) Stats() AgentStats {
	return AgentStats{
		Running:         a.running.Load(),
		Fetcher:         a.fetcher.Stats(),
		Planner:         a.planner.Stats(),
		Executor:        a.executor.Stats(),
		Observer:        a.observer.Stats(),
		Learned:         a.LearnedParams(),
		FeedbackApplied: a.feedbackApplied.Load(),
	}
}
