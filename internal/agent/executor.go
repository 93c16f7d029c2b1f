package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/vaultfunk/vaultfunk/internal/chain"
	"github.com/vaultfunk/vaultfunk/internal/metrics"
	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// RetryConfig controls executor retries. All attempts together count as
// a single logical execution.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// DefaultRetryConfig is 1 s initial delay, doubling, capped at 10 s,
// three attempts total.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		MaxAttempts:  3,
	}
}

// ExecutorStats is a snapshot of executor counters. MeanTimeMS is a
// running mean over all completed executions.
type ExecutorStats struct {
	Attempted  uint64  `json:"attempted"`
	Succeeded  uint64  `json:"succeeded"`
	Failed     uint64  `json:"failed"`
	MeanTimeMS float64 `json:"mean_time_ms"`
	LastTimeMS uint64  `json:"last_time_ms"`
	TotalGas   uint64  `json:"total_gas"`
	Inflight   int64   `json:"inflight"`
}

// Executor consumes plans and submits them through the chain client.
// Each plan runs on its own goroutine bounded by a weighted semaphore of
// capacity maxConcurrent, so one slow chain call never blocks pulls of
// other plans up to the bound.
type Executor struct {
	chain         chain.Client
	sem           *semaphore.Weighted
	plans         <-chan *strategy.Plan
	results       chan<- ExecutionResult
	retry         RetryConfig
	submitTimeout time.Duration
	log           zerolog.Logger
	now           func() time.Time

	wg sync.WaitGroup

	mu       sync.Mutex
	stats    ExecutorStats
	inflight int64
}

// NewExecutor wires an executor. submitTimeout bounds each individual
// chain submit attempt.
func NewExecutor(
	chainClient chain.Client,
	maxConcurrent int64,
	plans <-chan *strategy.Plan,
	results chan<- ExecutionResult,
	retry RetryConfig,
	submitTimeout time.Duration,
	log zerolog.Logger,
) *Executor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	return &Executor{
		chain:         chainClient,
		sem:           semaphore.NewWeighted(maxConcurrent),
		plans:         plans,
		results:       results,
		retry:         retry,
		submitTimeout: submitTimeout,
		log:           log,
		now:           time.Now,
	}
}

// Run pulls plans until ctx is cancelled or the plan channel closes,
// then waits for in-flight executions to drain.
func (e *Executor) Run(ctx context.Context) {
	e.log.Info().Msg("executor started")
	defer func() {
		e.wg.Wait()
		e.log.Info().Msg("executor stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case plan, ok := <-e.plans:
			if !ok {
				return
			}
			if err := e.sem.Acquire(ctx, 1); err != nil {
				return
			}
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				defer e.sem.Release(1)
				e.execute(ctx, plan)
			}()
		}
	}
}

// execute runs the full retry loop for one plan and emits exactly one
// result.
func (e *Executor) execute(ctx context.Context, plan *strategy.Plan) {
	e.trackInflight(1)
	defer e.trackInflight(-1)

	start := e.now()

	if plan.Expired(start) {
		e.emit(ctx, ExecutionResult{
			PlanID:       plan.ID,
			Strategy:     plan.Strategy,
			Success:      false,
			ErrorMessage: "Plan expired",
			Timestamp:    e.now(),
		}, start)
		return
	}

	receipt, lastErr := e.submitWithRetry(ctx, plan)
	elapsed := e.now().Sub(start)

	if receipt != nil {
		sig := receipt.Signature
		result := ExecutionResult{
			PlanID:          plan.ID,
			Strategy:        plan.Strategy,
			Success:         true,
			Signature:       &sig,
			OutputMint:      plan.OutputMint,
			ObservedOut:     receipt.ObservedOut,
			ExecutionTimeMS: uint64(elapsed.Milliseconds()),
			GasUsed:         receipt.GasUsed,
			Timestamp:       e.now(),
		}
		if slip, ok := observedSlippage(plan, receipt); ok {
			result.SlippageBps = &slip
		}
		e.emit(ctx, result, start)
		return
	}

	msg := "execution failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	e.emit(ctx, ExecutionResult{
		PlanID:          plan.ID,
		Strategy:        plan.Strategy,
		Success:         false,
		ExecutionTimeMS: uint64(elapsed.Milliseconds()),
		ErrorMessage:    msg,
		Timestamp:       e.now(),
	}, start)
}

// submitWithRetry retries transient chain errors with exponential
// backoff. Validation errors are terminal immediately.
func (e *Executor) submitWithRetry(ctx context.Context, plan *strategy.Plan) (*chain.Receipt, error) {
	delay := e.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
		receipt, err := e.chain.Submit(attemptCtx, plan)
		cancel()

		if err == nil {
			return receipt, nil
		}
		lastErr = err

		var ce *chain.Error
		if errors.As(err, &ce) && !ce.Retryable() {
			e.log.Warn().Err(err).Str("plan_id", plan.ID.String()).Msg("non-retryable chain error")
			return nil, err
		}
		if attempt == e.retry.MaxAttempts {
			break
		}

		e.log.Warn().
			Err(err).
			Str("plan_id", plan.ID.String()).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("retrying chain submit")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		delay = time.Duration(float64(delay) * e.retry.Multiplier)
		if delay > e.retry.MaxDelay {
			delay = e.retry.MaxDelay
		}
	}
	return nil, lastErr
}

// observedSlippage derives realized slippage in bps from the receipt.
// Absent when the engine did not report an observed output.
func observedSlippage(plan *strategy.Plan, receipt *chain.Receipt) (uint16, bool) {
	if receipt.ObservedOut == 0 || plan.QuotedOutAmount == 0 {
		return 0, false
	}
	if receipt.ObservedOut >= plan.QuotedOutAmount {
		return 0, true
	}
	bps := (plan.QuotedOutAmount - receipt.ObservedOut) * 10_000 / plan.QuotedOutAmount
	if bps > 10_000 {
		bps = 10_000
	}
	return uint16(bps), true
}

func (e *Executor) emit(ctx context.Context, result ExecutionResult, start time.Time) {
	if err := result.CheckInvariants(); err != nil {
		e.log.Error().Err(err).Msg("dropping result violating invariants")
		return
	}

	e.recordResult(result)
	metrics.ExecutionDuration.Observe(e.now().Sub(start).Seconds())
	if result.Success {
		metrics.Executions.WithLabelValues("success").Inc()
	} else {
		metrics.Executions.WithLabelValues("failure").Inc()
	}

	select {
	case e.results <- result:
	case <-ctx.Done():
		e.log.Warn().Str("plan_id", result.PlanID.String()).Msg("result dropped: receiver gone")
	}
}

func (e *Executor) trackInflight(delta int64) {
	e.mu.Lock()
	e.inflight += delta
	e.mu.Unlock()
	metrics.InflightExecutions.Add(float64(delta))
}

// recordResult updates the counters and the running mean
// mean ← mean + (x − mean)/n.
func (e *Executor) recordResult(r ExecutionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.Attempted++
	if r.Success {
		e.stats.Succeeded++
	} else {
		e.stats.Failed++
	}
	x := float64(r.ExecutionTimeMS)
	e.stats.MeanTimeMS += (x - e.stats.MeanTimeMS) / float64(e.stats.Attempted)
	e.stats.LastTimeMS = r.ExecutionTimeMS
	e.stats.TotalGas += r.GasUsed
}

// Stats returns a snapshot of executor counters.
func (e *Executor) Stats() ExecutorStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Inflight = e.inflight
	return s
}
