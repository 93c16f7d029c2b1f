package strategy

import (
	"math/rand/v2"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/vaultfunk/vaultfunk/internal/market"
)

// EvalInput is everything a strategy sees for one evaluation. Positions
// are keyed by token mint (base58).
type EvalInput struct {
	Quote      market.Quote
	Conditions MarketConditions
	Positions  map[string]Position
	Config     Config
	Bucket     solana.PublicKey
	Now        time.Time
}

// Strategy is a pure plan evaluator. Evaluate returns (nil, nil) when the
// strategy declines to trade; errors are per-evaluation and never fatal
// to the planner.
type Strategy interface {
	Tag() Tag
	Validate(cfg Config) error
	Evaluate(in EvalInput) (*Plan, error)
}

// New constructs the strategy for a tag. Reserved and unknown tags are
// configuration errors rather than silent no-ops.
func New(tag Tag) (Strategy, error) {
	switch tag {
	case Arbitrage:
		return NewArbitrageStrategy(), nil
	case DCA:
		return NewDCAStrategy(), nil
	case GridTrading:
		return NewGridStrategy(), nil
	case MeanReversion, TrendFollowing:
		return nil, Configf("strategy %s is reserved and not yet implemented", tag)
	default:
		return nil, Configf("unknown strategy tag %q", tag)
	}
}

// BuildSet constructs and validates one strategy per config. Duplicate
// tags and any validation failure abort the build.
func BuildSet(configs []Config) (map[Tag]Strategy, map[Tag]Config, error) {
	strategies := make(map[Tag]Strategy, len(configs))
	byTag := make(map[Tag]Config, len(configs))
	for _, cfg := range configs {
		if _, dup := strategies[cfg.Strategy]; dup {
			return nil, nil, Configf("duplicate strategy config for %s", cfg.Strategy)
		}
		s, err := New(cfg.Strategy)
		if err != nil {
			return nil, nil, err
		}
		if err := cfg.ValidateCommon(); err != nil {
			return nil, nil, err
		}
		if err := s.Validate(cfg); err != nil {
			return nil, nil, err
		}
		strategies[cfg.Strategy] = s
		byTag[cfg.Strategy] = cfg
	}
	return strategies, byTag, nil
}

// PriorityFee derives a per-plan priority fee from the execution
// settings: the configured percentile of the max fee, plus up to 10 %
// jitter, never above the max.
func (e ExecutionSettings) PriorityFee() uint64 {
	if e.MaxPriorityFeeLamports == 0 {
		return 0
	}
	pct := uint64(e.PriorityFeePercentile)
	if pct == 0 {
		pct = 50
	}
	fee := e.MaxPriorityFeeLamports * pct / 100
	fee += rand.Uint64N(e.MaxPriorityFeeLamports/10 + 1)
	if fee > e.MaxPriorityFeeLamports {
		fee = e.MaxPriorityFeeLamports
	}
	return fee
}

// usdcDecimals scaling: position sizes in USD are converted to base
// units of a 6-decimal input mint.
const usdBaseUnits = 1_000_000

// planAmounts converts the configured position size to input base units
// and scales the quoted output to match. Falls back to the quoted
// amounts when no position size is configured.
func planAmounts(q market.Quote, positionSizeUSD float64) (inputAmount, expectedOut uint64) {
	if positionSizeUSD <= 0 || q.InAmount == 0 {
		return q.InAmount, q.OutAmount
	}
	inputAmount = uint64(positionSizeUSD * usdBaseUnits)
	expectedOut = uint64(float64(q.OutAmount) * float64(inputAmount) / float64(q.InAmount))
	return inputAmount, expectedOut
}

// slippageAdjusted returns the minimum acceptable output for a quoted
// output under the given slippage tolerance.
func slippageAdjusted(quotedOut uint64, maxSlippageBps uint16) uint64 {
	return quotedOut - quotedOut*uint64(maxSlippageBps)/10_000
}

// totalExposureUSD sums the current notional value of all positions.
func totalExposureUSD(positions map[string]Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.ValueUSD()
	}
	return total
}
