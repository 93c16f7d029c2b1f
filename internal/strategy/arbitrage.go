package strategy

import (
	"time"

	"github.com/google/uuid"
)

const (
	arbitrageTTL           = 30 * time.Second
	arbitrageMaxVolatility = 0.15
	arbitrageMinLiquidity  = 0.3
	arbitrageMaxConfidence = 0.9
)

// ArbitrageStrategy trades when the effective spread of a quote clears
// the configured minimum after deducting slippage, platform fee, and
// price impact.
type ArbitrageStrategy struct{}

// NewArbitrageStrategy returns the arbitrage evaluator.
func NewArbitrageStrategy() *ArbitrageStrategy { return &ArbitrageStrategy{} }

func (s *ArbitrageStrategy) Tag() Tag { return Arbitrage }

func (s *ArbitrageStrategy) Validate(cfg Config) error {
	if cfg.Params.MinSpreadBps < 10 {
		return Configf("Arbitrage: min_spread_bps must be >= 10, got %d", cfg.Params.MinSpreadBps)
	}
	if cfg.Params.MaxSlippageBps > 500 {
		return Configf("Arbitrage: max_slippage_bps must be <= 500, got %d", cfg.Params.MaxSlippageBps)
	}
	return nil
}

func (s *ArbitrageStrategy) Evaluate(in EvalInput) (*Plan, error) {
	q := in.Quote
	if q.InAmount == 0 {
		return nil, &EvalError{Strategy: Arbitrage, Msg: "quote has zero input amount"}
	}

	rawSpreadBps := (float64(q.OutAmount)/float64(q.InAmount) - 1.0) * 10_000
	impactBps := q.PriceImpactPct * 100
	effectiveBps := rawSpreadBps - float64(q.SlippageBps) - float64(q.PlatformFeeBps) - impactBps

	minSpread := float64(in.Config.Params.MinSpreadBps)
	if effectiveBps < minSpread {
		return nil, nil
	}
	if in.Conditions.Volatility > arbitrageMaxVolatility {
		return nil, nil
	}
	if in.Conditions.LiquidityScore < arbitrageMinLiquidity {
		return nil, nil
	}
	if cap := in.Config.Risk.MaxPositionSizeUSD; cap > 0 && totalExposureUSD(in.Positions) >= cap {
		return nil, nil
	}

	confidence := 0.5 + (effectiveBps/minSpread-1.0)*0.2
	if confidence > arbitrageMaxConfidence {
		confidence = arbitrageMaxConfidence
	}

	inputAmount, expectedOut := planAmounts(q, in.Config.Params.PositionSizeUSD)
	maxSlippage := in.Config.Params.MaxSlippageBps

	return &Plan{
		ID:              uuid.New(),
		Strategy:        Arbitrage,
		Bucket:          in.Bucket,
		InputMint:       q.InputMint,
		OutputMint:      q.OutputMint,
		InputAmount:     inputAmount,
		MinOutputAmount: slippageAdjusted(expectedOut, maxSlippage),
		QuotedOutAmount: expectedOut,
		MaxSlippageBps:  maxSlippage,
		PriorityFee:     in.Config.Execution.PriorityFee(),
		RoutePlan:       q.RoutePlan,
		Confidence:      confidence,
		CreatedAt:       in.Now,
		ExpiresAt:       in.Now.Add(arbitrageTTL),
		Context: ExecutionContext{
			Market: in.Conditions,
			Risk: RiskAssessment{
				RiskScore:       1.0 - in.Conditions.LiquidityScore,
				MaxLossEstimate: float64(inputAmount) / usdBaseUnits * float64(maxSlippage) / 10_000,
				PositionRiskPct: float64(maxSlippage) / 100,
				Factors:         []string{"spread", "slippage"},
			},
		},
	}, nil
}
