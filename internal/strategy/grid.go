package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const gridTTL = 5 * time.Minute

// GridStrategy rebalances in ranging markets: it only acts when the
// trend is Sideways and the tracked position for the quote's output
// token has drifted at least the rebalance threshold from its entry.
type GridStrategy struct{}

// NewGridStrategy returns the grid-rebalance evaluator.
func NewGridStrategy() *GridStrategy { return &GridStrategy{} }

func (s *GridStrategy) Tag() Tag { return GridTrading }

func (s *GridStrategy) Validate(cfg Config) error {
	t := cfg.Params.RebalanceThreshold
	if t < 0.01 || t > 0.10 {
		return Configf("GridTrading: rebalance_threshold must be in [0.01, 0.10], got %v", t)
	}
	return nil
}

func (s *GridStrategy) Evaluate(in EvalInput) (*Plan, error) {
	if in.Conditions.Trend != Sideways {
		return nil, nil
	}

	q := in.Quote
	if q.InAmount == 0 {
		return nil, &EvalError{Strategy: GridTrading, Msg: "quote has zero input amount"}
	}

	pos, ok := in.Positions[q.OutputMint.String()]
	if !ok || pos.EntryPrice <= 0 {
		return nil, nil
	}

	drift := math.Abs(pos.CurrentPrice/pos.EntryPrice - 1.0)
	threshold := in.Config.Params.RebalanceThreshold
	if drift < threshold {
		return nil, nil
	}

	inputAmount, expectedOut := planAmounts(q, in.Config.Params.PositionSizeUSD)
	maxSlippage := in.Config.Params.MaxSlippageBps

	// Confidence grows with drift beyond the threshold, capped well below
	// the arbitrage ceiling since grid fills are opportunistic.
	confidence := 0.6 + math.Min(drift-threshold, 0.05)*2
	if confidence > 0.75 {
		confidence = 0.75
	}

	return &Plan{
		ID:              uuid.New(),
		Strategy:        GridTrading,
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
		ExpiresAt:       in.Now.Add(gridTTL),
		Context: ExecutionContext{
			Market: in.Conditions,
			Risk: RiskAssessment{
				RiskScore:       0.4,
				PositionRiskPct: drift * 100,
				Factors:         []string{"rebalance", "drift"},
			},
			Reasoning: fmt.Sprintf("position drifted %.2f%% from entry, above %.2f%% threshold", drift*100, threshold*100),
		},
	}, nil
}
