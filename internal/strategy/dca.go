package strategy

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultfunk/vaultfunk/internal/market"
)

const (
	dcaTTL                  = time.Hour
	dcaConfidence           = 0.8
	dcaOutputToleranceBps   = 500 // 5 % of the quoted output
	dcaDefaultIntervalHours = 24.0
)

// DCAStrategy buys on a fixed schedule regardless of market conditions:
// at most one plan per interval per pair.
type DCAStrategy struct {
	mu       sync.Mutex
	lastExec map[market.PairKey]time.Time
}

// NewDCAStrategy returns the dollar-cost-averaging evaluator.
func NewDCAStrategy() *DCAStrategy {
	return &DCAStrategy{lastExec: make(map[market.PairKey]time.Time)}
}

func (s *DCAStrategy) Tag() Tag { return DCA }

func (s *DCAStrategy) Validate(cfg Config) error {
	if hours, ok := cfg.Params.Custom["interval_hours"]; ok && hours <= 0 {
		return Configf("DCA: interval_hours must be > 0, got %v", hours)
	}
	if cfg.Params.PositionSizeUSD < 0 {
		return Configf("DCA: position_size_usd must be >= 0, got %v", cfg.Params.PositionSizeUSD)
	}
	return nil
}

func (s *DCAStrategy) interval(cfg Config) time.Duration {
	hours := dcaDefaultIntervalHours
	if h, ok := cfg.Params.Custom["interval_hours"]; ok && h > 0 {
		hours = h
	}
	return time.Duration(hours * float64(time.Hour))
}

func (s *DCAStrategy) Evaluate(in EvalInput) (*Plan, error) {
	q := in.Quote
	if q.InAmount == 0 {
		return nil, &EvalError{Strategy: DCA, Msg: "quote has zero input amount"}
	}

	key := q.Key()
	interval := s.interval(in.Config)

	s.mu.Lock()
	last, seen := s.lastExec[key]
	if seen && in.Now.Sub(last) < interval {
		s.mu.Unlock()
		return nil, nil
	}
	s.lastExec[key] = in.Now
	s.mu.Unlock()

	inputAmount, expectedOut := planAmounts(q, in.Config.Params.PositionSizeUSD)

	return &Plan{
		ID:              uuid.New(),
		Strategy:        DCA,
		Bucket:          in.Bucket,
		InputMint:       q.InputMint,
		OutputMint:      q.OutputMint,
		InputAmount:     inputAmount,
		MinOutputAmount: slippageAdjusted(expectedOut, dcaOutputToleranceBps),
		QuotedOutAmount: expectedOut,
		MaxSlippageBps:  in.Config.Params.MaxSlippageBps,
		PriorityFee:     in.Config.Execution.PriorityFee(),
		RoutePlan:       q.RoutePlan,
		Confidence:      dcaConfidence,
		CreatedAt:       in.Now,
		ExpiresAt:       in.Now.Add(dcaTTL),
		Context: ExecutionContext{
			Market: in.Conditions,
			Risk: RiskAssessment{
				RiskScore:       0.2,
				PositionRiskPct: float64(dcaOutputToleranceBps) / 100,
				Factors:         []string{"schedule"},
			},
			Reasoning: "scheduled periodic buy",
		},
	}, nil
}
