// Package agent wires the four pipeline stages — fetch, plan, execute,
// observe — under a single supervisor, and closes the learning loop that
// feeds observed execution quality back into the planner's parameters.
package agent

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// ExecutionResult is the terminal outcome of one plan, retries included.
// OutputMint and ObservedOut let the observer track the position the
// trade opened or grew.
type ExecutionResult struct {
	PlanID          uuid.UUID         `json:"plan_id"`
	Strategy        strategy.Tag      `json:"strategy"`
	Success         bool              `json:"success"`
	Signature       *solana.Signature `json:"signature,omitempty"`
	OutputMint      solana.PublicKey  `json:"output_mint"`
	ObservedOut     uint64            `json:"observed_out"`
	ExecutionTimeMS uint64            `json:"execution_time_ms"`
	SlippageBps     *uint16           `json:"slippage_bps,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	GasUsed         uint64            `json:"gas_used"`
	Timestamp       time.Time         `json:"timestamp"`
}

// CheckInvariants verifies the structural result invariants.
func (r *ExecutionResult) CheckInvariants() error {
	if r.Success && r.Signature == nil {
		return strategy.Invariantf("result %s: success without signature", r.PlanID)
	}
	if !r.Success && r.ErrorMessage == "" {
		return strategy.Invariantf("result %s: failure without error message", r.PlanID)
	}
	return nil
}

// Quality is the discretized execution quality used to pick parameter
// adjustments.
type Quality string

const (
	QualityExcellent Quality = "Excellent"
	QualityGood      Quality = "Good"
	QualityFair      Quality = "Fair"
	QualityPoor      Quality = "Poor"
)

// AssessQuality buckets a result by execution time and observed
// slippage. Failures are always Poor. When slippage was not observed it
// contributes no evidence and the time score decides alone.
func AssessQuality(r ExecutionResult) Quality {
	if !r.Success {
		return QualityPoor
	}

	var timeScore float64
	switch {
	case r.ExecutionTimeMS < 2000:
		timeScore = 1.0
	case r.ExecutionTimeMS < 5000:
		timeScore = 0.7
	default:
		timeScore = 0.3
	}

	score := timeScore
	if r.SlippageBps != nil {
		var slipScore float64
		switch {
		case *r.SlippageBps < 50:
			slipScore = 1.0
		case *r.SlippageBps < 100:
			slipScore = 0.7
		default:
			slipScore = 0.3
		}
		score = (timeScore + slipScore) / 2.0
	}

	switch {
	case score >= 0.8:
		return QualityExcellent
	case score >= 0.6:
		return QualityGood
	case score >= 0.4:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Adjustments returns the named parameter deltas for a quality bucket.
func (q Quality) Adjustments() map[string]float64 {
	switch q {
	case QualityPoor:
		return map[string]float64{
			"priority_fee_percentile":  5.0,
			"max_slippage_bps":         10.0,
			"position_size_multiplier": -0.10,
		}
	case QualityFair:
		return map[string]float64{
			"priority_fee_percentile": 2.0,
			"max_slippage_bps":        5.0,
		}
	case QualityGood:
		return map[string]float64{
			"position_size_multiplier": 0.05,
		}
	case QualityExcellent:
		return map[string]float64{
			"priority_fee_percentile":  -1.0,
			"position_size_multiplier": 0.10,
		}
	default:
		return nil
	}
}

// PerformanceImpact summarizes how one result moved the cumulative
// metrics.
type PerformanceImpact struct {
	PnLDelta     float64 `json:"pnl_delta"`
	WinRateDelta float64 `json:"win_rate_delta"`
	RiskDelta    float64 `json:"risk_delta"`
	Quality      Quality `json:"quality"`
}

// Feedback is the observer's learning signal back to the supervisor.
type Feedback struct {
	Strategy    strategy.Tag       `json:"strategy"`
	Result      ExecutionResult    `json:"result"`
	Impact      PerformanceImpact  `json:"impact"`
	Adjustments map[string]float64 `json:"adjustments"`
}

// PerformanceMetrics are the observer's cumulative statistics.
type PerformanceMetrics struct {
	TotalTrades      uint64  `json:"total_trades"`
	SuccessfulTrades uint64  `json:"successful_trades"`
	WinRate          float64 `json:"win_rate"`
	MeanExecutionMS  float64 `json:"mean_execution_ms"`
	MeanSlippageBps  float64 `json:"mean_slippage_bps"`
	TotalGasUsed     uint64  `json:"total_gas_used"`
}
