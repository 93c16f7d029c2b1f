// Package strategy defines the pluggable trading strategies and the plan
// type they produce. A strategy is a pure evaluator: given the latest
// quote, a market-conditions estimate, the current positions, and its
// config, it either produces an executable Plan or nothing.
package strategy

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Tag identifies a strategy variant.
type Tag string

const (
	Arbitrage      Tag = "Arbitrage"
	DCA            Tag = "DCA"
	GridTrading    Tag = "GridTrading"
	MeanReversion  Tag = "MeanReversion"
	TrendFollowing Tag = "TrendFollowing"
)

// ParseTag converts a config string into a Tag. Unknown strings are a
// configuration error.
func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case Arbitrage, DCA, GridTrading, MeanReversion, TrendFollowing:
		return Tag(s), nil
	default:
		return "", Configf("unknown strategy tag %q", s)
	}
}

// Trend is the planner's coarse direction estimate.
type Trend string

const (
	Bullish  Trend = "Bullish"
	Bearish  Trend = "Bearish"
	Sideways Trend = "Sideways"
)

// MarketConditions is the planner's rolling estimate derived from the
// quote window. Never persisted.
type MarketConditions struct {
	Volatility     float64 `json:"volatility"`
	Volume24h      float64 `json:"volume_24h"`
	Trend          Trend   `json:"trend"`
	LiquidityScore float64 `json:"liquidity_score"`
}

// Position is a token held by a bucket, as tracked by the observer.
type Position struct {
	Bucket       solana.PublicKey `json:"bucket"`
	TokenMint    solana.PublicKey `json:"token_mint"`
	Amount       uint64           `json:"amount"`
	EntryPrice   float64          `json:"entry_price"`
	CurrentPrice float64          `json:"current_price"`
	UnrealizedPL float64          `json:"unrealized_pnl"`
	OpenedAt     time.Time        `json:"opened_at"`
}

// ValueUSD returns the position's current notional value.
func (p Position) ValueUSD() float64 {
	return float64(p.Amount) * p.CurrentPrice
}

// Params are the per-strategy tunables.
type Params struct {
	MinSpreadBps       uint16             `yaml:"min_spread_bps" json:"min_spread_bps"`
	MaxSlippageBps     uint16             `yaml:"max_slippage_bps" json:"max_slippage_bps"`
	PositionSizeUSD    float64            `yaml:"position_size_usd" json:"position_size_usd"`
	MinContributionUSD float64            `yaml:"min_contribution_usd" json:"min_contribution_usd"`
	MaxContributionUSD float64            `yaml:"max_contribution_usd" json:"max_contribution_usd"`
	RebalanceThreshold float64            `yaml:"rebalance_threshold" json:"rebalance_threshold"` // fraction of entry price
	LookbackPeriods    int                `yaml:"lookback_periods" json:"lookback_periods"`
	Custom             map[string]float64 `yaml:"custom" json:"custom,omitempty"`
}

// RiskLimits cap a strategy's exposure. Percentages are in [0,100].
type RiskLimits struct {
	MaxPositionSizeUSD float64 `yaml:"max_position_size_usd" json:"max_position_size_usd"`
	MaxDailyLossPct    float64 `yaml:"max_daily_loss_pct" json:"max_daily_loss_pct"`
	MaxDrawdownPct     float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
	StopLossPct        float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct      float64 `yaml:"take_profit_pct" json:"take_profit_pct"`
}

// ExecutionSettings tune how plans from this strategy are executed.
type ExecutionSettings struct {
	PriorityFeePercentile  uint8  `yaml:"priority_fee_percentile" json:"priority_fee_percentile"` // 50-99
	MaxPriorityFeeLamports uint64 `yaml:"max_priority_fee_lamports" json:"max_priority_fee_lamports"`
	TransactionTimeoutMS   int    `yaml:"transaction_timeout_ms" json:"transaction_timeout_ms"`
	RetryAttempts          int    `yaml:"retry_attempts" json:"retry_attempts"`
	TipLamports            uint64 `yaml:"tip_lamports" json:"tip_lamports"`
}

// Config is one configured strategy instance.
type Config struct {
	Strategy  Tag               `yaml:"strategy" json:"strategy"`
	Params    Params            `yaml:"parameters" json:"parameters"`
	Risk      RiskLimits        `yaml:"risk_limits" json:"risk_limits"`
	Execution ExecutionSettings `yaml:"execution" json:"execution"`
}

// ValidateCommon checks the constraints shared by every strategy. The
// per-strategy Validate adds its own on top.
func (c Config) ValidateCommon() error {
	for name, pct := range map[string]float64{
		"max_daily_loss_pct": c.Risk.MaxDailyLossPct,
		"max_drawdown_pct":   c.Risk.MaxDrawdownPct,
		"stop_loss_pct":      c.Risk.StopLossPct,
		"take_profit_pct":    c.Risk.TakeProfitPct,
	} {
		if pct < 0 || pct > 100 {
			return Configf("%s: %s must be in [0,100], got %v", c.Strategy, name, pct)
		}
	}
	if c.Params.MinContributionUSD > c.Params.MaxContributionUSD {
		return Configf("%s: min_contribution_usd %v exceeds max_contribution_usd %v",
			c.Strategy, c.Params.MinContributionUSD, c.Params.MaxContributionUSD)
	}
	if c.Risk.MaxPositionSizeUSD > 0 && c.Params.MaxContributionUSD > c.Risk.MaxPositionSizeUSD {
		return Configf("%s: max_contribution_usd %v exceeds max_position_size_usd %v",
			c.Strategy, c.Params.MaxContributionUSD, c.Risk.MaxPositionSizeUSD)
	}
	if p := c.Execution.PriorityFeePercentile; p != 0 && (p < 50 || p > 99) {
		return Configf("%s: priority_fee_percentile must be in [50,99], got %d", c.Strategy, p)
	}
	return nil
}

// TransactionTimeout returns the per-transaction deadline as a Duration,
// defaulting to 30 s.
func (e ExecutionSettings) TransactionTimeout() time.Duration {
	if e.TransactionTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.TransactionTimeoutMS) * time.Millisecond
}

// RiskAssessment is carried on a plan's execution context.
type RiskAssessment struct {
	RiskScore       float64  `json:"risk_score"`
	MaxLossEstimate float64  `json:"max_loss_estimate"`
	PositionRiskPct float64  `json:"position_risk_pct"`
	Factors         []string `json:"factors,omitempty"`
}

// ExecutionContext records why a plan was produced.
type ExecutionContext struct {
	Market    MarketConditions `json:"market_conditions"`
	Risk      RiskAssessment   `json:"risk_assessment"`
	Reasoning string           `json:"reasoning,omitempty"`
}

// Plan is an executable swap intent.
type Plan struct {
	ID              uuid.UUID        `json:"id"`
	Strategy        Tag              `json:"strategy"`
	Bucket          solana.PublicKey `json:"bucket"`
	InputMint       solana.PublicKey `json:"input_mint"`
	OutputMint      solana.PublicKey `json:"output_mint"`
	InputAmount     uint64           `json:"input_amount"`
	MinOutputAmount uint64           `json:"min_output_amount"`
	QuotedOutAmount uint64           `json:"quoted_out_amount"`
	MaxSlippageBps  uint16           `json:"max_slippage_bps"`
	PriorityFee     uint64           `json:"priority_fee"`
	RoutePlan       []byte           `json:"route_plan,omitempty"`
	Confidence      float64          `json:"confidence"`
	CreatedAt       time.Time        `json:"created_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
	Context         ExecutionContext `json:"context"`
}

// Expired reports whether the plan must not execute. A plan whose
// expiry equals now is already expired.
func (p *Plan) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// CheckInvariants verifies the structural plan invariants.
func (p *Plan) CheckInvariants() error {
	if p.InputAmount == 0 {
		return Invariantf("plan %s: input_amount must be > 0", p.ID)
	}
	if p.MinOutputAmount > p.QuotedOutAmount {
		return Invariantf("plan %s: min_output_amount %d exceeds quoted_out_amount %d",
			p.ID, p.MinOutputAmount, p.QuotedOutAmount)
	}
	if !p.ExpiresAt.After(p.CreatedAt) {
		return Invariantf("plan %s: expires_at must follow created_at", p.ID)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return Invariantf("plan %s: confidence %v out of [0,1]", p.ID, p.Confidence)
	}
	return nil
}
