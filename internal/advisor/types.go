// Package advisor wraps the optional AI guidance service. The advisor is
// purely advisory: the planner asks once per evaluation tick, and any
// failure or timeout means the standard evaluation path runs unchanged.
package advisor

import (
	"context"

	"github.com/vaultfunk/vaultfunk/internal/market"
	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// Action is the advisor's recommended move.
type Action string

const (
	ActionBuy       Action = "Buy"
	ActionSell      Action = "Sell"
	ActionHold      Action = "Hold"
	ActionRebalance Action = "Rebalance"
	ActionStopLoss  Action = "StopLoss"
)

func validAction(a Action) bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionRebalance, ActionStopLoss:
		return true
	default:
		return false
	}
}

// Guidance is the advisor's structured response.
type Guidance struct {
	Action      Action                  `json:"action"`
	Confidence  float64                 `json:"confidence"` // [0,1]
	Reasoning   string                  `json:"reasoning"`
	Risk        strategy.RiskAssessment `json:"risk_assessment"`
	Suggestions map[string]float64      `json:"suggestions,omitempty"`
}

// Request is the market snapshot the advisor scores.
type Request struct {
	Conditions strategy.MarketConditions
	Quotes     []market.Quote // newest first, typically a handful
	Positions  []strategy.Position
	Strategies []strategy.Tag
}

// Advisor produces guidance for a market snapshot. Implementations must
// honor ctx cancellation.
type Advisor interface {
	Advise(ctx context.Context, req Request) (*Guidance, error)
}
