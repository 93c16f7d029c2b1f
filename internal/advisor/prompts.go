package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You are a trading advisor for an automated on-chain agent.
Given a market snapshot, respond with a single JSON object and nothing else:
{
  "action": "Buy" | "Sell" | "Hold" | "Rebalance" | "StopLoss",
  "confidence": <float 0.0-1.0>,
  "reasoning": "<one or two sentences>",
  "risk_assessment": {
    "risk_score": <float 0.0-1.0>,
    "max_loss_estimate": <float, USD>,
    "position_risk_pct": <float>,
    "factors": ["<string>", ...]
  },
  "suggestions": { "<parameter>": <float>, ... }
}`

// buildUserPrompt renders the snapshot the model scores. Quotes and
// positions are serialized as JSON so the model sees exact numbers.
func buildUserPrompt(req Request) (string, error) {
	var sb strings.Builder

	conditions, err := json.Marshal(req.Conditions)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "Market conditions: %s\n\n", conditions)

	if len(req.Quotes) > 0 {
		quotes, err := json.Marshal(req.Quotes)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "Recent quotes (newest first): %s\n\n", quotes)
	}

	if len(req.Positions) > 0 {
		positions, err := json.Marshal(req.Positions)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "Open positions: %s\n\n", positions)
	}

	if len(req.Strategies) > 0 {
		tags := make([]string, len(req.Strategies))
		for i, t := range req.Strategies {
			tags[i] = string(t)
		}
		fmt.Fprintf(&sb, "Configured strategies: %s\n\n", strings.Join(tags, ", "))
	}

	sb.WriteString("Assess the snapshot and reply with the JSON object only.")
	return sb.String(), nil
}
