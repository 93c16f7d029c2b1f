package agent

// Learned parameter bounds. Applied adjustments never leave these
// ranges regardless of how feedback accumulates.
const (
	minPriorityFeePercentile = 50.0
	maxPriorityFeePercentile = 99.0
	minSlippageBps           = 10.0
	maxSlippageBps           = 500.0
	minPositionMultiplier    = 0.1
	maxPositionMultiplier    = 2.0
)

// LearnedParams are the execution parameters the feedback loop tunes.
// Instances are immutable; the supervisor swaps an atomic pointer to the
// latest copy and stages re-read it each iteration.
type LearnedParams struct {
	PriorityFeePercentile  float64 `json:"priority_fee_percentile"`
	MaxSlippageBps         float64 `json:"max_slippage_bps"`
	PositionSizeMultiplier float64 `json:"position_size_multiplier"`
}

// DefaultLearnedParams returns the starting point before any feedback.
func DefaultLearnedParams() LearnedParams {
	return LearnedParams{
		PriorityFeePercentile:  75,
		MaxSlippageBps:         50,
		PositionSizeMultiplier: 1.0,
	}
}

// Apply returns a new copy with the named adjustments added and clamped
// to the declared bounds. Unknown names are ignored.
func (p LearnedParams) Apply(adjustments map[string]float64) LearnedParams {
	next := p
	for name, delta := range adjustments {
		switch name {
		case "priority_fee_percentile":
			next.PriorityFeePercentile = clamp(next.PriorityFeePercentile+delta,
				minPriorityFeePercentile, maxPriorityFeePercentile)
		case "max_slippage_bps":
			next.MaxSlippageBps = clamp(next.MaxSlippageBps+delta,
				minSlippageBps, maxSlippageBps)
		case "position_size_multiplier":
			next.PositionSizeMultiplier = clamp(next.PositionSizeMultiplier+delta,
				minPositionMultiplier, maxPositionMultiplier)
		}
	}
	return next
}

// InBounds reports whether every field sits inside its declared range.
func (p LearnedParams) InBounds() bool {
	return p.PriorityFeePercentile >= minPriorityFeePercentile &&
		p.PriorityFeePercentile <= maxPriorityFeePercentile &&
		p.MaxSlippageBps >= minSlippageBps &&
		p.MaxSlippageBps <= maxSlippageBps &&
		p.PositionSizeMultiplier >= minPositionMultiplier &&
		p.PositionSizeMultiplier <= maxPositionMultiplier
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
