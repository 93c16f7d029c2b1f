// Package market provides quote/price ingestion for the trading pipeline:
// a concurrent cache of the latest quote per directed pair, a REST client
// for the swap-quote and price endpoints of the aggregator, and a fetcher
// that polls a fixed pair list on an interval and publishes fresh quotes
// downstream.
package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// PairKey identifies a directed trading pair. The zero value is invalid.
type PairKey struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
}

func (k PairKey) String() string {
	return k.InputMint.String() + "/" + k.OutputMint.String()
}

// Pair is a configured pair to poll: the directed mints plus the input
// amount (base units) to request quotes for.
type Pair struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Amount     uint64
}

// Key returns the cache key for this pair.
func (p Pair) Key() PairKey {
	return PairKey{InputMint: p.InputMint, OutputMint: p.OutputMint}
}

// Quote is a snapshot of a proposed swap along one directed pair.
// Amounts are in the smallest units of their respective mints.
type Quote struct {
	InputMint            solana.PublicKey `json:"input_mint"`
	OutputMint           solana.PublicKey `json:"output_mint"`
	InAmount             uint64           `json:"in_amount"`
	OutAmount            uint64           `json:"out_amount"`
	OtherAmountThreshold uint64           `json:"other_amount_threshold"`
	SwapMode             string           `json:"swap_mode"`
	SlippageBps          uint16           `json:"slippage_bps"`
	PlatformFeeBps       uint16           `json:"platform_fee_bps"`
	PriceImpactPct       float64          `json:"price_impact_pct"`
	RoutePlan            []byte           `json:"route_plan,omitempty"`
	Timestamp            time.Time        `json:"timestamp"`
}

// Key returns the cache key for this quote's pair.
func (q Quote) Key() PairKey {
	return PairKey{InputMint: q.InputMint, OutputMint: q.OutputMint}
}

// Fresh reports whether the quote is recent enough to act on. A quote is
// fresh iff now − timestamp < 3 × the fetch interval.
func (q Quote) Fresh(now time.Time, fetchInterval time.Duration) bool {
	return now.Sub(q.Timestamp) < 3*fetchInterval
}

// Price returns out/in as a float, or 0 when the quote is degenerate.
func (q Quote) Price() float64 {
	if q.InAmount == 0 {
		return 0
	}
	return float64(q.OutAmount) / float64(q.InAmount)
}

// RouteStep is one hop of an aggregator route.
type RouteStep struct {
	AMMKey     string  `json:"ammKey"`
	Label      string  `json:"label,omitempty"`
	InputMint  string  `json:"inputMint"`
	OutputMint string  `json:"outputMint"`
	InAmount   string  `json:"inAmount"`
	OutAmount  string  `json:"outAmount"`
	FeeAmount  string  `json:"feeAmount,omitempty"`
	FeeMint    string  `json:"feeMint,omitempty"`
	Percent    float64 `json:"percent"`
}

// EncodeRoutePlan serializes route steps into the opaque blob carried on
// quotes and plans.
func EncodeRoutePlan(steps []RouteStep) ([]byte, error) {
	blob, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("encode route plan: %w", err)
	}
	return blob, nil
}

// DecodeRoutePlan deserializes a route-plan blob produced by EncodeRoutePlan
// or received verbatim from the quote API.
func DecodeRoutePlan(blob []byte) ([]RouteStep, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var steps []RouteStep
	if err := json.Unmarshal(blob, &steps); err != nil {
		return nil, fmt.Errorf("decode route plan: %w", err)
	}
	return steps, nil
}
